// Package entities provides core domain entities for the bridge.
// These are plain data types shared by the resolver, the lifecycle state
// and the CLI. They carry no foreign-runtime behavior of their own.
package entities
