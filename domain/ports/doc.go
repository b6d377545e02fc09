// Package ports defines interfaces for infrastructure operations.
// These ports enable dependency inversion - the resolver and the bridge depend
// on abstractions, and infrastructure adapters implement these interfaces.
package ports
