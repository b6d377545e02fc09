package ports

// Environment reads and writes process environment variables.
type Environment interface {
	LookupEnv(key string) (string, bool)
	Setenv(key, value string) error
	Unsetenv(key string) error
	Environ() []string
}
