package internal

// Option adjusts how the Engram process is assembled before it runs.
type Option func(*application)

type application struct {
	config *Config
}

// WithConfig supplies an already-loaded configuration, replacing the
// defaults the process would otherwise construct.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}
