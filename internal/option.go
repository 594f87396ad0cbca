package internal

import "os"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	logOutput *os.File
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput sends log records to f instead of the command's default
// stream.
func WithLogOutput(f *os.File) Option {
	return func(a *application) {
		a.logOutput = f
	}
}
