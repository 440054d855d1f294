package env

import (
	"os"

	"github.com/vagangabrain/Optimised-jess/internal/envvar"
)

// Environment identifies the runtime environment.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// FromEnv reads the environment from JESS_ENV, defaulting to development.
func FromEnv() Environment {
	switch os.Getenv(envvar.JessEnv) {
	case "production", "prod":
		return Production
	default:
		return Development
	}
}
