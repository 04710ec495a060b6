package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

const (
	EnvAPIKey = "API_KEY"
	EnvSiteID = "SITE_ID"
)

// ErrMissingConfiguration is returned when a required value cannot be resolved.
var ErrMissingConfiguration = errors.New("missing required configuration")

// Provider resolves named configuration values.
type Provider interface {
	Lookup(name string) (string, bool)
}

// Map is a Provider backed by a plain map.
type Map map[string]string

// Lookup implements Provider.
func (m Map) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

type environ struct{}

func (environ) Lookup(name string) (string, bool) {
	return os.LookupEnv(name)
}

// Environ returns a Provider that reads the process environment at lookup time.
func Environ() Provider {
	return environ{}
}

// Credentials are the values needed to talk to the Configuration API for a
// single site.
type Credentials struct {
	APIKey string `env:"API_KEY,required,notEmpty"`
	SiteID string `env:"SITE_ID,required,notEmpty"`
}

// LoadCredentials resolves the API key and site ID from p. Both must be set
// and non-empty, otherwise an error wrapping ErrMissingConfiguration is
// returned.
func LoadCredentials(p Provider) (Credentials, error) {
	environment := make(map[string]string, 2)
	for _, k := range []string{EnvAPIKey, EnvSiteID} {
		if v, ok := p.Lookup(k); ok {
			environment[k] = v
		}
	}

	var creds Credentials
	if err := env.ParseWithOptions(&creds, env.Options{
		Environment: environment,
	}); err != nil {
		return Credentials{}, fmt.Errorf("%w: %w", ErrMissingConfiguration, err)
	}
	return creds, nil
}
