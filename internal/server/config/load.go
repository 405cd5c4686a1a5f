package config

import (
	"github.com/yndnr/tokstash-go/internal/infra/confloader"
)

// Load builds the configuration from defaults, the optional YAML file at
// path, TOKSTASH_ environment variables and key=value overrides, in that
// order, then verifies it.
func Load(path string, overrides ...string) (*ServerConfig, error) {
	cfg := Default()

	l := confloader.NewLoader(
		confloader.WithConfigFile(path),
		confloader.WithOverrides(overrides...),
	)
	if err := l.Load(cfg); err != nil {
		return nil, err
	}

	if err := Verify(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
