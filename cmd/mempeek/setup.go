package cmd

import (
	log "github.com/sirupsen/logrus"

	"github.com/hammelm/mempeek/internal/builtins"
	"github.com/hammelm/mempeek/internal/config"
	"github.com/hammelm/mempeek/internal/env"
	"github.com/hammelm/mempeek/internal/mapping"
	"github.com/hammelm/mempeek/internal/parseapi"
)

// newEnvironment builds a fully wired Environment: parser, builtins,
// config.toml defaults, then command-line overrides on top.
func newEnvironment() (*env.Environment, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	e := env.New()
	e.SetParser(parseapi.Parser{})
	builtins.RegisterFloatBuiltins(e)
	builtins.RegisterStringBuiltins(e)

	if err := config.Apply(cfg, e); err != nil {
		return nil, err
	}

	device := cfg.Device
	if flagDevice != "" {
		device = flagDevice
	}
	if device != "" {
		mapping.DefaultDevice = device
	}
	for _, dir := range flagInclude {
		e.AddIncludePath(dir)
	}

	log.WithFields(log.Fields{
		"device":    mapping.DefaultDevice,
		"word_size": e.DefaultWordSize(),
	}).Debug("environment initialized")
	return e, nil
}
