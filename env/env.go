package env

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pixzlo/bridge/pkg/log"
	"github.com/pkg/errors"
)

var variables = new(Environment)

// Process the environment variables set for the bridge.
func Process() error {
	if err := envconfig.Process("pixzlo", variables); err != nil {
		return errors.Wrap(err, "failed to process environment variables")
	}

	// set the log level
	if err := log.SetLevelFromString(variables.LogLevel); err != nil {
		return errors.Wrap(err, "failed to set log level")
	}

	return nil
}

// Variables returns the processed environment variables.
func Variables() Environment {
	return *variables
}

// Environment defines the environment variables used
// by the bridge.
type Environment struct {
	LogLevel           string        `default:"info"`
	Port               int           `default:"8317"`
	BackendURL         string        `default:"https://app.pixzlo.com"`
	FigmaAPIURL        string        `default:"https://api.figma.com"`
	DBPath             string        `default:"pixzlo-bridge.db"`
	SessionCookie      string        `default:""`
	HTTPTimeout        time.Duration `default:"30s"`
	ProfileTTL         time.Duration `default:"15s"`
	MetadataTTL        time.Duration `default:"5m"`
	RenderTTL          time.Duration `default:"5m"`
	CacheSweepInterval time.Duration `default:"1m"`
}
