package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"gopkg.in/gcfg.v1"
)

// gcfg reports an unknown section or variable as "can't store data at section ...".
const gcfgUnknownFieldPhrase = "can't store data at"

func errLoadingConfigFile(path string, err error) error {
	return fmt.Errorf("failed to read ld-sync configuration file %q: %w", path, err)
}

// LoadConfigFile reads an ld-sync configuration file, in gcfg's INI-like format, on top of the values
// already in c, and then calls ValidateConfig.
//
// Section names are the field names of Config. An unknown section or variable is an error.
func LoadConfigFile(c *Config, path string, loggers ldlog.Loggers) error {
	if err := gcfg.ReadFileInto(c, path); err != nil {
		return errLoadingConfigFile(path, describeGcfgError(err))
	}
	return ValidateConfig(c, loggers)
}

func describeGcfgError(err error) error {
	// Make gcfg's messages for unknown sections/fields slightly easier to understand
	if strings.Contains(err.Error(), gcfgUnknownFieldPhrase) {
		return errors.New(strings.Replace(err.Error(), gcfgUnknownFieldPhrase, "unsupported or misspelled", 1))
	}
	return err
}
