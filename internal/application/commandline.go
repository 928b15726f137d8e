// Package application contains the command-line handling and HTTP server startup for the ld-sync
// executable.
package application

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultConfigPath is the configuration file used if no options are given.
const DefaultConfigPath = "/etc/ld-sync.conf"

// Options represents all options that can be set from the command line.
type Options struct {
	ConfigFile       string
	AllowMissingFile bool
	UseEnvironment   bool
}

func errConfigFileNotFound(filename string) error {
	return fmt.Errorf("configuration file %q does not exist", filename)
}

// DescribeConfigSource returns a phrase describing whether the configuration comes from a file, from
// environment variables, or both.
func (o Options) DescribeConfigSource() string {
	if o.ConfigFile == "" && o.UseEnvironment {
		return "configuration from environment variables"
	}
	if o.ConfigFile == "" {
		return "default configuration"
	}
	desc := fmt.Sprintf("configuration file %s", o.ConfigFile)
	if o.UseEnvironment {
		desc += " plus environment variables"
	}
	return desc
}

// ReadOptions parses the command line. args[0] is the program name.
//
// --config loads a file, which must exist unless --allow-missing-file is also given. --from-env reads
// environment variables, applied after the file if both are given. With neither, DefaultConfigPath
// is used.
func ReadOptions(args []string, errorOutput io.Writer) (Options, error) {
	var o Options

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(errorOutput)
	fs.StringVar(&o.ConfigFile, "config", "", "configuration file location")
	fs.BoolVar(&o.AllowMissingFile, "allow-missing-file", false, "suppress error if config file is not found")
	fs.BoolVar(&o.UseEnvironment, "from-env", false, "read configuration from environment variables")
	if err := fs.Parse(args[1:]); err != nil {
		return o, err
	}

	if o.ConfigFile == "" && !o.UseEnvironment {
		o.ConfigFile = DefaultConfigPath
	}

	if o.ConfigFile != "" {
		if _, err := os.Stat(o.ConfigFile); os.IsNotExist(err) {
			if !o.AllowMissingFile {
				return o, errConfigFileNotFound(o.ConfigFile)
			}
			o.ConfigFile = ""
		}
	}

	return o, nil
}

// DescribeVersion turns a prerelease version like "1.2.3+abc" into "1.2.3 (build abc)".
func DescribeVersion(version string) string {
	split := strings.Split(version, "+")
	if len(split) == 2 {
		return fmt.Sprintf("%s (build %s)", split[0], split[1])
	}
	return version
}
