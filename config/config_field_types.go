package config

import (
	"fmt"
	"strings"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// StaleValuesPolicy is the configured behavior of the database cache when an entry has expired.
// The zero value means the policy was not set.
type StaleValuesPolicy string

const (
	// StaleValuesEvict discards expired entries; the next read waits for the database.
	StaleValuesEvict StaleValuesPolicy = "evict"

	// StaleValuesRefresh makes the next read of an expired entry wait for a reload, but keeps the old
	// value if the reload fails.
	StaleValuesRefresh StaleValuesPolicy = "refresh"

	// StaleValuesRefreshAsync returns the expired value immediately and reloads it in the background.
	StaleValuesRefreshAsync StaleValuesPolicy = "refreshAsync"
)

// IsDefined returns true if a policy was set.
func (p StaleValuesPolicy) IsDefined() bool {
	return p != ""
}

// GetOrElse returns the policy, or the alternative value if none was set.
func (p StaleValuesPolicy) GetOrElse(orElseValue StaleValuesPolicy) StaleValuesPolicy {
	if p == "" {
		return orElseValue
	}
	return p
}

// UnmarshalText parses a policy name, ignoring case.
func (p *StaleValuesPolicy) UnmarshalText(data []byte) error {
	s := string(data)
	if s == "" {
		*p = ""
		return nil
	}
	for _, known := range []StaleValuesPolicy{StaleValuesEvict, StaleValuesRefresh, StaleValuesRefreshAsync} {
		if strings.EqualFold(s, string(known)) {
			*p = known
			return nil
		}
	}
	return errBadStaleValuesPolicy(s)
}

func errBadStaleValuesPolicy(s string) error {
	return fmt.Errorf("%q is not a valid stale values policy (must be %s, %s, or %s)",
		s, StaleValuesEvict, StaleValuesRefresh, StaleValuesRefreshAsync)
}

// OptLogLevel represents an optional log level parameter. It must match one of the level names "debug",
// "info", "warn", "error", or "none" (case-insensitive).
//
// The zero value OptLogLevel{} is valid and undefined (IsDefined() is false).
type OptLogLevel struct {
	level ldlog.LogLevel
}

// NewOptLogLevel creates an OptLogLevel that wraps the given value.
func NewOptLogLevel(level ldlog.LogLevel) OptLogLevel {
	return OptLogLevel{level: level}
}

// NewOptLogLevelFromString creates an OptLogLevel from a string that must either be a valid log level
// name or an empty string.
func NewOptLogLevelFromString(levelName string) (OptLogLevel, error) {
	if levelName == "" {
		return OptLogLevel{}, nil
	}
	for _, level := range []ldlog.LogLevel{ldlog.Debug, ldlog.Info, ldlog.Warn, ldlog.Error, ldlog.None} {
		if strings.EqualFold(level.Name(), levelName) {
			return NewOptLogLevel(level), nil
		}
	}
	return OptLogLevel{}, errBadLogLevel(levelName)
}

func (o OptLogLevel) IsDefined() bool {
	return o.level != 0
}

func (o OptLogLevel) GetOrElse(orElseValue ldlog.LogLevel) ldlog.LogLevel {
	if o.level == 0 {
		return orElseValue
	}
	return o.level
}

func (o *OptLogLevel) UnmarshalText(data []byte) error {
	opt, err := NewOptLogLevelFromString(string(data))
	if err == nil {
		*o = opt
	}
	return err
}

func errBadLogLevel(s string) error {
	return fmt.Errorf("%q is not a valid log level", s)
}
