package params

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nvandessel/atnsim/internal/constants"
)

// ErrMissingKey is returned when a configuration key has no value.
var ErrMissingKey = errors.New("missing configuration key")

// Source is a flat string-keyed configuration mapping.
type Source interface {
	Lookup(key string) (string, bool)
}

// MapSource adapts a plain map to Source.
type MapSource map[string]string

// Lookup returns the value stored under key.
func (m MapSource) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// DefaultSource returns a fresh copy of the built-in link property defaults.
func DefaultSource() MapSource {
	src := make(MapSource, len(constants.DefaultLinkProperties))
	for k, v := range constants.DefaultLinkProperties {
		src[k] = v
	}
	return src
}

// ConfigurationError reports a missing or unparseable default.
type ConfigurationError struct {
	Key   string
	Value string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if errors.Is(e.Err, ErrMissingKey) {
		return fmt.Sprintf("configuration key %q: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("configuration key %q value %q: %v", e.Key, e.Value, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// lookupFloat reads key from src and parses it as a real number.
func lookupFloat(src Source, key string) (float64, error) {
	if src == nil {
		return 0, &ConfigurationError{Key: key, Err: ErrMissingKey}
	}
	raw, ok := src.Lookup(key)
	if !ok {
		return 0, &ConfigurationError{Key: key, Err: ErrMissingKey}
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, &ConfigurationError{Key: key, Value: raw, Err: err}
	}
	return v, nil
}
