package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func parseStringSlice(sep string) func(string) ([]string, error) {
	return func(raw string) ([]string, error) {
		if raw == "" {
			return nil, nil
		}
		return strings.Split(raw, sep), nil
	}
}

func fromAnyStringSlice(v interface{}) ([]string, error) {
	switch vv := v.(type) {
	case []string:
		return vv, nil
	case []interface{}:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string list element, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a string list, got %T", v)
	}
}

func fromAnyString(v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected a string, got %T", v)
	}
	return s, nil
}

func fromAnyInt64(v interface{}) (int64, error) {
	switch vv := v.(type) {
	case int:
		return int64(vv), nil
	case int64:
		return vv, nil
	case float64:
		return int64(vv), nil
	default:
		return 0, fmt.Errorf("expected an integer, got %T", v)
	}
}

func fromAnyFloat64(v interface{}) (float64, error) {
	switch vv := v.(type) {
	case float64:
		return vv, nil
	case int:
		return float64(vv), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

// NewDefaultTree registers the leaves the engine needs to boot: store
// roots, the determinism epoch, log level, and the default rate-limit
// policy. Grounded on the teacher's env-first field-by-field defaulting,
// generalized into validated, reloadable leaves.
func NewDefaultTree() *Tree {
	t := NewTree(os.LookupEnv)

	storeDirs := NewConfigValue("artifact_store_dirs", []string{})
	storeDirs.EnvVar = "MSEZ_ARTIFACT_STORE_DIRS"
	storeDirs.ParseEnv = parseStringSlice(string(os.PathListSeparator))
	storeDirs.FromAny = fromAnyStringSlice

	sourceDateEpoch := NewConfigValue[int64]("source_date_epoch", 0)
	sourceDateEpoch.EnvVar = "SOURCE_DATE_EPOCH"
	sourceDateEpoch.ParseEnv = func(raw string) (int64, error) {
		return strconv.ParseInt(raw, 10, 64)
	}
	sourceDateEpoch.FromAny = fromAnyInt64
	sourceDateEpoch.Validate = func(v int64) error {
		if v < 0 {
			return fmt.Errorf("source_date_epoch must be non-negative, got %d", v)
		}
		return nil
	}

	logLevel := NewConfigValue("log_level", "info")
	logLevel.EnvVar = "MSEZ_LOG_LEVEL"
	logLevel.ParseEnv = func(raw string) (string, error) { return raw, nil }
	logLevel.FromAny = fromAnyString
	logLevel.Validate = func(v string) error {
		switch strings.ToLower(v) {
		case "debug", "info", "warn", "error":
			return nil
		default:
			return fmt.Errorf("log_level must be one of debug|info|warn|error, got %q", v)
		}
	}

	rateLimitPerSecond := NewConfigValue("rate_limit_per_second", 50.0)
	rateLimitPerSecond.EnvVar = "MSEZ_RATE_LIMIT_PER_SECOND"
	rateLimitPerSecond.ParseEnv = func(raw string) (float64, error) {
		return strconv.ParseFloat(raw, 64)
	}
	rateLimitPerSecond.FromAny = fromAnyFloat64
	rateLimitPerSecond.Validate = func(v float64) error {
		if v <= 0 {
			return fmt.Errorf("rate_limit_per_second must be positive, got %v", v)
		}
		return nil
	}

	for _, l := range []leaf{storeDirs, sourceDateEpoch, logLevel, rateLimitPerSecond} {
		if err := t.Register(l); err != nil {
			panic(err) // leaf names here are compile-time constants; a collision is a programming error
		}
	}

	return t
}
