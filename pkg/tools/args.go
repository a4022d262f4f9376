package tools

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// stringArg extracts a required string argument.
func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("%s is required", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string, got %T", key, v)
	}
	return s, nil
}

// optionalStringArg extracts a string argument, returning defaultVal when absent or null.
func optionalStringArg(args map[string]any, key, defaultVal string) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return defaultVal, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string, got %T", key, v)
	}
	if s == "" {
		return defaultVal, nil
	}
	return s, nil
}

// intArg extracts an integer argument. JSON decoding yields float64, some providers
// send numeric strings. ok is false when the key is absent or null.
func intArg(args map[string]any, key string) (n int, ok bool, err error) {
	v, exists := args[key]
	if !exists || v == nil {
		return 0, false, nil
	}
	switch val := v.(type) {
	case float64:
		return int(val), true, nil
	case float32:
		return int(val), true, nil
	case int:
		return val, true, nil
	case int64:
		return int(val), true, nil
	case json.Number:
		i, convErr := val.Int64()
		if convErr != nil {
			return 0, false, fmt.Errorf("%s must be an integer: %w", key, convErr)
		}
		return int(i), true, nil
	case string:
		if val == "" {
			return 0, false, nil
		}
		i, convErr := strconv.Atoi(val)
		if convErr != nil {
			return 0, false, fmt.Errorf("%s must be an integer: %w", key, convErr)
		}
		return i, true, nil
	default:
		return 0, false, fmt.Errorf("%s must be an integer, got %T", key, v)
	}
}

// intArgOrDefault extracts an integer argument, returning defaultVal if missing.
func intArgOrDefault(args map[string]any, key string, defaultVal int) (int, error) {
	n, ok, err := intArg(args, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return defaultVal, nil
	}
	return n, nil
}
