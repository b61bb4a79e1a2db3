package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that decodes from a number of milliseconds
// or from a duration string such as "30s".
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).Milliseconds())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	parsed, err := parseDuration(v)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var v any
	if err := node.Decode(&v); err != nil {
		return err
	}
	parsed, err := parseDuration(v)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func parseDuration(v any) (Duration, error) {
	switch val := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return Duration(time.Duration(val * float64(time.Millisecond))), nil
	case int:
		return Duration(time.Duration(val) * time.Millisecond), nil
	case int64:
		return Duration(time.Duration(val) * time.Millisecond), nil
	case string:
		if ms, err := strconv.ParseFloat(val, 64); err == nil {
			return Duration(time.Duration(ms * float64(time.Millisecond))), nil
		}
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", val, err)
		}
		return Duration(parsed), nil
	default:
		return 0, fmt.Errorf("invalid duration type %T", v)
	}
}
