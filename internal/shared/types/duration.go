package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration wraps time.Duration with human-readable JSON encoding.
// It marshals as a string ("5s", "2m30s") and unmarshals from either a
// string or a bare number, which is interpreted as seconds for
// compatibility with older configuration blobs.
type Duration time.Duration

// MarshalJSON encodes the duration as its string form
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON decodes from "5s" style strings or numeric seconds
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case float64:
		*d = Duration(time.Duration(val * float64(time.Second)))
		return nil
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", val, err)
		}
		*d = Duration(parsed)
		return nil
	default:
		return fmt.Errorf("invalid duration value: %v", v)
	}
}

func (d Duration) String() string {
	return time.Duration(d).String()
}
