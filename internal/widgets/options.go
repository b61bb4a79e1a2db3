// Package widgets holds the built-in widget kinds.
package widgets

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/GregMSThompson/gridboard/internal/errs"
	"github.com/GregMSThompson/gridboard/pkg/helpers"
)

// decodeOptions merges blob over defaults (objects recursively, arrays
// replace) and decodes the result into out.
func decodeOptions(defaults, blob map[string]any, out any) error {
	merged := helpers.DeepMerge(defaults, blob)
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
		TagName:          "mapstructure",
	})
	if err != nil {
		return fmt.Errorf("options decoder: %w", err)
	}
	if err := dec.Decode(merged); err != nil {
		return errs.NewConfigurationError("config", fmt.Sprintf("invalid widget config: %v", err))
	}
	return nil
}
