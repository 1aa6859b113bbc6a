package testutil

import (
	"testing"

	"github.com/spf13/viper"

	"github.com/lepinkainen/bookhound/internal/config"
)

// ResetConfig resets the global viper instance to bookhound's defaults and
// resets it again when the test completes.
func ResetConfig(t *testing.T) {
	t.Helper()

	viper.Reset()
	config.SetDefaults()

	t.Cleanup(viper.Reset)
}

// SetViperValues applies key/value overrides on top of the current configuration.
func SetViperValues(t *testing.T, values map[string]any) {
	t.Helper()

	for key, value := range values {
		viper.Set(key, value)
	}
}
