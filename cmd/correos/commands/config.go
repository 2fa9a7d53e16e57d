package commands

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/correos-link/internal/app"
	"github.com/florianilch/correos-link/internal/correos"
)

// envPrefix is stripped from environment variables during config loading (e.g., CORREOS_AUTH__USERNAME → auth.username)
const envPrefix = "CORREOS_"

// configFlags are the flags whose values feed the configuration.
// Command-specific flags stay out of it.
var configFlags = map[string]bool{
	"log-level":                 true,
	"log-format":                true,
	"telemetry--exporter":       true,
	"auth--username":            true,
	"auth--password-storage":    true,
	"soap--url":                 true,
	"soap--disable-token-retry": true,
	"account--client-code":      true,
	"account--user-id":          true,
	"account--service-id":       true,
}

// loadConfig loads application configuration from various sources with precedence:
// config file → environment variables → CLI flags → defaults
func loadConfig(configPath string, cmd *cli.Command, environFunc func() []string) (*app.Config, error) {
	k := koanf.New(".")

	// 1. Load from config file if provided
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// 2. Load from environment variables
	envProvider := env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			stripped := strings.TrimPrefix(key, envPrefix)
			nested := strings.ToLower(strings.ReplaceAll(stripped, "__", "."))
			return nested, value
		},
		EnvironFunc: environFunc,
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	// 3. Load from CLI flags if provided
	if cmd != nil {
		flagValues := extractAndTransformFlags(cmd)
		if err := k.Load(confmap.Provider(flagValues, "."), nil); err != nil {
			return nil, fmt.Errorf("loading CLI flags: %w", err)
		}
	}

	config := &app.Config{}
	if err := k.UnmarshalWithConf("", config, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := config.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// extractAndTransformFlags transforms CLI flag names to match config structure.
// Includes parent flags. Examples: --auth--username → auth.username, --log-level → log_level
func extractAndTransformFlags(cmd *cli.Command) map[string]any {
	values := make(map[string]any)

	// FlagNames() includes flags from parent commands (via lineage)
	for _, name := range cmd.FlagNames() {
		if !configFlags[name] {
			continue
		}
		// Skip unset flags to preserve precedence from earlier config sources
		if !cmd.IsSet(name) {
			continue
		}

		if value := cmd.Value(name); value != nil {
			key := strings.ReplaceAll(name, "--", ".")
			key = strings.ReplaceAll(key, "-", "_")
			values[key] = value
		}
	}

	return values
}

// loadShipment reads a shipment description from a TOML file. Keys follow
// the JSON field names of correos.Shipment.
func loadShipment(path string) (correos.Shipment, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		return correos.Shipment{}, fmt.Errorf("loading shipment file: %w", err)
	}

	var shipment correos.Shipment
	if err := k.UnmarshalWithConf("", &shipment, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return correos.Shipment{}, fmt.Errorf("unmarshaling shipment: %w", err)
	}
	return shipment, nil
}
