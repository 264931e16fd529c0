package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for complex rules
// that cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	ws := cfg.Adapters.WebSocket

	if ws.Enabled {
		if !strings.HasPrefix(ws.Path, "/") {
			return fmt.Errorf("adapters.websocket.path: must start with '/' (got %q)", ws.Path)
		}
		if ws.Port == cfg.Server.Port {
			return fmt.Errorf("adapters.websocket.port: port %d is already used by the TCP listener", ws.Port)
		}
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port == cfg.Server.Port {
			return fmt.Errorf("metrics.port: port %d is already used by the TCP listener", cfg.Metrics.Port)
		}
		if ws.Enabled && cfg.Metrics.Port == ws.Port {
			return fmt.Errorf("metrics.port: port %d is already used by the WebSocket adapter", cfg.Metrics.Port)
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		// Return the first validation error with context
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
