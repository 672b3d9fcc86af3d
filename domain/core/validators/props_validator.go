package validators

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"bfdb/domain/config"
	"bfdb/domain/core/valueobjects"
	"bfdb/pkg/errors"
)

// PropsValidator enforces the domain limits on a props bag
type PropsValidator struct {
	maxKeys          int
	maxKeyLength     int
	maxBytes         int
	reservedPrefixes []string
}

// NewPropsValidator creates a validator from cfg; nil uses the defaults
func NewPropsValidator(cfg *config.DomainConfig) *PropsValidator {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &PropsValidator{
		maxKeys:          cfg.MaxPropKeys,
		maxKeyLength:     cfg.MaxPropKeyLength,
		maxBytes:         cfg.MaxPropsBytes,
		reservedPrefixes: cfg.ReservedKeyPrefixes,
	}
}

// Validate returns a VALIDATION error listing every offending key, or nil
func (v *PropsValidator) Validate(props valueobjects.Props) error {
	details := map[string]interface{}{}

	if len(props) > v.maxKeys {
		details["props"] = fmt.Sprintf("at most %d keys allowed, got %d", v.maxKeys, len(props))
	}

	for key := range props {
		if err := v.validateKey(key); err != nil {
			details[key] = err.Error()
		}
	}

	if len(details) == 0 {
		encoded, err := json.Marshal(props)
		if err != nil {
			details["props"] = "props must be JSON encodable"
		} else if len(encoded) > v.maxBytes {
			details["props"] = fmt.Sprintf("encoded props exceed %d bytes", v.maxBytes)
		}
	}

	if len(details) > 0 {
		return errors.NewValidationError("invalid props").
			WithCode(errors.CodeInvalidProps).
			WithDetails(details)
	}
	return nil
}

func (v *PropsValidator) validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("key cannot be blank")
	}
	if len(key) > v.maxKeyLength {
		return fmt.Errorf("key longer than %d bytes", v.maxKeyLength)
	}
	for _, r := range key {
		if unicode.IsControl(r) {
			return fmt.Errorf("key contains control characters")
		}
	}
	for _, prefix := range v.reservedPrefixes {
		if strings.HasPrefix(key, prefix) {
			return fmt.Errorf("keys starting with %q are reserved", prefix)
		}
	}
	return nil
}
