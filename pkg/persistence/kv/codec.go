package kv

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dukex/taskflow/pkg/persistence"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func encode(record string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, persistence.SerializationError(record, err)
	}

	return data, nil
}

func decode(record string, data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return persistence.SerializationError(record, err)
	}

	return nil
}

func validateRecord(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", persistence.ErrInvalidRecord, err)
	}

	return nil
}

// validateID rejects ids that would break prefix scans over composite keys.
func validateID(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%w: %s id is required", persistence.ErrInvalidRecord, kind)
	}

	if strings.Contains(id, ":") {
		return fmt.Errorf("%w: %s id %q must not contain ':'", persistence.ErrInvalidRecord, kind, id)
	}

	return nil
}
