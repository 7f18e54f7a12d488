package core

import (
	"errors"
	"fmt"
	"strings"
)

// SchemaError reports columns a computation needs but the source table lacks.
type SchemaError struct {
	Table   string
	Missing []string
}

func (e *SchemaError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("schema error: missing columns %s", strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("schema error: %s is missing columns %s", e.Table, strings.Join(e.Missing, ", "))
}

// IsSchemaError reports whether err wraps a *SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}
