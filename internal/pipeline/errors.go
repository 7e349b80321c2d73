package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"consignrecon/internal"
	"consignrecon/internal/decode"
)

var (
	ErrDecode          = decode.ErrDecode
	ErrSchemaInference = errors.New("unrecognized schema")
	ErrMatchInput      = errors.New("internal mismatch")
)

type DecodeError = decode.Error

// SchemaError means a file was readable but could not be used in its role.
type SchemaError struct {
	File     string
	Kind     internal.ReportKind
	Expected internal.ReportKind
	Missing  []internal.Field
	Reason   string
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", ErrSchemaInference, e.File)
	if e.Expected != "" {
		fmt.Fprintf(&b, ": expected %s report", e.Expected)
	}
	if e.Kind != "" && e.Kind != e.Expected {
		fmt.Fprintf(&b, ", classified as %s", e.Kind)
	}
	if len(e.Missing) > 0 {
		names := make([]string, 0, len(e.Missing))
		for _, f := range e.Missing {
			names = append(names, string(f))
		}
		fmt.Fprintf(&b, ", no column found for %s", strings.Join(names, ", "))
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, " (%s)", e.Reason)
	}
	return b.String()
}

func (e *SchemaError) Unwrap() error { return ErrSchemaInference }

// MatchInputError is a caller bug: the matcher was handed records no
// normalizer would produce.
type MatchInputError struct {
	Reason string
}

func (e *MatchInputError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMatchInput, e.Reason)
}

func (e *MatchInputError) Unwrap() error { return ErrMatchInput }
