package models

import (
	"fmt"
	"strings"
)

// InstrumentKind identifies what a position holds.
type InstrumentKind string

const (
	Stock InstrumentKind = "stock"
	Call  InstrumentKind = "call"
	Put   InstrumentKind = "put"
)

var InstrumentKinds = [...]InstrumentKind{
	Stock,
	Call,
	Put,
}

// IsOption reports whether the kind is a call or a put.
func (k InstrumentKind) IsOption() bool {
	return k == Call || k == Put
}

func (k InstrumentKind) Valid() bool {
	return k == Stock || k.IsOption()
}

func (k InstrumentKind) String() string {
	return string(k)
}

// ParseInstrumentKind accepts "stock", "call" or "put" in any case.
func ParseInstrumentKind(s string) (InstrumentKind, error) {
	kind := InstrumentKind(strings.ToLower(strings.TrimSpace(s)))
	if !kind.Valid() {
		return "", fmt.Errorf("%w: unknown instrument kind %q", ErrInvalidArgument, s)
	}
	return kind, nil
}
