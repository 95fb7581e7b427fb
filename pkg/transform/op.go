// Package transform replays an ordered list of declarative operations
// (rename, cast, join) against a working table to assemble the export dataset.
package transform

import (
	"fmt"
	"strings"
)

// Op is one declarative step. The set of operations is closed: only
// Rename, Cast and Join implement it.
type Op interface {
	// Describe returns a short human readable form for logs.
	Describe() string

	op()
}

// Rename renames column From to To.
type Rename struct {
	From string
	To   string
}

// Cast converts every value of Column to Kind.
type Cast struct {
	Column string
	Kind   Kind
}

// Join left-joins the named dataset on LeftKey = RightKey.
type Join struct {
	Dataset  string
	LeftKey  string
	RightKey string
}

func (Rename) op() {}
func (Cast) op()   {}
func (Join) op()   {}

func (r Rename) Describe() string { return fmt.Sprintf("rename %s -> %s", r.From, r.To) }
func (c Cast) Describe() string   { return fmt.Sprintf("cast %s as %s", c.Column, c.Kind) }
func (j Join) Describe() string {
	return fmt.Sprintf("join %s on %s = %s", j.Dataset, j.LeftKey, j.RightKey)
}

// Kind is a cast target type.
type Kind string

const (
	KindString  Kind = "string"
	KindInt64   Kind = "int64"
	KindFloat64 Kind = "float64"
)

// ParseKind resolves a configured type name. "int" and "float" are accepted
// as aliases.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "str":
		return KindString, nil
	case "int64", "int":
		return KindInt64, nil
	case "float64", "float":
		return KindFloat64, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}
