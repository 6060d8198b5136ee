// Package level defines the ordered achievement tiers a unit advances through.
package level

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidLevel is returned when a symbol is not one of I..VI.
var ErrInvalidLevel = errors.New("invalid level")

// Level is a tier symbol drawn from the totally ordered set I < II < III < IV < V < VI.
type Level string

// Known levels.
const (
	I   Level = "I"
	II  Level = "II"
	III Level = "III"
	IV  Level = "IV"
	V   Level = "V"
	VI  Level = "VI"
)

// All lists every level in ascending order.
var All = []Level{I, II, III, IV, V, VI} //nolint:gochecknoglobals // fixed ordering table

// Parse converts a symbol (case-insensitive, surrounding spaces ignored) into a Level.
func Parse(s string) (Level, error) {
	l := Level(strings.ToUpper(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
	return l, nil
}

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool {
	return l.Index() >= 0
}

// Index returns the zero-based position of l in All, or -1 when unknown.
func (l Level) Index() int {
	for i, known := range All {
		if known == l {
			return i
		}
	}
	return -1
}

// Less reports whether l ranks strictly below other.
func (l Level) Less(other Level) bool {
	return l.Index() < other.Index()
}

// Next returns the cyclic successor of l. VI wraps back to I.
// Unknown levels map to I.
func (l Level) Next() Level {
	i := l.Index()
	if i < 0 {
		return I
	}
	return All[(i+1)%len(All)]
}

// Compare orders two levels for use with slices.SortFunc.
func Compare(a, b Level) int {
	return a.Index() - b.Index()
}

func (l Level) String() string { return string(l) }
