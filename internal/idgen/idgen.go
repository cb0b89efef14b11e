// Package idgen generates decision identifiers backed by nanoid.
package idgen

import (
	"fmt"
	"strconv"
	"sync/atomic"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// DecisionPrefix marks gate decision IDs.
const DecisionPrefix = "gd-"

// alphabet is URL-safe and avoids look-alike punctuation in operator screens.
const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
const Length = 12

// Func produces a new identifier.
type Func func() (string, error)

// Decision returns a new random decision ID.
func Decision() (string, error) {
	return random(DecisionPrefix)
}

// Prefixed returns a Func generating random IDs under prefix.
func Prefixed(prefix string) Func {
	return func() (string, error) { return random(prefix) }
}

// Sequential returns a Func yielding prefix1, prefix2, ... Tests use it
// where deterministic IDs make assertions readable.
func Sequential(prefix string) Func {
	var n atomic.Int64
	return func() (string, error) {
		return prefix + strconv.FormatInt(n.Add(1), 10), nil
	}
}

func random(prefix string) (string, error) {
	id, err := nanoid.Generate(alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
