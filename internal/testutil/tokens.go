// Package testutil provides deterministic helpers for the scenario
// harness.
package testutil

import (
	"fmt"

	"github.com/avcs06/ricochet/internal/engine"
)

// CycleTokens returns a fixed token generator yielding cycle-1..cycle-n,
// so traces are byte-stable across runs.
func CycleTokens(n int) *engine.FixedGenerator {
	tokens := make([]string, n)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("cycle-%d", i+1)
	}
	return engine.NewFixedGenerator(tokens...)
}
