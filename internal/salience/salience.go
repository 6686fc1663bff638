// Package salience holds the arithmetic that governs how a memory's
// relevance grows on access and erodes over time.
//
// Reinforcement is additive and decay is multiplicative, so memories that
// keep being recalled approach MaxSalience while untouched ones follow
// Initial * DecayFactor^n and are pruned once they cross Floor.
package salience

import (
	"math"
	"time"
)

const (
	Initial        = 1.0
	Min            = 0.0
	Max            = 5.0
	ReinforceDelta = 0.1
	DecayFactor    = 0.98
	// Floor is the deletion threshold. Anything below it is a tombstone.
	Floor = 0.1
	// GraceWindow exempts recently accessed memories from a sweep.
	GraceWindow = 24 * time.Hour
)

// Clamp bounds s to [Min, Max].
func Clamp(s float64) float64 {
	return math.Max(Min, math.Min(Max, s))
}

// Reinforce returns the salience after one access. The store applies the
// same update in SQL.
func Reinforce(s float64) float64 {
	return Clamp(s + ReinforceDelta)
}

// Decay returns the salience after one sweep, as DecayAndPrune computes it
// in SQL.
func Decay(s float64) float64 {
	return Clamp(s * DecayFactor)
}

// Pruned reports whether s has fallen below the deletion floor.
func Pruned(s float64) bool {
	return s < Floor
}

// Eligible reports whether a memory last accessed at accessedAt is old
// enough to decay in a sweep running at now. The store compares against
// Cutoff in SQL.
func Eligible(accessedAt, now time.Time) bool {
	return accessedAt.Before(Cutoff(now))
}

// Cutoff is the accessed_at boundary for a sweep running at now.
func Cutoff(now time.Time) time.Time {
	return now.Add(-GraceWindow)
}

// SweepsUntilPruned counts the untouched sweeps needed before a memory at
// salience s is deleted. It returns 0 for memories already below the floor.
func SweepsUntilPruned(s float64) int {
	n := 0
	for s = Clamp(s); !Pruned(s); n++ {
		s = Decay(s)
	}
	return n
}
