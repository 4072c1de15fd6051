package plan

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Load types for an exercise. External loads require a weight entry before a
// set can be completed; bodyweight and band work does not.
const (
	LoadExternal   = "external"
	LoadBodyweight = "bodyweight"
	LoadBand       = "band"
)

// Exercise is one planned exercise: target metadata produced by the plan
// generator. Read-only to the session engine.
type Exercise struct {
	ID             string `json:"id,omitempty"`
	Name           string `json:"name"`
	Pattern        string `json:"pattern,omitempty"`
	Sets           int    `json:"sets"`
	Reps           string `json:"reps"`
	Weight         string `json:"weight,omitempty"`
	RestSeconds    int    `json:"rest_seconds"`
	LoadType       string `json:"load_type"`
	TechniqueNotes string `json:"technique_notes,omitempty"`
}

// Plan is the immutable input to a session.
type Plan struct {
	Title            string     `json:"title"`
	Location         string     `json:"location,omitempty"`
	DurationMinutes  int        `json:"duration_minutes,omitempty"`
	PlannedWorkoutID string     `json:"planned_workout_id,omitempty"`
	Exercises        []Exercise `json:"exercises"`
}

// RequiresWeightInput reports whether sets of this exercise need a weight
// value before they can be marked done.
func (e Exercise) RequiresWeightInput() bool {
	return e.LoadType == LoadExternal
}

var firstNumber = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

// DefaultReps derives a starting rep value from a target hint. A plain number
// rounds to the nearest integer; a range-like hint ("8-12") yields its first
// number; anything else ("AMRAP", "") yields nil.
func DefaultReps(target string) *int {
	s := strings.TrimSpace(target)
	if s == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		n := int(math.Round(f))
		if n <= 0 {
			return nil
		}
		return &n
	}
	m := firstNumber.FindString(s)
	if m == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", "."), 64)
	if err != nil {
		return nil
	}
	n := int(math.Round(f))
	if n <= 0 {
		return nil
	}
	return &n
}

// DefaultWeight parses a starting weight from a plan weight hint such as
// "20kg", "12.5" or "bodyweight". Bodyweight hints yield nil.
func DefaultWeight(hint string) *float64 {
	s := strings.ToLower(strings.TrimSpace(hint))
	if s == "" || strings.Contains(s, "body") {
		return nil
	}
	m := firstNumber.FindString(s)
	if m == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", "."), 64)
	if err != nil || f < 0 {
		return nil
	}
	return &f
}
