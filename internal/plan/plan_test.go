package plan

import "testing"

// TestDefaultReps verifies rep-target parsing: plain numbers round, ranges
// take the first number, and non-numeric hints yield nil.
func TestDefaultReps(t *testing.T) {
	tests := []struct {
		target string
		want   *int
	}{
		{"10", intp(10)},
		{"12.6", intp(13)},
		{"8-12", intp(8)},
		{"8–12 per side", intp(8)},
		{"AMRAP", nil},
		{"", nil},
		{"0", nil},
	}
	for _, tt := range tests {
		got := DefaultReps(tt.target)
		if !eq(got, tt.want) {
			t.Errorf("DefaultReps(%q) = %v, want %v", tt.target, fmtp(got), fmtp(tt.want))
		}
	}
}

// TestDefaultWeight verifies weight-hint parsing: leading numbers are taken,
// bodyweight hints yield nil.
func TestDefaultWeight(t *testing.T) {
	tests := []struct {
		hint string
		want *float64
	}{
		{"20kg", fp(20)},
		{"12.5", fp(12.5)},
		{"bodyweight", nil},
		{"Bodyweight + band", nil},
		{"", nil},
	}
	for _, tt := range tests {
		got := DefaultWeight(tt.hint)
		if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
			t.Errorf("DefaultWeight(%q) = %v, want %v", tt.hint, got, tt.want)
		}
	}
}

// TestRequiresWeightInput verifies only external loads demand a weight entry.
func TestRequiresWeightInput(t *testing.T) {
	if !(Exercise{LoadType: LoadExternal}).RequiresWeightInput() {
		t.Error("external load should require weight input")
	}
	if (Exercise{LoadType: LoadBodyweight}).RequiresWeightInput() {
		t.Error("bodyweight load should not require weight input")
	}
	if (Exercise{LoadType: LoadBand}).RequiresWeightInput() {
		t.Error("band load should not require weight input")
	}
}

func intp(n int) *int { return &n }

func fp(f float64) *float64 { return &f }

func eq(a, b *int) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}
func fmtp(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
