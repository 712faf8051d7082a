package credit

import "testing"

func TestEstimateImageCredits_Generation(t *testing.T) {
	cases := []struct {
		quality, size string
		want          int
	}{
		{"low", "1024x1024", 4},
		{"low", "1536x1024", 6},
		{"medium", "1024x1024", 16},
		{"medium", "1536x1024", 24},
		{"high", "1024x1024", 62},
		{"high", "1536x1024", 94},
		{"high", "512x512", 78},
		{"auto", "1024x1024", 50},
		{"auto", "1536x1024", 75},
	}
	for _, c := range cases {
		got := EstimateImageCredits(c.quality, c.size, false)
		if got != c.want {
			t.Errorf("EstimateImageCredits(%q, %q, false) = %d, want %d", c.quality, c.size, got, c.want)
		}
	}
}

func TestEstimateImageCredits_Edit(t *testing.T) {
	cases := []struct {
		quality, size string
		want          int
	}{
		{"low", "1024x1024", 7},
		{"medium", "1024x1024", 19},
		{"high", "1024x1024", 82},
		{"high", "1536x1024", 114},
		{"auto", "1024x1024", 68},
		{"auto", "1536x1024", 93},
	}
	for _, c := range cases {
		got := EstimateImageCredits(c.quality, c.size, true)
		if got != c.want {
			t.Errorf("EstimateImageCredits(%q, %q, true) = %d, want %d", c.quality, c.size, got, c.want)
		}
	}
}

func TestEstimateImageCreditsN(t *testing.T) {
	got := EstimateImageCreditsN("medium", "1024x1024", false, 3)
	if got != 48 {
		t.Errorf("EstimateImageCreditsN() = %d, want 48", got)
	}
}

func TestCreditsFromCostUSD(t *testing.T) {
	cases := []struct {
		cost float64
		want int
	}{
		{0.01, 3},
		{0.0033, 1},
		{0.50, 150},
		{0.0001, 1},
	}
	for _, c := range cases {
		got := CreditsFromCostUSD(c.cost, 3.0)
		if got != c.want {
			t.Errorf("CreditsFromCostUSD(%v) = %d, want %d", c.cost, got, c.want)
		}
	}
}

func TestOpenAICostUSD(t *testing.T) {
	got := OpenAICostUSD(100, 100, 800)
	want := 0.0335
	if diff := got - want; diff > 0.0001 || diff < -0.0001 {
		t.Errorf("OpenAICostUSD() = %v, want %v", got, want)
	}
}

func TestReconcileCharge(t *testing.T) {
	cases := []struct {
		charge, stored, n int
		want              int
	}{
		{40, 4, 4, 40},
		{40, 2, 4, 20},
		{40, 0, 4, 0},
		{40, 3, 4, 30},
	}
	for _, c := range cases {
		got := ReconcileCharge(c.charge, c.stored, c.n)
		if got != c.want {
			t.Errorf("ReconcileCharge(%d, %d, %d) = %d, want %d", c.charge, c.stored, c.n, got, c.want)
		}
	}
}
