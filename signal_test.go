package iridiumsbd

import "testing"

func TestSignalModelBoundsPerRating(t *testing.T) {
	cases := []struct {
		rating   SignalRating
		min, max int
	}{
		{SignalNone, 0, 0},
		{SignalPoor, 0, 2},
		{SignalOK, 1, 2},
		{SignalGood, 3, 4},
		{SignalExcellent, 5, 5},
		{SignalRandom, 0, 5},
	}
	for _, c := range cases {
		min, max := c.rating.bounds()
		if min != c.min || max != c.max {
			t.Errorf("rating %d: bounds = [%d,%d], want [%d,%d]", c.rating, min, max, c.min, c.max)
		}
	}
}

func TestSignalModelSampleStaysWithinBounds(t *testing.T) {
	rnd := &sequenceRand{seq: []int{0, 1, 2, 3, 4, 5}}
	m := signalModel{rating: SignalRandom, rnd: rnd}
	for i := 0; i < 10; i++ {
		v := m.sample(true)
		if v < 0 || v > 5 {
			t.Fatalf("sample out of range: %d", v)
		}
	}
}

func TestSignalModelSampleForcedZeroWhenRadioInactive(t *testing.T) {
	rnd := &sequenceRand{seq: []int{5}}
	m := signalModel{rating: SignalExcellent, rnd: rnd}
	if got := m.sample(false); got != 0 {
		t.Fatalf("expected 0 with radio inactive, got %d", got)
	}
}

func TestSignalModelSampleFixedWhenMinEqualsMax(t *testing.T) {
	rnd := &sequenceRand{seq: []int{99}} // must never be consulted
	m := signalModel{rating: SignalExcellent, rnd: rnd}
	if got := m.sample(true); got != 5 {
		t.Fatalf("expected fixed 5 for EXCELLENT, got %d", got)
	}
}

func TestSignalModelNextIntervalWithinRange(t *testing.T) {
	rnd := &sequenceRand{seq: []int{0, 45}}
	m := signalModel{rating: SignalOK, rnd: rnd}
	if got := m.nextInterval(); got.Seconds() != 15 {
		t.Fatalf("expected 15s at roll 0, got %v", got)
	}
	if got := m.nextInterval(); got.Seconds() != 60 {
		t.Fatalf("expected 60s at roll 45, got %v", got)
	}
}
