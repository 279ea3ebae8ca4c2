package capture

import "testing"

func TestAccumulatorInterimsAreNeverCommitted(t *testing.T) {
	t.Parallel()

	a := NewAccumulator()
	a.OnFragment("hel", false)
	a.OnFragment("hello wor", false)

	if got := a.CurrentText(); got != "" {
		t.Errorf("CurrentText() = %q, want empty while only interims arrived", got)
	}
	if got := a.Preview(); got != "hello wor" {
		t.Errorf("Preview() = %q, want latest interim", got)
	}
}

func TestAccumulatorFinalAfterInterims(t *testing.T) {
	t.Parallel()

	a := NewAccumulator()
	a.OnFragment("hel", false)
	a.OnFragment("hello", false)
	a.OnFragment("hello world", true)

	if got := a.CurrentText(); got != "hello world" {
		t.Errorf("CurrentText() = %q, want %q", got, "hello world")
	}
	if got := a.Preview(); got != "" {
		t.Errorf("Preview() = %q, want cleared after a final", got)
	}
}

func TestAccumulatorFinalsSpaceJoinedInOrder(t *testing.T) {
	t.Parallel()

	a := NewAccumulator()
	a.OnFragment("good morning", true)
	a.OnFragment("how far", true)
	a.OnFragment("you dey", true)

	if got := a.CurrentText(); got != "good morning how far you dey" {
		t.Errorf("CurrentText() = %q", got)
	}
}

func TestAccumulatorIgnoresEmptyAndWhitespaceFinals(t *testing.T) {
	t.Parallel()

	a := NewAccumulator()
	a.OnFragment("", true)
	a.OnFragment("   ", true)
	a.OnFragment("\t\n", true)
	a.OnFragment("", false)

	if got := a.CurrentText(); got != "" {
		t.Errorf("CurrentText() = %q, want empty", got)
	}
	if got := a.Preview(); got != "" {
		t.Errorf("Preview() = %q, want empty", got)
	}
}

func TestAccumulatorPreservesInteriorWhitespace(t *testing.T) {
	t.Parallel()

	a := NewAccumulator()
	a.OnFragment("two  spaces", true)

	if got := a.CurrentText(); got != "two  spaces" {
		t.Errorf("CurrentText() = %q, interior whitespace must be preserved", got)
	}
}

func TestAccumulatorDiscardPending(t *testing.T) {
	t.Parallel()

	a := NewAccumulator()
	a.OnFragment("committed", true)
	a.OnFragment("uncommitted tail", false)

	a.DiscardPending()

	if got := a.CurrentText(); got != "committed" {
		t.Errorf("CurrentText() = %q, committed text must survive a discard", got)
	}
	if got := a.Preview(); got != "" {
		t.Errorf("Preview() = %q, want discarded", got)
	}
}

func TestAccumulatorReset(t *testing.T) {
	t.Parallel()

	a := NewAccumulator()
	a.OnFragment("something", true)
	a.OnFragment("more", false)

	a.Reset()

	if a.CurrentText() != "" || a.Preview() != "" {
		t.Error("Reset() should clear both committed text and the preview")
	}
}
