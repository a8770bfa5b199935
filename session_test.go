package iridiumsbd

import "testing"

func TestSessionSuccessAtSignalTwoOrAboveAlwaysSucceeds(t *testing.T) {
	eng, _ := newTestEngine(&sequenceRand{seq: []int{9}})
	if !eng.sessionSuccess(2) {
		t.Fatal("expected success at signal 2")
	}
	if !eng.sessionSuccess(5) {
		t.Fatal("expected success at signal 5")
	}
}

func TestSessionFailureAtSignalZero(t *testing.T) {
	eng, _ := newTestEngine(&sequenceRand{seq: []int{0}})
	if eng.sessionSuccess(0) {
		t.Fatal("expected failure at signal 0")
	}
}

func TestSessionSignalOneIsProbabilistic(t *testing.T) {
	succeed, _ := newTestEngine(&sequenceRand{seq: []int{0}}) // roll = 5+0 = 5, 5%10 != 0
	if !succeed.sessionSuccess(1) {
		t.Fatal("expected success for roll 5")
	}
	fail, _ := newTestEngine(&sequenceRand{seq: []int{5}}) // roll = 5+5 = 10, 10%10 == 0
	if fail.sessionSuccess(1) {
		t.Fatal("expected failure for roll 10")
	}
}

// A successful session emits an sbd-message and bumps both sequence
// counters.
func TestRunSessionSuccessEmitsMessageAndBumpsSequence(t *testing.T) {
	eng, buf := newTestEngine(&sequenceRand{seq: []int{0}})
	eng.state.currentSignal = 5
	eng.state.moOverwrite([]byte{0x01, 0x02, 0x03})

	var got SBDMessage
	eng.sbdBus.Subscribe(func(m SBDMessage) { got = m })
	eng.runSession(false)

	if eng.state.moSeq != 1 || eng.state.mtSeq != 1 {
		t.Fatalf("moSeq=%d mtSeq=%d, want 1,1", eng.state.moSeq, eng.state.mtSeq)
	}
	if got.Data != "010203" {
		t.Fatalf("data = %q, want %q", got.Data, "010203")
	}
	if got.MOMSN != 1 {
		t.Fatalf("momsn = %d, want 1", got.MOMSN)
	}
	if got.JWT == "" {
		t.Fatal("expected a non-empty JWT")
	}

	if got, want := buf.String(), "+SBDIX: 0, 1, 0, 1, 0, 0\r\nOK\r\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

// A NONE signal rating always fails the session, with no sbd-message.
func TestRunSessionFailureDoesNotBumpSequenceOrEmit(t *testing.T) {
	eng, buf := newTestEngine(&sequenceRand{seq: []int{5}})
	eng.state.currentSignal = 0

	called := false
	eng.sbdBus.Subscribe(func(SBDMessage) { called = true })
	eng.runSession(false)

	if called {
		t.Fatal("expected no sbd-message event on failure")
	}
	if eng.state.moSeq != 0 || eng.state.mtSeq != 0 {
		t.Fatalf("expected sequence counters unchanged, got moSeq=%d mtSeq=%d", eng.state.moSeq, eng.state.mtSeq)
	}
	if got, want := buf.String(), "+SBDIX: 32, 0, 2, 0, 0, 0\r\nOK\r\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRunSessionRadioInactiveImmediateReply(t *testing.T) {
	eng, buf := newTestEngine(&sequenceRand{seq: []int{0}})
	eng.state.radioActivityEnabled = false
	eng.runSession(false)
	if got, want := buf.String(), "+SBDIX: 34, 0, 2, 0, 0, 0\r\nOK\r\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
