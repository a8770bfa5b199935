package iridiumsbd

import "fmt"

// sessionSuccess decides the probabilistic outcome of an SBDIX
// session: a current signal of 2 or more always succeeds; at exactly
// 1 bar it succeeds unless a uniform roll in [5,10] lands on a
// multiple of 10 (effective success probability ≈80%); at 0 it always
// fails.
func (e *engine) sessionSuccess(currentSignal int) bool {
	if currentSignal >= 2 {
		return true
	}
	if currentSignal == 1 {
		roll := 5 + e.randIntn(6)
		return roll%10 != 0
	}
	return false
}

// runSession implements AT+SBDIX / AT+SBDIXA. ack is accepted for
// parity with the two command names; the emulator does not
// distinguish their reply or ring-acknowledgement behavior.
func (e *engine) runSession(ack bool) {
	e.mu.Lock()
	radioActive := e.state.radioActivityEnabled
	moSeq, mtSeq := e.state.moSeq, e.state.mtSeq
	e.mu.Unlock()

	if !radioActive {
		e.mu.Lock()
		e.writeLine(fmt.Sprintf("+SBDIX: 34, %d, 2, %d, 0, 0", moSeq, mtSeq))
		e.writeLine("OK")
		e.mu.Unlock()
		return
	}

	e.sleep(e.longJitter())

	e.mu.Lock()
	signal := e.state.currentSignal
	e.mu.Unlock()

	if !e.sessionSuccess(signal) {
		e.mu.Lock()
		e.writeLine(fmt.Sprintf("+SBDIX: 32, %d, 2, %d, 0, 0", e.state.moSeq, e.state.mtSeq))
		e.writeLine("OK")
		e.mu.Unlock()
		return
	}

	e.mu.Lock()
	e.state.moSeq++
	e.state.mtSeq++
	newMoSeq, newMtSeq := e.state.moSeq, e.state.mtSeq
	payload := e.state.moTrimmed()
	e.mu.Unlock()

	msg, err := buildSBDMessage(e.signer, newMoSeq, payload, e.clock.Now())
	if err != nil {
		e.log.error("sbdix: %v", err)
	} else {
		e.sbdBus.Publish(msg)
	}

	e.mu.Lock()
	e.writeLine(fmt.Sprintf("+SBDIX: 0, %d, 0, %d, 0, 0", newMoSeq, newMtSeq))
	e.writeLine("OK")
	e.mu.Unlock()
}
