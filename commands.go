package iridiumsbd

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sunstone-advisory/iridium-sbd-emulator/eventbus"
)

// engine is the AT command dispatcher: it owns EmulatorState
// exclusively, drives the framing mode, reads the signal model,
// mutates the SBD buffers, and writes outbound lines. mu is a single
// mutex held in place of a dedicated owning goroutine: every state
// read/mutation and every outbound write happens while mu is held, and
// mu is never held across a sleep, so the signal ticker can always
// interleave a CIEV line between a command's echo and its reply.
type engine struct {
	mu    sync.Mutex
	state *EmulatorState

	signer signerLike
	log    *logger
	sbdBus *eventbus.Bus[SBDMessage]

	rnd   RandSource
	clock Clock
	sleep func(time.Duration)

	w io.Writer

	lineF     lineFramer
	chunkF    chunkFramer
	binaryGen int
}

func newEngine(state *EmulatorState, sg signerLike, log *logger, sbdBus *eventbus.Bus[SBDMessage], rnd RandSource, clock Clock, sleep func(time.Duration), w io.Writer) *engine {
	return &engine{
		state:  state,
		signer: sg,
		log:    log,
		sbdBus: sbdBus,
		rnd:    rnd,
		clock:  clock,
		sleep:  sleep,
		w:      w,
	}
}

// onBytes is the single entry point fed by the transport reader loop
// (see emulator.go). It is called sequentially from one goroutine; the
// signal ticker and the SBDWB deadline are separate goroutines that
// only ever touch state under mu.
func (e *engine) onBytes(data []byte) {
	e.mu.Lock()
	binary := e.state.binaryMode
	shutdown := e.state.readyForShutdown
	e.mu.Unlock()

	if shutdown {
		return
	}
	if binary {
		e.feedBinary(data)
		return
	}

	for _, line := range e.lineF.feed(data) {
		e.handleLine(line)
		e.mu.Lock()
		switchedToBinary := e.state.binaryMode
		e.mu.Unlock()
		if switchedToBinary {
			// Remaining bytes of this read, if any, are the start of
			// the binary payload and will arrive on the next Read();
			// lineF was already reset when the switch happened.
			return
		}
	}
}

func (e *engine) handleLine(raw []byte) {
	e.mu.Lock()
	if e.state.readyForShutdown {
		e.mu.Unlock()
		return
	}
	echo := e.state.echoEnabled
	e.mu.Unlock()

	line := string(raw)

	if echo {
		e.sleep(e.shortJitter())
		e.mu.Lock()
		e.writeLine(line)
		e.mu.Unlock()
		e.sleep(e.shortJitter())
	}

	key, detail := splitCommand(line)
	e.dispatch(key, detail)
}

// splitCommand splits an AT command line at the first '=', the
// left-inclusive prefix is the command key.
func splitCommand(line string) (key, detail string) {
	idx := strings.IndexByte(line, '=')
	if idx < 0 {
		return line, ""
	}
	return line[:idx+1], line[idx+1:]
}

func (e *engine) writeLine(s string) {
	if e.state.quietMode {
		return
	}
	if _, err := e.w.Write([]byte(s + "\r\n")); err != nil {
		e.log.error("write: %v", err)
	}
}

func (e *engine) replyOK() {
	e.mu.Lock()
	e.writeLine("OK")
	e.mu.Unlock()
}

func (e *engine) replyError() {
	e.mu.Lock()
	e.writeLine("ERROR")
	e.mu.Unlock()
}

// randIntn serializes access to rnd behind mu: RandSource implementations
// (including the real math/rand.Rand) are not safe for concurrent use,
// and rnd is shared between the reader goroutine and the signal ticker
// goroutine.
func (e *engine) randIntn(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rnd.Intn(n)
}

func (e *engine) shortJitter() time.Duration {
	return time.Duration(10+e.randIntn(41)) * time.Millisecond
}

func (e *engine) longJitter() time.Duration {
	return time.Duration(15+e.randIntn(16)) * time.Second
}

var ampVLines = []string{
	"E1 Q0 V1 S0:000 S1:000 S2:043 S3:013 S4:010 S5:008",
	"S6:002 S7:010 S8:002 S10:002",
	"&C1 &D2 &K3 &S0 &V &W0",
	"+IPR=19200",
	"+CIER=0,0,0,0",
	"+SBDMTA=0",
	"+SBDAREG=0",
	"ACTIVE PROFILE:",
	"STORED PROFILE 0:",
	"STORED PROFILE 1:",
}

var gmrLines = []string{
	"Call Processor Version: TA14001",
	"Boot Loader Version: 1.2",
	"Modem DSP Version: TA14001",
	"RF Board Version: 1",
	"Power Board Version: 1",
	"Hardware Version: 9603",
	"Board Version: A",
	"TA14001",
}

const percentRRegisterCount = 64

func identityLine(key string) string {
	switch key {
	case "ATI0":
		return identityModel
	case "ATI1":
		return identitySerialNumber
	case "ATI2":
		return identityHardwareSpec
	default:
		return identitySoftwareVersion
	}
}

var cierCombos = map[string][2]bool{
	"0,0,0,0": {false, false},
	"0,1,0,0": {false, false},
	"0,0,1,0": {false, false},
	"1,0,0,0": {false, false},
	"1,1,0,0": {true, false},
	"1,0,1,0": {false, true},
	"1,1,1,0": {true, true},
}

func (e *engine) dispatch(key, detail string) {
	switch key {
	case "ATE0":
		e.mu.Lock()
		e.state.echoEnabled = false
		e.writeLine("OK")
		e.mu.Unlock()
	case "ATE1":
		e.mu.Lock()
		e.state.echoEnabled = true
		e.writeLine("OK")
		e.mu.Unlock()
	case "AT&K0", "AT&K3":
		e.replyOK()
	case "ATI0", "ATI1", "ATI2", "ATI3", "ATI4", "ATI5", "ATI6", "ATI7":
		e.mu.Lock()
		e.writeLine(identityLine(key))
		e.writeLine("OK")
		e.mu.Unlock()
	case "ATQ0":
		e.mu.Lock()
		e.state.quietMode = false
		e.writeLine("OK")
		e.mu.Unlock()
	case "ATQ1":
		e.mu.Lock()
		e.state.quietMode = true
		e.writeLine("OK")
		e.mu.Unlock()
	case "ATV0":
		e.replyError()
	case "ATV1", "ATZ0", "ATZ1", "AT&F0", "AT&W0", "AT&W1", "AT&Y0", "AT&Y1":
		e.replyOK()
	case "AT&V":
		e.mu.Lock()
		for _, l := range ampVLines {
			e.writeLine(l)
		}
		e.writeLine("OK")
		e.mu.Unlock()
	case "AT%R":
		e.handlePercentR()
	case "AT*F":
		e.mu.Lock()
		e.state.readyForShutdown = true
		e.state.quietMode = true
		e.mu.Unlock()
	case "AT*R0":
		e.mu.Lock()
		e.state.radioActivityEnabled = false
		e.writeLine("OK")
		e.mu.Unlock()
	case "AT*R1":
		e.mu.Lock()
		e.state.radioActivityEnabled = true
		e.writeLine("OK")
		e.mu.Unlock()
	case "AT+CCLK":
		e.replyError()
	case "AT+GMI", "AT+CGMI":
		e.mu.Lock()
		e.writeLine("Iridium")
		e.writeLine("OK")
		e.mu.Unlock()
	case "AT+GMM", "AT+CGMM":
		e.mu.Lock()
		e.writeLine(identityModel)
		e.writeLine("OK")
		e.mu.Unlock()
	case "AT+GMR", "AT+CGMR":
		e.mu.Lock()
		for _, l := range gmrLines {
			e.writeLine(l)
		}
		e.writeLine("OK")
		e.mu.Unlock()
	case "AT+GSN", "AT+CGSN":
		e.mu.Lock()
		e.writeLine(identitySerialNumber)
		e.writeLine("OK")
		e.mu.Unlock()
	case "AT+CIER=":
		e.handleCIER(detail)
	case "AT+CRIS":
		e.mu.Lock()
		val := 0
		if e.state.ringAlertActive {
			val = 1
		}
		e.writeLine(fmt.Sprintf("+CRIS:%d", val))
		e.writeLine("OK")
		e.mu.Unlock()
	case "AT+CSQ":
		e.sleep(2 * time.Second)
		e.mu.Lock()
		e.writeLine(fmt.Sprintf("+CSQ:%d", e.state.signalRating.numeric()))
		e.writeLine("OK")
		e.mu.Unlock()
	case "AT+CSQF":
		e.mu.Lock()
		e.writeLine(fmt.Sprintf("+CSQF:%d", e.state.signalRating.numeric()))
		e.writeLine("OK")
		e.mu.Unlock()
	case "AT+CULK":
		e.replyOK()
	case "AT+CULK?":
		e.mu.Lock()
		e.writeLine("0")
		e.writeLine("OK")
		e.mu.Unlock()
	case "AT+IPR":
		e.replyOK()
	case "AT+SBDWT=":
		// Stub: accepted, no reply.
	case "AT+SBDRT":
		e.mu.Lock()
		e.writeLine("+SBDRT:")
		e.writeLine(e.state.mtBuffer)
		e.writeLine("OK")
		e.mu.Unlock()
	case "AT+SBDWB=":
		e.handleSBDWB(detail)
	case "AT+SBDIX":
		e.runSession(false)
	case "AT+SBDIXA":
		e.runSession(true)
	case "AT+SBDDET":
		e.mu.Lock()
		e.writeLine("+SBDDET:0,0")
		e.writeLine("OK")
		e.mu.Unlock()
	case "AT+SBDMTA=":
		e.handleSBDMTA(detail)
	case "AT+SBDAREG=":
		e.handleSBDAREG(detail)
	case "AT+SBDD0":
		e.mu.Lock()
		e.state.moFill()
		e.writeLine("OK")
		e.mu.Unlock()
	case "AT+SBDD1":
		e.mu.Lock()
		e.state.mtClear()
		e.writeLine("OK")
		e.mu.Unlock()
	case "AT+SBDD2":
		e.mu.Lock()
		e.state.moFill()
		e.state.mtClear()
		e.writeLine("OK")
		e.mu.Unlock()
	case "":
		e.log.error("empty command")
		e.replyError()
	default:
		e.log.error("unknown command %q", key+detail)
		e.replyError()
	}
}

func (e *engine) handlePercentR() {
	e.mu.Lock()
	e.writeLine("Register Settings")
	e.mu.Unlock()

	for i := 0; i < percentRRegisterCount; i++ {
		e.sleep(e.shortJitter())
		e.mu.Lock()
		e.writeLine(fmt.Sprintf("S%d: 000", i))
		e.mu.Unlock()
	}

	e.mu.Lock()
	e.writeLine("OK")
	e.mu.Unlock()
}

func (e *engine) handleCIER(detail string) {
	result, ok := cierCombos[detail]
	if !ok {
		e.replyError()
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.signalQualityIndicator = result[0]
	e.state.serviceAvailabilityIndicator = result[1]
	e.writeLine("OK")
	if result[0] {
		e.writeLine(fmt.Sprintf("+CIEV:0,%d", e.state.currentSignal))
	}
	if result[1] {
		svc := 0
		if e.state.currentSignal >= 1 {
			svc = 1
		}
		e.writeLine(fmt.Sprintf("+CIEV:1,%d", svc))
	}
}

func (e *engine) handleSBDMTA(detail string) {
	switch detail {
	case "0":
		e.mu.Lock()
		e.state.ringAlertsEnabled = false
		e.writeLine("OK")
		e.mu.Unlock()
	case "1":
		e.mu.Lock()
		e.state.ringAlertsEnabled = true
		e.writeLine("OK")
		e.mu.Unlock()
	default:
		e.replyError()
	}
}

func (e *engine) handleSBDAREG(detail string) {
	switch detail {
	case "0", "1", "2":
		e.replyOK()
	default:
		e.replyError()
	}
}

// handleSBDWB begins a binary-mode upload. The 60s deadline is a
// self-contained time.AfterFunc rather than a channel fed into a
// central select loop: it captures the generation counter at schedule
// time and becomes a no-op if the upload already completed, overflowed,
// or was itself superseded by a later SBDWB before it fires.
func (e *engine) handleSBDWB(detail string) {
	n, err := strconv.Atoi(detail)
	if err != nil || n < 1 || n > moBufferSize {
		e.log.warn("sbdwb: invalid length %q", detail)
		e.mu.Lock()
		e.writeLine("3")
		e.mu.Unlock()
		return
	}

	e.mu.Lock()
	gen := e.switchToBinaryLocked(n + 2)
	e.writeLine("READY")
	e.mu.Unlock()

	time.AfterFunc(60*time.Second, func() {
		e.onBinaryDeadline(gen)
	})
}

func (e *engine) switchToBinaryLocked(expectedLen int) int {
	e.state.binaryMode = true
	e.state.binaryExpectedLen = expectedLen
	e.chunkF.reset()
	e.lineF.reset()
	e.binaryGen++
	return e.binaryGen
}

func (e *engine) revertToTextLocked() {
	e.state.binaryMode = false
	e.state.binaryExpectedLen = 0
	e.chunkF.reset()
	e.binaryGen++
}

func (e *engine) onBinaryDeadline(gen int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.binaryMode || gen != e.binaryGen {
		return
	}
	e.log.warn("sbdwb: 60s timeout")
	e.writeLine("1")
	e.revertToTextLocked()
}

// feedBinary folds every inbound chunk into the pending upload and
// checks the cumulative length immediately, rather than waiting for an
// explicit 30ms-idle timer — each Transport.Read() already returns
// only currently-available bytes, so evaluating after every read is an
// equivalent, simpler realization of "deliver on inter-byte idle".
func (e *engine) feedBinary(data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.binaryMode {
		return
	}

	e.chunkF.feed(data)
	total := len(e.chunkF.buf)
	expected := e.state.binaryExpectedLen

	switch {
	case total == expected:
		e.completeSBDWBLocked()
	case total > expected:
		e.log.warn("sbdwb: received %d bytes, expected %d", total, expected)
		e.writeLine("2")
		e.revertToTextLocked()
	}
}

func (e *engine) completeSBDWBLocked() {
	raw := e.chunkF.take()
	payloadLen := e.state.binaryExpectedLen - 2
	payload := raw[:payloadLen]
	checksum := raw[payloadLen:]
	calc := sbdChecksum(payload)

	if checksum[0] == calc[0] && checksum[1] == calc[1] {
		e.state.moOverwrite(payload)
		e.writeLine("0")
	} else {
		e.log.warn("sbdwb: checksum mismatch")
		e.writeLine("2")
	}
	e.revertToTextLocked()
}

// tickSignal is invoked by the signal model's self-rescheduling
// goroutine (see emulator.go). It is the only place outside the
// command dispatch path that mutates currentSignal or writes
// unsolicited lines, and it does so entirely under mu.
func (e *engine) tickSignal(model signalModel) {
	e.mu.Lock()
	next := model.sample(e.state.radioActivityEnabled)
	changed := next != e.state.currentSignal
	if changed {
		e.state.currentSignal = next
	}
	sigSub := e.state.signalQualityIndicator
	svcSub := e.state.serviceAvailabilityIndicator
	if changed {
		if sigSub {
			e.writeLine(fmt.Sprintf("+CIEV:0,%d", next))
		}
		if svcSub {
			svc := 0
			if next >= 1 {
				svc = 1
			}
			e.writeLine(fmt.Sprintf("+CIEV:1,%d", svc))
		}
	}
	e.mu.Unlock()
}
