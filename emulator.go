package iridiumsbd

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sunstone-advisory/iridium-sbd-emulator/eventbus"
	"github.com/sunstone-advisory/iridium-sbd-emulator/signer"
	"github.com/sunstone-advisory/iridium-sbd-emulator/transport"
)

// Emulator is one Iridium 9602/9603 SBD transceiver instance: a
// command engine bound to a byte transport, a signal model ticker, a
// signing key, and three event channels observers can subscribe to.
// It is the top-level wiring connecting the transport, the command
// engine, the signal ticker, and the event buses.
type Emulator struct {
	cfg       Config
	transport transport.Transport
	state     *EmulatorState
	engine    *engine
	signer    *signer.Signer

	logBus *eventbus.Bus[LogEvent]
	sbdBus *eventbus.Bus[SBDMessage]
	keyBus *eventbus.Bus[signer.KeyDetails]
	log    *logger

	signalModel signalModel

	mu         sync.Mutex
	running    bool
	closed     bool
	tickerStop chan struct{}
	readerDone chan struct{}
}

// New constructs an Emulator bound to an already-opened transport.
// A constructor failure (signer load/generation failure, missing
// transport) is fatal: the returned error means no Emulator was
// created and Run must never be called.
func New(cfg Config, tport transport.Transport) (*Emulator, error) {
	cfg = cfg.withDefaults()
	if tport == nil {
		return nil, wrapErr("construct emulator", fmt.Errorf("transport is required"))
	}

	// onPanic is shared by all three buses so an observer panic always
	// becomes an ERROR log line instead of taking down the engine (spec
	// §4.8). It closes over `log`, assigned just below, rather than the
	// other way around, since the bus must exist before the logger can
	// publish through it.
	var log *logger
	onPanic := func(r any) {
		if log != nil {
			log.error("observer panic: %v", r)
		}
	}

	logBus := eventbus.New[LogEvent](onPanic)
	sbdBus := eventbus.New[SBDMessage](onPanic)
	keyBus := eventbus.New[signer.KeyDetails](onPanic)
	log = newLogger(logBus, cfg.Clock)

	sg, err := loadOrGenerateSigner(cfg)
	if err != nil {
		return nil, wrapErr("construct signer", err)
	}
	if sg.Details().Generated {
		keyBus.Publish(sg.Details())
	}

	state := newEmulatorState(cfg.SignalQualityRating)
	eng := newEngine(state, sg, log, sbdBus, cfg.Rand, cfg.Clock, cfg.Sleep, tport)

	log.info("transport %s open", tport.Name())

	return &Emulator{
		cfg:         cfg,
		transport:   tport,
		state:       state,
		engine:      eng,
		signer:      sg,
		logBus:      logBus,
		sbdBus:      sbdBus,
		keyBus:      keyBus,
		log:         log,
		signalModel: signalModel{rating: cfg.SignalQualityRating, rnd: cfg.Rand},
	}, nil
}

func loadOrGenerateSigner(cfg Config) (*signer.Signer, error) {
	if cfg.JWTSignerKeyPath != "" {
		return signer.Load(cfg.JWTSignerKeyPath, cfg.JWTSignerKeyPassphrase)
	}
	return signer.Generate(cfg.Rand)
}

// Run starts the transport reader loop and the signal-quality ticker.
// It returns immediately; both run on their own goroutines until
// Close is called.
func (em *Emulator) Run() error {
	em.mu.Lock()
	if em.closed {
		em.mu.Unlock()
		return ErrClosed
	}
	if em.running {
		em.mu.Unlock()
		return ErrAlreadyRunning
	}
	em.running = true
	em.tickerStop = make(chan struct{})
	em.readerDone = make(chan struct{})
	em.mu.Unlock()

	go em.runSignalTicker()
	go em.runReader()
	return nil
}

// runReader blocks on Transport.Read, and every byte it receives is
// processed synchronously — including any jitter sleeps a command
// triggers — before the next Read call, giving a strict within-command
// ordering guarantee.
func (em *Emulator) runReader() {
	defer close(em.readerDone)
	buf := make([]byte, 4096)
	for {
		n, err := em.transport.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			em.engine.onBytes(data)
		}
		if err != nil {
			if err != io.EOF {
				em.log.error("transport read: %v", err)
			}
			return
		}
	}
}

// runSignalTicker is a self-rescheduling timer: it samples once
// immediately so currentSignal reflects the configured rating from the
// moment Run returns, rather than sitting at its construction-time
// default for up to a full interval, then waits for the next interval
// (or for teardown), ticks, repeats.
func (em *Emulator) runSignalTicker() {
	em.engine.tickSignal(em.signalModel)
	for {
		timer := time.NewTimer(em.nextSignalInterval())
		select {
		case <-timer.C:
			em.engine.tickSignal(em.signalModel)
		case <-em.tickerStop:
			timer.Stop()
			return
		}
	}
}

// nextSignalInterval draws the ticker's next delay under the engine's
// mutex: rnd is shared with the reader goroutine's jitter/session
// rolls, and RandSource implementations (including the real
// math/rand.Rand) are not safe for concurrent use.
func (em *Emulator) nextSignalInterval() time.Duration {
	em.engine.mu.Lock()
	defer em.engine.mu.Unlock()
	return em.signalModel.nextInterval()
}

// Close tears down the signal ticker and the transport, cancelling any
// pending SBDWB deadline as a side effect of the engine simply no
// longer being driven. Safe to call more than once.
func (em *Emulator) Close() error {
	em.mu.Lock()
	if em.closed {
		em.mu.Unlock()
		return nil
	}
	em.closed = true
	running := em.running
	stopCh := em.tickerStop
	em.mu.Unlock()

	if running {
		close(stopCh)
	}
	err := em.transport.Close()
	if running {
		<-em.readerDone
	}
	em.log.info("transport closed")
	return wrapErr("close transport", err)
}

// SubscribeLog registers an observer on the "log" event channel.
func (em *Emulator) SubscribeLog(h func(LogEvent)) { em.logBus.Subscribe(h) }

// SubscribeSBDMessage registers an observer on the "sbd-message" event
// channel, fired once per successful SBDIX session.
func (em *Emulator) SubscribeSBDMessage(h func(SBDMessage)) { em.sbdBus.Subscribe(h) }

// SubscribeKeyGenerated registers an observer on the
// "signer-key-generated" event channel, fired at most once.
func (em *Emulator) SubscribeKeyGenerated(h func(signer.KeyDetails)) { em.keyBus.Subscribe(h) }

// MOBuffer returns the current MO payload trimmed of trailing zero
// bytes, for test assertions.
func (em *Emulator) MOBuffer() []byte {
	em.engine.mu.Lock()
	defer em.engine.mu.Unlock()
	return em.state.moTrimmed()
}

// Sequence returns the current (moSeq, mtSeq) pair, for test assertions.
func (em *Emulator) Sequence() (moSeq, mtSeq uint16) {
	em.engine.mu.Lock()
	defer em.engine.mu.Unlock()
	return em.state.moSeq, em.state.mtSeq
}

// SignerPublicKey exposes the signer's public key so a test or an
// operator can verify emitted JWTs.
func (em *Emulator) SignerPublicKey() any {
	return em.signer.PublicKey()
}
