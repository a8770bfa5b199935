package iridiumsbd

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// SignalRating selects the [min,max] range the signal model samples
// its current bar from.
type SignalRating int

const (
	SignalNone SignalRating = iota
	SignalPoor
	SignalOK
	SignalGood
	SignalExcellent
	SignalRandom
)

func (r SignalRating) bounds() (min, max int) {
	switch r {
	case SignalNone:
		return 0, 0
	case SignalPoor:
		return 0, 2
	case SignalOK:
		return 1, 2
	case SignalGood:
		return 3, 4
	case SignalExcellent:
		return 5, 5
	case SignalRandom:
		return 0, 5
	default:
		return 0, 0
	}
}

// numeric is the value AT+CSQF reports for the configured rating.
func (r SignalRating) numeric() int {
	_, max := r.bounds()
	return max
}

// Clock is the injected wall/monotonic time source. Every timestamp the
// emulator produces (transmit_time, log datetime, jitter scheduling)
// goes through this interface so tests can supply a deterministic fake
// instead of sleeping in real time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RandSource is the injected randomness collaborator. The signal model,
// the command engine's echo jitter, and the session simulator's success
// roll and long wait all draw from it, so a test harness can script a
// deterministic sequence instead of depending on real entropy.
type RandSource interface {
	Intn(n int) int
}

func newDefaultRand() RandSource {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// Config is the constructor contract for an Emulator.
type Config struct {
	// PortPath is an opaque transport identifier, surfaced in log
	// messages only; it does not select a transport implementation —
	// pass the Transport itself via Transport.
	PortPath string

	// BaudRate is cosmetic (reported by ATI commands); it does not
	// throttle the emulated byte stream. Defaults to 19200.
	BaudRate int

	// SignalQualityRating selects the signal model's sampling range.
	SignalQualityRating SignalRating

	// JWTSignerKeyPath, if non-empty, is a path to a PEM-encoded RSA
	// private key to load. If empty, a key is generated at construction.
	JWTSignerKeyPath string

	// JWTSignerKeyPassphrase is the passphrase protecting
	// JWTSignerKeyPath, if it is encrypted. Ignored when
	// JWTSignerKeyPath is empty.
	JWTSignerKeyPassphrase string

	// Clock and Rand are optional deterministic overrides; nil means
	// "use the real wall clock / real entropy".
	Clock Clock
	Rand  RandSource

	// Sleep overrides the jitter/long-wait suspension points (echo
	// jitter, AT+CSQ's 2s wait, AT+SBDIX's long wait). nil means "use
	// time.Sleep". Tests inject a no-op here for the same reason they
	// inject Clock/Rand: so a harness never actually blocks on the
	// real 15-30s SBDIX wait.
	Sleep func(time.Duration)
}

func (c Config) withDefaults() Config {
	if c.BaudRate == 0 {
		c.BaudRate = 19200
	}
	if c.Clock == nil {
		c.Clock = realClock{}
	}
	if c.Rand == nil {
		c.Rand = newDefaultRand()
	}
	if c.Sleep == nil {
		c.Sleep = time.Sleep
	}
	return c
}

// LoadFromEnv overlays cfg with values taken from the process
// environment, optionally preloaded from a ".env" file at envPath
// (pass "" to skip the file and read only the real environment). This
// mirrors the device-config overlay pattern used elsewhere in the
// retrieval pack, replacing its hand-rolled ".env" line parser with
// godotenv: SBDEMU_PORT_PATH, SBDEMU_BAUD_RATE, SBDEMU_SIGNAL_RATING,
// SBDEMU_JWT_KEY_PATH, SBDEMU_JWT_KEY_PASSPHRASE.
func LoadFromEnv(cfg Config, envPath string) (Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("iridiumsbd: load %s: %w", envPath, err)
		}
	}

	if v := os.Getenv("SBDEMU_PORT_PATH"); v != "" {
		cfg.PortPath = v
	}
	if v := os.Getenv("SBDEMU_BAUD_RATE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("iridiumsbd: SBDEMU_BAUD_RATE: %w", err)
		}
		cfg.BaudRate = n
	}
	if v := os.Getenv("SBDEMU_SIGNAL_RATING"); v != "" {
		rating, ok := signalRatingByName[v]
		if !ok {
			return cfg, fmt.Errorf("iridiumsbd: unknown SBDEMU_SIGNAL_RATING %q", v)
		}
		cfg.SignalQualityRating = rating
	}
	if v := os.Getenv("SBDEMU_JWT_KEY_PATH"); v != "" {
		cfg.JWTSignerKeyPath = v
	}
	if v := os.Getenv("SBDEMU_JWT_KEY_PASSPHRASE"); v != "" {
		cfg.JWTSignerKeyPassphrase = v
	}
	return cfg, nil
}

var signalRatingByName = map[string]SignalRating{
	"NONE":      SignalNone,
	"POOR":      SignalPoor,
	"OK":        SignalOK,
	"GOOD":      SignalGood,
	"EXCELLENT": SignalExcellent,
	"RANDOM":    SignalRandom,
}
