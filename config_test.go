package iridiumsbd

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWithDefaultsFillsZeroValues(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.BaudRate != 19200 {
		t.Fatalf("BaudRate = %d, want 19200", cfg.BaudRate)
	}
	if cfg.Clock == nil {
		t.Fatal("expected a default Clock")
	}
	if cfg.Rand == nil {
		t.Fatal("expected a default RandSource")
	}
	if cfg.Sleep == nil {
		t.Fatal("expected a default Sleep")
	}
}

func TestWithDefaultsPreservesExplicitValues(t *testing.T) {
	rnd := &sequenceRand{seq: []int{1}}
	clk := &fakeClock{}
	cfg := Config{BaudRate: 9600, Rand: rnd, Clock: clk}.withDefaults()
	if cfg.BaudRate != 9600 {
		t.Fatalf("BaudRate = %d, want 9600", cfg.BaudRate)
	}
	if cfg.Rand != RandSource(rnd) {
		t.Fatal("expected explicit RandSource to survive withDefaults")
	}
	if cfg.Clock != Clock(clk) {
		t.Fatal("expected explicit Clock to survive withDefaults")
	}
}

func TestSignalRatingByNameCoversAllRatings(t *testing.T) {
	want := map[string]SignalRating{
		"NONE":      SignalNone,
		"POOR":      SignalPoor,
		"OK":        SignalOK,
		"GOOD":      SignalGood,
		"EXCELLENT": SignalExcellent,
		"RANDOM":    SignalRandom,
	}
	for name, rating := range want {
		got, ok := signalRatingByName[name]
		if !ok {
			t.Fatalf("signalRatingByName missing %q", name)
		}
		if got != rating {
			t.Fatalf("signalRatingByName[%q] = %v, want %v", name, got, rating)
		}
	}
}

func TestLoadFromEnvOverridesFromRealEnvironment(t *testing.T) {
	t.Setenv("SBDEMU_PORT_PATH", "/dev/ttyFAKE")
	t.Setenv("SBDEMU_BAUD_RATE", "115200")
	t.Setenv("SBDEMU_SIGNAL_RATING", "GOOD")
	t.Setenv("SBDEMU_JWT_KEY_PATH", "/tmp/key.pem")
	t.Setenv("SBDEMU_JWT_KEY_PASSPHRASE", "hunter2")

	cfg, err := LoadFromEnv(Config{}, "")
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.PortPath != "/dev/ttyFAKE" {
		t.Fatalf("PortPath = %q", cfg.PortPath)
	}
	if cfg.BaudRate != 115200 {
		t.Fatalf("BaudRate = %d", cfg.BaudRate)
	}
	if cfg.SignalQualityRating != SignalGood {
		t.Fatalf("SignalQualityRating = %v, want SignalGood", cfg.SignalQualityRating)
	}
	if cfg.JWTSignerKeyPath != "/tmp/key.pem" {
		t.Fatalf("JWTSignerKeyPath = %q", cfg.JWTSignerKeyPath)
	}
	if cfg.JWTSignerKeyPassphrase != "hunter2" {
		t.Fatalf("JWTSignerKeyPassphrase = %q", cfg.JWTSignerKeyPassphrase)
	}
}

func TestLoadFromEnvRejectsUnknownSignalRating(t *testing.T) {
	t.Setenv("SBDEMU_SIGNAL_RATING", "SUPERB")
	if _, err := LoadFromEnv(Config{}, ""); err == nil {
		t.Fatal("expected an error for an unknown signal rating")
	}
}

func TestLoadFromEnvRejectsBadBaudRate(t *testing.T) {
	t.Setenv("SBDEMU_BAUD_RATE", "not-a-number")
	if _, err := LoadFromEnv(Config{}, ""); err == nil {
		t.Fatal("expected an error for a non-numeric baud rate")
	}
}

func TestLoadFromEnvReadsDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("SBDEMU_PORT_PATH=pipe:fromfile\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, err := LoadFromEnv(Config{}, path)
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.PortPath != "pipe:fromfile" {
		t.Fatalf("PortPath = %q, want pipe:fromfile", cfg.PortPath)
	}
}

func TestLoadFromEnvMissingFileIsNotAnError(t *testing.T) {
	if _, err := LoadFromEnv(Config{}, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadFromEnv with missing .env file: %v", err)
	}
}
