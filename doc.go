// Package iridiumsbd emulates an Iridium 9602/9603 Short Burst Data
// (SBD) transceiver over a serial-port-like byte stream: a DTE
// application exchanges AT commands and binary payloads with an
// Emulator value as if it were the physical module.
//
// The emulator owns one EmulatorState, dispatches AT commands through
// a line/binary dual-mode framing demultiplexer, drives a simulated
// signal-quality ticker, simulates SBDIX sessions against that signal
// quality, and signs every successfully uplinked message as a compact
// RS256 JWT delivered through an event bus (package eventbus). The
// concrete byte transport (package transport), the signing key
// (package signer), and the random/clock sources are all injected at
// construction.
package iridiumsbd
