// Package common provides shared types and constants used across the
// signloop daemon, control RPC and client tooling.
package common

// Environment variable names shared between the daemon and the control
// tools. The daemon's own configuration keys live in internal/config.
const (
	// AddrEnv is the environment variable for the control server address.
	AddrEnv = "SIGNLOOP_ADDR"

	// SecretEnv is the environment variable for the control RPC secret.
	SecretEnv = "SIGNLOOP_RPC_SECRET"

	// DebugEnv is the environment variable to enable debug logging.
	DebugEnv = "SIGNLOOP_DEBUG"
)

// DEF_ADDR is the control server address both sides fall back to when
// neither flag nor environment names one.
const DEF_ADDR = "127.0.0.1:7399"
