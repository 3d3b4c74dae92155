package main

import (
	"github.com/xyproto/env/v2"
)

// Config holds the engine's runtime-tunable knobs. The thread-safe/
// spinlock toggle is a *build-time* choice (see mutex.go and its three
// build-tagged variants) and so isn't part of this struct; Config mirrors
// an env-first-then-default idiom for resolving settings, the same shape
// used elsewhere for cache-path and repository overrides, just pointed at
// the engine's own knobs.
type Config struct {
	// TrampolineArenaSize is the fixed capacity of the trampoline arena
	// (default ~256 KiB).
	TrampolineArenaSize int
}

const defaultTrampolineArenaSize = 256 * 1024

// NewConfig resolves engine configuration from the environment.
func NewConfig() Config {
	return Config{
		TrampolineArenaSize: env.IntOr("MLHOOK_ARENA_SIZE", defaultTrampolineArenaSize),
	}
}

// VerboseMode gates the fmt.Fprintf(os.Stderr, ...) trace lines used
// throughout the engine.
var VerboseMode = env.Bool("MLHOOK_VERBOSE")
