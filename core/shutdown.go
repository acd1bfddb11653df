package core

// ShutdownHandler is invoked whenever core-level code (the background
// timer scheduler, a bus driver after exhausting retries) detects a
// condition it cannot recover from on its own. No package in this
// repository installs a handler, so TryShutdown currently does nothing.
var shutdownHandler func(reason string)

// SetShutdownHandler registers the handler called by TryShutdown.
func SetShutdownHandler(h func(reason string)) {
	shutdownHandler = h
}

// TryShutdown reports an unrecoverable condition detected outside the
// ISR's own per-cycle fault checks (e.g. the background timer list
// falling behind). It is a no-op until a handler has been installed.
func TryShutdown(reason string) {
	if shutdownHandler != nil {
		shutdownHandler(reason)
	}
}
