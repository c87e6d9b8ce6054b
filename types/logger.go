package types

// Logger is the structured logger used by balancers, strategies, communicators
// and redistributors.
//
// Every method takes a lower-case message followed by alternating keys and
// values, e.g. Debug("window split", "rank", 2, "hlevel", 1). Adapters for
// log/slog and logrus live in the root package; a nil Logger is replaced by a
// no-op logger wherever one is accepted.
type Logger interface {
	// Debug logs per-window partition decisions and collective traffic.
	Debug(msg string, keysAndValues ...any)

	// Info logs rebalances, hierarchy changes and verbose partition diagnostics.
	Info(msg string, keysAndValues ...any)

	// Warn logs recoverable problems such as a failed stale plan cleanup.
	Warn(msg string, keysAndValues ...any)

	// Error logs failures of collective operations and hooks.
	Error(msg string, keysAndValues ...any)

	// Fatal logs at fatal level and terminates the process.
	Fatal(msg string, keysAndValues ...any)
}
