package lead

import (
	"github.com/crewkit/crewkit/internal/event"
	"github.com/crewkit/crewkit/internal/logging"
)

// Option configures a Team.
type Option func(*Team)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(log *logging.Logger) Option {
	return func(t *Team) {
		t.log = log
	}
}

// WithBus sets the event bus every loop event is mirrored to, in addition to
// being delivered on Run's channel. Defaults to a private bus with no
// subscribers.
func WithBus(bus *event.Bus) Option {
	return func(t *Team) {
		t.bus = bus
	}
}

// WithExecutable overrides the binary used to spawn teammates whose roster
// entry has no entry script. Defaults to the current executable, which
// re-enters as a teammate via its identity environment.
func WithExecutable(path string, args ...string) Option {
	return func(t *Team) {
		t.execPath = path
		t.execArgs = args
	}
}

// WithTrace sets the trace correlation ids passed to spawned teammates.
func WithTrace(traceID, parentSpanID string) Option {
	return func(t *Team) {
		t.traceID = traceID
		t.parentSpanID = parentSpanID
	}
}
