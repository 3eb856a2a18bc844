package engine

import (
	"time"

	"github.com/hupe1980/agentswarm/logging"
)

// Options holds shared engine construction overrides.
type Options struct {
	// Logger defaults to NoOpLogger.
	Logger logging.Logger

	// Dispatcher hands tasks to the execution substrate of remote-style
	// engines. The default dispatcher runs in-process; tests inject
	// failing dispatchers to exercise the retry path. Ignored by the
	// local engine.
	Dispatcher Dispatcher

	// MaxDispatchRetries bounds the exponential-backoff retry on dispatch
	// failure. Defaults to 3.
	MaxDispatchRetries uint64

	// DispatchBackoffBase is the initial backoff interval. Defaults to
	// 50ms.
	DispatchBackoffBase time.Duration
}

func defaultOptions() Options {
	return Options{
		Logger:              logging.NoOpLogger{},
		MaxDispatchRetries:  3,
		DispatchBackoffBase: 50 * time.Millisecond,
	}
}
