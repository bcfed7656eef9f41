package processor

import (
	"errors"
	"time"
)

const (
	DefaultPollInterval        = time.Second
	DefaultMaxRetries          = 5
	DefaultBackoff             = 500 * time.Millisecond
	DefaultMaxBackoff          = 30 * time.Second
	DefaultSubmitTimeout       = 60 * time.Second
	DefaultMaxMsgsPerTx        = 30
	DefaultInitialBlockHistory = 20

	// maxBlocksPerPoll bounds how many blocks an event stream reads in one
	// cycle so a long backlog does not starve submissions.
	maxBlocksPerPoll = 100
)

// Options configures a PathProcessor. It is passed by value and never
// modified after construction.
type Options struct {
	// PollInterval is the time between relay cycles.
	PollInterval time.Duration
	// MaxRetries bounds the attempts of a single step, including the first.
	MaxRetries uint
	// Backoff is the delay before the first retry; it doubles per attempt up
	// to MaxBackoff.
	Backoff    time.Duration
	MaxBackoff time.Duration
	// SubmitTimeout is the deadline of a single attempt, queries included.
	SubmitTimeout time.Duration
	MaxMsgsPerTx  int
	// InitialBlockHistory is how many blocks before the latest height are
	// scanned when no cursor is saved for a chain.
	InitialBlockHistory uint64
}

func DefaultOptions() Options {
	return Options{
		PollInterval:        DefaultPollInterval,
		MaxRetries:          DefaultMaxRetries,
		Backoff:             DefaultBackoff,
		MaxBackoff:          DefaultMaxBackoff,
		SubmitTimeout:       DefaultSubmitTimeout,
		MaxMsgsPerTx:        DefaultMaxMsgsPerTx,
		InitialBlockHistory: DefaultInitialBlockHistory,
	}
}

func (o Options) Validate() error {
	switch {
	case o.PollInterval <= 0:
		return errors.New("poll interval must be positive")
	case o.MaxRetries == 0:
		return errors.New("max retries must be at least 1")
	case o.Backoff < 0 || o.MaxBackoff < o.Backoff:
		return errors.New("backoff must be non-negative and not exceed max backoff")
	case o.SubmitTimeout <= 0:
		return errors.New("submit timeout must be positive")
	case o.MaxMsgsPerTx < 1:
		return errors.New("max msgs per tx must be at least 1")
	}
	return nil
}
