package pipeline

import (
	"time"

	"github.com/jonathan/resume-optimizer/internal/types"
)

// Defaults for orchestration policy knobs.
const (
	DefaultMaxRounds      = 3
	DefaultPassThreshold  = 90
	DefaultMaxRetries     = 2
	DefaultRetryBaseDelay = 500 * time.Millisecond
)

// Options configures orchestration policy shared by all runs of a Manager.
type Options struct {
	// MaxRounds bounds write/critique refinement rounds per run.
	MaxRounds int
	// PassThreshold is the overall score at which a critique round exits
	// the refinement loop even if the gatekeeper redirects for another.
	PassThreshold int
	// MaxRetries bounds automatic retries of a transiently failing stage
	// execution or gatekeeper audit.
	MaxRetries int
	// RetryBaseDelay is the initial backoff delay; it doubles per attempt.
	RetryBaseDelay time.Duration
	// MaxForcedPasses caps how many forced passes a run may accumulate.
	// Zero means uncapped. Once the cap is reached further forced verdicts
	// are treated as plain fails.
	MaxForcedPasses int
}

func (o Options) withDefaults() Options {
	if o.MaxRounds <= 0 {
		o.MaxRounds = DefaultMaxRounds
	}
	if o.PassThreshold <= 0 {
		o.PassThreshold = DefaultPassThreshold
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBaseDelay <= 0 {
		o.RetryBaseDelay = DefaultRetryBaseDelay
	}
	return o
}

// StartOptions describes one new run.
type StartOptions struct {
	DocumentRef string
	Target      types.TargetParams
	ManualMode  bool
}
