package dice

import "go.uber.org/zap"

// Roller wraps a Source and logger to provide logged rolls.
// Labelled rolls are logged at debug level with the bounds and the result.
// Roller itself satisfies Source, so it can be handed to any consumer.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedRoller creates a Roller that rolls with src and logs each labelled roll to logger.
//
// Precondition: src must be non-nil. A nil logger disables logging.
func NewLoggedRoller(src Source, logger *zap.Logger) *Roller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Roller{src: src, logger: logger}
}

// Intn delegates to the wrapped Source without logging.
func (r *Roller) Intn(n int) int {
	return r.src.Intn(n)
}

// Range rolls an inclusive integer range and logs the result under label.
//
// Postcondition: lo <= result <= hi (after normalisation).
func (r *Roller) Range(label string, lo, hi int) int {
	v := Range(r.src, lo, hi)
	r.logger.Debug("dice range",
		zap.String("label", label),
		zap.Int("min", lo),
		zap.Int("max", hi),
		zap.Int("result", v),
	)
	return v
}

// Chance rolls a probability and logs the outcome under label.
func (r *Roller) Chance(label string, p float64) bool {
	ok := Chance(r.src, p)
	r.logger.Debug("dice chance",
		zap.String("label", label),
		zap.Float64("p", p),
		zap.Bool("success", ok),
	)
	return ok
}
