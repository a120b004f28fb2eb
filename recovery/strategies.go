package recovery

import (
	"fmt"
	"sync"

	"github.com/wudi/pdfmark/observability"
)

// StrictStrategy implements a fail-fast recovery strategy.
type StrictStrategy struct{}

func NewStrictStrategy() *StrictStrategy {
	return &StrictStrategy{}
}

func (s *StrictStrategy) OnError(ctx Context, err error, location Location) Action {
	return ActionFail
}

// LenientStrategy logs each failure, remembers it, and lets the batch continue.
type LenientStrategy struct {
	Logger observability.Logger

	mu     sync.Mutex
	errors []error
}

func NewLenientStrategy(logger observability.Logger) *LenientStrategy {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &LenientStrategy{Logger: logger}
}

func (s *LenientStrategy) OnError(ctx Context, err error, location Location) Action {
	s.mu.Lock()
	s.errors = append(s.errors, fmt.Errorf("%s: %w", location, err))
	s.mu.Unlock()
	if s.Logger != nil {
		s.Logger.Warn("item failed, continuing",
			observability.String("component", location.Component),
			observability.Int("page", location.Page),
			observability.String("annotation", location.AnnotationID),
			observability.Error("error", err))
	}
	select {
	case <-ctx.Done():
		return ActionFail
	default:
	}
	return ActionWarn
}

// Errors returns the failures seen so far.
func (s *LenientStrategy) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errors...)
}
