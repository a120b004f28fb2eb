package recovery_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/wudi/pdfmark/recovery"
)

func TestRecoveryStrategies(t *testing.T) {
	loc := recovery.Location{Page: 2, AnnotationID: "a1", Component: "export"}
	failure := errors.New("bad image")

	t.Run("StrictStrategy", func(t *testing.T) {
		if got := recovery.NewStrictStrategy().OnError(context.Background(), failure, loc); got != recovery.ActionFail {
			t.Fatalf("strict action = %v", got)
		}
	})

	t.Run("LenientStrategy", func(t *testing.T) {
		rec := recovery.NewLenientStrategy(nil)
		if got := rec.OnError(context.Background(), failure, loc); got != recovery.ActionWarn {
			t.Fatalf("lenient action = %v", got)
		}
		errs := rec.Errors()
		if len(errs) != 1 || !errors.Is(errs[0], failure) {
			t.Fatalf("unexpected recorded errors: %v", errs)
		}
		if !strings.Contains(errs[0].Error(), "page 2 annotation a1") {
			t.Fatalf("location missing from %q", errs[0])
		}
	})

	t.Run("LenientStrategyCanceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if got := recovery.NewLenientStrategy(nil).OnError(ctx, failure, loc); got != recovery.ActionFail {
			t.Fatalf("canceled lenient action = %v", got)
		}
	})
}
