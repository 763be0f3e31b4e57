package health

import (
	"context"
	"fmt"
	"time"
)

// FrameClock reports not ready until the frame loop has ticked, and again
// whenever the last tick is older than maxAge.
func FrameClock(lastTick func() time.Time, maxAge time.Duration) Checker {
	return Checker{
		Name: "frames",
		Check: func(_ context.Context) error {
			last := lastTick()
			if last.IsZero() {
				return fmt.Errorf("frame loop has not ticked")
			}
			if age := time.Since(last); age > maxAge {
				return fmt.Errorf("no tick for %s", age.Round(time.Millisecond))
			}
			return nil
		},
	}
}

// Resources reports not ready while verify fails, e.g. because a catalog
// resource is missing from the store.
func Resources(verify func() error) Checker {
	return Checker{
		Name: "resources",
		Check: func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return verify()
		},
	}
}
