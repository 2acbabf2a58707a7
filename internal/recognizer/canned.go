package recognizer

import (
	"context"
	"time"
)

// Canned answers every capture with fixed text and never listens. It stands
// in for audio hardware in test mode.
type Canned struct {
	Text string
}

func (c Canned) Name() string { return "test" }

// Listen blocks until ctx ends.
func (c Canned) Listen(ctx context.Context, _ func(Result)) error {
	<-ctx.Done()
	return nil
}

func (c Canned) Capture(context.Context, time.Duration) Result {
	return finalResult(c.Text)
}
