package tasks

import (
	"context"
)

// Fetcher retrieves the raw roster feed body. Implemented by the fetcher
// package; faked in tests.
type Fetcher interface {
	Fetch(ctx context.Context, url, username, password string) (string, error)
}

// Runner is the scheduler's view of the pipeline.
type Runner interface {
	RunScheduled(ctx context.Context)
}
