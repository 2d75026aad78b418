package hostexec

import "context"

// Executor abstracts command execution so it can run locally or over SSH.
type Executor interface {
	Origin() Origin
	Run(ctx context.Context, argv []string) Result
}
