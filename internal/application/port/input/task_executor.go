package input

import "context"

type TaskExecutor interface {
	Execute(ctx context.Context, task string) (*ExecuteResult, error)
}

type ExecuteResult struct {
	FinalAnswer string
	Iterations  int
}
