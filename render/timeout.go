package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"
)

// runTaskWithTimeout runs task, bounding it by timeout when timeout > 0.
//
// A task that outlives its deadline yields a non-fatal TaskError wrapping
// context.DeadlineExceeded; cancellation of the parent context is reported
// as ErrAborted.
func runTaskWithTimeout(ctx context.Context, task Task, jc JobContext, timeout time.Duration) (image.Image, error) {
	if timeout <= 0 {
		return runTask(ctx, task, jc)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := runTask(timeoutCtx, task, jc)

	// Tasks cannot be preempted; a late success is still a success.
	if err != nil && ctx.Err() == nil && errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
		return nil, &TaskError{
			Message: fmt.Sprintf("exceeded timeout of %v", timeout),
			TaskKey: task.Key(),
			Cause:   context.DeadlineExceeded,
		}
	}
	return result, err
}

func runTask(ctx context.Context, task Task, jc JobContext) (image.Image, error) {
	if ctx.Err() != nil {
		return nil, ErrAborted
	}
	result, err := task.Run(ctx, jc)
	if err != nil && ctx.Err() != nil && !IsFatal(err) {
		return nil, ErrAborted
	}
	return result, err
}
