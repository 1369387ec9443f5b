package render

import (
	"context"
	"fmt"
	"image"
)

// TaskKey identifies the computation a task performs. Two tasks with equal
// keys produce equal results and share one cache entry per role.
type TaskKey string

// Task is the smallest unit of render work.
//
// Tasks are immutable once created. A task may declare sub-tasks: shared
// computations that are registered and ref-counted separately and fetched
// from Run through JobContext.ProcessSubTask. Sub-tasks must be leaves; their
// own SubTasks are not registered.
type Task interface {
	// Key returns the task's stable identity.
	Key() TaskKey

	// SubTasks lists the shared computations Run will request.
	SubTasks() []Task

	// Run computes the task's frame. A nil image with a nil error is an
	// intentionally empty result.
	Run(ctx context.Context, jc JobContext) (image.Image, error)

	// Info is a short human-readable description for progress display.
	Info() string
}

// JobContext is what a running task sees of its job.
type JobContext interface {
	// ProcessSubTask returns the memoized result of a registered sub-task,
	// computing it if this is the first request.
	ProcessSubTask(ctx context.Context, task Task) (image.Image, error)

	// Renderer returns the job's renderer.
	Renderer() Renderer
}

// TaskError represents a non-fatal failure of one task.
type TaskError struct {
	Message string
	TaskKey TaskKey
	Cause   error
}

func (e *TaskError) Error() string {
	msg := "task " + string(e.TaskKey) + ": " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *TaskError) Unwrap() error {
	return e.Cause
}

// CropTask cuts one path rectangle out of a picture and scales it to the
// output resolution.
type CropTask struct {
	PictureID  string
	Picture    Picture
	Rect       Rect
	Resolution image.Point

	key TaskKey
}

// NewCropTask creates a crop task. pictureID must be unique per picture within
// a job; it becomes part of the task key.
func NewCropTask(pictureID string, pic Picture, rect Rect, resolution image.Point) *CropTask {
	return &CropTask{
		PictureID:  pictureID,
		Picture:    pic,
		Rect:       rect,
		Resolution: resolution,
		key: TaskKey(fmt.Sprintf("crop/%s/%s/%dx%d",
			pictureID, rect, resolution.X, resolution.Y)),
	}
}

func (t *CropTask) Key() TaskKey     { return t.key }
func (t *CropTask) SubTasks() []Task { return nil }
func (t *CropTask) Info() string     { return "processing picture " + t.PictureID }

// Run crops and resizes through the job's renderer.
func (t *CropTask) Run(ctx context.Context, jc JobContext) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrAborted
	}
	img, err := t.Picture.Image()
	if err != nil {
		return nil, &TaskError{Message: "load image", TaskKey: t.key, Cause: err}
	}
	frame, err := jc.Renderer().ProcessCropAndResize(img, t.Rect, t.Resolution)
	if err != nil {
		return nil, &TaskError{Message: "crop and resize", TaskKey: t.key, Cause: err}
	}
	return frame, nil
}

// TransitionTask mixes two crops of adjacent pictures. Both crops are
// sub-tasks, so a crop shared with another task is computed once.
type TransitionTask struct {
	From  *CropTask
	To    *CropTask
	Ratio float64
	Kind  TransitionKind

	key TaskKey
}

// NewTransitionTask creates a transition step between two crops.
func NewTransitionTask(from, to *CropTask, ratio float64, kind TransitionKind) *TransitionTask {
	return &TransitionTask{
		From:  from,
		To:    to,
		Ratio: ratio,
		Kind:  kind,
		key:   TaskKey(fmt.Sprintf("trans/%s/%.4f/%s|%s", kind, ratio, from.Key(), to.Key())),
	}
}

func (t *TransitionTask) Key() TaskKey     { return t.key }
func (t *TransitionTask) SubTasks() []Task { return []Task{t.From, t.To} }

func (t *TransitionTask) Info() string {
	return "processing transition " + t.From.PictureID + " -> " + t.To.PictureID
}

// Run fetches both crops from the job's sub-task cache and blends them.
func (t *TransitionTask) Run(ctx context.Context, jc JobContext) (image.Image, error) {
	// Both references are consumed even if the first fails, so the
	// sub-task entries still drain.
	a, errA := jc.ProcessSubTask(ctx, t.From)
	b, errB := jc.ProcessSubTask(ctx, t.To)
	if errA != nil {
		return nil, errA
	}
	if errB != nil {
		return nil, errB
	}
	if a == nil || b == nil {
		return nil, &TaskError{Message: "transition input is empty", TaskKey: t.key}
	}
	return Blend(t.Kind, a, b, t.Ratio)
}

// TaskFunc adapts a function to the Task interface.
//
// Example:
//
//	task := &render.TaskFunc{
//	    ID: "solid/red",
//	    Fn: func(ctx context.Context, jc render.JobContext) (image.Image, error) {
//	        return image.NewUniform(color.RGBA{R: 255, A: 255}), nil
//	    },
//	}
type TaskFunc struct {
	ID          TaskKey
	Deps        []Task
	Description string
	Fn          func(ctx context.Context, jc JobContext) (image.Image, error)
}

func (f *TaskFunc) Key() TaskKey     { return f.ID }
func (f *TaskFunc) SubTasks() []Task { return f.Deps }
func (f *TaskFunc) Info() string     { return f.Description }

// Run calls Fn.
func (f *TaskFunc) Run(ctx context.Context, jc JobContext) (image.Image, error) {
	return f.Fn(ctx, jc)
}
