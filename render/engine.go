package render

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"sync"
)

// Engine turns a list of pictures into a pan-and-zoom slideshow.
//
// Each picture contributes a path of crop rectangles; consecutive pictures
// overlap by one transition window in which both crops are blended. The
// engine expands this plan into a task list and runs it as a Job.
//
// Example:
//
//	profile := render.NewProfile("PAL", image.Pt(720, 576), render.VideoNormPAL)
//	engine, err := render.NewEngine(renderer, profile, progress,
//	    render.WithTransitionDuration(1),
//	    render.WithTargetLength(120),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := engine.Start(ctx, pictures); err != nil {
//	    log.Printf("render failed: %s", engine.ErrorMessage())
//	}
type Engine struct {
	renderer Renderer
	profile  Profile
	progress ProgressReporter
	cfg      engineConfig

	mu     sync.Mutex
	job    *Job
	errMsg string
}

// NewEngine creates an engine writing to renderer with the given output
// profile. progress may be nil.
func NewEngine(renderer Renderer, profile Profile, progress ProgressReporter, opts ...Option) (*Engine, error) {
	if renderer == nil {
		return nil, &RenderError{Message: "renderer is required", Code: "INVALID_ENGINE"}
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if progress == nil {
		progress = nopProgress{}
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	return &Engine{
		renderer: renderer,
		profile:  profile,
		progress: progress,
		cfg:      cfg,
	}, nil
}

// Profile returns the engine's output profile.
func (e *Engine) Profile() Profile { return e.profile }

// TransitionFrames returns the number of frames of each transition window.
func (e *Engine) TransitionFrames() int {
	return TransitionFrames(e.cfg.transitionSecs, e.profile.Framerate)
}

// CreateRenderJob expands pictures into a job using their own durations.
func (e *Engine) CreateRenderJob(name string, pictures []Picture) (*Job, error) {
	return e.createJob(name, pictures, 1)
}

func (e *Engine) createJob(name string, pictures []Picture, scaleFactor float64) (*Job, error) {
	tasks, err := e.buildTasks(pictures, scaleFactor)
	if err != nil {
		return nil, err
	}
	return newJob(name, e.renderer, e.progress, tasks, e.cfg)
}

// buildTasks lays out the output frames:
//
//	picture 0:  path[:len-T]
//	picture i:  transition(prev[len-T:], cur[:T]), then cur[T:len-T]
//	last:       also cur[len-T:]
//
// where T is the transition frame count. A single picture renders its whole
// path.
func (e *Engine) buildTasks(pictures []Picture, scaleFactor float64) ([]Task, error) {
	if len(pictures) == 0 {
		return nil, &RenderError{Message: "no pictures to render", Code: "NO_PICTURES"}
	}

	fps := e.profile.Framerate
	trans := e.TransitionFrames()
	ids := make([]string, len(pictures))
	for i := range pictures {
		ids[i] = fmt.Sprintf("pic%03d", i)
	}

	var tasks []Task
	crop := func(pf PathFrame) *CropTask {
		return NewCropTask(ids[pf.Picture], pictures[pf.Picture], pf.Rect, e.profile.Resolution)
	}
	addCrops := func(frames []PathFrame) {
		for _, pf := range frames {
			tasks = append(tasks, crop(pf))
		}
	}

	var prev []PathFrame
	for idx, pic := range pictures {
		n := PictureFrames(pic.Duration(), fps, scaleFactor, trans)
		rects, err := ComputePath(pic.StartRect(), pic.TargetRect(), n)
		if err != nil {
			return nil, fmt.Errorf("picture %d: %w", idx, err)
		}
		cur := make([]PathFrame, len(rects))
		for i, r := range rects {
			cur[i] = PathFrame{Picture: idx, Rect: r}
		}

		if len(pictures) == 1 {
			addCrops(cur)
			break
		}

		if idx > 0 {
			if idx == 1 {
				addCrops(prev[:len(prev)-trans])
			}

			pairs, err := PairTransition(prev[len(prev)-trans:], cur[:trans])
			if err != nil {
				return nil, err
			}
			for _, p := range pairs {
				tasks = append(tasks, NewTransitionTask(crop(p.From), crop(p.To), p.Ratio, e.cfg.transitionKind))
			}

			addCrops(cur[trans : len(cur)-trans])
			if idx == len(pictures)-1 {
				addCrops(cur[len(cur)-trans:])
			}
		}
		prev = cur
	}
	return tasks, nil
}

// Start renders pictures and blocks until the output is finalized.
//
// When a target length is configured the pictures' durations are scaled to
// fit it. If any picture carries a comment and a Subtitler is configured,
// subtitles are written before the first frame. Panics below Start are
// recovered and reported as errors; ErrorMessage returns the text of the
// last failure.
func (e *Engine) Start(ctx context.Context, pictures []Picture) (err error) {
	e.mu.Lock()
	e.errMsg = ""
	e.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			Logger().Error("render panic recovered",
				"panic", r,
				"stack", string(debug.Stack()))
			err = &RenderError{Message: fmt.Sprintf("panic: %v", r), Code: "PANIC"}
		}
		if err != nil && !errors.Is(err, ErrAborted) {
			e.mu.Lock()
			e.errMsg = err.Error()
			e.mu.Unlock()
		}
	}()

	durations := make([]float64, len(pictures))
	for i, pic := range pictures {
		durations[i] = pic.Duration()
	}
	factor := ScaleFactor(durations, e.cfg.targetSecs, e.cfg.transitionSecs)

	name := filepath.Base(e.renderer.OutputPath())
	job, err := e.createJob(name, pictures, factor)
	if err != nil {
		e.progress.Done()
		return err
	}

	if e.cfg.subtitler != nil && hasComments(pictures) {
		job.extraSteps = 1
		job.before = func(ctx context.Context) error {
			e.progress.SetInfo("generating subtitles")
			if err := e.cfg.subtitler.WriteSubtitles(ctx, e.renderer.OutputPath(), pictures, factor); err != nil {
				return &RenderError{Message: "subtitle generation failed", Code: "SUBTITLE_FAILED", Cause: err}
			}
			e.progress.Step()
			return nil
		}
	}

	e.mu.Lock()
	e.job = job
	e.mu.Unlock()

	return job.Run(ctx)
}

func hasComments(pictures []Picture) bool {
	for _, pic := range pictures {
		if pic.Comment() != "" {
			return true
		}
	}
	return false
}

// Abort cancels the job started by Start, if any.
func (e *Engine) Abort() {
	e.mu.Lock()
	job := e.job
	e.mu.Unlock()
	if job != nil {
		job.Abort()
	}
}

// Job returns the job of the last Start call, or nil.
func (e *Engine) Job() *Job {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job
}

// ErrorMessage returns the failure text of the last Start, or "" if it
// succeeded or was aborted.
func (e *Engine) ErrorMessage() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errMsg
}
