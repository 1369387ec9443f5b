package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/filmstrip-go/render/emit"
	"github.com/dshills/filmstrip-go/render/store"
)

// JobStatus is the lifecycle state of a Job.
type JobStatus int

const (
	JobPending JobStatus = iota
	JobRunning
	JobCompleted
	JobAborted
	JobFailed
)

func (s JobStatus) String() string {
	switch s {
	case JobPending:
		return "pending"
	case JobRunning:
		return store.StatusRunning
	case JobCompleted:
		return store.StatusCompleted
	case JobAborted:
		return store.StatusAborted
	case JobFailed:
		return store.StatusFailed
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// JobStats summarizes a job. Cache and reorder counts are taken when the job
// ends, before the cache is cleared.
type JobStats struct {
	TotalFrames     int
	DeliveredFrames int
	FailedTasks     int
	CacheLeftover   int
	ReorderLeftover int
}

// Job renders one ordered task list to a renderer.
//
// A job runs once. Its tasks are computed by a pool of workers in any order,
// memoized in a reference-counted ResultCache and handed to the renderer
// strictly in sequence through a ReorderBuffer.
type Job struct {
	id       string
	name     string
	renderer Renderer
	progress ProgressReporter
	tasks    []Task
	cfg      engineConfig

	handler FinalizeHandler
	smart   bool
	cache   *ResultCache
	reorder *ReorderBuffer[image.Image]

	// extraSteps are progress steps spent by before.
	extraSteps int
	before     func(ctx context.Context) error

	started   atomic.Bool
	aborted   atomic.Bool
	delivered atomic.Int64
	failed    atomic.Int64

	mu        sync.Mutex
	status    JobStatus
	err       error
	cancel    context.CancelFunc
	runCtx    context.Context
	runDone   <-chan struct{}
	startedAt time.Time
	stats     JobStats
}

// NewJob creates a job for an already expanded task list. Most callers use
// Engine.CreateRenderJob, which builds the task list from pictures.
func NewJob(name string, renderer Renderer, progress ProgressReporter, tasks []Task, opts ...Option) (*Job, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	return newJob(name, renderer, progress, tasks, cfg)
}

func newJob(name string, renderer Renderer, progress ProgressReporter, tasks []Task, cfg engineConfig) (*Job, error) {
	if renderer == nil {
		return nil, &RenderError{Message: "renderer is required", Code: "INVALID_JOB"}
	}
	if progress == nil {
		progress = nopProgress{}
	}

	handler := renderer.FinalizeHandler()
	if handler == nil {
		handler = NopFinalizer{FinalizeMode: FinalizeImmediate}
	}

	j := &Job{
		id:       uuid.NewString(),
		name:     name,
		renderer: renderer,
		progress: progress,
		tasks:    tasks,
		cfg:      cfg,
		handler:  handler,
		smart:    handler.Mode() == FinalizeSmart,
		cache:    NewResultCache(handler),
	}
	j.cache.timeout = cfg.taskTimeout
	j.cache.onHit = func(key CacheKey) {
		cfg.metrics.IncrementCacheHits(key.Role)
	}
	j.cache.onEvict = j.onEvict
	j.reorder = NewReorderBuffer(j.deliver)
	return j, nil
}

// ID returns the job's unique identifier.
func (j *Job) ID() string { return j.id }

// Name returns the job's display name.
func (j *Job) Name() string { return j.name }

// OutputPath returns the renderer's output location.
func (j *Job) OutputPath() string { return j.renderer.OutputPath() }

// Tasks returns the job's task list in output order.
func (j *Job) Tasks() []Task { return j.tasks }

// Renderer implements JobContext.
func (j *Job) Renderer() Renderer { return j.renderer }

// ProcessSubTask implements JobContext. The sub-task must have been declared
// by the calling task's SubTasks.
//
// A sub-task result is shared by every task that declares it, so it is
// computed under the job's context with a timeout of its own rather than
// under the deadline of whichever task happens to ask first.
func (j *Job) ProcessSubTask(ctx context.Context, task Task) (image.Image, error) {
	j.mu.Lock()
	if j.runCtx != nil {
		ctx = j.runCtx
	}
	j.mu.Unlock()
	return j.cache.Get(ctx, CacheKey{Task: task.Key(), Role: RoleSubTask}, j)
}

// Status returns the job's lifecycle state.
func (j *Job) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Err returns the error the job ended with, if any.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Stats returns the job's counters. Leftover counts are filled in once the
// job has ended.
func (j *Job) Stats() JobStats {
	j.mu.Lock()
	stats := j.stats
	j.mu.Unlock()

	stats.TotalFrames = len(j.tasks)
	stats.DeliveredFrames = int(j.delivered.Load())
	stats.FailedTasks = int(j.failed.Load())
	return stats
}

// Abort requests cooperative cancellation. Work in flight is abandoned at the
// next poll point and no further frame reaches the renderer.
func (j *Job) Abort() {
	j.aborted.Store(true)
	j.mu.Lock()
	cancel := j.cancel
	j.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (j *Job) isAborted() bool {
	if j.aborted.Load() || j.progress.IsAborted() {
		return true
	}
	j.mu.Lock()
	done := j.runDone
	j.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return true
	default:
		return false
	}
}

// Run executes the job and blocks until it has ended. Cleanup runs whatever
// the outcome: the renderer is rolled back after an abort or failure and is
// always finalized.
//
// Run returns nil on completion, ErrAborted after an abort, and the first
// fatal error otherwise. A job can run only once.
func (j *Job) Run(ctx context.Context) (err error) {
	if !j.started.CompareAndSwap(false, true) {
		return &RenderError{Message: "job " + j.id + " already started", Code: "JOB_ALREADY_STARTED"}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	j.mu.Lock()
	j.cancel = cancel
	j.runCtx = runCtx
	j.runDone = runCtx.Done()
	j.status = JobRunning
	j.startedAt = time.Now()
	j.mu.Unlock()

	defer func() {
		err = j.done(ctx, err)
	}()

	if err := j.begin(runCtx); err != nil {
		return err
	}
	return j.execute(runCtx)
}

// begin registers every cache reference and prepares the renderer.
func (j *Job) begin(ctx context.Context) error {
	j.progress.SetMaxProgress(len(j.tasks) + 5*len(j.cfg.audioFiles) + j.extraSteps)

	for _, task := range j.tasks {
		// Sub-task references belong to the computation of a primary
		// entry, so they are counted once per distinct primary key.
		if j.cache.Register(task, RolePrimary) {
			for _, sub := range task.SubTasks() {
				j.cache.Register(sub, RoleSubTask)
			}
		}
	}

	Logger().Info("render job begin",
		"job_id", j.id,
		"name", j.name,
		"frames", len(j.tasks),
		"cache_entries", j.cache.Len(),
		"workers", j.cfg.workers,
		"finalize", j.handler.Mode().String())
	j.emit(-1, "", emit.MsgJobStart, map[string]interface{}{"frames": len(j.tasks)})
	j.save(ctx, store.StatusRunning, nil)

	if j.before != nil {
		if err := j.before(ctx); err != nil {
			return err
		}
	}

	j.progress.SetInfo("initialize renderer")
	if err := j.renderer.Prepare(ctx); err != nil {
		return &RenderError{Message: "renderer prepare failed", Code: "PREPARE_FAILED", Cause: err}
	}
	return nil
}

// execute streams the task list through the frontier into the worker pool.
func (j *Job) execute(ctx context.Context) error {
	frontier := NewFrontier(j.cfg.queueDepth)
	pool := NewWorkerPool(j.cfg.workers)

	poolCtx, stop := context.WithCancel(ctx)
	defer stop()

	produced := make(chan error, 1)
	go func() {
		produced <- j.produce(poolCtx, frontier)
	}()

	err := pool.Run(poolCtx, frontier, func(ctx context.Context, item WorkItem) error {
		j.cfg.metrics.UpdateQueueDepth(frontier.Len())
		return j.safeProcessUnit(ctx, item)
	})
	stop()
	perr := <-produced

	if err != nil {
		return err
	}
	if j.isAborted() {
		return ErrAborted
	}
	if perr != nil {
		return perr
	}
	if next := j.reorder.Next(); next != len(j.tasks) {
		return &StructuralError{
			Op:    "Job.execute",
			Cause: fmt.Errorf("delivered %d of %d frames", next, len(j.tasks)),
		}
	}
	return nil
}

// produce enqueues every task in output order and closes the frontier.
func (j *Job) produce(ctx context.Context, frontier *Frontier) error {
	defer frontier.Close()
	for seq, task := range j.tasks {
		if j.isAborted() {
			return ErrAborted
		}
		if err := frontier.Enqueue(ctx, NewWorkItem(seq, task)); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		j.cfg.metrics.UpdateQueueDepth(frontier.Len())
	}
	return nil
}

// safeProcessUnit turns a panic in a worker into a job failure.
func (j *Job) safeProcessUnit(ctx context.Context, item WorkItem) (err error) {
	defer func() {
		if r := recover(); r != nil {
			Logger().Error("worker panic recovered",
				"job_id", j.id,
				"seq", item.Seq,
				"panic", r,
				"stack", string(debug.Stack()))
			err = &RenderError{Message: fmt.Sprintf("worker panic at frame %d: %v", item.Seq, r), Code: "PANIC"}
		}
	}()
	return j.processUnit(ctx, item)
}

// processUnit computes one output frame and pushes it towards the sink.
func (j *Job) processUnit(ctx context.Context, item WorkItem) error {
	if j.isAborted() {
		return ErrAborted
	}

	key := item.Task.Key()
	j.progress.SetInfo(item.Task.Info())
	Logger().Debug("task start", "job_id", j.id, "seq", item.Seq, "task", string(key))

	start := time.Now()
	var latency time.Duration
	status := "failed"
	j.cfg.metrics.TaskStarted()
	defer func() {
		if latency == 0 {
			latency = time.Since(start)
		}
		j.cfg.metrics.TaskFinished(j.id, latency, status)
	}()

	result, err := j.cache.Get(ctx, CacheKey{Task: key, Role: RolePrimary}, j)
	latency = time.Since(start)

	switch {
	case err == nil:
		status = "success"
		j.emit(item.Seq, string(key), emit.MsgTaskDone, map[string]interface{}{"duration_ms": latency.Milliseconds()})
		Logger().Debug("task done", "job_id", j.id, "seq", item.Seq, "task", string(key), "duration", latency)

	case IsFatal(err):
		return err

	case errors.Is(err, ErrAborted) && j.isAborted():
		// Abandoned work is discarded silently.
		status = "aborted"
		return ErrAborted

	default:
		j.taskFailed(item.Seq, key, err)
		result = nil
	}

	return j.pushResult(item.Seq, result)
}

func (j *Job) taskFailed(seq int, key TaskKey, err error) {
	j.failed.Add(1)
	Logger().Warn("task failed, frame left empty",
		"job_id", j.id,
		"seq", seq,
		"task", string(key),
		"error", err)
	j.emit(seq, string(key), emit.MsgTaskFailed, map[string]interface{}{"error": err.Error()})
}

// pushResult hands a completion to the reorder buffer, which delivers every
// frame whose turn has come.
func (j *Job) pushResult(seq int, frame image.Image) error {
	err := j.reorder.Push(seq, frame)
	j.cfg.metrics.UpdateReorderPending(j.reorder.Pending())
	return err
}

// deliver runs under the reorder lock, once per sequence number in ascending
// order.
func (j *Job) deliver(seq int, frame image.Image) error {
	if j.isAborted() {
		return ErrAborted
	}

	if frame != nil && j.smart {
		finalized, err := j.handler.ProcessFinalize(frame)
		if err != nil {
			j.taskFailed(seq, j.tasks[seq].Key(), fmt.Errorf("finalize: %w", err))
			finalized = nil
		}
		frame = finalized
	}

	if frame != nil {
		if err := j.renderer.ToSink(frame); err != nil {
			return &RenderError{
				Message: fmt.Sprintf("sink rejected frame %d", seq),
				Code:    "SINK_ERROR",
				Cause:   err,
			}
		}
		j.delivered.Add(1)
		j.cfg.metrics.IncrementFramesDelivered(j.id)
		j.emit(seq, string(j.tasks[seq].Key()), emit.MsgFrameDelivered, nil)
	}
	j.progress.Step()
	return nil
}

func (j *Job) onEvict(key CacheKey) {
	j.cfg.metrics.IncrementCacheEvictions(key.Role)
	j.emit(-1, string(key.Task), emit.MsgCacheEvict, map[string]interface{}{"role": key.Role.String()})
	Logger().Debug("cache evict", "job_id", j.id, "key", key.String())
}

// done is the job's cleanup. It runs exactly once per Run.
func (j *Job) done(ctx context.Context, runErr error) error {
	status := JobCompleted
	switch {
	case runErr == nil:
	case errors.Is(runErr, ErrAborted) && !IsFatal(runErr):
		status = JobAborted
	default:
		status = JobFailed
	}
	// A caller abort racing with the last frame still counts as an abort.
	if status == JobCompleted && (j.aborted.Load() || j.progress.IsAborted()) {
		status = JobAborted
	}
	if status == JobAborted {
		runErr = ErrAborted
	}

	if status != JobCompleted {
		if err := j.renderer.ProcessAbort(); err != nil {
			Logger().Error("renderer abort failed", "job_id", j.id, "error", err)
		}
	}

	if status == JobCompleted {
		for _, path := range j.cfg.audioFiles {
			j.progress.SetInfo("processing audio file " + path)
			if err := j.renderer.ProcessAudio(path); err != nil {
				Logger().Warn("audio file skipped", "job_id", j.id, "path", path, "error", err)
			}
			j.progress.Steps(5)
		}
	}

	j.progress.SetInfo("creating output")
	if err := j.renderer.Finalize(); err != nil {
		Logger().Error("renderer finalize failed", "job_id", j.id, "error", err)
		if status == JobCompleted {
			status = JobFailed
			runErr = &RenderError{Message: "renderer finalize failed", Code: "FINALIZE_FAILED", Cause: err}
		}
	}

	cacheLeft, reorderLeft := j.cache.Len(), j.reorder.Pending()
	Logger().Debug("render job summary",
		"job_id", j.id,
		"cache_leftover", cacheLeft,
		"reorder_leftover", reorderLeft,
		"delivered", j.delivered.Load(),
		"failed_tasks", j.failed.Load())
	j.cache.Clear()

	j.mu.Lock()
	j.status = status
	j.err = runErr
	j.stats.CacheLeftover = cacheLeft
	j.stats.ReorderLeftover = reorderLeft
	j.mu.Unlock()

	meta := map[string]interface{}{"frames": int(j.delivered.Load())}
	switch status {
	case JobCompleted:
		j.emit(-1, "", emit.MsgJobDone, meta)
		Logger().Info("render job done", "job_id", j.id, "frames", j.delivered.Load())
	case JobAborted:
		j.cfg.metrics.IncrementAborts()
		j.emit(-1, "", emit.MsgJobAbort, meta)
		Logger().Info("render job aborted", "job_id", j.id, "frames", j.delivered.Load())
	default:
		meta["error"] = runErr.Error()
		j.emit(-1, "", emit.MsgJobFailed, meta)
		Logger().Error("render job failed", "job_id", j.id, "error", runErr)
	}

	j.save(context.WithoutCancel(ctx), status.String(), runErr)
	j.progress.Done()
	return runErr
}

func (j *Job) emit(seq int, taskKey, msg string, meta map[string]interface{}) {
	j.cfg.emitter.Emit(emit.Event{
		JobID:   j.id,
		Seq:     seq,
		TaskKey: taskKey,
		Msg:     msg,
		Meta:    meta,
	})
}

func (j *Job) save(ctx context.Context, status string, runErr error) {
	if j.cfg.store == nil {
		return
	}

	j.mu.Lock()
	startedAt := j.startedAt
	j.mu.Unlock()

	rec := store.JobRecord{
		ID:              j.id,
		Name:            j.name,
		OutputPath:      j.renderer.OutputPath(),
		Status:          status,
		TotalFrames:     len(j.tasks),
		DeliveredFrames: int(j.delivered.Load()),
		FailedTasks:     int(j.failed.Load()),
		StartedAt:       startedAt,
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	if status != store.StatusRunning {
		rec.FinishedAt = time.Now()
	}
	if err := j.cfg.store.SaveJob(ctx, rec); err != nil {
		Logger().Warn("job record not saved", "job_id", j.id, "error", err)
	}
}

// nopProgress is used when no ProgressReporter is supplied.
type nopProgress struct{}

func (nopProgress) SetMaxProgress(int) {}
func (nopProgress) Step()              {}
func (nopProgress) Steps(int)          {}
func (nopProgress) SetInfo(string)     {}
func (nopProgress) IsAborted() bool    { return false }
func (nopProgress) Done()              {}
