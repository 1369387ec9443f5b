package emit

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
)

// LogEmitter writes events as structured log lines through a log/slog
// handler, in logfmt or JSON.
//
// Example text output:
//
//	time=… level=INFO msg=frame_delivered job_id=5f0c… seq=12 task=crop/pic001/0.00,0.00,640.00,480.00/640x480
//
// Example JSON output:
//
//	{"time":"…","level":"WARN","msg":"task_failed","job_id":"5f0c…","seq":12,"task":"crop/…","meta":{"error":"…"}}
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter creates a LogEmitter. A nil writer selects os.Stdout.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	var h slog.Handler
	if jsonMode {
		h = slog.NewJSONHandler(writer, nil)
	} else {
		h = slog.NewTextHandler(writer, nil)
	}
	return &LogEmitter{logger: slog.New(h)}
}

// Emit writes one line per event. The slog handlers serialize writes, so
// lines from concurrent workers never interleave.
func (l *LogEmitter) Emit(event Event) {
	attrs := make([]slog.Attr, 0, 4)
	attrs = append(attrs,
		slog.String("job_id", event.JobID),
		slog.Int("seq", event.Seq))
	if event.TaskKey != "" {
		attrs = append(attrs, slog.String("task", event.TaskKey))
	}
	if len(event.Meta) > 0 {
		meta := make([]any, 0, len(event.Meta))
		for _, key := range slices.Sorted(maps.Keys(event.Meta)) {
			meta = append(meta, slog.Any(key, event.Meta[key]))
		}
		attrs = append(attrs, slog.Group("meta", meta...))
	}

	l.logger.LogAttrs(context.Background(), levelOf(event.Msg), event.Msg, attrs...)
}

func levelOf(msg string) slog.Level {
	switch msg {
	case MsgTaskFailed:
		return slog.LevelWarn
	case MsgJobFailed:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
