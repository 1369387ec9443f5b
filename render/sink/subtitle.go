package sink

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dshills/filmstrip-go/render"
)

// SRTSubtitler writes picture comments as a SubRip file next to the output
// ("<output>.srt"). Pictures without a comment get no cue. The renderers of
// this package remove the file again when a render is aborted.
type SRTSubtitler struct{}

// WriteSubtitles implements render.Subtitler.
func (SRTSubtitler) WriteSubtitles(ctx context.Context, outputPath string, pictures []render.Picture, scaleFactor float64) error {
	path := SubtitlePath(outputPath)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create subtitle file: %w", err)
	}

	w := bufio.NewWriter(f)
	var start time.Duration
	cue := 1
	for _, pic := range pictures {
		if err := ctx.Err(); err != nil {
			_ = f.Close()
			return err
		}
		length := time.Duration(pic.Duration() * scaleFactor * float64(time.Second))
		if text := strings.TrimSpace(pic.Comment()); text != "" {
			fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n", cue, srtTime(start), srtTime(start+length), text)
			cue++
		}
		start += length
	}

	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write subtitle file: %w", err)
	}
	return f.Close()
}

// SubtitlePath returns the subtitle file written for outputPath.
func SubtitlePath(outputPath string) string {
	return outputPath + ".srt"
}

// removeSubtitles deletes the subtitle file of outputPath if there is one.
func removeSubtitles(outputPath string) error {
	if err := os.Remove(SubtitlePath(outputPath)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove subtitles: %w", err)
	}
	return nil
}

func srtTime(d time.Duration) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d,%03d", ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}
