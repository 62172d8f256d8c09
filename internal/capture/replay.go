package capture

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/leshachaplin/mouselog/internal/domain"
)

// RecordedEvent is one line of a raw input recording.
type RecordedEvent struct {
	Type      domain.EventType `json:"type"`
	Timestamp int64            `json:"timestamp"`
	X         int              `json:"x"`
	Y         int              `json:"y"`
	Target    *StaticElement   `json:"target,omitempty"`
	Extra
}

func (r RecordedEvent) Raw() RawEvent {
	raw := RawEvent{
		Type:  r.Type,
		X:     r.X,
		Y:     r.Y,
		Extra: r.Extra,
	}
	if r.Timestamp > 0 {
		raw.At = time.UnixMilli(r.Timestamp)
	}
	if r.Target != nil {
		raw.Target = r.Target
	}
	return raw
}

type StaticElement struct {
	Tag   string            `json:"tag"`
	Attrs map[string]string `json:"attrs,omitempty"`
	Text  string            `json:"text,omitempty"`
}

func (e *StaticElement) TagName() string { return e.Tag }

func (e *StaticElement) Attribute(name string) (string, bool) {
	v, ok := e.Attrs[name]
	return v, ok
}

func (e *StaticElement) InnerText() string { return e.Text }

type StaticViewport struct {
	Width  uint32
	Height uint32
}

func (v StaticViewport) Size() (uint32, uint32, error) {
	return v.Width, v.Height, nil
}

type ReplayOptions struct {
	// BatchSize flushes the buffer once this many records are pending; zero
	// leaves batching to the debounce timer alone.
	BatchSize int
	// Realtime sleeps between events as long as the recording did.
	Realtime bool
}

type ReplayStats struct {
	Read     int
	Recorded int
	Skipped  int
}

// Replay feeds a recording through rec line by line and flushes at the end.
func Replay(ctx context.Context, src io.Reader, rec *Recorder, opts ReplayOptions) (ReplayStats, error) {
	var (
		stats ReplayStats
		prev  int64
	)

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for line := 1; scanner.Scan(); line++ {
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}

		var recorded RecordedEvent
		if err := json.Unmarshal(data, &recorded); err != nil {
			return stats, fmt.Errorf("decode line %d: %w", line, err)
		}
		stats.Read++

		if opts.Realtime && prev > 0 && recorded.Timestamp > prev {
			if err := sleep(ctx, time.Duration(recorded.Timestamp-prev)*time.Millisecond); err != nil {
				return stats, err
			}
		} else if err := ctx.Err(); err != nil {
			return stats, err
		}
		prev = recorded.Timestamp

		if _, err := rec.Handle(recorded.Raw()); err != nil {
			stats.Skipped++
			continue
		}
		stats.Recorded++

		if opts.BatchSize > 0 && rec.buffer.Pending() >= opts.BatchSize {
			rec.Flush()
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("scan recording: %w", err)
	}

	rec.Flush()
	return stats, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
