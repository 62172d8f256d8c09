package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/leshachaplin/mouselog/internal/domain"
)

const (
	defaultFileMode = 0o644
	defaultDirMode  = 0o755
	maxLineSize     = 1 << 20
)

type Config struct {
	Path string `yaml:"path"`
	// Sync forces an fsync after every appended batch.
	Sync bool `yaml:"sync"`
}

// Log is an append-only newline delimited JSON file. Every Append holds one
// lock for the whole batch, so lines of concurrent batches never interleave.
type Log struct {
	path string
	sync bool

	mu sync.Mutex
}

func New(cfg Config) (*Log, error) {
	if cfg.Path == "" {
		return nil, errors.New("event log path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), defaultDirMode); err != nil {
		return nil, errors.Wrap(err, "mkdir event log dir")
	}

	return &Log{
		path: cfg.Path,
		sync: cfg.Sync,
	}, nil
}

func (l *Log) Path() string {
	return l.path
}

// Append writes events in the given order, one compact JSON object per line.
// Lines written before a failure are kept.
func (l *Log) Append(_ context.Context, events []domain.Event) (err error) {
	if len(events) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, defaultFileMode)
	if err != nil {
		return errors.Wrap(err, "open event log")
	}
	defer func() {
		if errClose := f.Close(); errClose != nil && err == nil {
			err = errors.Wrap(errClose, "close event log")
		}
	}()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	for i := range events {
		if err = enc.Encode(&events[i]); err != nil {
			err = errors.Wrapf(err, "encode event %s", events[i].EventID)
			if errFlush := w.Flush(); errFlush != nil {
				return errors.Wrap(errFlush, "flush event log")
			}
			return err
		}
	}

	if err = w.Flush(); err != nil {
		return errors.Wrap(err, "flush event log")
	}
	if l.sync {
		if err = f.Sync(); err != nil {
			return errors.Wrap(err, "sync event log")
		}
	}
	return nil
}

// ReadAll decodes every line of the log. A missing file is an empty log.
func (l *Log) ReadAll(ctx context.Context) ([]domain.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "open event log")
	}
	defer f.Close()

	events := make([]domain.Event, 0)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for line := 1; scanner.Scan(); line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}
		var event domain.Event
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, errors.Wrapf(err, "decode line %d", line)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scan event log")
	}
	return events, nil
}
