// Package logsink buffers per-room chat events in memory and appends them to
// per-room log files on flush. Writes are fire-and-forget: a failed append is
// logged and the lines are dropped, never surfaced to the session that caused
// them. Losing unflushed lines on a crash is acceptable.
package logsink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Sink accumulates formatted lines per room until FlushAll runs.
type Sink struct {
	dir string

	mu      sync.Mutex
	buffers map[string][]string
}

// New creates the log directory if needed and returns a Sink writing under it.
func New(dir string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logsink: failed to create log dir %q: %w", dir, err)
	}
	return &Sink{dir: dir, buffers: make(map[string][]string)}, nil
}

// Record buffers one event line: ISO timestamp, room, event type, and the
// JSON payload, tab-separated.
func (s *Sink) Record(room, eventType string, ts int64, payload interface{}) {
	if room == "" {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		logrus.WithError(err).WithField("room", room).Warn("Log sink: dropping unencodable event")
		return
	}
	iso := time.UnixMilli(ts).UTC().Format(time.RFC3339Nano)
	line := fmt.Sprintf("%s\t%s\t%s\t%s\n", iso, room, eventType, raw)

	s.mu.Lock()
	s.buffers[room] = append(s.buffers[room], line)
	s.mu.Unlock()
}

// FlushAll appends every buffered line to its room file. Buffers are swapped
// out under the lock so recording never waits on file IO.
func (s *Sink) FlushAll() {
	s.mu.Lock()
	pending := s.buffers
	s.buffers = make(map[string][]string)
	s.mu.Unlock()

	for room, lines := range pending {
		if len(lines) == 0 {
			continue
		}
		s.flushRoom(room, lines)
	}
}

func (s *Sink) flushRoom(room string, lines []string) {
	file := filepath.Join(s.dir, fmt.Sprintf("room-%s.log", room))
	f, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logrus.WithError(err).WithField("file", file).Error("Log sink: failed to open room log, dropping lines")
		return
	}
	defer f.Close()
	for _, line := range lines {
		if _, err := f.WriteString(line); err != nil {
			logrus.WithError(err).WithField("file", file).Error("Log sink: failed to append room log")
			return
		}
	}
}

// Close flushes whatever is still buffered. Called once during shutdown,
// after all sessions are gone.
func (s *Sink) Close() {
	s.FlushAll()
}
