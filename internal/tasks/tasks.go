// Package tasks defines the background task types queued through asynq.
package tasks

import (
	"github.com/hibiken/asynq"
)

const (
	// TypeLogFlush drains the in-memory log sink buffers to the per-room
	// transcript files. Scheduled periodically.
	TypeLogFlush = "log:flush"
)

// NewLogFlushTask creates a log flush task. The task carries no payload; the
// handler flushes every buffered room.
func NewLogFlushTask() *asynq.Task {
	return asynq.NewTask(TypeLogFlush, nil)
}
