package pipeline

import (
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/2SCloud/scloud-dns/internal/wire"
)

// Task carries one query through the stage pipeline, from Listener to
// Sender. Every stage log line is keyed on TaskID so a single query's
// path through the pipeline can be reconstructed from logs alone.
type Task struct {
	TaskID    string
	ForWho    net.Addr
	Raw       []byte
	Query     *wire.Message
	Response  *wire.Message
	CreatedAt time.Time
	Deadline  time.Time
	Attempts  int

	authoritative bool
	cacheKey      uint64
	cacheable     bool
}

// NewTask wraps a raw datagram read by the listener.
func NewTask(raw []byte, forWho net.Addr, deadline time.Time) *Task {
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return &Task{
		TaskID:    uuid.NewString(),
		ForWho:    forWho,
		Raw:       cp,
		CreatedAt: time.Now(),
		Deadline:  deadline,
	}
}

// Expired reports whether the task's deadline has passed.
func (t *Task) Expired() bool {
	return !t.Deadline.IsZero() && time.Now().After(t.Deadline)
}
