package subpub

import (
	"io"
	"log/slog"
	"sync"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingSubscriber keeps every message delivered to it.
type recordingSubscriber struct {
	mu   sync.Mutex
	msgs []*Message
}

func (r *recordingSubscriber) Deliver(msg *Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recordingSubscriber) received() []*Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Message(nil), r.msgs...)
}

// panickingSubscriber fails every delivery.
type panickingSubscriber struct{}

func (*panickingSubscriber) Deliver(*Message) {
	panic("subscriber exploded")
}
