// In file: internal/agent/transcript.go
package agent

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Leogelv/danang-expat-hub-sub000/internal/conversation"
	"github.com/Leogelv/danang-expat-hub-sub000/internal/metrics"
)

// transcript persists the messages of one turn in the background. Writes run in
// the order they were queued. A failed write is sent to errs, which is only ever
// logged: nothing a transcript does can change the outcome of the turn.
type transcript struct {
	store          ConversationStore
	conversationID string
	timeout        time.Duration
	drain          time.Duration
	metrics        *metrics.Metrics

	mu      sync.Mutex
	pending []func(context.Context) error
	closed  bool
	wake    chan struct{}

	errs chan error
	done chan struct{}
	once sync.Once
}

// startTranscript starts the writer. With an empty conversation id every append
// is dropped. Each write gets timeout; Close waits at most drain for the queue.
func startTranscript(ctx context.Context, store ConversationStore, conversationID string, timeout, drain time.Duration, m *metrics.Metrics) *transcript {
	t := &transcript{
		store:          store,
		conversationID: conversationID,
		timeout:        timeout,
		drain:          drain,
		metrics:        m,
		wake:           make(chan struct{}, 1),
		errs:           make(chan error, 16),
		done:           make(chan struct{}),
	}
	if conversationID == "" {
		close(t.done)
		return t
	}

	go func() {
		defer close(t.errs)
		for {
			write, ok := t.next()
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, t.timeout)
			err := write(wctx)
			cancel()
			if err != nil {
				t.errs <- err
			}
		}
	}()
	go func() {
		defer close(t.done)
		for err := range t.errs {
			log.Printf("WARNING: transcript write for conversation %s dropped: %v", t.conversationID, err)
			t.metrics.TranscriptWriteFailed()
		}
	}()
	return t
}

// next blocks until a write is queued. It reports false once the transcript is
// closed and the queue is empty.
func (t *transcript) next() (func(context.Context) error, bool) {
	for {
		t.mu.Lock()
		if len(t.pending) > 0 {
			write := t.pending[0]
			t.pending = t.pending[1:]
			t.mu.Unlock()
			return write, true
		}
		closed := t.closed
		t.mu.Unlock()
		if closed {
			return nil, false
		}
		<-t.wake
	}
}

func (t *transcript) enqueue(write func(context.Context) error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.pending = append(t.pending, write)
	t.mu.Unlock()
	t.signal()
}

func (t *transcript) signal() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

func (t *transcript) enabled() bool {
	return t.conversationID != ""
}

// append queues a message of the conversation. It never blocks on the store.
func (t *transcript) append(m conversation.Message) {
	if !t.enabled() {
		return
	}
	m.ConversationID = t.conversationID
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	t.enqueue(func(ctx context.Context) error {
		return t.store.AppendMessage(ctx, m)
	})
}

// touch queues an update of the conversation's recency.
func (t *transcript) touch() {
	if !t.enabled() {
		return
	}
	id := t.conversationID
	t.enqueue(func(ctx context.Context) error {
		return t.store.Touch(ctx, id)
	})
}

// Close stops accepting writes and waits until every queued write has been
// attempted, or until the drain time is up. Writes still queued at that point
// keep running in the background. It is safe to call more than once.
func (t *transcript) Close() {
	t.once.Do(func() {
		t.mu.Lock()
		t.closed = true
		t.mu.Unlock()
		t.signal()
	})
	if t.drain <= 0 {
		<-t.done
		return
	}
	timer := time.NewTimer(t.drain)
	defer timer.Stop()
	select {
	case <-t.done:
	case <-timer.C:
		t.mu.Lock()
		left := len(t.pending)
		t.mu.Unlock()
		log.Printf("WARNING: transcript of conversation %s still draining after %s, %d writes left in the background.", t.conversationID, t.drain, left)
	}
}
