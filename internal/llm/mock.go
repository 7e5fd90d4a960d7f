package llm

import (
	"context"
	"errors"
	"sync"
)

// MockReply is a canned reply for Mock.
type MockReply struct {
	Content string
	Err     error
}

// MockCall records one Chat invocation.
type MockCall struct {
	Messages []Message
	Options  Options
}

// Mock is a deterministic Chatter for tests.
// It returns canned replies in FIFO order and records all calls.
type Mock struct {
	mu      sync.Mutex
	replies []MockReply
	Calls   []MockCall
}

// NewMock creates a Mock with the given canned replies.
func NewMock(replies ...MockReply) *Mock {
	return &Mock{replies: replies}
}

// Chat returns the next canned reply, or an UpstreamError once the queue is
// empty.
func (m *Mock) Chat(_ context.Context, messages []Message, opts Options) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Messages: messages, Options: opts})

	if len(m.replies) == 0 {
		return "", &UpstreamError{StatusCode: 503, Err: errNoReplies}
	}

	reply := m.replies[0]
	m.replies = m.replies[1:]
	if reply.Err != nil {
		return "", reply.Err
	}
	return reply.Content, nil
}

// AddReply appends a canned reply to the queue.
func (m *Mock) AddReply(reply MockReply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, reply)
}

// CallCount returns the number of Chat calls made.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

var errNoReplies = errors.New("mock: no canned replies left")
