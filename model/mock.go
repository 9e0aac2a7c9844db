package model

import (
	"context"
	"fmt"
	"sync"
)

// MockModel is a deterministic in-memory Model for tests. Responses can be
// scripted in order (Enqueue) or keyed to the last user message
// (AddResponse); unscripted inputs get an echo completion.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	scripted  []*Response
	canned    map[string]*Response
	requests  []Request
	failureOn error
}

// NewMockModel constructs a MockModel with tool support enabled.
func NewMockModel() *MockModel {
	return &MockModel{
		info:   Info{Name: "mock", Provider: "mock", SupportsTools: true},
		canned: make(map[string]*Response),
	}
}

// Enqueue scripts the next responses in FIFO order. Scripted responses take
// precedence over canned ones.
func (m *MockModel) Enqueue(responses ...*Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripted = append(m.scripted, responses...)
}

// AddResponse registers a canned completion for an exact last-user-message.
func (m *MockModel) AddResponse(input string, resp *Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.canned[input] = resp
}

// FailWith makes every subsequent Generate call return err.
func (m *MockModel) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failureOn = err
}

// Requests returns every request seen so far, for assertions.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)

	if m.failureOn != nil {
		return nil, m.failureOn
	}
	if len(m.scripted) > 0 {
		resp := m.scripted[0]
		m.scripted = m.scripted[1:]
		return resp, nil
	}

	var lastUser string
	for _, msg := range req.Messages {
		if msg.Role == "user" {
			lastUser = msg.Content
		}
	}
	if resp, ok := m.canned[lastUser]; ok {
		return resp, nil
	}
	return &Response{
		Content:      fmt.Sprintf("Mock response to: %s", lastUser),
		FinishReason: "stop",
	}, nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
