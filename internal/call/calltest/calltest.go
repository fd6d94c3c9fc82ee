// Package calltest provides an in-memory ServerCall for tests.
package calltest

import (
	"context"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmehra2102/grpcadvice/internal/call"
)

// Call records everything sent over it.
type Call struct {
	ctx    context.Context
	method string

	mu       sync.Mutex
	header   metadata.MD
	messages []any
	status   *status.Status
	trailer  metadata.MD
	closes   int
}

var _ call.ServerCall = (*Call)(nil)

// New returns a call for method bound to ctx.
func New(ctx context.Context, method string) *Call {
	return &Call{ctx: ctx, method: method}
}

func (c *Call) Context() context.Context { return c.ctx }
func (c *Call) Method() string           { return c.method }

func (c *Call) SendHeader(md metadata.MD) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != nil {
		return call.ErrCallClosed
	}
	c.header = metadata.Join(c.header, md)
	return nil
}

func (c *Call) SendMessage(msg any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != nil {
		return call.ErrCallClosed
	}
	c.messages = append(c.messages, msg)
	return nil
}

func (c *Call) Close(st *status.Status, trailer metadata.MD) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	if c.status != nil {
		return call.ErrCallClosed
	}
	if st == nil {
		st = status.New(codes.OK, "")
	}
	c.status = st
	c.trailer = trailer
	return nil
}

func (c *Call) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status != nil
}

// Status returns the close status, or nil when the call is open.
func (c *Call) Status() *status.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Trailer returns the trailer passed to Close.
func (c *Call) Trailer() metadata.MD {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trailer
}

// Header returns the headers sent so far.
func (c *Call) Header() metadata.MD {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.header
}

// Messages returns the messages sent so far.
func (c *Call) Messages() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]any(nil), c.messages...)
}

// CloseAttempts counts every Close invocation, including rejected ones.
func (c *Call) CloseAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// Recorder is a listener that records the events it receives and can be
// told to fail any of them.
type Recorder struct {
	mu     sync.Mutex
	events []string
	msgs   []any

	MessageErr   error
	HalfCloseErr error
	CancelErr    error
	CompleteErr  error
	ReadyErr     error

	// PanicOn makes the named callback panic with PanicValue.
	PanicOn    string
	PanicValue any
}

var _ call.Listener = (*Recorder)(nil)

func (r *Recorder) record(event string) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	if r.PanicOn == event {
		panic(r.PanicValue)
	}
}

func (r *Recorder) OnMessage(msg any) error {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
	r.record("message")
	return r.MessageErr
}

func (r *Recorder) OnHalfClose() error {
	r.record("half_close")
	return r.HalfCloseErr
}

func (r *Recorder) OnCancel() error {
	r.record("cancel")
	return r.CancelErr
}

func (r *Recorder) OnComplete() error {
	r.record("complete")
	return r.CompleteErr
}

func (r *Recorder) OnReady() error {
	r.record("ready")
	return r.ReadyErr
}

// Events returns the callback names in invocation order.
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// Received returns the messages passed to OnMessage.
func (r *Recorder) Received() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.msgs...)
}
