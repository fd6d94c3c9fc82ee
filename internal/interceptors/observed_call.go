package interceptors

import (
	"context"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmehra2102/grpcadvice/internal/call"
)

var (
	droppedStatus   = status.New(codes.Internal, "call dropped before completion")
	cancelledStatus = status.New(codes.Canceled, "call cancelled")
)

// track starts the call through next and runs done exactly once when the
// call ends: on OnComplete or OnCancel, or right away if next fails. done
// receives the status the call was closed with.
func track(c call.ServerCall, ctx context.Context, md metadata.MD, next call.CallHandler, done func(st *status.Status)) call.StartResult {
	if ctx == nil {
		ctx = c.Context()
	}
	observed := &observedCall{ServerCall: c, ctx: ctx}

	l, err := next.StartCall(observed, md)
	if err != nil {
		done(droppedStatus)
		return call.Failed(err)
	}
	if l == nil {
		l = call.Inert{}
	}

	return call.Started(&finishListener{
		Forwarding: call.Forwarding{Delegate: l},
		call:       observed,
		done:       done,
	})
}

// observedCall remembers the status of the first successful Close and can
// replace the call context.
type observedCall struct {
	call.ServerCall
	ctx context.Context

	mu sync.Mutex
	st *status.Status
}

func (c *observedCall) Context() context.Context {
	return c.ctx
}

func (c *observedCall) Close(st *status.Status, trailer metadata.MD) error {
	if err := c.ServerCall.Close(st, trailer); err != nil {
		return err
	}
	if st == nil {
		st = status.New(codes.OK, "")
	}
	c.mu.Lock()
	c.st = st
	c.mu.Unlock()
	return nil
}

func (c *observedCall) status() *status.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st
}

type finishListener struct {
	call.Forwarding
	call *observedCall
	once sync.Once
	done func(st *status.Status)
}

func (l *finishListener) OnCancel() error {
	err := l.Delegate.OnCancel()
	l.finish(cancelledStatus)
	return err
}

func (l *finishListener) OnComplete() error {
	err := l.Delegate.OnComplete()
	l.finish(droppedStatus)
	return err
}

func (l *finishListener) finish(fallback *status.Status) {
	l.once.Do(func() {
		st := l.call.status()
		if st == nil {
			st = fallback
		}
		l.done(st)
	})
}
