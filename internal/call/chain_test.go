package call_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"

	"github.com/dmehra2102/grpcadvice/internal/call"
	"github.com/dmehra2102/grpcadvice/internal/call/calltest"
)

func TestIntercept_OrderIsOutermostFirst(t *testing.T) {
	t.Parallel()

	var order []string
	tag := func(name string) call.ServerInterceptor {
		return call.InterceptorFunc(func(c call.ServerCall, md metadata.MD, next call.CallHandler) call.StartResult {
			order = append(order, name)
			l, err := next.StartCall(c, md)
			if err != nil {
				return call.Failed(err)
			}
			return call.Started(l)
		})
	}

	rec := &calltest.Recorder{}
	handler := call.Intercept(call.CallHandlerFunc(func(call.ServerCall, metadata.MD) (call.Listener, error) {
		order = append(order, "handler")
		return rec, nil
	}), tag("first"), tag("second"))

	l, err := handler.StartCall(calltest.New(context.Background(), "/svc/M"), metadata.MD{})
	require.NoError(t, err)
	assert.Same(t, rec, l)
	assert.Equal(t, []string{"first", "second", "handler"}, order)
}

func TestIntercept_FailedStartYieldsInert(t *testing.T) {
	t.Parallel()

	failing := call.InterceptorFunc(func(call.ServerCall, metadata.MD, call.CallHandler) call.StartResult {
		return call.Failed(errors.New("boom"))
	})

	handler := call.Intercept(call.CallHandlerFunc(func(call.ServerCall, metadata.MD) (call.Listener, error) {
		t.Fatal("handler must not run")
		return nil, nil
	}), failing)

	l, err := handler.StartCall(calltest.New(context.Background(), "/svc/M"), nil)
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Equal(t, call.Inert{}, l)
}

func TestIntercept_NoInterceptorsReturnsHandler(t *testing.T) {
	t.Parallel()

	h := call.CallHandlerFunc(func(call.ServerCall, metadata.MD) (call.Listener, error) {
		return call.Inert{}, nil
	})
	got := call.Intercept(h)
	_, err := got.StartCall(calltest.New(context.Background(), "/svc/M"), nil)
	require.NoError(t, err)
}

func TestStartResult(t *testing.T) {
	t.Parallel()

	rec := &calltest.Recorder{}

	ok := call.Started(rec)
	assert.True(t, ok.OK())
	assert.NoError(t, ok.Err())
	assert.Same(t, rec, ok.Listener())

	cause := errors.New("setup failed")
	failed := call.Failed(cause)
	assert.False(t, failed.OK())
	assert.ErrorIs(t, failed.Err(), cause)
	assert.Equal(t, call.Inert{}, failed.Listener())

	nilStarted := call.Started(nil)
	assert.False(t, nilStarted.OK())
	assert.Error(t, nilStarted.Err())
	assert.NotNil(t, nilStarted.Listener())

	assert.Error(t, call.Failed(nil).Err())
}

func TestInertCallbacksAreNoOps(t *testing.T) {
	t.Parallel()

	var l call.Listener = call.Inert{}
	assert.NotPanics(t, func() {
		assert.NoError(t, l.OnMessage("x"))
		assert.NoError(t, l.OnHalfClose())
		assert.NoError(t, l.OnCancel())
		assert.NoError(t, l.OnComplete())
		assert.NoError(t, l.OnReady())
	})
}

func TestForwardingPassesEverything(t *testing.T) {
	t.Parallel()

	rec := &calltest.Recorder{HalfCloseErr: errors.New("half")}
	f := call.Forwarding{Delegate: rec}

	require.NoError(t, f.OnReady())
	require.NoError(t, f.OnMessage(42))
	require.EqualError(t, f.OnHalfClose(), "half")
	require.NoError(t, f.OnComplete())
	require.NoError(t, f.OnCancel())

	assert.Equal(t, []string{"ready", "message", "half_close", "complete", "cancel"}, rec.Events())
	assert.Equal(t, []any{42}, rec.Received())
}

func TestListenerFuncsNilFieldsAreNoOps(t *testing.T) {
	t.Parallel()

	var got any
	l := call.ListenerFuncs{Message: func(msg any) error { got = msg; return nil }}

	require.NoError(t, l.OnMessage("hello"))
	require.NoError(t, l.OnHalfClose())
	require.NoError(t, l.OnCancel())
	require.NoError(t, l.OnComplete())
	require.NoError(t, l.OnReady())
	assert.Equal(t, "hello", got)
}

func TestCallError(t *testing.T) {
	t.Parallel()

	cause := errors.New("db down")
	err := &call.CallError{Method: "/svc/M", Phase: call.PhaseHalfClose, Cause: cause}

	assert.ErrorIs(t, err, cause)
	assert.False(t, err.Panicked())
	assert.Equal(t, "/svc/M: half_close failed: db down", err.Error())

	p := &call.CallError{Method: "/svc/M", Phase: call.PhaseMessage, Cause: errors.New("nil map"), Panic: "nil map"}
	assert.True(t, p.Panicked())
	assert.Contains(t, p.Error(), "panic during message")

	assert.False(t, call.PhaseSetup.InFlight())
	for _, ph := range []call.Phase{call.PhaseMessage, call.PhaseHalfClose, call.PhaseCancel, call.PhaseComplete, call.PhaseReady} {
		assert.True(t, ph.InFlight(), ph.String())
	}
	assert.Equal(t, "unknown", call.Phase(0).String())
}
