// Package advice resolves errors raised during a call into gRPC statuses and
// completes the call with them.
package advice

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// ErrDuplicateAdvice is returned when an error target is registered twice.
var ErrDuplicateAdvice = errors.New("advice already registered")

// Func maps an error to the status and trailers a call is closed with.
type Func func(ctx context.Context, err error) (*status.Status, metadata.MD)

type entry struct {
	key   any
	match func(err error) (error, bool)
	fn    Func
}

// Registry holds advice in registration order. The first matching entry
// wins. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries []entry
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Handle registers fn for errors matching target with errors.Is.
func (r *Registry) Handle(target error, fn Func) error {
	if target == nil || fn == nil {
		return errors.New("advice: nil target or func")
	}
	return r.add(entry{
		key: target,
		match: func(err error) (error, bool) {
			return err, errors.Is(err, target)
		},
		fn: fn,
	}, target.Error())
}

// HandleAs registers fn for errors matching type T with errors.As. fn
// receives the matched value.
func HandleAs[T error](r *Registry, fn func(ctx context.Context, err T) (*status.Status, metadata.MD)) error {
	if fn == nil {
		return errors.New("advice: nil func")
	}
	typ := reflect.TypeFor[T]()
	return r.add(entry{
		key: typ,
		match: func(err error) (error, bool) {
			var target T
			if errors.As(err, &target) {
				return target, true
			}
			return nil, false
		},
		fn: func(ctx context.Context, err error) (*status.Status, metadata.MD) {
			return fn(ctx, err.(T))
		},
	}, typ.String())
}

func (r *Registry) add(e entry, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.entries {
		if sameKey(existing.key, e.key) {
			return fmt.Errorf("%w: %s", ErrDuplicateAdvice, name)
		}
	}
	r.entries = append(r.entries, e)
	return nil
}

// Resolve runs the first advice matching err. ok is false when none matches.
func (r *Registry) Resolve(ctx context.Context, err error) (st *status.Status, trailer metadata.MD, ok bool) {
	r.mu.RLock()
	entries := r.entries
	r.mu.RUnlock()

	for _, e := range entries {
		if matched, hit := e.match(err); hit {
			st, trailer = e.fn(ctx, matched)
			return st, trailer, true
		}
	}
	return nil, nil, false
}

// Len returns the number of registered advice.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Code returns advice that closes the call with code and the error text.
func Code(c codes.Code) Func {
	return func(_ context.Context, err error) (*status.Status, metadata.MD) {
		return status.New(c, err.Error()), nil
	}
}

func sameKey(a, b any) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
