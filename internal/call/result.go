package call

// StartResult is the outcome of intercepting a call start: either a listener
// or the error that prevented one from being created.
type StartResult struct {
	listener Listener
	err      error
}

// Started returns a successful result.
func Started(l Listener) StartResult {
	return StartResult{listener: l}
}

// Failed returns a failed result. A nil err still marks the result failed.
func Failed(err error) StartResult {
	if err == nil {
		err = errNoListener
	}
	return StartResult{err: err}
}

// OK reports whether the call was started.
func (r StartResult) OK() bool {
	return r.err == nil && r.listener != nil
}

// Err returns the setup failure, or nil.
func (r StartResult) Err() error {
	if r.err == nil && r.listener == nil {
		return errNoListener
	}
	return r.err
}

// Listener returns the started listener. It never returns nil: a failed
// result yields Inert.
func (r StartResult) Listener() Listener {
	if !r.OK() {
		return Inert{}
	}
	return r.listener
}
