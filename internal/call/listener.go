package call

// Inert is a listener that ignores every event.
type Inert struct{}

func (Inert) OnMessage(any) error { return nil }
func (Inert) OnHalfClose() error  { return nil }
func (Inert) OnCancel() error     { return nil }
func (Inert) OnComplete() error   { return nil }
func (Inert) OnReady() error      { return nil }

// Forwarding passes every event to Delegate. Embed it and override the
// callbacks that need extra behavior.
type Forwarding struct {
	Delegate Listener
}

func (f Forwarding) OnMessage(msg any) error { return f.Delegate.OnMessage(msg) }
func (f Forwarding) OnHalfClose() error      { return f.Delegate.OnHalfClose() }
func (f Forwarding) OnCancel() error         { return f.Delegate.OnCancel() }
func (f Forwarding) OnComplete() error       { return f.Delegate.OnComplete() }
func (f Forwarding) OnReady() error          { return f.Delegate.OnReady() }

// ListenerFuncs builds a listener from optional callbacks. Nil fields are no-ops.
type ListenerFuncs struct {
	Message   func(msg any) error
	HalfClose func() error
	Cancel    func() error
	Complete  func() error
	Ready     func() error
}

func (l ListenerFuncs) OnMessage(msg any) error {
	if l.Message == nil {
		return nil
	}
	return l.Message(msg)
}

func (l ListenerFuncs) OnHalfClose() error { return invoke(l.HalfClose) }
func (l ListenerFuncs) OnCancel() error    { return invoke(l.Cancel) }
func (l ListenerFuncs) OnComplete() error  { return invoke(l.Complete) }
func (l ListenerFuncs) OnReady() error     { return invoke(l.Ready) }

func invoke(fn func() error) error {
	if fn == nil {
		return nil
	}
	return fn()
}
