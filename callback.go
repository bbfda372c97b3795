package xstage

// Callback is notified once per Process call with the final status of
// that invocation. It may run on the caller's goroutine or, for
// asynchronous work, on whatever goroutine detected completion.
type Callback interface {
	OnComplete(s *Stage, p *Params, err error)
}

// CallbackFunc adapts a function to Callback.
//
//	s.SetCallback(xstage.CallbackFunc(func(s *xstage.Stage, p *xstage.Params, err error) {
//	    next.Process(xstage.NewParams(p.Out(), nil), false)
//	    p.Release()
//	}))
type CallbackFunc func(s *Stage, p *Params, err error)

// OnComplete calls f(s, p, err).
func (f CallbackFunc) OnComplete(s *Stage, p *Params, err error) {
	f(s, p, err)
}
