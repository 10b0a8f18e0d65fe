package future

// Promise is a user-writable future whose final value is provided by a
// Satisfy call naming another future (or concrete values) to proxy
// (spec.md §4.B).
type Promise struct {
	f *Future
}

// NewPromise creates an unresolved promise owned by task (nil for a
// promise resolved outside any task's draining loop).
func NewPromise(owner *Task) *Promise {
	f := &Future{owner: owner, state: Pending, pendingCount: 1}
	return &Promise{f: f}
}

// Future returns the handle callers should depend on / wait on.
func (p *Promise) Future() *Future { return p.f }

// Satisfy resolves the promise. target may be a *Future (the promise
// proxies it, copying its eventual result verbatim), a Result, or any
// other value (wrapped as a one-value success), matching LiftToFuture's
// contract.
func (p *Promise) Satisfy(target any) {
	switch v := target.(type) {
	case *Future:
		p.f.mu.Lock()
		p.f.state = Fireable
		p.f.mu.Unlock()
		p.f.becomeProxy(v)
	case Result:
		p.resolveSelf(v)
	default:
		p.resolveSelf(Success(v))
	}
}

func (p *Promise) resolveSelf(r Result) {
	p.f.mu.Lock()
	p.f.state = Fireable
	p.f.mu.Unlock()
	p.f.resolve(r)
}
