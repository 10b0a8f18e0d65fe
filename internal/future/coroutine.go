package future

import "nobs/internal/errorlog"

// Generator drives one step of a coroutine. Next resumes the generator
// with the previous yielded future's success value (sent), or throws err
// into the generator if that future failed. It returns either the next
// yielded object (ok=true, to be lifted to a future and awaited) or the
// generator's final return value (ok=false).
type Generator interface {
	Next(sent any, thrown error) (yielded any, ok bool, ret any, err error)
}

// NewCoroutine drives gen to completion as a chain of proxies (spec.md
// §4.B "Coroutines"): each step resumes gen, lifts whatever it yields to a
// future, awaits it, and re-enters gen with that future's outcome. The
// returned future resolves to gen's final return value, or to the first
// error gen returns without catching.
func NewCoroutine(owner *Task, gen Generator) *Future {
	var step func(sent any, thrown error) *Future
	step = func(sent any, thrown error) *Future {
		yielded, ok, ret, err := gen.Next(sent, thrown)
		if err != nil {
			return NewDone(Failure(err, ownerName(owner)))
		}
		if !ok {
			return NewDone(Success(ret))
		}

		inner := LiftToFuture(owner, yielded)
		return New(owner, func(inputs []*Future) (any, error) {
			r := inputs[0].Result()
			if !r.OK {
				// Invariant-violation and cancellation are never thrown into
				// the generator for it to catch: they re-raise immediately
				// and propagate straight out as this future's own failure.
				if errorlog.IsAbortImmediately(r.Err) {
					return nil, r.Err
				}
				return step(nil, r.Err), nil
			}
			return step(unwrapSingle(r.Values), nil), nil
		}, inner)
	}
	return step(nil, nil)
}

func unwrapSingle(values []any) any {
	switch len(values) {
	case 0:
		return nil
	case 1:
		return values[0]
	default:
		return values
	}
}

func ownerName(t *Task) string {
	if t == nil {
		return ""
	}
	return t.Name
}

// FuncGenerator adapts an ordinary Go function with a yield callback into a
// Generator, following spec.md §9's guidance for targets without native
// coroutines: each yield point becomes a labelled continuation. Here the
// continuation is implemented with a goroutine blocked on a channel rather
// than a hand-written state machine, since Go can express the suspension
// point directly.
type FuncGenerator struct {
	body     func(yield func(any) (any, error)) (any, error)
	toBody   chan resumeMsg
	fromBody chan stepMsg
	started  bool
}

type resumeMsg struct {
	sent   any
	thrown error
}

type stepMsg struct {
	yielded any
	done    bool
	ret     any
	err     error
}

// NewFuncGenerator wraps body. Inside body, call yield(v) to suspend: it
// returns either the value subsequently sent into Next, or the error
// thrown into Next.
func NewFuncGenerator(body func(yield func(any) (any, error)) (any, error)) *FuncGenerator {
	return &FuncGenerator{
		body:     body,
		toBody:   make(chan resumeMsg),
		fromBody: make(chan stepMsg),
	}
}

func (g *FuncGenerator) start() {
	g.started = true
	go func() {
		yield := func(v any) (any, error) {
			g.fromBody <- stepMsg{yielded: v}
			msg := <-g.toBody
			if msg.thrown != nil {
				return nil, msg.thrown
			}
			return msg.sent, nil
		}
		ret, err := g.body(yield)
		g.fromBody <- stepMsg{done: true, ret: ret, err: err}
	}()
}

func (g *FuncGenerator) Next(sent any, thrown error) (yielded any, ok bool, ret any, err error) {
	if !g.started {
		g.start()
	} else {
		g.toBody <- resumeMsg{sent: sent, thrown: thrown}
	}
	msg := <-g.fromBody
	if msg.done {
		return nil, false, msg.ret, msg.err
	}
	return msg.yielded, true, nil, nil
}
