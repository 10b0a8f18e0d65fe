package future

import "nobs/internal/errorlog"

// LiftToFuture accepts a future (returned as-is), a Generator (wrapped as a
// Coroutine), a Result (wrapped as a Done future with that outcome), or any
// other value (wrapped as a success future with one positional value), per
// spec.md §4.B.
func LiftToFuture(owner *Task, v any) *Future {
	switch val := v.(type) {
	case *Future:
		return val
	case Generator:
		return NewCoroutine(owner, val)
	case Result:
		return NewDone(val)
	default:
		return NewDone(Success(val))
	}
}

// All joins futures: success carries their concatenated positional values
// and merged keyed values; failure short-circuits to the first failure in
// argument order (spec.md §4.B).
func All(owner *Task, futures ...*Future) *Future {
	return New(owner, func(inputs []*Future) (any, error) {
		var values []any
		keyed := map[string]any{}
		for _, in := range inputs {
			r := in.Result()
			if !r.OK {
				if errorlog.IsAbortImmediately(r.Err) {
					return nil, r.Err
				}
				return r, nil
			}
			values = append(values, r.Values...)
			for k, v := range r.Keyed {
				keyed[k] = v
			}
		}
		return SuccessKeyed(values, keyed), nil
	}, futures...)
}

// WhenDone returns a zero-value success once every input is Done,
// regardless of their outcome.
func WhenDone(owner *Task, futures ...*Future) *Future {
	return New(owner, func([]*Future) (any, error) {
		return Success(), nil
	}, futures...)
}

// WhenSucceeded returns a zero-value success if every input succeeded,
// else the first failure in argument order.
func WhenSucceeded(owner *Task, futures ...*Future) *Future {
	return New(owner, func(inputs []*Future) (any, error) {
		for _, in := range inputs {
			if r := in.Result(); !r.OK {
				if errorlog.IsAbortImmediately(r.Err) {
					return nil, r.Err
				}
				return r, nil
			}
		}
		return Success(), nil
	}, futures...)
}

// Bind waits on arg, then invokes f either with the unwrapped success
// values (unwrap=true) or with the raw Result (unwrap=false), lifting f's
// return value to a future (spec.md §4.B). Invariant-violation and
// cancellation never reach f: they re-raise immediately instead of being
// handed to user code as an ordinary Result it could catch and convert.
func Bind(owner *Task, arg *Future, unwrap bool, f func(any) (any, error)) *Future {
	return New(owner, func(inputs []*Future) (any, error) {
		r := inputs[0].Result()
		if !r.OK && errorlog.IsAbortImmediately(r.Err) {
			return nil, r.Err
		}
		var in any
		if unwrap {
			if !r.OK {
				return r, nil
			}
			if len(r.Values) == 1 {
				in = r.Values[0]
			} else {
				in = r.Values
			}
		} else {
			in = r
		}
		out, err := f(in)
		if err != nil {
			return nil, err
		}
		return LiftToFuture(owner, out), nil
	}, arg)
}
