package digest

import "fmt"

// ValueOf lifts a plain Go value returned from caller code (a traced
// step's result, a rule argument) into the tagged Value variant. It
// covers the shapes spec.md §9 calls out for a statically-typed
// rule-argument space; anything else comes back as an error rather than
// silently falling back to reflection.
func ValueOf(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Seq(nil), nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint64:
		return Int(val), nil
	case float64:
		return Float(val), nil
	case string:
		return Str(val), nil
	case []byte:
		return Bytes(val), nil
	case Digest:
		return Bytes(val[:]), nil
	case []string:
		seq := make(Seq, len(val))
		for i, s := range val {
			seq[i] = Str(s)
		}
		return seq, nil
	case []any:
		seq := make(Seq, len(val))
		for i, elem := range val {
			ev, err := ValueOf(elem)
			if err != nil {
				return nil, err
			}
			seq[i] = ev
		}
		return seq, nil
	case map[string]any:
		m := make(Map, 0, len(val))
		for k, elem := range val {
			ev, err := ValueOf(elem)
			if err != nil {
				return nil, err
			}
			m = append(m, MapEntry{Key: Str(k), Value: ev})
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: cannot lift %T into a digest.Value", ErrUnhashable, v)
	}
}
