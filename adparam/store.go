package adparam

import "fmt"

// Value holds the value of one parameter.  Only the field matching Kind is meaningful.
type Value struct {
	Kind   Kind    `json:"kind"`
	Int    int     `json:"int,omitempty"`
	Float  float64 `json:"f64,omitempty"`
	String string  `json:"str,omitempty"`
}

// Interface returns the meaningful field of v
func (v Value) Interface() interface{} {
	switch v.Kind {
	case Int:
		return v.Int
	case Float:
		return v.Float
	default:
		return v.String
	}
}

// Change is a parameter and its new value
type Change struct {
	Param Param
	Value Value
}

// Subscriber receives the parameters changed since the previous callback
type Subscriber func([]Change)

// Store is a table of parameter values with change tracking
type Store struct {
	values [numParams]Value
	dirty  [numParams]bool
	subs   map[int]Subscriber
	nextID int
}

// NewStore returns a Store with every parameter at its zero value
func NewStore() *Store {
	s := &Store{subs: make(map[int]Subscriber)}
	for idx := range s.values {
		s.values[idx].Kind = defs[idx].kind
	}
	return s
}

func (s *Store) check(p Param, k Kind) error {
	if !p.valid() {
		return fmt.Errorf("%w: %d", ErrUnknownParam, int(p))
	}
	if defs[p].kind != k {
		return fmt.Errorf("%w: %s is %s, not %s", ErrWrongKind, p, defs[p].kind, k)
	}
	return nil
}

// SetInt stages an integer value
func (s *Store) SetInt(p Param, v int) error {
	if err := s.check(p, Int); err != nil {
		return err
	}
	if s.values[p].Int != v {
		s.values[p].Int = v
		s.dirty[p] = true
	}
	return nil
}

// SetFloat stages a float value
func (s *Store) SetFloat(p Param, v float64) error {
	if err := s.check(p, Float); err != nil {
		return err
	}
	if s.values[p].Float != v {
		s.values[p].Float = v
		s.dirty[p] = true
	}
	return nil
}

// SetString stages a string value
func (s *Store) SetString(p Param, v string) error {
	if err := s.check(p, String); err != nil {
		return err
	}
	if s.values[p].String != v {
		s.values[p].String = v
		s.dirty[p] = true
	}
	return nil
}

// Int reads an integer value
func (s *Store) Int(p Param) (int, error) {
	if err := s.check(p, Int); err != nil {
		return 0, err
	}
	return s.values[p].Int, nil
}

// Float reads a float value
func (s *Store) Float(p Param) (float64, error) {
	if err := s.check(p, Float); err != nil {
		return 0, err
	}
	return s.values[p].Float, nil
}

// Str reads a string value
func (s *Store) Str(p Param) (string, error) {
	if err := s.check(p, String); err != nil {
		return "", err
	}
	return s.values[p].String, nil
}

// MustInt reads an integer parameter known to exist
func (s *Store) MustInt(p Param) int {
	return s.values[p].Int
}

// Get returns the value of any parameter
func (s *Store) Get(p Param) (Value, error) {
	if !p.valid() {
		return Value{}, fmt.Errorf("%w: %d", ErrUnknownParam, int(p))
	}
	return s.values[p], nil
}

// Set stages a value of any kind.  v must be an int, float64, or string
// matching the parameter's kind; ints are accepted for float parameters.
func (s *Store) Set(p Param, v interface{}) error {
	switch t := v.(type) {
	case int:
		if p.Kind() == Float {
			return s.SetFloat(p, float64(t))
		}
		return s.SetInt(p, t)
	case float64:
		return s.SetFloat(p, t)
	case string:
		return s.SetString(p, t)
	default:
		return fmt.Errorf("%w: %T for %s", ErrWrongKind, v, p)
	}
}

// Subscribe registers fn to be called by CallCallbacks.  The returned func unsubscribes.
func (s *Store) Subscribe(fn Subscriber) func() {
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() { delete(s.subs, id) }
}

// CallCallbacks delivers every parameter changed since the last call to the subscribers
// and clears the change set.  It returns the changes.
func (s *Store) CallCallbacks() []Change {
	var changes []Change
	for idx := range s.dirty {
		if s.dirty[idx] {
			changes = append(changes, Change{Param: Param(idx), Value: s.values[idx]})
			s.dirty[idx] = false
		}
	}
	if len(changes) == 0 {
		return nil
	}
	for _, fn := range s.subs {
		fn(changes)
	}
	return changes
}

// Snapshot returns every parameter by name
func (s *Store) Snapshot() map[string]interface{} {
	out := make(map[string]interface{}, numParams)
	for idx, v := range s.values {
		out[defs[idx].name] = v.Interface()
	}
	return out
}
