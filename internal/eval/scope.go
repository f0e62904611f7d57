package eval

// Scope is a lexical variable scope.
type Scope struct {
	parent *Scope
	vars   map[string]Value
	order  []string
}

// NewScope creates a scope nested in parent, which may be nil.
func NewScope(parent *Scope) *Scope {
	return &Scope{parent: parent, vars: make(map[string]Value)}
}

// Define binds name in this scope, shadowing outer bindings.
func (s *Scope) Define(name string, v Value) {
	if _, ok := s.vars[name]; !ok {
		s.order = append(s.order, name)
	}
	s.vars[name] = v
}

// Get looks name up in this scope and its parents.
func (s *Scope) Get(name string) (Value, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if v, ok := sc.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Own looks name up in this scope only.
func (s *Scope) Own(name string) (Value, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// Names returns the names defined directly in this scope, in definition order.
func (s *Scope) Names() []string {
	return s.order
}
