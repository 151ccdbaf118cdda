package registry

// nameSet is an insertion-ordered set of identities.
type nameSet struct {
	names []string
	index map[string]struct{}
}

func newNameSet() *nameSet {
	return &nameSet{index: make(map[string]struct{})}
}

// add reports whether name was not already present.
func (s *nameSet) add(name string) bool {
	if _, ok := s.index[name]; ok {
		return false
	}
	s.index[name] = struct{}{}
	s.names = append(s.names, name)
	return true
}

func (s *nameSet) has(name string) bool {
	_, ok := s.index[name]
	return ok
}

func (s *nameSet) remove(name string) {
	if _, ok := s.index[name]; !ok {
		return
	}
	delete(s.index, name)
	for i, n := range s.names {
		if n == name {
			s.names = append(s.names[:i], s.names[i+1:]...)
			return
		}
	}
}

func (s *nameSet) len() int { return len(s.names) }

func (s *nameSet) list() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

func (s *nameSet) clear() {
	s.names = nil
	s.index = make(map[string]struct{})
}
