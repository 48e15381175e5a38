package common

import "strings"

// PauseSet is a static PauseView built from configuration.
type PauseSet map[string]struct{}

// NewPauseSet normalises the module names into a PauseSet.
func NewPauseSet(modules []string) PauseSet {
	set := make(PauseSet, len(modules))
	for _, module := range modules {
		module = strings.ToLower(strings.TrimSpace(module))
		if module == "" {
			continue
		}
		set[module] = struct{}{}
	}
	return set
}

func (s PauseSet) IsPaused(module string) bool {
	_, ok := s[module]
	return ok
}
