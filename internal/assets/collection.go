package assets

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
)

// CycleError reports a collection that (transitively) includes itself.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("collection cycle: %s", strings.Join(e.Path, " -> "))
}

// Collections maps collection names to ordered references. A reference that
// names another collection is expanded in place.
type Collections map[string][]string

// Clone returns a deep copy.
func (c Collections) Clone() Collections {
	out := make(Collections, len(c))
	for name, refs := range c {
		out[name] = slices.Clone(refs)
	}
	return out
}

// Has reports whether name is a collection.
func (c Collections) Has(name string) bool {
	_, ok := c[name]
	return ok
}

// Expand returns the leaf references of the named collection in order.
// A name that is not a collection expands to itself. Collections must be
// acyclic; call Validate before trusting user input.
func (c Collections) Expand(name string) []string {
	refs, ok := c[name]
	if !ok {
		return []string{name}
	}
	var out []string
	for _, ref := range refs {
		out = append(out, c.Expand(ref)...)
	}
	return out
}

// Validate returns a *CycleError if any collection reaches itself.
func (c Collections) Validate() error {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make(map[string]int, len(c))

	var visit func(name string, stack []string) error
	visit = func(name string, stack []string) error {
		switch state[name] {
		case onStack:
			start := slices.Index(stack, name)
			return &CycleError{Path: append(slices.Clone(stack[start:]), name)}
		case done:
			return nil
		}
		state[name] = onStack
		stack = append(stack, name)
		for _, ref := range c[name] {
			if !c.Has(ref) {
				continue
			}
			if err := visit(ref, stack); err != nil {
				return err
			}
		}
		state[name] = done
		return nil
	}

	names := slices.Collect(maps.Keys(c))
	sort.Strings(names)
	for _, name := range names {
		if err := visit(name, nil); err != nil {
			return err
		}
	}
	return nil
}
