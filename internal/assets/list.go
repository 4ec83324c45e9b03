package assets

import (
	"slices"

	"git.home.luguber.info/inful/assetbuilder/internal/util/sets"
)

// List is an ordered, duplicate-free sequence of resolved asset links.
// The zero value is an empty list ready to use.
type List struct {
	items []string
	seen  sets.Set[string]
}

// Add appends each link that is not already present, in argument order.
func (l *List) Add(links ...string) *List {
	for _, link := range links {
		if l.seen == nil {
			l.seen = sets.New[string]()
		}
		if l.seen.Add(link) {
			l.items = append(l.items, link)
		}
	}
	return l
}

// Prepend inserts links before all existing entries. The batch keeps its
// relative order; links already present stay where they are.
func (l *List) Prepend(links ...string) *List {
	for i := len(links) - 1; i >= 0; i-- {
		if l.seen == nil {
			l.seen = sets.New[string]()
		}
		if l.seen.Add(links[i]) {
			l.items = slices.Insert(l.items, 0, links[i])
		}
	}
	return l
}

// Contains reports whether link is in the list.
func (l *List) Contains(link string) bool {
	return l.seen.Has(link)
}

// Len returns the number of links.
func (l *List) Len() int {
	return len(l.items)
}

// Items returns a snapshot of the links in order.
func (l *List) Items() []string {
	return slices.Clone(l.items)
}

// Reset empties the list.
func (l *List) Reset() *List {
	l.items = nil
	l.seen = nil
	return l
}
