// Package selection holds the audiologists a client session is filtering by.
package selection

import "github.com/audiocare/practice/pkg/apiclient"

// Set is an insertion-ordered selection of audiologists keyed by ID. It has a
// single owner and no locking.
type Set struct {
	items []apiclient.Audiologist
}

// New returns a set holding initial in order.
func New(initial ...apiclient.Audiologist) *Set {
	s := &Set{}
	s.Replace(initial)
	return s
}

// Toggle removes the audiologist with a's ID if present, otherwise appends a.
func (s *Set) Toggle(a apiclient.Audiologist) {
	if i := s.index(a.ID); i >= 0 {
		s.items = append(s.items[:i:i], s.items[i+1:]...)
		return
	}
	s.items = append(s.items, a)
}

// Replace swaps in list wholesale. Duplicates are kept as given.
func (s *Set) Replace(list []apiclient.Audiologist) {
	s.items = append([]apiclient.Audiologist(nil), list...)
}

// Current returns the selection in insertion order. The slice is a copy.
func (s *Set) Current() []apiclient.Audiologist {
	return append([]apiclient.Audiologist(nil), s.items...)
}

func (s *Set) IDs() []string {
	ids := make([]string, len(s.items))
	for i, a := range s.items {
		ids[i] = a.ID
	}
	return ids
}

func (s *Set) Contains(id string) bool {
	return s.index(id) >= 0
}

func (s *Set) Len() int { return len(s.items) }

func (s *Set) index(id string) int {
	for i, a := range s.items {
		if a.ID == id {
			return i
		}
	}
	return -1
}
