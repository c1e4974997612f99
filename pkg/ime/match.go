package ime

// slot is one matched character of a sequence.
type slot struct {
	id    int64
	index int
}

// sequenceMatcher folds rows streamed in group order into the groups whose
// characters line up with the expected keys.
//
// keys[0] is the key of the newest character and keys[i] the key i
// characters back. Rows of one group must arrive together with strictly
// consecutive indexes. A group that breaks either rule is dropped for good:
// later rows of the same group are ignored.
type sequenceMatcher[G comparable] struct {
	keys []int64
	// confirmed holds the word id required at each depth, 0 for any.
	confirmed []int64

	groups  map[G][]slot
	order   []G
	invalid map[G]struct{}
}

func newSequenceMatcher[G comparable](keys, confirmed []int64) *sequenceMatcher[G] {
	return &sequenceMatcher[G]{
		keys:      keys,
		confirmed: confirmed,
		groups:    make(map[G][]slot),
		invalid:   make(map[G]struct{}),
	}
}

// add offers the character id, carrying key, at position index of group.
func (m *sequenceMatcher[G]) add(group G, key, id int64, index int) {
	if _, ok := m.invalid[group]; ok {
		return
	}
	slots, ok := m.groups[group]
	if !ok {
		m.order = append(m.order, group)
	}

	depth := len(slots)
	if depth > 0 && slots[depth-1].index-index != 1 {
		m.drop(group)
		return
	}
	if depth < len(m.keys) {
		if m.keys[depth] != key {
			m.drop(group)
			return
		}
		if depth < len(m.confirmed) && m.confirmed[depth] != 0 && m.confirmed[depth] != id {
			m.drop(group)
			return
		}
	}
	m.groups[group] = append(slots, slot{id: id, index: index})
}

func (m *sequenceMatcher[G]) drop(group G) {
	m.invalid[group] = struct{}{}
	delete(m.groups, group)
}

// matched returns the surviving groups in the order they were first seen.
func (m *sequenceMatcher[G]) matched() [][]slot {
	out := make([][]slot, 0, len(m.groups))
	for _, g := range m.order {
		if slots, ok := m.groups[g]; ok {
			out = append(out, slots)
		}
	}
	return out
}

// each calls fn for every surviving group in first-seen order.
func (m *sequenceMatcher[G]) each(fn func(group G, slots []slot)) {
	for _, g := range m.order {
		if slots, ok := m.groups[g]; ok {
			fn(g, slots)
		}
	}
}
