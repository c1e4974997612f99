// Package syllable holds the in-memory set of valid pinyin syllables and the
// next-letter lookup used while a syllable is being typed.
package syllable

import (
	"sort"
	"strings"

	"github.com/tchap/go-patricia/v2/patricia"
)

// Level selects how much of a continuation FindNextChars returns.
type Level int

const (
	// Level1 asks for the letter right after the typed prefix.
	Level1 Level = iota + 1
	// Level2 asks for the remainder starting at the last typed letter.
	Level2
)

// sibilants are the retroflex initials that must not be suggested while
// typing their plain counterpart ("zh" for "z").
var sibilants = []string{"ch", "sh", "zh"}

// Index maps syllable spellings to their dictionary ids. It is built once and
// only read afterwards, so it may be shared between goroutines.
type Index struct {
	ids  map[string]int64
	trie *patricia.Trie
}

// New builds an index from spelling to id pairs.
func New(syllables map[string]int64) *Index {
	idx := &Index{
		ids:  make(map[string]int64, len(syllables)),
		trie: patricia.NewTrie(),
	}
	for value, id := range syllables {
		if value == "" {
			continue
		}
		idx.ids[value] = id
		idx.trie.Insert(patricia.Prefix(value), id)
	}
	return idx
}

// ID returns the id of an exact spelling.
func (idx *Index) ID(value string) (int64, bool) {
	if idx == nil {
		return 0, false
	}
	id, ok := idx.ids[value]
	return id, ok
}

// Len returns the number of syllables.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.ids)
}

// FindNextChars returns the possible continuations of prefix, deduplicated and
// sorted. It returns nil for an empty prefix.
//
// At Level1 each continuation is the next letter, or the whole remaining
// spelling when only one syllable continues with that letter. At Level2 each
// continuation starts with the last letter of prefix.
func (idx *Index) FindNextChars(level Level, prefix string) []string {
	if prefix == "" {
		return nil
	}
	if idx == nil {
		return []string{}
	}

	var matches []string
	_ = idx.trie.VisitSubtree(patricia.Prefix(prefix), func(p patricia.Prefix, _ patricia.Item) error {
		value := string(p)
		if len(value) <= len(prefix) {
			return nil
		}
		if sibilant(value) && !strings.HasPrefix(prefix, value[:2]) {
			return nil
		}
		matches = append(matches, value)
		return nil
	})

	seen := make(map[string]struct{}, len(matches))
	for _, value := range matches {
		var next string
		if level == Level1 {
			next = value[len(prefix) : len(prefix)+1]
			if countPrefixed(matches, prefix+next) == 1 {
				next = value[len(prefix):]
			}
		} else {
			next = value[len(prefix)-1:]
		}
		seen[next] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for next := range seen {
		out = append(out, next)
	}
	sort.Strings(out)
	return out
}

func sibilant(value string) bool {
	for _, s := range sibilants {
		if strings.HasPrefix(value, s) {
			return true
		}
	}
	return false
}

func countPrefixed(values []string, prefix string) int {
	n := 0
	for _, v := range values {
		if strings.HasPrefix(v, prefix) {
			n++
		}
	}
	return n
}
