package ime

import (
	"unicode"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// Word is one reading of a Chinese character offered as a candidate.
// Two words are the same candidate when glyph and notation match, whatever
// their ids.
type Word struct {
	ID          int64
	Value       string
	Notation    string
	SyllableID  int64
	Traditional bool
	StrokeOrder string
	// Variant is the simplified or traditional counterpart with the same
	// notation, if any.
	Variant string
	// Confirmed marks a word the user already picked while composing.
	Confirmed bool
}

// Equal reports whether w and o are the same candidate.
func (w Word) Equal(o Word) bool {
	return w.Value == o.Value && w.Notation == o.Notation
}

func (w Word) String() string {
	return w.Value + "(" + w.Notation + ")"
}

// Emoji is an emoji candidate.
type Emoji struct {
	ID    int64
	Value string
}

// GroupGeneral is the reserved group holding the most used emojis.
const GroupGeneral = "general"

// EmojiGroup is one emoji category.
type EmojiGroup struct {
	Name   string
	Emojis []Emoji
}

// Emojis is the emoji catalogue. Groups[0] is always GroupGeneral.
type Emojis struct {
	Groups []EmojiGroup
}

// Group returns the emojis of a category.
func (e Emojis) Group(name string) []Emoji {
	for _, g := range e.Groups {
		if g.Name == name {
			return g.Emojis
		}
	}
	return nil
}

// BestCandidates is the outcome of FindTopBestCandidates: the best word ids
// for the typed syllable, and the matched phrases as word ids in reading
// order.
type BestCandidates struct {
	Words   []int64
	Phrases [][]int64
}

// Renderable reports whether s can be drawn: valid UTF-8 made of graphic or
// format runes occupying at least one terminal cell.
func Renderable(s string) bool {
	if s == "" || !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		if r == utf8.RuneError {
			return false
		}
		if !unicode.IsGraphic(r) && !unicode.Is(unicode.Cf, r) {
			return false
		}
	}
	return runewidth.StringWidth(s) > 0
}
