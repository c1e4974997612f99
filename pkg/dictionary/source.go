package dictionary

import (
	"encoding/json"
	"fmt"
	"os"
)

// Source is the editable form of the app dictionary that Build compiles
// into a SQLite image.
type Source struct {
	Words   []WordEntry   `json:"words"`
	Phrases []PhraseEntry `json:"phrases"`
	Emojis  []EmojiEntry  `json:"emojis"`
}

// WordEntry is one reading of a character. Spell is the toned pinyin
// ("zhōng"); when empty every reading known to go-pinyin is used.
type WordEntry struct {
	Value       string `json:"value"`
	Spell       string `json:"spell,omitempty"`
	Weight      int    `json:"weight"`
	GlyphWeight int    `json:"glyph_weight"`
	StrokeOrder string `json:"stroke_order,omitempty"`
}

// PhraseEntry is a fixed multi-character phrase. Spells, when given, holds
// one toned reading per character.
type PhraseEntry struct {
	Value  string   `json:"value"`
	Spells []string `json:"spells,omitempty"`
	Weight int      `json:"weight"`
}

// EmojiEntry is an emoji with its category and Chinese keywords.
type EmojiEntry struct {
	Value    string   `json:"value"`
	Group    string   `json:"group"`
	Keywords []string `json:"keywords"`
}

// LoadSource reads a JSON dictionary source.
func LoadSource(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var src Source
	if err := json.NewDecoder(f).Decode(&src); err != nil {
		return nil, fmt.Errorf("failed to parse dictionary source %s: %w", path, err)
	}
	return &src, nil
}
