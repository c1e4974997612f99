/*
Package server exposes the pinyin engine to a keyboard front end over a
msgpack stream.

Requests and responses are consecutive msgpack maps on stdin and stdout. On
start the server writes {"status": "ready"}; each request then gets exactly
one response carrying the same id:

	{"id": "r1", "op": "candidates", "chars": "zhong"}
	{"id": "r1", "status": "ok", "words": [{"id": 1, "v": "中", "n": "zhōng", "s": 4}], "t": 312}

Supported ops:

	next_chars    letters that may follow "chars" at key "level" (1 or 2)
	valid         whether "chars" is a complete syllable
	candidates    every reading of the syllable "chars"
	best          top "top" readings and matched phrases after "prev"
	emojis        top "top" emojis whose keywords end with "prev" + "cur"
	emoji_groups  the emoji catalogue with the "top" most used first
	save          records "phrases" and "emojis" as confirmed input
	health        engine lifecycle state

"t" is the handling time in microseconds. Failed requests answer with
status "error" and an error message; engine failures never fail a request,
they only yield empty results.
*/
package server

import "github.com/japaniel/kuaizi/pkg/ime"

// Request is the union of every op's parameters.
type Request struct {
	ID    string `msgpack:"id"`
	Op    string `msgpack:"op"`
	Chars string `msgpack:"chars,omitempty"`
	Level int    `msgpack:"level,omitempty"`

	// Top overrides the configured result count when set. A best request
	// with top 0 returns phrases only.
	Top     *int     `msgpack:"top,omitempty"`
	Prev    []Word   `msgpack:"prev,omitempty"`
	Current *Word    `msgpack:"cur,omitempty"`
	NoUser  bool     `msgpack:"no_user,omitempty"`
	Phrases [][]Word `msgpack:"phrases,omitempty"`
	Emojis  []Emoji  `msgpack:"emojis,omitempty"`
}

// Word - candidate reading on the wire
type Word struct {
	ID          int64  `msgpack:"id"`
	Value       string `msgpack:"v"`
	Notation    string `msgpack:"n"`
	SyllableID  int64  `msgpack:"s"`
	Traditional bool   `msgpack:"tr,omitempty"`
	StrokeOrder string `msgpack:"so,omitempty"`
	Variant     string `msgpack:"va,omitempty"`
	Confirmed   bool   `msgpack:"c,omitempty"`
}

// Emoji - emoji on the wire
type Emoji struct {
	ID    int64  `msgpack:"id"`
	Value string `msgpack:"v"`
}

// EmojiGroup - emoji category
type EmojiGroup struct {
	Name   string  `msgpack:"name"`
	Emojis []Emoji `msgpack:"emojis"`
}

// Response is the union of every op's results.
type Response struct {
	ID        string       `msgpack:"id"`
	Status    string       `msgpack:"status"`
	Error     string       `msgpack:"error,omitempty"`
	Chars     []string     `msgpack:"chars,omitempty"`
	Valid     bool         `msgpack:"valid,omitempty"`
	Words     []Word       `msgpack:"words,omitempty"`
	Phrases   [][]Word     `msgpack:"phrases,omitempty"`
	Emojis    []Emoji      `msgpack:"emojis,omitempty"`
	Groups    []EmojiGroup `msgpack:"groups,omitempty"`
	Saved     bool         `msgpack:"saved,omitempty"`
	State     string       `msgpack:"state,omitempty"`
	TimeTaken int64        `msgpack:"t"`
}

const (
	StatusOK    = "ok"
	StatusError = "error"
	StatusReady = "ready"
)

func wireWord(w ime.Word) Word {
	return Word{
		ID:          w.ID,
		Value:       w.Value,
		Notation:    w.Notation,
		SyllableID:  w.SyllableID,
		Traditional: w.Traditional,
		StrokeOrder: w.StrokeOrder,
		Variant:     w.Variant,
		Confirmed:   w.Confirmed,
	}
}

func wireWords(words []ime.Word) []Word {
	if len(words) == 0 {
		return nil
	}
	out := make([]Word, len(words))
	for i, w := range words {
		out[i] = wireWord(w)
	}
	return out
}

func (w Word) word() ime.Word {
	return ime.Word{
		ID:          w.ID,
		Value:       w.Value,
		Notation:    w.Notation,
		SyllableID:  w.SyllableID,
		Traditional: w.Traditional,
		StrokeOrder: w.StrokeOrder,
		Variant:     w.Variant,
		Confirmed:   w.Confirmed,
	}
}

func imeWords(words []Word) []ime.Word {
	out := make([]ime.Word, len(words))
	for i, w := range words {
		out[i] = w.word()
	}
	return out
}

func wireEmojis(emojis []ime.Emoji) []Emoji {
	if len(emojis) == 0 {
		return nil
	}
	out := make([]Emoji, len(emojis))
	for i, e := range emojis {
		out[i] = Emoji{ID: e.ID, Value: e.Value}
	}
	return out
}
