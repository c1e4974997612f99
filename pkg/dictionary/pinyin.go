package dictionary

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-pinyin"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks removes the combining marks left by canonical decomposition.
var stripMarks = runes.Remove(runes.In(unicode.Mn))

// SyllableOf returns the keyboard spelling of a toned reading: tone marks are
// dropped and ü is typed as v ("lǜ" becomes "lv").
func SyllableOf(spell string) string {
	decomposed := norm.NFD.String(strings.ToLower(strings.TrimSpace(spell)))
	decomposed = strings.ReplaceAll(decomposed, "u\u0308", "v")
	out, _, err := transform.String(stripMarks, decomposed)
	if err != nil {
		return decomposed
	}
	return out
}

func toneArgs(heteronym bool) pinyin.Args {
	a := pinyin.NewArgs()
	a.Style = pinyin.Tone
	a.Heteronym = heteronym
	return a
}

// readingsOf returns every toned reading go-pinyin knows for a single
// character, nil for anything else.
func readingsOf(char string) []string {
	if len([]rune(char)) != 1 {
		return nil
	}
	res := pinyin.Pinyin(char, toneArgs(true))
	if len(res) != 1 {
		return nil
	}
	return res[0]
}

// phraseReadings returns the most common reading of each character of value,
// or nil when a character has no reading.
func phraseReadings(value string) []string {
	chars := []rune(value)
	res := pinyin.Pinyin(value, toneArgs(false))
	if len(res) != len(chars) {
		return nil
	}
	out := make([]string, len(res))
	for i, r := range res {
		if len(r) == 0 {
			return nil
		}
		out[i] = r[0]
	}
	return out
}
