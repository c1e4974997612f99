package ime

import (
	"context"
	"sort"

	"github.com/japaniel/kuaizi/pkg/db"
	"github.com/japaniel/kuaizi/pkg/syllable"
)

// FindNextChars returns the letters that may follow prefix at the given
// level. It is empty before Open.
func (d *Dict) FindNextChars(level syllable.Level, prefix string) []string {
	return d.syllableIndex().FindNextChars(level, prefix)
}

// HasValidSyllable reports whether the typed chars form a syllable of the
// open dictionary.
func (d *Dict) HasValidSyllable(chars string) bool {
	_, ok := d.SyllableID(chars)
	return ok
}

// SyllableID returns the id of a syllable of the open dictionary.
func (d *Dict) SyllableID(value string) (int64, bool) {
	return d.syllableIndex().ID(value)
}

// GetCandidates returns every reading of the syllable, most used first, each
// annotated with its simplified or traditional counterpart. Unknown
// syllables and store failures yield nil.
func (d *Dict) GetCandidates(ctx context.Context, value string) []Word {
	id, ok := d.SyllableID(value)
	if !ok {
		return nil
	}
	if words, ok := d.cache.Get(id); ok {
		d.metrics.CacheLookup(true)
		return cloneWords(words)
	}
	d.metrics.CacheLookup(false)

	rows, ok := await(d, ctx, "candidates", query(d, ctx, "candidates",
		func(ctx context.Context, s stores) ([]db.PinyinWordRow, error) {
			return db.GetPinyinWords(ctx, s.app, id)
		}))
	if !ok {
		return nil
	}
	sortRows(rows)

	words := make([]Word, len(rows))
	traditional := make(map[int64][]int)
	simple := make(map[int64][]int)
	var tradIDs, simpleIDs []int64
	for i, r := range rows {
		words[i] = wordOf(r)
		if r.Traditional {
			if _, seen := traditional[r.WordID]; !seen {
				tradIDs = append(tradIDs, r.WordID)
			}
			traditional[r.WordID] = append(traditional[r.WordID], i)
		} else {
			if _, seen := simple[r.WordID]; !seen {
				simpleIDs = append(simpleIDs, r.WordID)
			}
			simple[r.WordID] = append(simple[r.WordID], i)
		}
	}

	toSimple := query(d, ctx, "variants", func(ctx context.Context, s stores) (map[int64][]int64, error) {
		return db.FindWordVariants(ctx, s.app, db.TraditionalToSimpleTable, tradIDs)
	})
	toTraditional := query(d, ctx, "variants", func(ctx context.Context, s stores) (map[int64][]int64, error) {
		return db.FindWordVariants(ctx, s.app, db.SimpleToTraditionalTable, simpleIDs)
	})
	simpleLinks, simpleOK := await(d, ctx, "variants", toSimple)
	if simpleOK {
		linkVariants(words, traditional, simpleLinks, simple)
	}
	traditionalLinks, traditionalOK := await(d, ctx, "variants", toTraditional)
	if traditionalOK {
		linkVariants(words, simple, traditionalLinks, traditional)
	}
	if ctx.Err() != nil {
		return nil
	}

	// Only fully linked lists are cached.
	if simpleOK && traditionalOK {
		d.cache.Add(id, cloneWords(words))
	}
	return words
}

// linkVariants sets the Variant of every word in sources to the first linked
// glyph among targets that has the same notation.
func linkVariants(words []Word, sources map[int64][]int, links map[int64][]int64, targets map[int64][]int) {
	for glyph, idxs := range sources {
		for _, i := range idxs {
		next:
			for _, target := range links[glyph] {
				for _, j := range targets[target] {
					if words[j].Notation == words[i].Notation {
						words[i].Variant = words[j].Value
						break next
					}
				}
			}
		}
	}
}

// GetWords resolves reading ids, as returned by FindTopBestCandidates, into
// words. Unknown ids are dropped; the order of ids is kept.
func (d *Dict) GetWords(ctx context.Context, ids []int64) []Word {
	if len(ids) == 0 {
		return nil
	}
	rows, ok := await(d, ctx, "words", query(d, ctx, "words",
		func(ctx context.Context, s stores) ([]db.PinyinWordRow, error) {
			return db.GetPinyinWordsByIDs(ctx, s.app, ids)
		}))
	if !ok {
		return nil
	}
	byID := make(map[int64]db.PinyinWordRow, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}
	words := make([]Word, 0, len(ids))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			words = append(words, wordOf(r))
		}
	}
	return words
}

func wordOf(r db.PinyinWordRow) Word {
	return Word{
		ID:          r.ID,
		Value:       r.Value,
		Notation:    r.Spell,
		SyllableID:  r.SyllableID,
		Traditional: r.Traditional,
		StrokeOrder: r.StrokeOrder,
	}
}

// sortRows orders readings by weight, glyph weight and spell id, falling
// back to the reading id so equal rows keep a fixed order.
func sortRows(rows []db.PinyinWordRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Weight != b.Weight {
			return a.Weight > b.Weight
		}
		if a.GlyphWeight != b.GlyphWeight {
			return a.GlyphWeight > b.GlyphWeight
		}
		if a.SpellID != b.SpellID {
			return a.SpellID < b.SpellID
		}
		return a.ID < b.ID
	})
}

func cloneWords(words []Word) []Word {
	if words == nil {
		return nil
	}
	return append([]Word(nil), words...)
}
