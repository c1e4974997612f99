package dictionary

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"
	"github.com/longbridgeapp/opencc"
	"golang.org/x/sync/errgroup"

	"github.com/japaniel/kuaizi/internal/logger"
	"github.com/japaniel/kuaizi/pkg/db"
)

// Builder compiles a Source into the read-only app dictionary image.
type Builder struct {
	logger *log.Logger
	t2s    *opencc.OpenCC
	s2t    *opencc.OpenCC

	// Workers bounds the goroutines resolving readings.
	Workers int
}

// NewBuilder loads the simplified/traditional converters.
func NewBuilder(l *log.Logger) (*Builder, error) {
	if l == nil {
		l = logger.Discard()
	}
	t2s, err := opencc.New("t2s")
	if err != nil {
		return nil, fmt.Errorf("load t2s converter: %w", err)
	}
	s2t, err := opencc.New("s2t")
	if err != nil {
		return nil, fmt.Errorf("load s2t converter: %w", err)
	}
	return &Builder{
		logger:  l,
		t2s:     t2s,
		s2t:     s2t,
		Workers: runtime.NumCPU(),
	}, nil
}

type reading struct {
	value       string
	spell       string
	weight      int
	glyphWeight int
	strokeOrder string
}

type readingKey struct{ value, spell string }

// dictImage is a Source with every id assigned, ready to be written.
type dictImage struct {
	syllables []string
	spells    []string
	glyphs    []string
	readings  []reading

	syllableIDs map[string]int64
	spellIDs    map[string]int64
	glyphIDs    map[string]int64
	readingIDs  map[readingKey]int64
	// byGlyph lists the reading ids of a glyph in insertion order.
	byGlyph map[string][]int64
}

// Stats summarizes a built dictionary.
type Stats struct {
	Syllables int
	Words     int
	Phrases   int
	Emojis    int
	Hash      string
}

// Build writes the dictionary image to out, replacing any existing file, and
// records its content hash in HashFile(out).
func (b *Builder) Build(ctx context.Context, src *Source, out string) (Stats, error) {
	var stats Stats
	if src == nil {
		return stats, fmt.Errorf("nil dictionary source")
	}

	readings, err := b.resolveReadings(ctx, src.Words)
	if err != nil {
		return stats, err
	}
	img := newDictImage(readings)

	for _, suffix := range []string{"", "-journal", "-wal", "-shm"} {
		if err := os.Remove(out + suffix); err != nil && !os.IsNotExist(err) {
			return stats, err
		}
	}
	conn, err := db.OpenReadWrite(ctx, out)
	if err != nil {
		return stats, err
	}
	if err := db.CreateAppSchema(ctx, conn); err != nil {
		conn.Close()
		return stats, fmt.Errorf("create app schema: %w", err)
	}

	var phrases, emojis int
	err = db.RunInTx(ctx, conn,
		img.writeWords,
		b.readingWriter(img),
		func(ctx context.Context, tx *sqlx.Tx) error {
			n, err := b.writePhrases(ctx, tx, img, src.Phrases)
			phrases = n
			return err
		},
		func(ctx context.Context, tx *sqlx.Tx) error {
			n, err := b.writeEmojis(ctx, tx, img, src.Emojis)
			emojis = n
			return err
		},
	)
	if cerr := conn.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return stats, err
	}

	hash, err := FileDigest(out)
	if err != nil {
		return stats, err
	}
	if err := os.WriteFile(HashFile(out), []byte(hash), 0o644); err != nil {
		return stats, err
	}

	stats = Stats{
		Syllables: len(img.syllables),
		Words:     len(img.readings),
		Phrases:   phrases,
		Emojis:    emojis,
		Hash:      hash,
	}
	b.logger.Info("dictionary built", "path", out, "syllables", stats.Syllables,
		"words", stats.Words, "phrases", stats.Phrases, "emojis", stats.Emojis, "hash", hash)
	return stats, nil
}

// resolveReadings expands entries without a spell into one reading per
// go-pinyin heteronym. Input order is kept.
func (b *Builder) resolveReadings(ctx context.Context, words []WordEntry) ([]reading, error) {
	resolved := make([][]reading, len(words))

	g, ctx := errgroup.WithContext(ctx)
	if b.Workers > 0 {
		g.SetLimit(b.Workers)
	}
	for i, w := range words {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			spells := []string{w.Spell}
			if w.Spell == "" {
				spells = readingsOf(w.Value)
			}
			for _, s := range spells {
				resolved[i] = append(resolved[i], reading{
					value:       w.Value,
					spell:       s,
					weight:      w.Weight,
					glyphWeight: w.GlyphWeight,
					strokeOrder: w.StrokeOrder,
				})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[readingKey]bool)
	var out []reading
	for i, rs := range resolved {
		if len(rs) == 0 {
			b.logger.Warn("skipping word without reading", "value", words[i].Value)
			continue
		}
		for _, r := range rs {
			k := readingKey{r.value, r.spell}
			if r.value == "" || SyllableOf(r.spell) == "" || seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, r)
		}
	}
	return out, nil
}

func newDictImage(readings []reading) *dictImage {
	img := &dictImage{
		readings:    readings,
		syllableIDs: make(map[string]int64),
		spellIDs:    make(map[string]int64),
		glyphIDs:    make(map[string]int64),
		readingIDs:  make(map[readingKey]int64, len(readings)),
		byGlyph:     make(map[string][]int64),
	}
	for _, r := range readings {
		img.syllableIDs[SyllableOf(r.spell)] = 0
		img.spellIDs[r.spell] = 0
		img.glyphIDs[r.value] = 0
	}
	// Ids follow lexicographic order so that sorting by id sorts by spelling.
	img.syllables = assignSorted(img.syllableIDs)
	img.spells = assignSorted(img.spellIDs)
	img.glyphs = assignSorted(img.glyphIDs)

	for i, r := range readings {
		id := int64(i + 1)
		img.readingIDs[readingKey{r.value, r.spell}] = id
		img.byGlyph[r.value] = append(img.byGlyph[r.value], id)
	}
	return img
}

func assignSorted(ids map[string]int64) []string {
	keys := make([]string, 0, len(ids))
	for k := range ids {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		ids[k] = int64(i + 1)
	}
	return keys
}

// lookup finds the reading id of a character, preferring the exact spell,
// then any reading with the same syllable.
func (img *dictImage) lookup(char, spell string) (int64, int64, bool) {
	if id, ok := img.readingIDs[readingKey{char, spell}]; ok {
		return id, img.syllableIDs[SyllableOf(spell)], true
	}
	syllable := SyllableOf(spell)
	for _, id := range img.byGlyph[char] {
		r := img.readings[id-1]
		if SyllableOf(r.spell) == syllable {
			return id, img.syllableIDs[syllable], true
		}
	}
	return 0, 0, false
}

// lookupAny is lookup falling back to the first reading of the character.
func (img *dictImage) lookupAny(char, spell string) (int64, bool) {
	if id, _, ok := img.lookup(char, spell); ok {
		return id, true
	}
	if ids := img.byGlyph[char]; len(ids) > 0 {
		return ids[0], true
	}
	return 0, false
}

func (img *dictImage) writeWords(ctx context.Context, tx *sqlx.Tx) error {
	for _, s := range img.syllables {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta_syllable (id, value) VALUES (?, ?)`,
			img.syllableIDs[s], s); err != nil {
			return fmt.Errorf("insert syllable %s: %w", s, err)
		}
	}
	for _, s := range img.spells {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta_spell (id, value, syllable_id) VALUES (?, ?, ?)`,
			img.spellIDs[s], s, img.syllableIDs[SyllableOf(s)]); err != nil {
			return fmt.Errorf("insert spell %s: %w", s, err)
		}
	}
	for _, g := range img.glyphs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta_word (id, value) VALUES (?, ?)`,
			img.glyphIDs[g], g); err != nil {
			return fmt.Errorf("insert word %s: %w", g, err)
		}
	}
	return nil
}

// readingWriter inserts every reading and links glyphs with their
// simplified or traditional counterpart when both are in the dictionary.
func (b *Builder) readingWriter(img *dictImage) db.WriteFunc {
	return func(ctx context.Context, tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, `INSERT INTO link_word_with_pinyin
		(id, word_id, spell_id, syllable_id, weight, glyph_weight, traditional, stroke_order)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		traditional := make(map[string]bool, len(img.glyphs))
		for _, g := range img.glyphs {
			simple, err := b.t2s.Convert(g)
			if err != nil {
				return fmt.Errorf("convert %s: %w", g, err)
			}
			traditional[g] = simple != g
		}

		for i, r := range img.readings {
			_, err := stmt.ExecContext(ctx, int64(i+1), img.glyphIDs[r.value], img.spellIDs[r.spell],
				img.syllableIDs[SyllableOf(r.spell)], r.weight, r.glyphWeight, traditional[r.value], r.strokeOrder)
			if err != nil {
				return fmt.Errorf("insert reading %s %s: %w", r.value, r.spell, err)
			}
		}

		for _, g := range img.glyphs {
			table, conv := db.SimpleToTraditionalTable, b.s2t
			if traditional[g] {
				table, conv = db.TraditionalToSimpleTable, b.t2s
			}
			variant, err := conv.Convert(g)
			if err != nil {
				return fmt.Errorf("convert %s: %w", g, err)
			}
			target, ok := img.glyphIDs[variant]
			if variant == g || !ok {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO `+table+` (source_id, target_id) VALUES (?, ?)`,
				img.glyphIDs[g], target); err != nil {
				return fmt.Errorf("link variant %s %s: %w", g, variant, err)
			}
		}
		return nil
	}
}

func (b *Builder) writePhrases(ctx context.Context, tx *sqlx.Tx, img *dictImage, phrases []PhraseEntry) (int, error) {
	var n int64
	for _, p := range phrases {
		chars := []rune(p.Value)
		spells := p.Spells
		if len(spells) == 0 {
			spells = phraseReadings(p.Value)
		}
		if len(chars) < 2 || len(spells) != len(chars) {
			b.logger.Warn("skipping phrase", "value", p.Value, "reason", "reading count mismatch")
			continue
		}

		links := make([]db.PhraseWord, 0, len(chars))
		for i, c := range chars {
			id, syllableID, ok := img.lookup(string(c), spells[i])
			if !ok {
				break
			}
			links = append(links, db.PhraseWord{WordID: id, SyllableID: syllableID, Index: i})
		}
		if len(links) != len(chars) {
			b.logger.Warn("skipping phrase", "value", p.Value, "reason", "unknown character")
			continue
		}

		n++
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta_phrase (id, value, weight) VALUES (?, ?, ?)`,
			n, p.Value, p.Weight); err != nil {
			return 0, fmt.Errorf("insert phrase %s: %w", p.Value, err)
		}
		for _, l := range links {
			if _, err := tx.ExecContext(ctx, `INSERT INTO link_phrase_with_pinyin_word
			(source_id, target_id, target_syllable_id, target_index) VALUES (?, ?, ?, ?)`,
				n, l.WordID, l.SyllableID, l.Index); err != nil {
				return 0, fmt.Errorf("link phrase %s: %w", p.Value, err)
			}
		}
	}
	return int(n), nil
}

func (b *Builder) writeEmojis(ctx context.Context, tx *sqlx.Tx, img *dictImage, emojis []EmojiEntry) (int, error) {
	groups := make(map[string]int64)
	seen := make(map[string]bool)
	var n int64
	for _, e := range emojis {
		if e.Value == "" || seen[e.Value] {
			continue
		}
		seen[e.Value] = true

		groupID, ok := groups[e.Group]
		if !ok {
			groupID = int64(len(groups) + 1)
			groups[e.Group] = groupID
			if _, err := tx.ExecContext(ctx, `INSERT INTO meta_emoji_group (id, value) VALUES (?, ?)`,
				groupID, e.Group); err != nil {
				return 0, fmt.Errorf("insert emoji group %s: %w", e.Group, err)
			}
		}

		n++
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta_emoji (id, value, group_id) VALUES (?, ?, ?)`,
			n, e.Value, groupID); err != nil {
			return 0, fmt.Errorf("insert emoji %s: %w", e.Value, err)
		}

		for k, keyword := range e.Keywords {
			chars := []rune(keyword)
			spells := phraseReadings(keyword)
			if len(spells) != len(chars) {
				b.logger.Debug("skipping emoji keyword", "emoji", e.Value, "keyword", keyword)
				continue
			}
			links := make([]int64, 0, len(chars))
			for i, c := range chars {
				id, ok := img.lookupAny(string(c), spells[i])
				if !ok {
					break
				}
				links = append(links, id)
			}
			if len(links) != len(chars) {
				b.logger.Debug("skipping emoji keyword", "emoji", e.Value, "keyword", keyword)
				continue
			}
			for i, id := range links {
				if _, err := tx.ExecContext(ctx, `INSERT INTO link_emoji_with_keyword
				(source_id, keyword_index, target_id, target_index) VALUES (?, ?, ?, ?)`,
					n, k, id, i); err != nil {
					return 0, fmt.Errorf("link emoji %s keyword %s: %w", e.Value, keyword, err)
				}
			}
		}
	}
	return int(n), nil
}
