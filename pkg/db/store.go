package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Word and phrase sources. The app store and the user store expose the same
// column names so the ranking queries run unchanged against either.
const (
	AppWordTable   = "link_word_with_pinyin"
	AppPhraseView  = "pinyin_phrase"
	UserWordTable  = "used_pinyin_word"
	UserPhraseView = "used_pinyin_phrase"

	// TraditionalToSimpleTable links traditional glyphs to simplified ones.
	TraditionalToSimpleTable = "link_word_with_simple_word"
	// SimpleToTraditionalTable links simplified glyphs to traditional ones.
	SimpleToTraditionalTable = "link_word_with_traditional_word"
)

const pinyinWordColumns = `id, word_id, value, spell, spell_id, syllable_id,
	weight, glyph_weight, traditional, COALESCE(stroke_order, '') AS stroke_order`

// LoadSyllables returns every known syllable ordered by id.
func LoadSyllables(ctx context.Context, q Executor) ([]SyllableRow, error) {
	var rows []SyllableRow
	if err := q.SelectContext(ctx, &rows, `SELECT id, value FROM meta_syllable ORDER BY id`); err != nil {
		return nil, fmt.Errorf("load syllables: %w", err)
	}
	return rows, nil
}

// GetPinyinWords returns the character readings of a syllable, ordered by
// usage weight, then glyph weight, then spell id.
func GetPinyinWords(ctx context.Context, q Executor, syllableID int64) ([]PinyinWordRow, error) {
	var rows []PinyinWordRow
	err := q.SelectContext(ctx, &rows,
		`SELECT `+pinyinWordColumns+` FROM pinyin_word
		WHERE syllable_id = ?
		ORDER BY weight DESC, glyph_weight DESC, spell_id ASC`, syllableID)
	if err != nil {
		return nil, fmt.Errorf("get pinyin words of syllable %d: %w", syllableID, err)
	}
	return rows, nil
}

// GetPinyinWordsByIDs returns the readings with the given ids, in no particular order.
func GetPinyinWordsByIDs(ctx context.Context, q Executor, ids []int64) ([]PinyinWordRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT `+pinyinWordColumns+` FROM pinyin_word WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var rows []PinyinWordRow
	if err := q.SelectContext(ctx, &rows, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("get pinyin words by ids: %w", err)
	}
	return rows, nil
}

// FindWordVariants maps each source glyph id to its linked glyph ids in table
// (TraditionalToSimpleTable or SimpleToTraditionalTable).
func FindWordVariants(ctx context.Context, q Executor, table string, sourceIDs []int64) (map[int64][]int64, error) {
	out := make(map[int64][]int64, len(sourceIDs))
	if len(sourceIDs) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(
		`SELECT source_id, target_id FROM `+table+` WHERE source_id IN (?) ORDER BY source_id, target_id`,
		sourceIDs)
	if err != nil {
		return nil, err
	}
	var rows []VariantLinkRow
	if err := q.SelectContext(ctx, &rows, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("find variants in %s: %w", table, err)
	}
	for _, r := range rows {
		out[r.SourceID] = append(out[r.SourceID], r.TargetID)
	}
	return out, nil
}

// ScanPhraseLinks streams the phrase slots whose syllable is one of
// syllableIDs, ordered by phrase weight desc, phrase id asc, then slot index
// ascending or descending. Rows of one phrase therefore arrive together.
func ScanPhraseLinks(ctx context.Context, q Executor, view string, syllableIDs []int64, ascending bool, fn func(PhraseLinkRow) error) error {
	if len(syllableIDs) == 0 {
		return nil
	}
	order := "DESC"
	if ascending {
		order = "ASC"
	}
	query, args, err := sqlx.In(
		`SELECT source_id, target_id, target_syllable_id, target_index FROM `+view+`
		WHERE weight > 0 AND target_syllable_id IN (?)
		ORDER BY weight DESC, source_id ASC, target_index `+order,
		syllableIDs)
	if err != nil {
		return err
	}
	rows, err := q.QueryxContext(ctx, q.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("scan %s: %w", view, err)
	}
	defer rows.Close()
	for rows.Next() {
		var r PhraseLinkRow
		if err := rows.StructScan(&r); err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return rows.Err()
}

// TopWordIDs returns up to limit word ids of the syllable with a positive
// weight, heaviest first.
func TopWordIDs(ctx context.Context, q Executor, table string, syllableID int64, limit int) ([]int64, error) {
	var ids []int64
	if limit <= 0 {
		return ids, nil
	}
	err := q.SelectContext(ctx, &ids,
		`SELECT id FROM `+table+`
		WHERE weight > 0 AND syllable_id = ?
		ORDER BY weight DESC, id ASC
		LIMIT ?`, syllableID, limit)
	if err != nil {
		return nil, fmt.Errorf("top words in %s: %w", table, err)
	}
	return ids, nil
}

// ScanEmojiKeywords streams the keyword characters linked to any of wordIDs,
// ordered by emoji id, keyword index, then character index descending.
func ScanEmojiKeywords(ctx context.Context, q Executor, wordIDs []int64, fn func(EmojiKeywordRow) error) error {
	if len(wordIDs) == 0 {
		return nil
	}
	query, args, err := sqlx.In(
		`SELECT id, value, keyword_index, keyword_word_id, keyword_word_index FROM emoji_keyword
		WHERE keyword_word_id IN (?)
		ORDER BY id ASC, keyword_index ASC, keyword_word_index DESC`,
		wordIDs)
	if err != nil {
		return err
	}
	rows, err := q.QueryxContext(ctx, q.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("scan emoji keywords: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r EmojiKeywordRow
		if err := rows.StructScan(&r); err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return rows.Err()
}

// ListEmojis returns every emoji in group order.
func ListEmojis(ctx context.Context, q Executor) ([]EmojiRow, error) {
	var rows []EmojiRow
	err := q.SelectContext(ctx, &rows,
		`SELECT id, value, group_id, group_name FROM group_emoji ORDER BY group_id ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list emojis: %w", err)
	}
	return rows, nil
}

// TopUsedEmojiIDs returns the most used emoji ids from the user store.
func TopUsedEmojiIDs(ctx context.Context, q Executor, limit int) ([]int64, error) {
	var ids []int64
	if limit <= 0 {
		return ids, nil
	}
	err := q.SelectContext(ctx, &ids,
		`SELECT id FROM used_emoji WHERE weight > 0 ORDER BY weight DESC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("top used emojis: %w", err)
	}
	return ids, nil
}

// IncrementWordWeight adds one use of a word, inserting it if absent.
func IncrementWordWeight(ctx context.Context, q Executor, wordID, syllableID int64) error {
	if wordID <= 0 {
		return fmt.Errorf("wordID must be positive")
	}
	_, err := q.ExecContext(ctx, `INSERT INTO used_pinyin_word (id, syllable_id, weight)
	VALUES (?, ?, 1)
	ON CONFLICT(id) DO UPDATE SET weight = used_pinyin_word.weight + 1`, wordID, syllableID)
	return err
}

// IncrementEmojiWeight adds one use of an emoji, inserting it if absent.
func IncrementEmojiWeight(ctx context.Context, q Executor, emojiID int64) error {
	if emojiID <= 0 {
		return fmt.Errorf("emojiID must be positive")
	}
	_, err := q.ExecContext(ctx, `INSERT INTO used_emoji (id, weight)
	VALUES (?, 1)
	ON CONFLICT(id) DO UPDATE SET weight = used_emoji.weight + 1`, emojiID)
	return err
}

// IncrementPhraseWeight adds one use of the phrase identified by fingerprint.
// created reports whether the record was inserted by this call.
func IncrementPhraseWeight(ctx context.Context, q Executor, fingerprint string) (id int64, created bool, err error) {
	if fingerprint == "" {
		return 0, false, fmt.Errorf("fingerprint must be non-empty")
	}

	const maxRetries = 3
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = q.GetContext(ctx, &id, `SELECT id FROM used_phrase WHERE value = ?`, fingerprint)
		if err == nil {
			_, err = q.ExecContext(ctx, `UPDATE used_phrase SET weight = weight + 1 WHERE id = ?`, id)
			return id, false, err
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, false, err
		}

		res, err := q.ExecContext(ctx, `INSERT INTO used_phrase (value, weight) VALUES (?, 1)`, fingerprint)
		if err != nil {
			// Another writer inserted the same phrase first; count on its row.
			if isUniqueConstraintErr(err) {
				continue
			}
			return 0, false, err
		}
		id, err = res.LastInsertId()
		return id, true, err
	}
	return 0, false, fmt.Errorf("could not create or get phrase after %d retries", maxRetries)
}

// InsertPhraseWords records the ordered characters of a newly created phrase.
func InsertPhraseWords(ctx context.Context, q Executor, phraseID int64, words []PhraseWord) error {
	for _, w := range words {
		_, err := q.ExecContext(ctx, `INSERT INTO used_phrase_pinyin_word
		(source_id, target_id, target_syllable_id, target_index) VALUES (?, ?, ?, ?)`,
			phraseID, w.WordID, w.SyllableID, w.Index)
		if err != nil {
			return fmt.Errorf("link phrase %d word %d: %w", phraseID, w.WordID, err)
		}
	}
	return nil
}

// CountRows returns the number of rows of a table or view.
func CountRows(ctx context.Context, q Executor, table string) (int, error) {
	var n int
	if err := q.GetContext(ctx, &n, `SELECT COUNT(*) FROM `+table); err != nil {
		return 0, err
	}
	return n, nil
}
