package db

// SyllableRow is one entry of meta_syllable.
type SyllableRow struct {
	ID    int64  `db:"id"`
	Value string `db:"value"`
}

// PinyinWordRow is a character reading from the pinyin_word view.
type PinyinWordRow struct {
	ID          int64  `db:"id"`
	WordID      int64  `db:"word_id"`
	Value       string `db:"value"`
	Spell       string `db:"spell"`
	SpellID     int64  `db:"spell_id"`
	SyllableID  int64  `db:"syllable_id"`
	Weight      int    `db:"weight"`
	GlyphWeight int    `db:"glyph_weight"`
	Traditional bool   `db:"traditional"`
	StrokeOrder string `db:"stroke_order"`
}

// PhraseLinkRow is one character slot of a phrase, read from either
// pinyin_phrase (app) or used_pinyin_phrase (user).
type PhraseLinkRow struct {
	PhraseID   int64 `db:"source_id"`
	WordID     int64 `db:"target_id"`
	SyllableID int64 `db:"target_syllable_id"`
	Index      int   `db:"target_index"`
}

// VariantLinkRow links a word glyph with its simplified or traditional form.
type VariantLinkRow struct {
	SourceID int64 `db:"source_id"`
	TargetID int64 `db:"target_id"`
}

// EmojiRow is an emoji with its category.
type EmojiRow struct {
	ID        int64  `db:"id"`
	Value     string `db:"value"`
	GroupID   int64  `db:"group_id"`
	GroupName string `db:"group_name"`
}

// EmojiKeywordRow is one character of one emoji keyword.
type EmojiKeywordRow struct {
	EmojiID      int64  `db:"id"`
	Value        string `db:"value"`
	KeywordIndex int    `db:"keyword_index"`
	WordID       int64  `db:"keyword_word_id"`
	WordIndex    int    `db:"keyword_word_index"`
}

// PhraseWord is the link data recorded for a confirmed phrase.
type PhraseWord struct {
	WordID     int64
	SyllableID int64
	Index      int
}
