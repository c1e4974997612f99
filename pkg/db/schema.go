package db

import (
	"context"
	"strings"
)

// AppSchemaSQL creates the tables of the shipped dictionary. Only the builder
// runs it; on devices the image arrives with its tables already in place.
const AppSchemaSQL = `
CREATE TABLE IF NOT EXISTS meta_syllable (
    id INTEGER NOT NULL PRIMARY KEY,
    value TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS meta_spell (
    id INTEGER NOT NULL PRIMARY KEY,
    value TEXT NOT NULL UNIQUE,
    syllable_id INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS meta_word (
    id INTEGER NOT NULL PRIMARY KEY,
    value TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS link_word_with_pinyin (
    id INTEGER NOT NULL PRIMARY KEY,
    word_id INTEGER NOT NULL,
    spell_id INTEGER NOT NULL,
    syllable_id INTEGER NOT NULL,
    weight INTEGER DEFAULT 0,
    glyph_weight INTEGER DEFAULT 0,
    traditional INTEGER DEFAULT 0,
    stroke_order TEXT DEFAULT '',
    UNIQUE (word_id, spell_id)
);
CREATE VIEW IF NOT EXISTS pinyin_word (
    id, word_id, value, spell, spell_id, syllable_id,
    weight, glyph_weight, traditional, stroke_order
) AS
SELECT
    lnk.id, lnk.word_id, word.value, spell.value, lnk.spell_id, lnk.syllable_id,
    lnk.weight, lnk.glyph_weight, lnk.traditional, lnk.stroke_order
FROM
    link_word_with_pinyin lnk
    INNER JOIN meta_word word ON word.id = lnk.word_id
    INNER JOIN meta_spell spell ON spell.id = lnk.spell_id;
CREATE TABLE IF NOT EXISTS link_word_with_simple_word (
    source_id INTEGER NOT NULL,
    target_id INTEGER NOT NULL,
    PRIMARY KEY (source_id, target_id)
);
CREATE TABLE IF NOT EXISTS link_word_with_traditional_word (
    source_id INTEGER NOT NULL,
    target_id INTEGER NOT NULL,
    PRIMARY KEY (source_id, target_id)
);
CREATE TABLE IF NOT EXISTS meta_phrase (
    id INTEGER NOT NULL PRIMARY KEY,
    value TEXT NOT NULL,
    weight INTEGER DEFAULT 0
);
CREATE TABLE IF NOT EXISTS link_phrase_with_pinyin_word (
    id INTEGER NOT NULL PRIMARY KEY,
    source_id INTEGER NOT NULL,
    target_id INTEGER NOT NULL,
    target_syllable_id INTEGER NOT NULL,
    target_index INTEGER NOT NULL,
    UNIQUE (source_id, target_index)
);
CREATE VIEW IF NOT EXISTS pinyin_phrase (
    id, weight, source_id, target_id, target_index, target_syllable_id
) AS
SELECT
    lnk.id, phrase.weight, lnk.source_id, lnk.target_id, lnk.target_index, lnk.target_syllable_id
FROM
    meta_phrase phrase
    INNER JOIN link_phrase_with_pinyin_word lnk ON lnk.source_id = phrase.id;
CREATE TABLE IF NOT EXISTS meta_emoji_group (
    id INTEGER NOT NULL PRIMARY KEY,
    value TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS meta_emoji (
    id INTEGER NOT NULL PRIMARY KEY,
    value TEXT NOT NULL UNIQUE,
    group_id INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS link_emoji_with_keyword (
    id INTEGER NOT NULL PRIMARY KEY,
    source_id INTEGER NOT NULL,
    keyword_index INTEGER NOT NULL,
    target_id INTEGER NOT NULL,
    target_index INTEGER NOT NULL,
    UNIQUE (source_id, keyword_index, target_index)
);
CREATE VIEW IF NOT EXISTS group_emoji (id, value, group_id, group_name) AS
SELECT
    emoji.id, emoji.value, grp.id, grp.value
FROM
    meta_emoji emoji
    INNER JOIN meta_emoji_group grp ON grp.id = emoji.group_id;
CREATE VIEW IF NOT EXISTS emoji_keyword (
    id, value, keyword_index, keyword_word_id, keyword_word_index
) AS
SELECT
    emoji.id, emoji.value, lnk.keyword_index, lnk.target_id, lnk.target_index
FROM
    meta_emoji emoji
    INNER JOIN link_emoji_with_keyword lnk ON lnk.source_id = emoji.id
`

// appIndexesSQL backs the weight and position ordered scans.
const appIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_link_word_with_pinyin
    ON link_word_with_pinyin (syllable_id, weight, glyph_weight, spell_id);
CREATE INDEX IF NOT EXISTS idx_meta_phrase ON meta_phrase (weight);
CREATE INDEX IF NOT EXISTS idx_link_phrase_with_pinyin_word
    ON link_phrase_with_pinyin_word (target_syllable_id, source_id, target_index);
CREATE INDEX IF NOT EXISTS idx_link_emoji_with_keyword
    ON link_emoji_with_keyword (target_id, source_id, keyword_index)
`

// userSchemaSQL holds the mutable usage counters. Word and emoji ids share
// the id space of the shipped dictionary.
const userSchemaSQL = `
CREATE TABLE IF NOT EXISTS used_pinyin_word (
    id INTEGER NOT NULL PRIMARY KEY,
    syllable_id INTEGER NOT NULL,
    weight INTEGER DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_used_pinyin_word ON used_pinyin_word (weight, syllable_id);
CREATE TABLE IF NOT EXISTS used_phrase (
    id INTEGER NOT NULL PRIMARY KEY,
    value TEXT NOT NULL,
    weight INTEGER DEFAULT 0,
    UNIQUE (value)
);
CREATE INDEX IF NOT EXISTS idx_used_phrase ON used_phrase (weight, value);
CREATE TABLE IF NOT EXISTS used_phrase_pinyin_word (
    id INTEGER NOT NULL PRIMARY KEY,
    source_id INTEGER NOT NULL,
    target_id INTEGER NOT NULL,
    target_syllable_id INTEGER NOT NULL,
    target_index INTEGER NOT NULL,
    UNIQUE (source_id, target_id, target_index),
    FOREIGN KEY (source_id) REFERENCES used_phrase (id)
);
CREATE INDEX IF NOT EXISTS idx_used_phrase_pinyin_word
    ON used_phrase_pinyin_word (target_syllable_id, source_id, target_index);
CREATE VIEW IF NOT EXISTS used_pinyin_phrase (
    id, weight, source_id, target_id, target_index, target_syllable_id
) AS
SELECT
    lnk.id, phrase.weight, lnk.source_id, lnk.target_id, lnk.target_index, lnk.target_syllable_id
FROM
    used_phrase phrase
    INNER JOIN used_phrase_pinyin_word lnk ON lnk.source_id = phrase.id;
CREATE TABLE IF NOT EXISTS used_emoji (
    id INTEGER NOT NULL PRIMARY KEY,
    weight INTEGER DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_used_emoji ON used_emoji (weight)
`

// CreateAppSchema creates the shipped dictionary tables and their indexes.
func CreateAppSchema(ctx context.Context, db Executor) error {
	if err := execScript(ctx, db, AppSchemaSQL); err != nil {
		return err
	}
	return InitAppDB(ctx, db)
}

// InitAppDB (re)builds the secondary indexes of the shipped dictionary. Safe to
// run on every initialization.
func InitAppDB(ctx context.Context, db Executor) error {
	return execScript(ctx, db, appIndexesSQL)
}

// InitUserDB creates the user history schema if it is absent.
func InitUserDB(ctx context.Context, db Executor) error {
	return execScript(ctx, db, userSchemaSQL)
}

// execScript runs a ';' separated script statement by statement.
func execScript(ctx context.Context, db Executor, script string) error {
	stmts := strings.Split(script, ";")
	for _, s := range stmts {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
