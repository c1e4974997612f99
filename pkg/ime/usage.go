package ime

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/jmoiron/sqlx"

	"github.com/japaniel/kuaizi/pkg/db"
	"github.com/japaniel/kuaizi/pkg/worker"
)

// Fingerprint identifies a phrase by its reading ids and their positions.
func Fingerprint(phrase []Word) string {
	h := xxhash.New()
	var buf [16]byte
	for i, w := range phrase {
		binary.LittleEndian.PutUint64(buf[:8], uint64(w.ID))
		binary.LittleEndian.PutUint64(buf[8:], uint64(i))
		_, _ = h.Write(buf[:])
	}
	return fmt.Sprintf("%016x:%d", h.Sum64(), len(phrase))
}

// SaveUsage records confirmed input in the user store: every word of every
// phrase gains one use, each phrase of two or more words gains one use, and
// so does every emoji. Words, phrases and emojis are written in one
// transaction each. The task resolves to false when there was nothing to save.
func (d *Dict) SaveUsage(phrases [][]Word, emojis []Emoji) *worker.Task[bool] {
	var words []Word
	var multi [][]Word
	for _, p := range phrases {
		seen := make(map[int64]struct{}, len(p))
		for _, w := range p {
			if w.ID <= 0 {
				continue
			}
			if _, ok := seen[w.ID]; ok {
				continue
			}
			seen[w.ID] = struct{}{}
			words = append(words, w)
		}
		if len(p) > 1 && validPhrase(p) {
			multi = append(multi, p)
		}
	}
	var emojiIDs []int64
	seen := make(map[int64]struct{}, len(emojis))
	for _, e := range emojis {
		if _, ok := seen[e.ID]; ok || e.ID <= 0 {
			continue
		}
		seen[e.ID] = struct{}{}
		emojiIDs = append(emojiIDs, e.ID)
	}

	if len(words) == 0 && len(multi) == 0 && len(emojiIDs) == 0 {
		return worker.Resolved(false, nil)
	}

	return worker.Go(d.pool, func(ctx context.Context) (bool, error) {
		err := d.withStores(func(s stores) error {
			if err := db.RunInTx(ctx, s.user, func(ctx context.Context, tx *sqlx.Tx) error {
				for _, w := range words {
					if err := db.IncrementWordWeight(ctx, tx, w.ID, w.SyllableID); err != nil {
						return fmt.Errorf("save word %s: %w", w, err)
					}
				}
				return nil
			}); err != nil {
				return err
			}
			d.metrics.AddSaved("word", len(words))

			if err := db.RunInTx(ctx, s.user, func(ctx context.Context, tx *sqlx.Tx) error {
				for _, p := range multi {
					if err := savePhrase(ctx, tx, p); err != nil {
						return err
					}
				}
				return nil
			}); err != nil {
				return err
			}
			d.metrics.AddSaved("phrase", len(multi))

			if err := db.RunInTx(ctx, s.user, func(ctx context.Context, tx *sqlx.Tx) error {
				for _, id := range emojiIDs {
					if err := db.IncrementEmojiWeight(ctx, tx, id); err != nil {
						return fmt.Errorf("save emoji %d: %w", id, err)
					}
				}
				return nil
			}); err != nil {
				return err
			}
			d.metrics.AddSaved("emoji", len(emojiIDs))
			return nil
		})
		if err != nil {
			d.logger.Error("Saving usage failed", "err", err)
			return false, err
		}
		d.logger.Debug("Saved usage", "words", len(words), "phrases", len(multi), "emojis", len(emojiIDs))
		return true, nil
	})
}

func validPhrase(p []Word) bool {
	for _, w := range p {
		if w.ID <= 0 {
			return false
		}
	}
	return true
}

func savePhrase(ctx context.Context, tx *sqlx.Tx, p []Word) error {
	id, created, err := db.IncrementPhraseWeight(ctx, tx, Fingerprint(p))
	if err != nil {
		return fmt.Errorf("save phrase: %w", err)
	}
	if !created {
		return nil
	}
	links := make([]db.PhraseWord, len(p))
	for i, w := range p {
		links[i] = db.PhraseWord{WordID: w.ID, SyllableID: w.SyllableID, Index: i}
	}
	return db.InsertPhraseWords(ctx, tx, id, links)
}
