package ime

import (
	"context"
	"sort"

	"github.com/japaniel/kuaizi/pkg/db"
)

type keywordRef struct {
	emojiID int64
	keyword int
}

// FindTopBestEmojisMatchedPhrase returns up to topN emojis whose keywords
// end with the input so far: the words of prev followed by current. Emojis
// matching more characters rank first; ties go to the lower id.
func (d *Dict) FindTopBestEmojisMatchedPhrase(ctx context.Context, current Word, topN int, prev []Word) []Emoji {
	if topN <= 0 || current.ID <= 0 {
		return nil
	}
	ids := make([]int64, 0, len(prev)+1)
	ids = append(ids, current.ID)
	for i := len(prev) - 1; i >= 0; i-- {
		ids = append(ids, prev[i].ID)
	}

	emojis, _ := await(d, ctx, "emoji_match", query(d, ctx, "emoji_match",
		func(ctx context.Context, s stores) ([]Emoji, error) {
			return d.matchEmojis(ctx, s.app, ids)
		}))
	if len(emojis) > topN {
		emojis = emojis[:topN]
	}
	return emojis
}

func (d *Dict) matchEmojis(ctx context.Context, q db.Executor, ids []int64) ([]Emoji, error) {
	// Each keyword is walked from its last character, which must be ids[0].
	m := newSequenceMatcher[keywordRef](ids, nil)
	values := make(map[int64]string)
	err := db.ScanEmojiKeywords(ctx, q, distinct(ids), func(r db.EmojiKeywordRow) error {
		if !d.renderable(r.Value) {
			return nil
		}
		values[r.EmojiID] = r.Value
		m.add(keywordRef{emojiID: r.EmojiID, keyword: r.KeywordIndex}, r.WordID, r.WordID, r.WordIndex)
		return nil
	})
	if err != nil {
		return nil, err
	}

	weights := make(map[int64]int)
	m.each(func(ref keywordRef, slots []slot) {
		if len(slots) > weights[ref.emojiID] {
			weights[ref.emojiID] = len(slots)
		}
	})

	emojis := make([]Emoji, 0, len(weights))
	for id := range weights {
		emojis = append(emojis, Emoji{ID: id, Value: values[id]})
	}
	sort.Slice(emojis, func(i, j int) bool {
		wi, wj := weights[emojis[i].ID], weights[emojis[j].ID]
		if wi != wj {
			return wi > wj
		}
		return emojis[i].ID < emojis[j].ID
	})
	return emojis, nil
}

// GetEmojis returns the emoji catalogue. The general group holds the top
// most used emojis; the other groups follow in catalogue order. Emojis the
// display cannot draw are left out.
func (d *Dict) GetEmojis(ctx context.Context, top int) Emojis {
	catalogue := query(d, ctx, "emojis", func(ctx context.Context, s stores) ([]db.EmojiRow, error) {
		return db.ListEmojis(ctx, s.app)
	})
	used := query(d, ctx, "emojis_used", func(ctx context.Context, s stores) ([]int64, error) {
		return db.TopUsedEmojiIDs(ctx, s.user, top)
	})
	rows, _ := await(d, ctx, "emojis", catalogue)
	usedIDs, _ := await(d, ctx, "emojis_used", used)

	byID := make(map[int64]Emoji, len(rows))
	var groups []EmojiGroup
	for _, r := range rows {
		if !d.renderable(r.Value) {
			continue
		}
		e := Emoji{ID: r.ID, Value: r.Value}
		byID[r.ID] = e
		if n := len(groups); n == 0 || groups[n-1].Name != r.GroupName {
			groups = append(groups, EmojiGroup{Name: r.GroupName})
		}
		g := &groups[len(groups)-1]
		g.Emojis = append(g.Emojis, e)
	}

	general := EmojiGroup{Name: GroupGeneral}
	for _, id := range usedIDs {
		if e, ok := byID[id]; ok {
			general.Emojis = append(general.Emojis, e)
		}
	}
	return Emojis{Groups: append([]EmojiGroup{general}, groups...)}
}
