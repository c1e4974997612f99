package ime

import (
	"context"
	"sort"

	"github.com/japaniel/kuaizi/pkg/db"
	"github.com/japaniel/kuaizi/pkg/worker"
)

// FindTopBestCandidates ranks the readings of the typed syllable given the
// words already in the input, prev, oldest first. Words holds up to topN
// reading ids: the first characters of the phrases that continue prev,
// padded with the most used readings. Phrases holds every matched phrase of
// two or more characters, longest first, as reading ids in reading order.
//
// User history is consulted first unless userDataDisabled; app phrases
// follow user phrases and app words pad user words.
func (d *Dict) FindTopBestCandidates(ctx context.Context, value string, topN int, prev []Word, userDataDisabled bool) BestCandidates {
	id, ok := d.SyllableID(value)
	if !ok {
		return BestCandidates{}
	}
	keys, confirmed := phraseKeys(id, prev)

	var userTask *worker.Task[*BestCandidates]
	if !userDataDisabled {
		userTask = query(d, ctx, "best_user", func(ctx context.Context, s stores) (*BestCandidates, error) {
			return findBest(ctx, s.user, db.UserWordTable, db.UserPhraseView, keys, confirmed, topN)
		})
	}
	appTask := query(d, ctx, "best_app", func(ctx context.Context, s stores) (*BestCandidates, error) {
		return findBest(ctx, s.app, db.AppWordTable, db.AppPhraseView, keys, confirmed, topN)
	})

	user, _ := await(d, ctx, "best_user", userTask)
	app, _ := await(d, ctx, "best_app", appTask)
	return mergeBest(user, app, topN)
}

// phraseKeys lists the syllable ids to match, newest first, with the word
// ids already confirmed at each position.
func phraseKeys(syllableID int64, prev []Word) (keys, confirmed []int64) {
	keys = make([]int64, 0, len(prev)+1)
	confirmed = make([]int64, 0, len(prev)+1)
	keys = append(keys, syllableID)
	confirmed = append(confirmed, 0)
	for i := len(prev) - 1; i >= 0; i-- {
		keys = append(keys, prev[i].SyllableID)
		if prev[i].Confirmed {
			confirmed = append(confirmed, prev[i].ID)
		} else {
			confirmed = append(confirmed, 0)
		}
	}
	return keys, confirmed
}

func mergeBest(user, app *BestCandidates, topN int) BestCandidates {
	switch {
	case user == nil && app == nil:
		return BestCandidates{}
	case user == nil:
		return *app
	case app == nil:
		return *user
	}
	return BestCandidates{
		Words:   topPatch(user.Words, topN, app.Words),
		Phrases: append(user.Phrases, app.Phrases...),
	}
}

// findBest matches the phrases of one store against keys.
func findBest(ctx context.Context, q db.Executor, wordTable, phraseView string, keys, confirmed []int64, topN int) (*BestCandidates, error) {
	m := newSequenceMatcher[int64](keys, confirmed)
	// A single key matches from the first character on; longer contexts
	// are walked backwards from the typed character.
	ascending := len(keys) == 1
	err := db.ScanPhraseLinks(ctx, q, phraseView, distinct(keys), ascending, func(r db.PhraseLinkRow) error {
		m.add(r.PhraseID, r.SyllableID, r.WordID, r.Index)
		return nil
	})
	if err != nil {
		return nil, err
	}

	groups := m.matched()
	sort.SliceStable(groups, func(i, j int) bool { return len(groups[i]) > len(groups[j]) })

	best := &BestCandidates{}
	seen := make(map[int64]struct{})
	for _, slots := range groups {
		first := slots[0].id
		if _, ok := seen[first]; !ok {
			seen[first] = struct{}{}
			best.Words = append(best.Words, first)
		}
		if len(slots) > 1 {
			best.Phrases = append(best.Phrases, phraseIDs(slots, ascending))
		}
	}

	if len(best.Words) < topN {
		top, err := db.TopWordIDs(ctx, q, wordTable, keys[0], topN+len(best.Words))
		if err != nil {
			return nil, err
		}
		best.Words = topPatch(best.Words, topN, top)
	}
	best.Words = truncate(best.Words, topN)
	return best, nil
}

// phraseIDs returns the word ids of a matched phrase in reading order.
func phraseIDs(slots []slot, ascending bool) []int64 {
	ids := make([]int64, len(slots))
	for i, s := range slots {
		if ascending {
			ids[i] = s.id
		} else {
			ids[len(slots)-1-i] = s.id
		}
	}
	return ids
}

// topPatch appends ids from extra not already in ids until ids holds top
// entries.
func topPatch(ids []int64, top int, extra []int64) []int64 {
	if len(ids) >= top {
		return truncate(ids, top)
	}
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	out := append([]int64(nil), ids...)
	for _, id := range extra {
		if len(out) >= top {
			break
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func truncate(ids []int64, top int) []int64 {
	if top < 0 {
		top = 0
	}
	if len(ids) > top {
		return ids[:top]
	}
	return ids
}

func distinct(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
