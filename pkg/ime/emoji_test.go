package ime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindTopBestEmojisMatchedPhrase(t *testing.T) {
	d := newTestDict(t)
	ctx := context.Background()
	zhong := word(t, d, "zhong", "中")
	guo := word(t, d, "guo", "国")

	// 🇨🇳 and 🏮 both match two characters and are ordered by id; the
	// unrenderable emoji 3 is skipped and emoji 5 only matches through its
	// second keyword.
	got := d.FindTopBestEmojisMatchedPhrase(ctx, guo, 10, []Word{zhong})
	assert.Equal(t, []int64{1, 4, 2, 5}, emojiIDs(got))
	assert.Equal(t, "🇨🇳", got[0].Value)

	got = d.FindTopBestEmojisMatchedPhrase(ctx, guo, 3, []Word{zhong})
	assert.Equal(t, []int64{1, 4, 2}, emojiIDs(got))

	got = d.FindTopBestEmojisMatchedPhrase(ctx, guo, 10, nil)
	assert.Equal(t, []int64{1, 2, 4, 5}, emojiIDs(got))

	assert.Empty(t, d.FindTopBestEmojisMatchedPhrase(ctx, guo, 0, nil))
	assert.Empty(t, d.FindTopBestEmojisMatchedPhrase(ctx, word(t, d, "ren", "人"), 5, nil))
}

func TestGetEmojis(t *testing.T) {
	d := newTestDict(t)
	ctx := context.Background()

	emojis := d.GetEmojis(ctx, 5)
	require.Len(t, emojis.Groups, 3)
	assert.Equal(t, GroupGeneral, emojis.Groups[0].Name)
	assert.Empty(t, emojis.Groups[0].Emojis)
	assert.Equal(t, "flags", emojis.Groups[1].Name)
	assert.Equal(t, []int64{1, 4}, emojiIDs(emojis.Group("flags")))
	assert.Equal(t, []int64{2, 5}, emojiIDs(emojis.Group("people")))
	assert.Nil(t, emojis.Group("missing"))

	smile, envelope := Emoji{ID: 2, Value: "😀"}, Emoji{ID: 5, Value: "🧧"}
	ok, err := d.SaveUsage(nil, []Emoji{smile, envelope, smile}).Wait()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []int64{2, 5}, emojiIDs(d.GetEmojis(ctx, 5).Group(GroupGeneral)))

	ok, err = d.SaveUsage(nil, []Emoji{envelope}).Wait()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []int64{5, 2}, emojiIDs(d.GetEmojis(ctx, 5).Group(GroupGeneral)))
	assert.Equal(t, []int64{5}, emojiIDs(d.GetEmojis(ctx, 1).Group(GroupGeneral)))
}

func TestEmojisFollowRenderableOption(t *testing.T) {
	d := newTestDict(t)
	d.renderable = func(s string) bool { return s != "🇨🇳" }

	got := d.FindTopBestEmojisMatchedPhrase(context.Background(), word(t, d, "guo", "国"), 10, nil)
	assert.Equal(t, []int64{2, 3, 4, 5}, emojiIDs(got))
	assert.Equal(t, []int64{4}, emojiIDs(d.GetEmojis(context.Background(), 0).Group("flags")))
}
