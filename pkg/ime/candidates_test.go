package ime

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/kuaizi/pkg/syllable"
)

func TestGetCandidatesOrdering(t *testing.T) {
	d := newTestDict(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		syllable string
		want     []int64
	}{
		{"weight first", "shi", []int64{6, 7, 8}},
		{"glyph weight then spell id", "zhong", []int64{1, 10, 2}},
		{"single reading", "chong", []int64{3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, readingIDs(d.GetCandidates(ctx, tt.syllable)))
		})
	}
}

func TestGetCandidatesUnknownSyllable(t *testing.T) {
	d := newTestDict(t)
	assert.Nil(t, d.GetCandidates(context.Background(), "xyz"))
	assert.Nil(t, d.GetCandidates(context.Background(), ""))
}

func TestGetCandidatesLinksVariants(t *testing.T) {
	d := newTestDict(t)

	words := d.GetCandidates(context.Background(), "guo")
	require.Len(t, words, 2)
	assert.Equal(t, "国", words[0].Value)
	assert.Equal(t, "國", words[0].Variant)
	assert.False(t, words[0].Traditional)
	assert.Equal(t, "國", words[1].Value)
	assert.Equal(t, "国", words[1].Variant)
	assert.True(t, words[1].Traditional)

	zhong := d.GetCandidates(context.Background(), "zhong")
	for _, w := range zhong {
		assert.Empty(t, w.Variant, w.String())
	}
}

func TestGetCandidatesSkipsCacheOnFailedVariantLookup(t *testing.T) {
	sub := &hookedSubmitter{pool: startPool(t)}
	d := newTestDictOn(t, sub)
	ctx := context.Background()

	// Submissions: candidates, traditional to simple, simple to traditional.
	sub.arm(func(n int) error {
		if n == 1 {
			return errors.New("queue rejected")
		}
		return nil
	})
	partial := d.GetCandidates(ctx, "guo")
	require.Len(t, partial, 2)
	assert.Equal(t, "國", partial[0].Variant)
	assert.Empty(t, partial[1].Variant)
	assert.Zero(t, d.cache.Len())

	sub.arm(nil)
	words := d.GetCandidates(ctx, "guo")
	require.Len(t, words, 2)
	assert.Equal(t, "國", words[0].Variant)
	assert.Equal(t, "国", words[1].Variant)
	assert.Equal(t, 1, d.cache.Len())
}

func TestGetCandidatesCanceledMidwayIsEmpty(t *testing.T) {
	sub := &hookedSubmitter{pool: startPool(t)}
	d := newTestDictOn(t, sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub.arm(func(n int) error {
		if n == 1 {
			cancel()
		}
		return nil
	})
	assert.Nil(t, d.GetCandidates(ctx, "guo"))
	assert.Zero(t, d.cache.Len())

	sub.arm(nil)
	words := d.GetCandidates(context.Background(), "guo")
	require.Len(t, words, 2)
	assert.Equal(t, "國", words[0].Variant)
}

func TestGetCandidatesServesCachedCopies(t *testing.T) {
	d := newTestDict(t)
	ctx := context.Background()

	first := d.GetCandidates(ctx, "shi")
	require.NotEmpty(t, first)
	first[0].Confirmed = true
	first[0].Value = "x"

	second := d.GetCandidates(ctx, "shi")
	assert.Equal(t, "是", second[0].Value)
	assert.False(t, second[0].Confirmed)
	assert.Equal(t, 1, d.cache.Len())
}

func TestGetWordsKeepsOrder(t *testing.T) {
	d := newTestDict(t)
	words := d.GetWords(context.Background(), []int64{9, 404, 1})
	require.Len(t, words, 2)
	assert.Equal(t, "人", words[0].Value)
	assert.Equal(t, "rén", words[0].Notation)
	assert.Equal(t, "中", words[1].Value)
	assert.Nil(t, d.GetWords(context.Background(), nil))
}

func TestSyllableLookups(t *testing.T) {
	d := newTestDict(t)

	assert.True(t, d.HasValidSyllable("zhong"))
	assert.False(t, d.HasValidSyllable("zho"))
	assert.Equal(t, []string{"ong"}, d.FindNextChars(syllable.Level1, "zh"))
	assert.Equal(t, []string{"uo"}, d.FindNextChars(syllable.Level1, "g"))
	assert.Empty(t, d.FindNextChars(syllable.Level1, "z"))
	assert.Nil(t, d.FindNextChars(syllable.Level1, ""))
}

func TestWordEqual(t *testing.T) {
	a := Word{ID: 1, Value: "重", Notation: "zhòng"}
	assert.True(t, a.Equal(Word{ID: 7, Value: "重", Notation: "zhòng"}))
	assert.False(t, a.Equal(Word{ID: 1, Value: "重", Notation: "chóng"}))
}

func TestRenderable(t *testing.T) {
	assert.True(t, Renderable("😀"))
	assert.True(t, Renderable("🇨🇳"))
	assert.True(t, Renderable("中"))
	assert.False(t, Renderable(""))
	assert.False(t, Renderable("\u0378"))
	assert.False(t, Renderable("\x01"))
	assert.False(t, Renderable(string([]byte{0xff, 0xfe})))
}
