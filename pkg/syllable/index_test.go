package syllable

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testIndex() *Index {
	values := []string{
		"a", "ai", "an", "ang", "ao",
		"za", "zan", "zi", "zha", "zhang", "zhe",
		"sa", "si", "shi", "cha", "chi",
	}
	m := make(map[string]int64, len(values))
	for i, v := range values {
		m[v] = int64(i + 1)
	}
	return New(m)
}

func TestID(t *testing.T) {
	idx := testIndex()
	id, ok := idx.ID("zhang")
	assert.True(t, ok)
	assert.Equal(t, int64(10), id)

	_, ok = idx.ID("zhan")
	assert.False(t, ok)
	assert.Equal(t, 16, idx.Len())

	var empty *Index
	_, ok = empty.ID("a")
	assert.False(t, ok)
	assert.Zero(t, empty.Len())
}

func TestFindNextCharsLevel1(t *testing.T) {
	idx := testIndex()

	tests := []struct {
		prefix string
		want   []string
	}{
		{"z", []string{"a", "i"}},
		{"zh", []string{"a", "e"}},
		{"zha", []string{"ng"}},
		{"an", []string{"g"}},
		{"a", []string{"i", "n", "o"}},
		{"s", []string{"a", "i"}},
		{"sh", []string{"i"}},
		{"x", []string{}},
		{"zhang", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			assert.Equal(t, tt.want, idx.FindNextChars(Level1, tt.prefix))
		})
	}
}

func TestFindNextCharsLevel2(t *testing.T) {
	idx := testIndex()
	assert.Equal(t, []string{"ha", "hang", "he"}, idx.FindNextChars(Level2, "zh"))
	assert.Equal(t, []string{"an", "ang"}, idx.FindNextChars(Level2, "a"))
}

func TestFindNextCharsEmptyPrefix(t *testing.T) {
	idx := testIndex()
	assert.Nil(t, idx.FindNextChars(Level1, ""))
	assert.Nil(t, idx.FindNextChars(Level2, ""))
}

func TestFindNextCharsNeverLeavesPrefix(t *testing.T) {
	idx := testIndex()
	for value := range idx.ids {
		for i := 1; i <= len(value); i++ {
			prefix := value[:i]
			for _, next := range idx.FindNextChars(Level1, prefix) {
				found := false
				for candidate := range idx.ids {
					if strings.HasPrefix(candidate, prefix+next) {
						found = true
						break
					}
				}
				assert.True(t, found, "%q + %q continues no syllable", prefix, next)
			}
		}
	}
}

func TestFindNextCharsKeepsSibilantGroup(t *testing.T) {
	idx := testIndex()
	for _, prefix := range []string{"c", "s", "z"} {
		for _, next := range idx.FindNextChars(Level1, prefix) {
			assert.False(t, strings.HasPrefix(next, "h"), "%q suggested retroflex %q", prefix, next)
		}
	}
}
