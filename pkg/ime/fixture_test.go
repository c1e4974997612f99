package ime

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/japaniel/kuaizi/pkg/db"
	"github.com/japaniel/kuaizi/pkg/worker"
)

// fixtureSQL is a small dictionary with deliberately distinct ranking keys.
//
// Readings: 1 中 zhōng, 2 重 zhòng, 3 重 chóng, 4 国 guó, 5 國 guó,
// 6 是 shì, 7 时 shí, 8 事 shì, 9 人 rén, 10 钟 zhōng.
//
// Phrases, heaviest first: 4 has a position gap, 5 has a gap followed by a
// slot pair that would match on its own, then 中国, 国人 and 中国人.
const fixtureSQL = `
INSERT INTO meta_syllable (id, value) VALUES (1, 'zhong'), (2, 'guo'), (3, 'shi'), (4, 'chong'), (5, 'ren');
INSERT INTO meta_spell (id, value, syllable_id) VALUES
	(1, 'zhōng', 1), (2, 'zhòng', 1), (3, 'guó', 2), (4, 'shì', 3), (5, 'shí', 3), (6, 'chóng', 4), (7, 'rén', 5);
INSERT INTO meta_word (id, value) VALUES
	(1, '中'), (2, '重'), (3, '国'), (4, '國'), (5, '是'), (6, '时'), (7, '事'), (8, '人'), (9, '钟');
INSERT INTO link_word_with_pinyin (id, word_id, spell_id, syllable_id, weight, glyph_weight, traditional) VALUES
	(1, 1, 1, 1, 10, 100, 0),
	(2, 2, 2, 1, 10, 50, 0),
	(3, 2, 6, 4, 3, 50, 0),
	(4, 3, 3, 2, 8, 80, 0),
	(5, 4, 3, 2, 0, 10, 1),
	(6, 5, 4, 3, 9, 0, 0),
	(7, 6, 5, 3, 5, 0, 0),
	(8, 7, 4, 3, 1, 0, 0),
	(9, 8, 7, 5, 5, 0, 0),
	(10, 9, 1, 1, 10, 50, 0);
INSERT INTO link_word_with_simple_word (source_id, target_id) VALUES (4, 3);
INSERT INTO link_word_with_traditional_word (source_id, target_id) VALUES (3, 4);
INSERT INTO meta_phrase (id, value, weight) VALUES
	(1, '中国', 7), (2, '中国人', 5), (3, '国人', 6), (4, '人中是国', 9), (5, '中国是中国', 8);
INSERT INTO link_phrase_with_pinyin_word (source_id, target_id, target_syllable_id, target_index) VALUES
	(1, 1, 1, 0), (1, 4, 2, 1),
	(2, 1, 1, 0), (2, 4, 2, 1), (2, 9, 5, 2),
	(3, 4, 2, 0), (3, 9, 5, 1),
	(4, 9, 5, 0), (4, 1, 1, 1), (4, 4, 2, 3),
	(5, 1, 1, 1), (5, 4, 2, 2), (5, 1, 1, 3), (5, 4, 2, 5);
INSERT INTO meta_emoji_group (id, value) VALUES (1, 'flags'), (2, 'people');
INSERT INTO meta_emoji (id, value, group_id) VALUES
	(1, '🇨🇳', 1), (2, '😀', 2), (3, '` + "\u0378" + `', 2), (4, '🏮', 1), (5, '🧧', 2);
INSERT INTO link_emoji_with_keyword (source_id, keyword_index, target_id, target_index) VALUES
	(1, 0, 1, 0), (1, 0, 4, 1),
	(2, 0, 4, 0),
	(3, 0, 1, 0), (3, 0, 4, 1),
	(4, 0, 1, 0), (4, 0, 4, 1),
	(5, 0, 1, 0), (5, 0, 4, 2), (5, 1, 4, 0)
`

func writeFixture(t *testing.T, path string) {
	t.Helper()
	ctx := context.Background()
	conn, err := db.OpenReadWrite(ctx, path)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, db.CreateAppSchema(ctx, conn))
	for _, stmt := range strings.Split(fixtureSQL, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			_, err := conn.ExecContext(ctx, stmt)
			require.NoError(t, err, stmt)
		}
	}
}

func startPool(t *testing.T) *worker.Pool {
	t.Helper()
	pool := worker.NewPool(4, 32)
	pool.Start(context.Background())
	t.Cleanup(pool.Close)
	return pool
}

// newTestDict returns an opened Dict over the fixture dictionary.
func newTestDict(t *testing.T) *Dict {
	t.Helper()
	return newTestDictOn(t, startPool(t))
}

// newTestDictOn opens the fixture with store I/O submitted through sub.
func newTestDictOn(t *testing.T, sub worker.Submitter) *Dict {
	t.Helper()
	dir := t.TempDir()
	app := filepath.Join(dir, "app.db")
	writeFixture(t, app)

	d, err := New(sub, Options{AppPath: app, UserPath: filepath.Join(dir, "user.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	ok, err := d.Init().Wait()
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = d.Open().Wait()
	require.NoError(t, err)
	require.True(t, ok)
	return d
}

func readingIDs(words []Word) []int64 {
	ids := make([]int64, len(words))
	for i, w := range words {
		ids[i] = w.ID
	}
	return ids
}

func emojiIDs(emojis []Emoji) []int64 {
	ids := make([]int64, len(emojis))
	for i, e := range emojis {
		ids[i] = e.ID
	}
	return ids
}

// hookedSubmitter passes jobs to a pool after consulting hook with the
// zero-based submission count. A non-nil hook error rejects the job.
type hookedSubmitter struct {
	pool *worker.Pool
	mu   sync.Mutex
	n    int
	hook func(n int) error
}

func (h *hookedSubmitter) Submit(job worker.Job) error {
	h.mu.Lock()
	n, hook := h.n, h.hook
	h.n++
	h.mu.Unlock()
	if hook != nil {
		if err := hook(n); err != nil {
			return err
		}
	}
	return h.pool.Submit(job)
}

// arm resets the submission count and installs hook.
func (h *hookedSubmitter) arm(hook func(n int) error) {
	h.mu.Lock()
	h.n, h.hook = 0, hook
	h.mu.Unlock()
}
