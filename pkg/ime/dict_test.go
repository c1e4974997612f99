package ime

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/kuaizi/pkg/dictionary"
	"github.com/japaniel/kuaizi/pkg/metrics"
	"github.com/japaniel/kuaizi/pkg/syllable"
	"github.com/japaniel/kuaizi/pkg/worker"
)

func newUnopenedDict(t *testing.T) (*Dict, string) {
	t.Helper()
	dir := t.TempDir()
	d, err := New(startPool(t), Options{
		AppPath:  filepath.Join(dir, "app.db"),
		UserPath: filepath.Join(dir, "user", "user.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d, dir
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(nil, Options{AppPath: "a", UserPath: "b"})
	assert.Error(t, err)
	_, err = New(startPool(t), Options{AppPath: "a"})
	assert.Error(t, err)
}

func TestQueriesBeforeOpenAreEmpty(t *testing.T) {
	d, _ := newUnopenedDict(t)
	ctx := context.Background()

	assert.Equal(t, Uninitialized, d.State())
	assert.False(t, d.IsInited())
	assert.False(t, d.IsOpened())
	assert.Empty(t, d.FindNextChars(syllable.Level1, "z"))
	assert.False(t, d.HasValidSyllable("zhong"))
	assert.Nil(t, d.GetCandidates(ctx, "zhong"))
	assert.Equal(t, BestCandidates{}, d.FindTopBestCandidates(ctx, "zhong", 5, nil, false))
	assert.Empty(t, d.FindTopBestEmojisMatchedPhrase(ctx, Word{ID: 1}, 5, nil))
	assert.Equal(t, []EmojiGroup{{Name: GroupGeneral}}, d.GetEmojis(ctx, 5).Groups)
	assert.NoError(t, d.Close())
}

func TestOpenBeforeInitResolvesFalse(t *testing.T) {
	d, dir := newUnopenedDict(t)
	writeFixture(t, filepath.Join(dir, "app.db"))

	ok, err := d.Open().Wait()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, d.IsOpened())

	ok, err = d.Init().Wait()
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = d.Open().Wait()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, Opened, d.State())
	assert.NotEmpty(t, d.GetCandidates(context.Background(), "zhong"))
}

func TestInitFailureCanBeRetried(t *testing.T) {
	d, dir := newUnopenedDict(t)

	ok, err := d.Init().Wait()
	assert.Error(t, err)
	assert.False(t, ok)
	assert.False(t, d.IsInited())
	assert.Equal(t, Uninitialized, d.State())

	writeFixture(t, filepath.Join(dir, "app.db"))
	ok, err = d.Init().Wait()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, Initialized, d.State())
	assert.FileExists(t, filepath.Join(dir, "user", "user.db"))
}

func TestConcurrentInitSharesOneTask(t *testing.T) {
	d, dir := newUnopenedDict(t)
	writeFixture(t, filepath.Join(dir, "app.db"))

	var wg sync.WaitGroup
	results := make([]bool, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := d.Init().Wait()
			results[i] = ok && err == nil
		}()
	}
	wg.Wait()
	for _, ok := range results {
		assert.True(t, ok)
	}
	assert.Same(t, d.Init(), d.Init())
}

func TestCloseIsIdempotent(t *testing.T) {
	d := newTestDict(t)
	ctx := context.Background()
	require.NotEmpty(t, d.GetCandidates(ctx, "shi"))

	require.NoError(t, d.Close())
	assert.Equal(t, Closed, d.State())
	assert.False(t, d.IsOpened())
	assert.Nil(t, d.GetCandidates(ctx, "shi"))
	assert.Zero(t, d.cache.Len())
	require.NoError(t, d.Close())

	ok, err := d.Open().Wait()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []int64{6, 7, 8}, readingIDs(d.GetCandidates(ctx, "shi")))
}

func TestCloseAfterPoolCanceled(t *testing.T) {
	dir := t.TempDir()
	pool := worker.NewPool(2, 8)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	t.Cleanup(pool.Close)

	d, err := New(pool, Options{
		AppPath:  filepath.Join(dir, "app.db"),
		UserPath: filepath.Join(dir, "user.db"),
	})
	require.NoError(t, err)

	cancel()
	initTask := d.Init()
	openTask := d.Open()

	closed := make(chan error, 1)
	go func() { closed <- d.Close() }()
	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on an Open the pool never ran")
	}

	ok, err := initTask.Wait()
	assert.False(t, ok)
	assert.Error(t, err)
	ok, _ = openTask.Wait()
	assert.False(t, ok)
	assert.False(t, d.IsOpened())
	assert.Equal(t, Uninitialized, d.State())
}

func TestCanceledQueryIsEmpty(t *testing.T) {
	d := newTestDict(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Nil(t, d.GetCandidates(ctx, "shi"))
}

func TestInitSeedsFromAssets(t *testing.T) {
	src := &dictionary.Source{
		Words: []dictionary.WordEntry{
			{Value: "中", Spell: "zhōng", Weight: 10},
			{Value: "钟", Spell: "zhōng", Weight: 2},
			{Value: "国", Spell: "guó", Weight: 8},
		},
		Phrases: []dictionary.PhraseEntry{
			{Value: "中国", Spells: []string{"zhōng", "guó"}, Weight: 3},
		},
	}
	b, err := dictionary.NewBuilder(nil)
	require.NoError(t, err)
	image := filepath.Join(t.TempDir(), dictionary.AppDictAsset)
	stats, err := b.Build(context.Background(), src, image)
	require.NoError(t, err)
	data, err := os.ReadFile(image)
	require.NoError(t, err)

	assets := fstest.MapFS{
		dictionary.AppDictAsset:     {Data: data},
		dictionary.AppDictHashAsset: {Data: []byte(stats.Hash + "\n")},
	}
	dir := t.TempDir()
	reg := prometheus.NewRegistry()
	m, err := metrics.New("test", reg)
	require.NoError(t, err)

	d, err := New(startPool(t), Options{
		Assets:   assets,
		AppPath:  filepath.Join(dir, "pinyin_app.db"),
		UserPath: filepath.Join(dir, "pinyin_user.db"),
		Metrics:  m,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	ok, err := d.Init().Wait()
	require.NoError(t, err)
	require.True(t, ok)
	hash, err := os.ReadFile(dictionary.HashFile(filepath.Join(dir, "pinyin_app.db")))
	require.NoError(t, err)
	assert.Equal(t, stats.Hash, string(hash))

	ok, err = d.Open().Wait()
	require.NoError(t, err)
	require.True(t, ok)

	words := d.GetCandidates(context.Background(), "zhong")
	require.Len(t, words, 2)
	assert.Equal(t, "中", words[0].Value)

	zhong := words[0]
	best := d.FindTopBestCandidates(context.Background(), "guo", 3, []Word{zhong}, false)
	require.Len(t, best.Phrases, 1)
	assert.Len(t, best.Phrases[0], 2)
	assert.Equal(t, zhong.ID, best.Phrases[0][0])

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
