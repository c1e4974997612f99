/*
Package ime resolves pinyin input into ranked Chinese candidates.

A Dict pairs a read-only app dictionary, copied once from a packaged image,
with a writable user store that learns from confirmed input. All store I/O
runs on a worker pool; lookups block on their results and collapse failures
to empty answers so typing never stalls on an error.
*/
package ime

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jmoiron/sqlx"

	"github.com/japaniel/kuaizi/internal/logger"
	"github.com/japaniel/kuaizi/pkg/db"
	"github.com/japaniel/kuaizi/pkg/dictionary"
	"github.com/japaniel/kuaizi/pkg/metrics"
	"github.com/japaniel/kuaizi/pkg/syllable"
	"github.com/japaniel/kuaizi/pkg/worker"
)

// ErrNotOpened is returned by store operations before Open completes or after Close.
var ErrNotOpened = errors.New("dictionary not opened")

// State is the lifecycle stage of a Dict.
type State int32

const (
	Uninitialized State = iota
	Initializing
	Initialized
	Opening
	Opened
	Closing
	Closed
)

var stateNames = [...]string{"uninitialized", "initializing", "initialized", "opening", "opened", "closing", "closed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int32(s))
	}
	return stateNames[s]
}

const defaultCacheSize = 256

// Options configures a Dict.
type Options struct {
	// Assets holds dictionary.AppDictAsset and optionally its hash. When nil,
	// AppPath must already contain a dictionary.
	Assets   fs.FS
	AppPath  string
	UserPath string

	Logger  *log.Logger
	Metrics *metrics.Metrics
	// CacheSize bounds the number of syllables whose candidates are cached.
	CacheSize int
	// Renderable filters emojis the display cannot draw. Defaults to Renderable.
	Renderable func(string) bool
}

// Dict is the pinyin dictionary engine.
type Dict struct {
	pool       worker.Submitter
	opts       Options
	logger     *log.Logger
	metrics    *metrics.Metrics
	renderable func(string) bool
	cache      *lru.Cache[int64, []Word]

	// mu serializes Init, Open and Close.
	mu     sync.Mutex
	inited atomic.Pointer[worker.Task[bool]]
	opened atomic.Pointer[worker.Task[bool]]
	state  atomic.Int32

	// storeMu guards the open handles. Queries hold it for reading.
	storeMu   sync.RWMutex
	app       *sqlx.DB
	user      *sqlx.DB
	syllables *syllable.Index
}

// stores is the view of the open handles a query runs against.
type stores struct {
	app       *sqlx.DB
	user      *sqlx.DB
	syllables *syllable.Index
}

// New creates a Dict whose store I/O runs on pool.
func New(pool worker.Submitter, opts Options) (*Dict, error) {
	if pool == nil {
		return nil, errors.New("ime: nil worker pool")
	}
	if opts.AppPath == "" || opts.UserPath == "" {
		return nil, errors.New("ime: app and user store paths are required")
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultCacheSize
	}
	cache, err := lru.New[int64, []Word](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("ime: candidate cache: %w", err)
	}
	d := &Dict{
		pool:       pool,
		opts:       opts,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		renderable: opts.Renderable,
		cache:      cache,
	}
	if d.logger == nil {
		d.logger = logger.Discard()
	}
	if d.renderable == nil {
		d.renderable = Renderable
	}
	return d, nil
}

// State returns the current lifecycle stage.
func (d *Dict) State() State {
	return State(d.state.Load())
}

func (d *Dict) setState(s State) {
	d.state.Store(int32(s))
	d.metrics.SetState(int(s))
}

// IsInited reports whether Init completed successfully. It never blocks.
func (d *Dict) IsInited() bool {
	t := d.inited.Load()
	if t == nil {
		return false
	}
	v, ok := t.Value()
	return ok && v
}

// IsOpened reports whether Open completed successfully and Close has not
// been called since. It never blocks.
func (d *Dict) IsOpened() bool {
	t := d.opened.Load()
	if t == nil {
		return false
	}
	v, ok := t.Value()
	return ok && v
}

// settled reports whether t is pending or succeeded. Such a task is shared
// with later callers instead of being resubmitted.
func settled(t *worker.Task[bool]) bool {
	if t == nil {
		return false
	}
	select {
	case <-t.Done():
		v, ok := t.Value()
		return ok && v
	default:
		return true
	}
}

// Init prepares both stores on disk: it copies the packaged dictionary when
// its hash changed, adds the app query indexes and creates the user schema.
// Concurrent callers share one task; a failed Init may be retried.
func (d *Dict) Init() *worker.Task[bool] {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t := d.inited.Load(); settled(t) {
		return t
	}
	if d.State() < Initialized {
		d.setState(Initializing)
	}
	t := worker.Go(d.pool, func(ctx context.Context) (bool, error) {
		start := time.Now()
		if err := d.doInit(ctx); err != nil {
			d.logger.Error("Dictionary init failed", "err", err)
			d.state.CompareAndSwap(int32(Initializing), int32(Uninitialized))
			return false, err
		}
		d.state.CompareAndSwap(int32(Initializing), int32(Initialized))
		d.metrics.SetState(int(d.State()))
		d.logger.Info("Dictionary initialized", "app", d.opts.AppPath, "took", time.Since(start))
		return true, nil
	})
	// A rejected submission never runs the job above.
	select {
	case <-t.Done():
		if _, err := t.Wait(); err != nil {
			d.state.CompareAndSwap(int32(Initializing), int32(Uninitialized))
		}
	default:
	}
	d.inited.Store(t)
	return t
}

func (d *Dict) doInit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, p := range []string{d.opts.AppPath, d.opts.UserPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
	}

	if d.opts.Assets != nil {
		copied, err := dictionary.EnsureAppDict(d.opts.Assets, d.opts.AppPath)
		if err != nil {
			return fmt.Errorf("seed app dictionary: %w", err)
		}
		if copied {
			d.logger.Info("Copied packaged dictionary", "to", d.opts.AppPath)
		}
	} else if _, err := os.Stat(d.opts.AppPath); err != nil {
		return fmt.Errorf("app dictionary: %w", err)
	}

	app, err := db.OpenReadWrite(ctx, d.opts.AppPath)
	if err != nil {
		return err
	}
	err = db.InitAppDB(ctx, app)
	if cerr := app.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("init app store: %w", err)
	}

	user, err := db.OpenReadWrite(ctx, d.opts.UserPath)
	if err != nil {
		return err
	}
	err = db.InitUserDB(ctx, user)
	if cerr := user.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("init user store: %w", err)
	}
	return nil
}

// Open opens the app store read-only and the user store read-write and loads
// the syllable index. It resolves to false without error when Init has not
// completed; such an Open may be retried later.
func (d *Dict) Open() *worker.Task[bool] {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t := d.opened.Load(); settled(t) {
		return t
	}
	t := worker.Go(d.pool, func(ctx context.Context) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if !d.IsInited() {
			d.logger.Warn("Dictionary open skipped: not initialized")
			return false, nil
		}
		prev := d.State()
		d.setState(Opening)
		if err := d.doOpen(ctx); err != nil {
			d.logger.Error("Dictionary open failed", "err", err)
			d.setState(prev)
			return false, err
		}
		d.setState(Opened)
		return true, nil
	})
	d.opened.Store(t)
	return t
}

func (d *Dict) doOpen(ctx context.Context) error {
	app, err := db.OpenReadOnly(ctx, d.opts.AppPath)
	if err != nil {
		return fmt.Errorf("open app store: %w", err)
	}
	user, err := db.OpenReadWrite(ctx, d.opts.UserPath)
	if err != nil {
		app.Close()
		return fmt.Errorf("open user store: %w", err)
	}
	rows, err := db.LoadSyllables(ctx, app)
	if err != nil {
		app.Close()
		user.Close()
		return err
	}
	ids := make(map[string]int64, len(rows))
	for _, r := range rows {
		ids[r.Value] = r.ID
	}

	d.storeMu.Lock()
	d.closeStores()
	d.app, d.user, d.syllables = app, user, syllable.New(ids)
	d.storeMu.Unlock()
	d.cache.Purge()

	d.logger.Debug("Dictionary opened", "syllables", len(ids))
	return nil
}

// Close waits for a pending Open, then closes both stores and drops the
// candidate cache. It is safe to call at any time and more than once.
func (d *Dict) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	t := d.opened.Load()
	if t == nil {
		return nil
	}
	<-t.Done()
	d.opened.Store(nil)
	if v, ok := t.Value(); !ok || !v {
		return nil
	}

	d.setState(Closing)
	d.storeMu.Lock()
	err := d.closeStores()
	d.storeMu.Unlock()
	d.cache.Purge()
	d.setState(Closed)
	d.logger.Debug("Dictionary closed")
	return err
}

// closeStores must be called with storeMu held.
func (d *Dict) closeStores() error {
	var errs []error
	if d.app != nil {
		errs = append(errs, d.app.Close())
	}
	if d.user != nil {
		errs = append(errs, d.user.Close())
	}
	d.app, d.user, d.syllables = nil, nil, nil
	return errors.Join(errs...)
}

// withStores runs fn against the open stores, holding them open until fn
// returns.
func (d *Dict) withStores(fn func(s stores) error) error {
	d.storeMu.RLock()
	defer d.storeMu.RUnlock()
	if d.app == nil || d.user == nil {
		return ErrNotOpened
	}
	return fn(stores{app: d.app, user: d.user, syllables: d.syllables})
}

func (d *Dict) syllableIndex() *syllable.Index {
	d.storeMu.RLock()
	defer d.storeMu.RUnlock()
	return d.syllables
}

// query runs fn on the pool against the open stores and records its latency
// under op. fn receives the caller's ctx; the pool's ctx only gates the start.
func query[T any](d *Dict, ctx context.Context, op string, fn func(ctx context.Context, s stores) (T, error)) *worker.Task[T] {
	return worker.Go(d.pool, func(poolCtx context.Context) (T, error) {
		var out T
		if err := poolCtx.Err(); err != nil {
			return out, err
		}
		start := time.Now()
		err := d.withStores(func(s stores) error {
			var err error
			out, err = fn(ctx, s)
			return err
		})
		d.metrics.ObserveQuery(op, time.Since(start), err)
		return out, err
	})
}

// await blocks for t or ctx. A failure is logged under op and yields ok false.
func await[T any](d *Dict, ctx context.Context, op string, t *worker.Task[T]) (T, bool) {
	var zero T
	if t == nil {
		return zero, false
	}
	select {
	case <-t.Done():
	case <-ctx.Done():
		d.logger.Debug("Query abandoned", "op", op, "err", ctx.Err())
		return zero, false
	}
	v, err := t.Wait()
	if err != nil {
		if errors.Is(err, ErrNotOpened) {
			d.logger.Debug("Query on closed dictionary", "op", op)
		} else {
			d.logger.Error("Query failed", "op", op, "err", err)
		}
		return zero, false
	}
	return v, true
}
