package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/japaniel/kuaizi/internal/logger"
	"github.com/japaniel/kuaizi/pkg/config"
	"github.com/japaniel/kuaizi/pkg/dictionary"
	"github.com/japaniel/kuaizi/pkg/ime"
	"github.com/japaniel/kuaizi/pkg/metrics"
	"github.com/japaniel/kuaizi/pkg/worker"
)

// cli carries the global flags and the resolved configuration.
type cli struct {
	configPath string
	dataDir    string
	assetsDir  string
	debug      bool

	cfg    *config.Config
	logger *log.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "kuaizi",
		Short: "pinyin candidate engine",
		Long: `kuaizi - pinyin candidate resolution and ranking
  - build the app dictionary from a JSON source
  - look up candidates, phrases and emojis
  - serve the engine to a keyboard over msgpack`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load()
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&c.configPath, "config", "c", "", "path to config.toml")
	f.StringVar(&c.dataDir, "data-dir", "", "directory for the dictionary copy and the user store")
	f.StringVar(&c.assetsDir, "assets", "", "directory holding the packaged pinyin_dict.db")
	f.BoolVarP(&c.debug, "debug", "d", false, "enable debug logging")

	root.AddCommand(
		c.buildCmd(),
		c.initCmd(),
		c.nextCmd(),
		c.candidatesCmd(),
		c.bestCmd(),
		c.emojiCmd(),
		c.saveCmd(),
		c.serveCmd(),
		c.configCmd(),
	)
	return root
}

// load resolves the configuration: the --config file when it exists, the
// default location otherwise, then flag overrides.
func (c *cli) load() error {
	if c.configPath != "" {
		if _, err := os.Stat(c.configPath); err == nil {
			cfg, err := config.LoadConfig(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
		} else {
			c.cfg = config.DefaultConfig()
		}
	} else {
		c.cfg, _ = config.LoadOrDefault("")
	}

	if c.dataDir != "" {
		c.cfg.Store.DataDir = c.dataDir
	}
	if c.assetsDir != "" {
		c.cfg.Store.AssetsDir = c.assetsDir
	}
	level := c.cfg.Log.Level
	if c.debug {
		level = "debug"
	}
	logger.SetLevel(level)
	c.logger = logger.New("kuaizi")
	c.logger.SetReportTimestamp(c.cfg.Log.Timestamp)
	return nil
}

// assets returns the packaged dictionary bundle, or nil when the assets
// directory has no image.
func (c *cli) assets() fs.FS {
	dir := c.cfg.Store.AssetsDir
	if dir == "" {
		return nil
	}
	if _, err := os.Stat(filepath.Join(dir, dictionary.AppDictAsset)); err != nil {
		return nil
	}
	return os.DirFS(dir)
}

// session is an opened engine with its pool.
type session struct {
	pool *worker.Pool
	dict *ime.Dict
}

func (s *session) close() {
	_ = s.dict.Close()
	s.pool.Close()
}

// newSession starts a pool and creates the engine without touching the stores.
func (c *cli) newSession(ctx context.Context, m *metrics.Metrics) (*session, error) {
	pool := worker.NewPool(c.cfg.Store.Workers, c.cfg.Store.QueueSize)
	pool.OnError = func(err error) { c.logger.Debug("Store job failed", "err", err) }
	pool.Start(ctx)

	d, err := ime.New(pool, ime.Options{
		Assets:    c.assets(),
		AppPath:   c.cfg.AppDictPath(),
		UserPath:  c.cfg.UserDictPath(),
		Logger:    c.logger,
		Metrics:   m,
		CacheSize: c.cfg.Engine.CandidateCache,
	})
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &session{pool: pool, dict: d}, nil
}

// openSession initializes and opens the engine.
func (c *cli) openSession(ctx context.Context, m *metrics.Metrics) (*session, error) {
	s, err := c.newSession(ctx, m)
	if err != nil {
		return nil, err
	}
	if _, err := s.dict.Init().Wait(); err != nil {
		s.close()
		return nil, fmt.Errorf("init dictionary: %w", err)
	}
	ok, err := s.dict.Open().Wait()
	if err != nil || !ok {
		s.close()
		if err == nil {
			err = fmt.Errorf("dictionary not initialized")
		}
		return nil, fmt.Errorf("open dictionary: %w", err)
	}
	return s, nil
}

// resolveWords turns "glyph:syllable" arguments into dictionary words. A
// leading "!" marks the word as confirmed.
func resolveWords(ctx context.Context, d *ime.Dict, args []string) ([]ime.Word, error) {
	words := make([]ime.Word, 0, len(args))
	for _, arg := range args {
		confirmed := strings.HasPrefix(arg, "!")
		glyph, syllable, ok := strings.Cut(strings.TrimPrefix(arg, "!"), ":")
		if !ok || glyph == "" || syllable == "" {
			return nil, fmt.Errorf("invalid word %q, want glyph:syllable", arg)
		}
		var found *ime.Word
		for _, w := range d.GetCandidates(ctx, syllable) {
			if w.Value == glyph {
				found = &w
				break
			}
		}
		if found == nil {
			return nil, fmt.Errorf("no reading %s of %s", syllable, glyph)
		}
		found.Confirmed = confirmed
		words = append(words, *found)
	}
	return words, nil
}

func formatWords(words []ime.Word) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.String()
	}
	return strings.Join(parts, " ")
}

func joinValues(words []ime.Word) string {
	var b strings.Builder
	for _, w := range words {
		b.WriteString(w.Value)
	}
	return b.String()
}
