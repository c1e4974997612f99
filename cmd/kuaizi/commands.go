package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/japaniel/kuaizi/pkg/config"
	"github.com/japaniel/kuaizi/pkg/dictionary"
	"github.com/japaniel/kuaizi/pkg/ime"
	"github.com/japaniel/kuaizi/pkg/metrics"
	"github.com/japaniel/kuaizi/pkg/server"
	"github.com/japaniel/kuaizi/pkg/syllable"
)

func (c *cli) buildCmd() *cobra.Command {
	var out string
	var workers int
	cmd := &cobra.Command{
		Use:   "build <source.json>",
		Short: "Compile a JSON source into the packaged dictionary",
		Long: `Compile a JSON source of words, phrases and emojis into pinyin_dict.db
and its hash file. Words without a spell get every reading go-pinyin knows.

Examples:
  kuaizi build dict.json --out assets/pinyin_dict.db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := dictionary.LoadSource(args[0])
			if err != nil {
				return err
			}
			if out == "" {
				out = filepath.Join(c.cfg.Store.AssetsDir, dictionary.AppDictAsset)
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return err
			}
			b, err := dictionary.NewBuilder(c.logger)
			if err != nil {
				return err
			}
			b.Workers = workers
			stats, err := b.Build(cmd.Context(), src, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Built %s: %d syllables, %d words, %d phrases, %d emojis (hash %s)\n",
				out, stats.Syllables, stats.Words, stats.Phrases, stats.Emojis, stats.Hash)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output image (default <assets>/pinyin_dict.db)")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel reading lookups (0 = unbounded)")
	return cmd
}

func (c *cli) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Copy the packaged dictionary and prepare the user store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.newSession(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer s.close()
			if _, err := s.dict.Init().Wait(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s and %s\n", c.cfg.AppDictPath(), c.cfg.UserDictPath())
			return nil
		},
	}
}

func (c *cli) nextCmd() *cobra.Command {
	var level int
	cmd := &cobra.Command{
		Use:   "next <prefix>",
		Short: "List the letters that may follow a pinyin prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if level != int(syllable.Level1) && level != int(syllable.Level2) {
				return fmt.Errorf("level must be 1 or 2")
			}
			return c.withSession(cmd, func(ctx context.Context, d *ime.Dict) error {
				for _, next := range d.FindNextChars(syllable.Level(level), args[0]) {
					fmt.Fprintln(cmd.OutOrStdout(), next)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&level, "level", 1, "key level (1 or 2)")
	return cmd
}

func (c *cli) candidatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "candidates <syllable>",
		Short: "List every reading of a syllable, most used first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd, func(ctx context.Context, d *ime.Dict) error {
				if !d.HasValidSyllable(args[0]) {
					return fmt.Errorf("unknown syllable %q", args[0])
				}
				for _, w := range d.GetCandidates(ctx, args[0]) {
					line := fmt.Sprintf("%d\t%s\t%s", w.ID, w.Value, w.Notation)
					if w.Variant != "" {
						line += "\t" + w.Variant
					}
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
				return nil
			})
		},
	}
}

func (c *cli) bestCmd() *cobra.Command {
	var prev []string
	var top int
	var noUser bool
	cmd := &cobra.Command{
		Use:   "best <syllable>",
		Short: "Rank the readings of a syllable after the previous words",
		Long: `Rank the readings of a syllable and list the phrases it completes.

Previous words are given as glyph:syllable, oldest first; prefix a word
with ! when the user already confirmed it.

Examples:
  kuaizi best guo --prev 中:zhong
  kuaizi best ren --prev '!中:zhong' --prev 国:guo --top 3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd, func(ctx context.Context, d *ime.Dict) error {
				prevWords, err := resolveWords(ctx, d, prev)
				if err != nil {
					return err
				}
				if !cmd.Flags().Changed("top") {
					top = c.cfg.Engine.TopCandidates
				}
				best := d.FindTopBestCandidates(ctx, args[0], top, prevWords, noUser || c.cfg.Engine.UserDataDisabled)

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "words: %s\n", formatWords(d.GetWords(ctx, best.Words)))
				for _, p := range best.Phrases {
					words := d.GetWords(ctx, p)
					fmt.Fprintf(out, "phrase: %s %s\n", joinValues(words), formatWords(words))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&prev, "prev", nil, "previous words as glyph:syllable")
	cmd.Flags().IntVar(&top, "top", 10, "number of readings")
	cmd.Flags().BoolVar(&noUser, "no-user", false, "ignore the user history")
	return cmd
}

func (c *cli) emojiCmd() *cobra.Command {
	var prev []string
	var top int
	cmd := &cobra.Command{
		Use:   "emoji <glyph:syllable>",
		Short: "Find emojis whose keywords end with the input",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd, func(ctx context.Context, d *ime.Dict) error {
				current, err := resolveWords(ctx, d, args)
				if err != nil {
					return err
				}
				prevWords, err := resolveWords(ctx, d, prev)
				if err != nil {
					return err
				}
				if !cmd.Flags().Changed("top") {
					top = c.cfg.Engine.TopEmojis
				}
				for _, e := range d.FindTopBestEmojisMatchedPhrase(ctx, current[0], top, prevWords) {
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", e.ID, e.Value)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&prev, "prev", nil, "previous words as glyph:syllable")
	cmd.Flags().IntVar(&top, "top", 8, "number of emojis")
	return cmd
}

func (c *cli) saveCmd() *cobra.Command {
	var emojiIDs []string
	cmd := &cobra.Command{
		Use:   "save [glyph:syllable...]",
		Short: "Record a confirmed phrase and emojis in the user history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd, func(ctx context.Context, d *ime.Dict) error {
				phrase, err := resolveWords(ctx, d, args)
				if err != nil {
					return err
				}
				var phrases [][]ime.Word
				if len(phrase) > 0 {
					phrases = append(phrases, phrase)
				}
				var emojis []ime.Emoji
				for _, raw := range emojiIDs {
					id, err := strconv.ParseInt(raw, 10, 64)
					if err != nil {
						return fmt.Errorf("invalid emoji id %q: %w", raw, err)
					}
					emojis = append(emojis, ime.Emoji{ID: id})
				}
				saved, err := d.SaveUsage(phrases, emojis).Wait()
				if err != nil {
					return err
				}
				if saved {
					fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", joinValues(phrase))
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing to save")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&emojiIDs, "emoji", nil, "ids of used emojis")
	return cmd
}

func (c *cli) serveCmd() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the engine over msgpack on stdin and stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			reg := prometheus.NewRegistry()
			m, err := metrics.New("kuaizi", reg)
			if err != nil {
				return err
			}
			if metricsAddr != "" {
				stop := c.startMetricsServer(metricsAddr, reg)
				defer stop()
			}

			s, err := c.openSession(ctx, m)
			if err != nil {
				return err
			}
			defer s.close()

			srv := server.NewServer(s.dict, cmd.InOrStdin(), cmd.OutOrStdout(), server.Options{
				TopCandidates:    c.cfg.Engine.TopCandidates,
				TopEmojis:        c.cfg.Engine.TopEmojis,
				UserDataDisabled: c.cfg.Engine.UserDataDisabled,
				Logger:           c.logger,
			})
			if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "expose Prometheus metrics on this address (e.g. :9090)")
	return cmd
}

// startMetricsServer serves reg on addr/metrics and returns its shutdown func.
func (c *cli) startMetricsServer(addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		c.logger.Info("Metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error("Metrics server", "err", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func (c *cli) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.configPath
			if path == "" {
				var err error
				if path, err = config.DefaultPath(); err != nil {
					return err
				}
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.SaveConfig(config.DefaultConfig(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}

// withSession opens the engine for the duration of fn.
func (c *cli) withSession(cmd *cobra.Command, fn func(ctx context.Context, d *ime.Dict) error) error {
	ctx := cmd.Context()
	s, err := c.openSession(ctx, nil)
	if err != nil {
		return err
	}
	defer s.close()
	return fn(ctx, s.dict)
}
