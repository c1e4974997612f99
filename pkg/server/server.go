package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/japaniel/kuaizi/internal/logger"
	"github.com/japaniel/kuaizi/pkg/ime"
	"github.com/japaniel/kuaizi/pkg/syllable"
	"github.com/japaniel/kuaizi/pkg/worker"
)

// Engine is the part of *ime.Dict the server drives.
type Engine interface {
	FindNextChars(level syllable.Level, prefix string) []string
	HasValidSyllable(chars string) bool
	GetCandidates(ctx context.Context, value string) []ime.Word
	GetWords(ctx context.Context, ids []int64) []ime.Word
	FindTopBestCandidates(ctx context.Context, value string, topN int, prev []ime.Word, userDataDisabled bool) ime.BestCandidates
	FindTopBestEmojisMatchedPhrase(ctx context.Context, current ime.Word, topN int, prev []ime.Word) []ime.Emoji
	GetEmojis(ctx context.Context, top int) ime.Emojis
	SaveUsage(phrases [][]ime.Word, emojis []ime.Emoji) *worker.Task[bool]
	State() ime.State
}

// Options holds the defaults applied to requests that leave them out.
type Options struct {
	TopCandidates    int
	TopEmojis        int
	UserDataDisabled bool
	Logger           *log.Logger
}

// Server handles msgpack requests for one client stream.
type Server struct {
	engine Engine
	opts   Options
	logger *log.Logger
	dec    *msgpack.Decoder
	enc    *msgpack.Encoder
}

// NewServer creates a server reading requests from r and writing responses to w.
func NewServer(engine Engine, r io.Reader, w io.Writer, opts Options) *Server {
	if opts.TopCandidates <= 0 {
		opts.TopCandidates = 10
	}
	if opts.TopEmojis <= 0 {
		opts.TopEmojis = 8
	}
	l := opts.Logger
	if l == nil {
		l = logger.Discard()
	}
	return &Server{
		engine: engine,
		opts:   opts,
		logger: l,
		dec:    msgpack.NewDecoder(r),
		enc:    msgpack.NewEncoder(w),
	}
}

// Serve answers requests until the input ends, ctx is done or the stream
// cannot be decoded.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Debug("Starting server")
	if err := s.send(Response{Status: StatusReady}); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var req Request
		if err := s.dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			s.logger.Error("Decoding request", "err", err)
			_ = s.send(Response{Status: StatusError, Error: "invalid msgpack request"})
			return fmt.Errorf("decode request: %w", err)
		}
		if err := s.send(s.Handle(ctx, req)); err != nil {
			return err
		}
	}
}

// Handle answers a single request.
func (s *Server) Handle(ctx context.Context, req Request) Response {
	start := time.Now()
	resp := Response{ID: req.ID, Status: StatusOK}

	switch req.Op {
	case "next_chars":
		level := syllable.Level(req.Level)
		if level != syllable.Level1 && level != syllable.Level2 {
			level = syllable.Level1
		}
		resp.Chars = s.engine.FindNextChars(level, req.Chars)
	case "valid":
		resp.Valid = s.engine.HasValidSyllable(req.Chars)
	case "candidates":
		resp.Words = wireWords(s.engine.GetCandidates(ctx, req.Chars))
	case "best":
		s.handleBest(ctx, req, &resp)
	case "emojis":
		if req.Current == nil {
			return s.fail(req, start, "missing 'cur' word")
		}
		top := pick(req.Top, s.opts.TopEmojis)
		resp.Emojis = wireEmojis(s.engine.FindTopBestEmojisMatchedPhrase(ctx, req.Current.word(), top, imeWords(req.Prev)))
	case "emoji_groups":
		emojis := s.engine.GetEmojis(ctx, pick(req.Top, s.opts.TopEmojis))
		for _, g := range emojis.Groups {
			resp.Groups = append(resp.Groups, EmojiGroup{Name: g.Name, Emojis: wireEmojis(g.Emojis)})
		}
	case "save":
		s.handleSave(ctx, req, &resp)
	case "health":
		resp.State = s.engine.State().String()
	case "":
		return s.fail(req, start, "missing 'op'")
	default:
		return s.fail(req, start, fmt.Sprintf("unknown op: %s", req.Op))
	}

	resp.TimeTaken = time.Since(start).Microseconds()
	s.logger.Debug("Handled request", "id", req.ID, "op", req.Op, "us", resp.TimeTaken)
	return resp
}

// handleBest resolves the ranked ids into words so the client can draw them
// directly.
func (s *Server) handleBest(ctx context.Context, req Request, resp *Response) {
	noUser := req.NoUser || s.opts.UserDataDisabled
	best := s.engine.FindTopBestCandidates(ctx, req.Chars, pick(req.Top, s.opts.TopCandidates), imeWords(req.Prev), noUser)

	ids := append([]int64(nil), best.Words...)
	for _, p := range best.Phrases {
		ids = append(ids, p...)
	}
	byID := make(map[int64]ime.Word)
	for _, w := range s.engine.GetWords(ctx, ids) {
		byID[w.ID] = w
	}
	resolve := func(ids []int64) []Word {
		out := make([]Word, 0, len(ids))
		for _, id := range ids {
			if w, ok := byID[id]; ok {
				out = append(out, wireWord(w))
			}
		}
		return out
	}

	resp.Words = resolve(best.Words)
	for _, p := range best.Phrases {
		if words := resolve(p); len(words) == len(p) {
			resp.Phrases = append(resp.Phrases, words)
		}
	}
}

func (s *Server) handleSave(ctx context.Context, req Request, resp *Response) {
	phrases := make([][]ime.Word, 0, len(req.Phrases))
	for _, p := range req.Phrases {
		phrases = append(phrases, imeWords(p))
	}
	emojis := make([]ime.Emoji, 0, len(req.Emojis))
	for _, e := range req.Emojis {
		emojis = append(emojis, ime.Emoji{ID: e.ID, Value: e.Value})
	}

	task := s.engine.SaveUsage(phrases, emojis)
	select {
	case <-task.Done():
	case <-ctx.Done():
		return
	}
	saved, err := task.Wait()
	if err != nil {
		s.logger.Warn("Saving usage", "id", req.ID, "err", err)
	}
	resp.Saved = saved
}

func (s *Server) fail(req Request, start time.Time, msg string) Response {
	s.logger.Debug("Rejected request", "id", req.ID, "op", req.Op, "reason", msg)
	return Response{
		ID:        req.ID,
		Status:    StatusError,
		Error:     msg,
		TimeTaken: time.Since(start).Microseconds(),
	}
}

func (s *Server) send(resp Response) error {
	if err := s.enc.Encode(resp); err != nil {
		s.logger.Error("Encoding response", "err", err)
		return fmt.Errorf("encode response: %w", err)
	}
	return nil
}

func pick(v *int, def int) int {
	if v == nil || *v < 0 {
		return def
	}
	return *v
}
