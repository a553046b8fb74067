// Package transliterate turns short personal names into Arabic script by
// asking a generative-language model and normalizing its answer to a fixed
// {arabic, pronunciation} pair.
//
// Every failure is an *Error whose Kind decides the HTTP status. The service
// never retries; one upstream call is made per request.
package transliterate

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/JonMunkholm/sheettools/internal/logging"
)

// DefaultTimeout bounds a single upstream call.
const DefaultTimeout = 8 * time.Second

// Generator produces the model's raw JSON answer for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Options configures a Service.
type Options struct {
	// Timeout bounds the upstream call, including any wait for the
	// outbound rate limiter.
	Timeout time.Duration

	// RequestsPerSecond and Burst cap outbound calls across all clients.
	// Zero disables the cap.
	RequestsPerSecond float64
	Burst             int

	// ExposeDetails attaches upstream error bodies to client responses.
	ExposeDetails bool
}

// Service validates configuration and calls the Generator.
type Service struct {
	gen     Generator
	timeout time.Duration
	limiter *rate.Limiter
	details bool
}

// NewService wraps gen. A nil gen means no credential is configured and
// every call fails with KindMisconfigured.
func NewService(gen Generator, opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	s := &Service{
		gen:     gen,
		timeout: opts.Timeout,
		details: opts.ExposeDetails,
	}
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return s
}

// Configured reports whether an upstream credential is present.
func (s *Service) Configured() bool {
	return s.gen != nil
}

// Transliterate sends already-validated text upstream.
func (s *Service) Transliterate(ctx context.Context, text string) (Result, error) {
	logger := logging.FromContext(ctx)

	if s.gen == nil {
		logger.Error("upstream API key is not set; set GOOGLE_API_KEY")
		return Result{}, &Error{Kind: KindMisconfigured, Message: MsgNotConfigured}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			logger.Warn("outbound rate limit wait failed", "error", err)
			return Result{}, &Error{Kind: KindUpstreamUnavailable, Message: MsgUpstreamUnavailable, Err: err}
		}
	}

	start := time.Now()
	raw, err := s.gen.Generate(ctx, BuildPrompt(text))
	if err != nil {
		e := AsError(err)
		logger.Error("transliteration upstream failed",
			"kind", int(e.Kind),
			"error", e.Error(),
			"details", e.Details,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		if !s.details && e.Details != "" {
			stripped := *e
			stripped.Details = ""
			e = &stripped
		}
		return Result{}, e
	}

	logger.Debug("transliteration completed", "duration_ms", time.Since(start).Milliseconds())
	return normalize(raw), nil
}

// TransliterateName transliterates each non-blank part of a name (first,
// middle, last) with its own upstream call, concurrently, and joins the
// answers with spaces in input order. Any failing part fails the whole name.
func (s *Service) TransliterateName(ctx context.Context, parts ...string) (Result, error) {
	var cleaned []string
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		text, err := Clean(p)
		if err != nil {
			return Result{}, err
		}
		cleaned = append(cleaned, text)
	}
	if len(cleaned) == 0 {
		return Result{}, badRequest(MsgMissingText)
	}

	results := make([]Result, len(cleaned))
	g, gctx := errgroup.WithContext(ctx)
	for i, text := range cleaned {
		g.Go(func() error {
			res, err := s.Transliterate(gctx, text)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	arabic := make([]string, len(results))
	pronunciation := make([]string, len(results))
	for i, r := range results {
		arabic[i] = r.Arabic
		pronunciation[i] = r.Pronunciation
	}
	return Result{
		Arabic:        strings.TrimSpace(strings.Join(arabic, " ")),
		Pronunciation: strings.TrimSpace(strings.Join(pronunciation, " ")),
	}, nil
}
