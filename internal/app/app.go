// Package app wires all pitchline subsystems into a running service.
//
// The App struct owns the full lifecycle: New connects the history store, the
// model providers, the coaching layer, and the HTTP server; Run serves until
// the context is cancelled; Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithStore,
// WithProvider, WithEngineFactory). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"golang.org/x/sync/errgroup"

	"github.com/pitchline-ai/pitchline/internal/coach"
	"github.com/pitchline-ai/pitchline/internal/config"
	"github.com/pitchline-ai/pitchline/internal/health"
	"github.com/pitchline-ai/pitchline/internal/history"
	"github.com/pitchline-ai/pitchline/internal/observe"
	"github.com/pitchline-ai/pitchline/internal/resilience"
	"github.com/pitchline-ai/pitchline/internal/server"
	"github.com/pitchline-ai/pitchline/internal/session"
	"github.com/pitchline-ai/pitchline/pkg/capture"
	"github.com/pitchline-ai/pitchline/pkg/capture/deepgram"
	"github.com/pitchline-ai/pitchline/pkg/llm"
	"github.com/pitchline-ai/pitchline/pkg/llm/anthropic"
	"github.com/pitchline-ai/pitchline/pkg/llm/anyllm"
	"github.com/pitchline-ai/pitchline/pkg/llm/openai"
)

// shutdownTimeout bounds the HTTP server drain during Run teardown.
const shutdownTimeout = 10 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	cfg      *config.Config
	log      *slog.Logger
	metrics  *observe.Metrics
	store    history.Store
	provider llm.Provider
	coach    *coach.Coach
	srv      *http.Server

	newEngine server.EngineFactory

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a history store instead of creating one from config.
func WithStore(s history.Store) Option {
	return func(a *App) { a.store = s }
}

// WithProvider injects the LLM provider instead of building it from config.
func WithProvider(p llm.Provider) Option {
	return func(a *App) { a.provider = p }
}

// WithEngineFactory injects the capture engine factory.
func WithEngineFactory(f server.EngineFactory) Option {
	return func(a *App) { a.newEngine = f }
}

// WithLogger sets the application logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(a *App) { a.log = log }
}

// New creates an App by wiring all subsystems together.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	a.metrics = observe.DefaultMetrics()

	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init history store: %w", err)
	}
	if err := a.initProvider(); err != nil {
		return nil, fmt.Errorf("app: init llm provider: %w", err)
	}
	a.initCaptureFactory()

	a.coach = coach.New(a.provider,
		coach.WithLogger(a.log),
		coach.WithRecorder(a.metrics),
	)

	checks := health.New().AddStore(a.store)
	checks.Add("llm", func(context.Context) error {
		if _, ok := a.provider.(unconfiguredProvider); ok {
			return errors.New("no llm provider configured")
		}
		return nil
	})

	srvOpts := []server.Option{
		server.WithLogger(a.log),
		server.WithMetrics(a.metrics),
		server.WithHealth(checks),
		server.WithGate(session.NewGate(
			time.Duration(cfg.Coach.DebounceSeconds)*time.Second,
			cfg.Coach.MinGrowth,
		)),
	}
	if a.newEngine != nil {
		srvOpts = append(srvOpts, server.WithCaptureEngine(a.newEngine))
	}

	a.srv = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           server.New(a.coach, a.store, srvOpts...).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// initStore opens the configured history backend.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	switch a.cfg.History.Backend {
	case config.HistoryPostgres:
		store, err := history.OpenPostgres(ctx, a.cfg.History.DSN)
		if err != nil {
			return err
		}
		a.store = store
	case config.HistorySQLite:
		store, err := history.OpenSQLite(ctx, a.cfg.History.Path)
		if err != nil {
			return err
		}
		a.store = store
	default:
		a.store = history.NewMemoryStore()
	}

	a.closers = append(a.closers, a.store.Close)
	a.log.Info("history store ready", "backend", string(a.cfg.History.Backend))
	return nil
}

// initProvider builds the primary LLM provider and wraps it with failover
// when fallbacks are configured. An empty provider config yields a provider
// that fails on first use, so coaching endpoints serve their deterministic
// fallbacks instead of the process refusing to start.
func (a *App) initProvider() error {
	if a.provider != nil {
		return nil
	}
	if a.cfg.LLM.Name == "" {
		a.provider = unconfiguredProvider{}
		return nil
	}

	primary, err := buildProvider(a.cfg.LLM.ProviderEntry, a.cfg.LLM.MaxTokens)
	if err != nil {
		return fmt.Errorf("build provider %q: %w", a.cfg.LLM.Name, err)
	}
	if len(a.cfg.LLM.Fallbacks) == 0 {
		a.provider = a.metrics.WrapProvider(a.cfg.LLM.Name, primary)
		a.log.Info("llm provider ready", "name", a.cfg.LLM.Name, "model", a.cfg.LLM.Model)
		return nil
	}

	group := resilience.NewLLMFailover(primary, a.cfg.LLM.Name, resilience.FailoverConfig{})
	for _, fb := range a.cfg.LLM.Fallbacks {
		p, err := buildProvider(fb, a.cfg.LLM.MaxTokens)
		if err != nil {
			return fmt.Errorf("build fallback provider %q: %w", fb.Name, err)
		}
		group.Add(fb.Name, p)
	}
	a.provider = a.metrics.WrapProvider(a.cfg.LLM.Name, group)
	a.log.Info("llm provider ready",
		"name", a.cfg.LLM.Name,
		"model", a.cfg.LLM.Model,
		"fallbacks", len(a.cfg.LLM.Fallbacks),
	)
	return nil
}

// buildProvider constructs one llm.Provider from a config entry. Anthropic
// uses the hand-rolled wire adapter; openai uses the official SDK; everything
// else goes through any-llm.
func buildProvider(entry config.ProviderEntry, maxTokens int) (llm.Provider, error) {
	switch entry.Name {
	case "anthropic":
		var opts []anthropic.Option
		if entry.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, anthropic.WithModel(entry.Model))
		}
		if maxTokens > 0 {
			opts = append(opts, anthropic.WithMaxTokens(maxTokens))
		}
		return anthropic.New(entry.APIKey, opts...)

	case "openai":
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)

	default:
		var opts []anyllmlib.Option
		if entry.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New(entry.Name, entry.Model, opts...)
	}
}

// initCaptureFactory enables live capture when a Deepgram key is configured.
// Each websocket connection gets its own engine, so concurrent calls do not
// share a recognition stream.
func (a *App) initCaptureFactory() {
	if a.newEngine != nil || a.cfg.Capture.APIKey == "" {
		return
	}
	cc := a.cfg.Capture
	a.newEngine = func() (capture.Engine, error) {
		eng, err := deepgram.New(cc.APIKey,
			deepgram.WithModel(cc.Model),
			deepgram.WithLanguage(cc.Language),
			deepgram.WithSampleRate(cc.SampleRate),
		)
		if err != nil {
			return nil, err
		}
		return eng, nil
	}
	a.log.Info("live capture enabled", "model", cc.Model, "language", cc.Language)
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests
// under a deadline.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.srv.Shutdown(drainCtx)
	})

	a.log.Info("server listening", "addr", a.cfg.Server.ListenAddr)
	return g.Wait()
}

// Shutdown tears down all subsystems in init order. It respects the context
// deadline: when ctx expires, remaining closers are skipped and the context
// error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				a.log.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				a.log.Warn("closer error", "index", i, "error", err)
			}
		}
		a.log.Info("shutdown complete")
	})
	return shutdownErr
}

// unconfiguredProvider surfaces the missing-credentials condition on first
// use rather than at startup.
type unconfiguredProvider struct{}

var _ llm.Provider = unconfiguredProvider{}

func (unconfiguredProvider) Complete(context.Context, llm.Request) (*llm.Result, error) {
	return nil, errors.New("llm: no provider configured")
}
