package app

import (
	"context"
	"testing"

	"github.com/pitchline-ai/pitchline/internal/config"
	"github.com/pitchline-ai/pitchline/internal/history"
	"github.com/pitchline-ai/pitchline/pkg/llm"
	llmmock "github.com/pitchline-ai/pitchline/pkg/llm/mock"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{ListenAddr: "127.0.0.1:0"},
		History: config.HistoryConfig{Backend: config.HistoryMemory},
	}
}

func TestNew_MemoryBackendByDefault(t *testing.T) {
	a, err := New(context.Background(), baseConfig(), WithProvider(llmmock.WithText("ok")))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown(context.Background())

	if _, ok := a.store.(*history.MemoryStore); !ok {
		t.Errorf("store = %T, want *history.MemoryStore", a.store)
	}
}

func TestNew_InjectedStoreNotClosedTwice(t *testing.T) {
	store := history.NewMemoryStore()
	a, err := New(context.Background(), baseConfig(),
		WithStore(store),
		WithProvider(llmmock.WithText("ok")),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
	// Second call is a no-op under stopOnce.
	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
}

func TestNew_UnconfiguredProviderFailsOnUse(t *testing.T) {
	a, err := New(context.Background(), baseConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown(context.Background())

	if _, ok := a.provider.(unconfiguredProvider); !ok {
		t.Fatalf("provider = %T, want unconfiguredProvider", a.provider)
	}
	req := llm.Request{Messages: []llm.Message{llm.UserMessage("hi")}}
	if _, err := a.provider.Complete(context.Background(), req); err == nil {
		t.Error("expected error from unconfigured provider")
	}
}

func TestNew_SQLiteBackend(t *testing.T) {
	cfg := baseConfig()
	cfg.History.Backend = config.HistorySQLite
	cfg.History.Path = t.TempDir() + "/history.db"

	a, err := New(context.Background(), cfg, WithProvider(llmmock.WithText("ok")))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown(context.Background())

	if err := a.store.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
