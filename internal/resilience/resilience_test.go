package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pitchline-ai/pitchline/pkg/llm"
	"github.com/pitchline-ai/pitchline/pkg/llm/mock"
)

func TestBreaker_OpensAfterMaxFailures(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "test", MaxFailures: 3, Cooldown: time.Hour})
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		if err := b.Do(func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("call %d: err = %v", i, err)
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}

	called := false
	err := b.Do(func() error { called = true; return nil })
	if !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("err = %v, want ErrBreakerOpen", err)
	}
	if called {
		t.Error("open breaker must not invoke the call")
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(BreakerConfig{MaxFailures: 2, Cooldown: time.Hour})
	boom := errors.New("boom")

	b.Do(func() error { return boom })
	b.Do(func() error { return nil })
	b.Do(func() error { return boom })

	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed (failures were not consecutive)", b.State())
	}
}

func TestBreaker_HalfOpenClosesAfterProbes(t *testing.T) {
	b := NewBreaker(BreakerConfig{MaxFailures: 1, Cooldown: time.Millisecond, ProbeBudget: 2})

	b.Do(func() error { return errors.New("boom") })
	time.Sleep(5 * time.Millisecond)

	if b.State() != StateHalfOpen {
		t.Fatalf("state = %v, want half-open after cooldown", b.State())
	}
	for i := 0; i < 2; i++ {
		if err := b.Do(func() error { return nil }); err != nil {
			t.Fatalf("probe %d: %v", i, err)
		}
	}
	if b.State() != StateClosed {
		t.Errorf("state = %v, want closed after successful probes", b.State())
	}
}

func TestBreaker_ProbeFailureReopens(t *testing.T) {
	b := NewBreaker(BreakerConfig{MaxFailures: 1, Cooldown: time.Millisecond, ProbeBudget: 2})

	b.Do(func() error { return errors.New("boom") })
	time.Sleep(5 * time.Millisecond)
	b.Do(func() error { return errors.New("still down") })

	if b.State() != StateOpen {
		t.Errorf("state = %v, want open after failed probe", b.State())
	}
}

func TestFailover_TriesNextOnFailure(t *testing.T) {
	fo := NewFailover("primary", "primary", FailoverConfig{})
	fo.Add("backup", "backup")

	var used []string
	err := fo.Do(func(name string) error {
		used = append(used, name)
		if name == "primary" {
			return errors.New("primary down")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if len(used) != 2 || used[1] != "backup" {
		t.Errorf("used = %v", used)
	}
}

func TestFailover_AllFailed(t *testing.T) {
	fo := NewFailover("only", "only", FailoverConfig{})

	_, err := DoWithResult(fo, func(string) (int, error) {
		return 0, errors.New("down")
	})
	if !errors.Is(err, ErrAllBackendsFailed) {
		t.Errorf("err = %v, want ErrAllBackendsFailed", err)
	}
}

func TestLLMFailover_FallsBackToSecondProvider(t *testing.T) {
	primary := mock.WithError(errors.New("quota exceeded"))
	backup := mock.WithText("from backup")

	f := NewLLMFailover(primary, "primary", FailoverConfig{})
	f.Add("backup", backup)

	res, err := f.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{llm.UserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if res.Text() != "from backup" {
		t.Errorf("text = %q", res.Text())
	}
	if primary.Calls() != 1 || backup.Calls() != 1 {
		t.Errorf("calls = %d, %d", primary.Calls(), backup.Calls())
	}
}

func TestLLMFailover_SkipsOpenBreaker(t *testing.T) {
	primary := mock.WithError(errors.New("down"))
	backup := mock.WithText("ok")

	f := NewLLMFailover(primary, "primary", FailoverConfig{
		Breaker: BreakerConfig{MaxFailures: 1, Cooldown: time.Hour},
	})
	f.Add("backup", backup)

	req := llm.Request{Messages: []llm.Message{llm.UserMessage("hi")}}
	for i := 0; i < 3; i++ {
		if _, err := f.Complete(context.Background(), req); err != nil {
			t.Fatalf("Complete %d: %v", i, err)
		}
	}

	// The primary tripped on the first call and must not be retried while
	// its breaker is open.
	if primary.Calls() != 1 {
		t.Errorf("primary calls = %d, want 1", primary.Calls())
	}
	if backup.Calls() != 3 {
		t.Errorf("backup calls = %d, want 3", backup.Calls())
	}
}
