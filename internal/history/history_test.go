package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// storeUnderTest runs the shared Store contract tests against each backend
// that needs no external server.
func storesUnderTest(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestStore_SaveAssignsIDAndTimestamp(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			rec := &Record{Prospect: "Dana", Outcome: "won", FinalStep: "close"}
			if err := store.Save(context.Background(), rec); err != nil {
				t.Fatalf("Save: %v", err)
			}
			if rec.ID == "" {
				t.Error("ID not assigned")
			}
			if rec.CreatedAt.IsZero() {
				t.Error("CreatedAt not assigned")
			}
		})
	}
}

func TestStore_ListNewestFirst(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
			for i := 0; i < 3; i++ {
				rec := &Record{
					ID:        fmt.Sprintf("rec-%d", i),
					CreatedAt: base.Add(time.Duration(i) * time.Hour),
					Prospect:  fmt.Sprintf("p%d", i),
					Answers:   map[string]string{"problem-1": "pain"},
				}
				if err := store.Save(context.Background(), rec); err != nil {
					t.Fatalf("Save: %v", err)
				}
			}

			got, err := store.List(context.Background())
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(got) != 3 {
				t.Fatalf("records = %d, want 3", len(got))
			}
			if got[0].ID != "rec-2" || got[2].ID != "rec-0" {
				t.Errorf("order = %s, %s, %s, want newest first", got[0].ID, got[1].ID, got[2].ID)
			}
			if got[0].Answers["problem-1"] != "pain" {
				t.Errorf("answers did not round-trip: %+v", got[0].Answers)
			}
		})
	}
}

func TestStore_CapsAtMaxRecords(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
			for i := 0; i < MaxRecords+5; i++ {
				rec := &Record{
					ID:        fmt.Sprintf("rec-%03d", i),
					CreatedAt: base.Add(time.Duration(i) * time.Minute),
				}
				if err := store.Save(context.Background(), rec); err != nil {
					t.Fatalf("Save: %v", err)
				}
			}

			got, err := store.List(context.Background())
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(got) != MaxRecords {
				t.Fatalf("records = %d, want cap %d", len(got), MaxRecords)
			}
			// The five oldest must be the ones pruned.
			if got[len(got)-1].ID != "rec-005" {
				t.Errorf("oldest surviving record = %s, want rec-005", got[len(got)-1].ID)
			}
		})
	}
}

func TestStore_Delete(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			rec := &Record{ID: "gone"}
			if err := store.Save(context.Background(), rec); err != nil {
				t.Fatalf("Save: %v", err)
			}
			if err := store.Delete(context.Background(), "gone"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := store.Delete(context.Background(), "gone"); !errors.Is(err, ErrNotFound) {
				t.Errorf("second delete = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStore_CostRoundTrip(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			rec := &Record{
				ID: "costed",
				Cost: &CostBreakdown{
					MonthlySpend:    200,
					HoursWastedWeek: 10,
				},
			}
			if err := store.Save(context.Background(), rec); err != nil {
				t.Fatalf("Save: %v", err)
			}

			got, err := store.List(context.Background())
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if got[0].Cost == nil {
				t.Fatal("cost breakdown lost")
			}
			// 200*12 + 10*52*50 at the default hourly rate.
			if want := 28400.0; got[0].Cost.AnnualCost != want {
				t.Errorf("annual cost = %v, want %v", got[0].Cost.AnnualCost, want)
			}
		})
	}
}

func TestCostBreakdown_Compute(t *testing.T) {
	c := CostBreakdown{MonthlySpend: 100, HoursWastedWeek: 2, HourlyRate: 80}
	c.Compute()
	if want := 100*12 + 2*52*80.0; c.AnnualCost != want {
		t.Errorf("annual = %v, want %v", c.AnnualCost, want)
	}
}

func TestStore_Ping(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Ping(context.Background()); err != nil {
				t.Errorf("Ping: %v", err)
			}
		})
	}
}
