package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

type stubPruner struct {
	retentions []time.Duration
	err        error
}

func (p *stubPruner) PruneHistory(_ context.Context, retention time.Duration) (int64, error) {
	p.retentions = append(p.retentions, retention)

	return 3, p.err
}

type stubRefresher struct {
	calls int
}

func (r *stubRefresher) RefreshModels(context.Context) []string {
	r.calls++

	return []string{"llama3.2:latest"}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPruneHistoryUsesRetention(t *testing.T) {
	pruner := &stubPruner{}
	s := New(context.Background(), pruner, &stubRefresher{}, 48*time.Hour, discardLogger())

	s.pruneHistory()

	if len(pruner.retentions) != 1 || pruner.retentions[0] != 48*time.Hour {
		t.Fatalf("expected one prune with 48h retention, got %v", pruner.retentions)
	}

	pruner.err = errors.New("db is locked")
	s.pruneHistory()

	if len(pruner.retentions) != 2 {
		t.Fatalf("expected failed prune to be attempted, got %v", pruner.retentions)
	}
}

func TestJobsSkipDoneContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pruner := &stubPruner{}
	refresher := &stubRefresher{}
	s := New(ctx, pruner, refresher, time.Hour, discardLogger())

	s.pruneHistory()
	s.refreshModels()

	if len(pruner.retentions) != 0 || refresher.calls != 0 {
		t.Fatalf("expected no work after context is done")
	}
}

func TestStartRegistersJobs(t *testing.T) {
	tests := []struct {
		name      string
		retention time.Duration
		refresher ModelRefresher
		wantJobs  int
	}{
		{"prune and refresh", time.Hour, &stubRefresher{}, 2},
		{"refresh only", 0, &stubRefresher{}, 1},
		{"prune only", time.Hour, nil, 1},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s := New(context.Background(), &stubPruner{}, test.refresher, test.retention, discardLogger())

			if err := s.Start(); err != nil {
				t.Fatalf("Start returned error: %v", err)
			}
			defer s.Stop()

			if got := len(s.cron.Entries()); got != test.wantJobs {
				t.Fatalf("expected %d jobs, got %d", test.wantJobs, got)
			}
		})
	}
}
