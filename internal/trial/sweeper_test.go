// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package trial

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/jellygate/internal/clock"
	"github.com/tomtom215/jellygate/internal/eventlog"
	"github.com/tomtom215/jellygate/internal/jellyfin"
	"github.com/tomtom215/jellygate/internal/models"
	"github.com/tomtom215/jellygate/internal/storage"
)

const apiKey = "sweeper-test-key"

type harness struct {
	repo    *storage.MemoryRepository
	srv     *jellyfin.MockServer
	clock   *clock.Fake
	logs    *eventlog.Logs
	sweeper *Sweeper
}

func newHarness(t *testing.T, action models.ExpiryAction, days int) *harness {
	t.Helper()
	clk := clock.NewFake(t0)
	repo := storage.NewMemory(clk)
	if _, err := repo.UpdateTrialSettings(context.Background(), models.TrialSettingsUpdate{
		DurationDays: &days,
		ExpiryAction: &action,
	}); err != nil {
		t.Fatal(err)
	}

	srv := jellyfin.NewMockServer(apiKey)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	logs := eventlog.NewLogs(
		eventlog.NewFileSink(filepath.Join(dir, "access.json"), 100),
		eventlog.NewFileSink(filepath.Join(dir, "activity.json"), 100),
	)

	client := jellyfin.NewClient(srv.URL(), apiKey, 2*time.Second)
	return &harness{
		repo:    repo,
		srv:     srv,
		clock:   clk,
		logs:    logs,
		sweeper: NewSweeper(repo, client, logs, nil, clk, Config{SessionScan: true}),
	}
}

// signup mirrors what the signup handler does: upstream account, then trial.
func (h *harness) signup(t *testing.T, username string) string {
	t.Helper()
	id := h.srv.AddUser(username, "password1", nil)
	if err := h.repo.CreateUserAccount(context.Background(), &models.UserAccount{Username: username, JellyfinID: id, CreatedAt: h.clock.Now()}); err != nil {
		t.Fatal(err)
	}
	if _, err := Enroll(context.Background(), h.repo, username, h.clock.Now()); err != nil {
		t.Fatal(err)
	}
	return id
}

func TestSweep_DisableScenario(t *testing.T) {
	t.Parallel()
	h := newHarness(t, models.ExpiryActionDisable, 1)
	ctx := context.Background()
	id := h.signup(t, "alice")

	// Still inside the trial.
	h.clock.Set(t0.Add(23 * time.Hour))
	sum, err := h.sweeper.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Processed != 0 || h.srv.User(id).IsDisabled() {
		t.Fatalf("active trial processed early: %+v", sum)
	}

	h.clock.Set(t0.Add(25 * time.Hour))
	sum, err = h.sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if sum.Processed != 1 || sum.Failed != 0 || sum.Action != models.ExpiryActionDisable {
		t.Fatalf("first sweep = %+v", sum)
	}
	if !h.srv.User(id).IsDisabled() {
		t.Error("alice should be disabled upstream")
	}
	rec, _ := h.repo.GetTrialUser(ctx, "alice")
	if !rec.IsExpired {
		t.Error("alice should be flagged expired")
	}

	h.clock.Set(t0.Add(26 * time.Hour))
	before := h.srv.Requests()
	sum, err = h.sweeper.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Processed != 0 || sum.Skipped != 1 {
		t.Errorf("second sweep = %+v, want 0 processed, 1 skipped", sum)
	}
	if h.srv.Requests() != before {
		t.Errorf("second sweep made %d upstream calls, want 0", h.srv.Requests()-before)
	}

	activity, _ := h.logs.Activity.Recent(ctx, 10)
	if len(activity) != 1 || activity[0].Activity != models.ActivityTrialExpired || activity[0].Username != "alice" {
		t.Errorf("activity log = %+v", activity)
	}
}

func TestSweep_DeleteAction(t *testing.T) {
	t.Parallel()
	h := newHarness(t, models.ExpiryActionDelete, 2)
	ctx := context.Background()
	id := h.signup(t, "bob")
	h.signup(t, "carol")

	h.clock.Set(t0.Add(49 * time.Hour))
	if _, err := h.repo.CreateTrialUser(ctx, "dave", t0.Add(48*time.Hour), t0.Add(96*time.Hour), 2); err != nil {
		t.Fatal(err)
	}

	sum, err := h.sweeper.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Processed != 2 || sum.Action != models.ExpiryActionDelete {
		t.Fatalf("sweep = %+v, want 2 processed", sum)
	}
	if h.srv.User(id) != nil {
		t.Error("bob should be deleted upstream")
	}
	if _, err := h.repo.GetTrialUser(ctx, "bob"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("bob trial record should be gone, err = %v", err)
	}
	if _, err := h.repo.GetUserAccount(ctx, "bob"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("bob account record should be gone, err = %v", err)
	}
	if _, err := h.repo.GetTrialUser(ctx, "dave"); err != nil {
		t.Errorf("dave should be untouched: %v", err)
	}

	sum, err = h.sweeper.Sweep(ctx)
	if err != nil || sum.Processed != 0 || sum.Failed != 0 {
		t.Errorf("repeat sweep = %+v, %v", sum, err)
	}
}

func TestSweep_UpstreamAlreadyGone(t *testing.T) {
	t.Parallel()

	for _, action := range []models.ExpiryAction{models.ExpiryActionDisable, models.ExpiryActionDelete} {
		t.Run(string(action), func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, action, 1)
			ctx := context.Background()
			if _, err := h.repo.CreateTrialUser(ctx, "ghost", t0, t0.Add(24*time.Hour), 1); err != nil {
				t.Fatal(err)
			}

			h.clock.Set(t0.Add(25 * time.Hour))
			sum, err := h.sweeper.Sweep(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if sum.Processed != 1 || sum.Failed != 0 {
				t.Errorf("sweep = %+v, want processed", sum)
			}
		})
	}
}

func TestSweep_IsolatesFailures(t *testing.T) {
	t.Parallel()
	h := newHarness(t, models.ExpiryActionDisable, 1)
	ctx := context.Background()
	badID := h.signup(t, "erin")
	goodID := h.signup(t, "frank")

	h.srv.FailRequests(http.MethodPost, "/Users/"+badID+"/Policy", http.StatusInternalServerError)
	h.clock.Set(t0.Add(25 * time.Hour))

	sum, err := h.sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error = %v; per-record failures must not be returned", err)
	}
	if sum.Processed != 1 || sum.Failed != 1 {
		t.Fatalf("sweep = %+v, want 1 processed 1 failed", sum)
	}
	if !h.srv.User(goodID).IsDisabled() {
		t.Error("frank should be disabled")
	}
	rec, _ := h.repo.GetTrialUser(ctx, "erin")
	if rec.IsExpired {
		t.Error("erin must stay unflagged so the next sweep retries")
	}

	h.srv.FailRequests(http.MethodPost, "/Users/"+badID+"/Policy", 0)
	sum, err = h.sweeper.Sweep(ctx)
	if err != nil || sum.Processed != 1 {
		t.Errorf("retry sweep = %+v, %v", sum, err)
	}
	if !h.srv.User(badID).IsDisabled() {
		t.Error("erin should be disabled after retry")
	}
}

type failingRepo struct {
	*storage.MemoryRepository
}

func (failingRepo) GetExpiredTrialUsers(context.Context, time.Time) ([]models.TrialUser, error) {
	return nil, errors.New("database down")
}

func TestSweep_ReadFailureIsReturned(t *testing.T) {
	t.Parallel()
	h := newHarness(t, models.ExpiryActionDisable, 1)
	s := NewSweeper(failingRepo{h.repo}, jellyfin.NewClient(h.srv.URL(), apiKey, time.Second), nil, nil, h.clock, Config{})

	if _, err := s.Sweep(context.Background()); err == nil {
		t.Error("expected read failure to be returned")
	}
}

func TestTick_RespectsTrialMode(t *testing.T) {
	t.Parallel()
	h := newHarness(t, models.ExpiryActionDisable, 1)
	ctx := context.Background()
	id := h.signup(t, "gail")

	off := false
	if _, err := h.repo.UpdateTrialSettings(ctx, models.TrialSettingsUpdate{Enabled: &off}); err != nil {
		t.Fatal(err)
	}
	h.clock.Set(t0.Add(25 * time.Hour))
	h.sweeper.Tick(ctx)
	if h.srv.User(id).IsDisabled() {
		t.Error("tick must not sweep while trial mode is off")
	}

	on := true
	if _, err := h.repo.UpdateTrialSettings(ctx, models.TrialSettingsUpdate{Enabled: &on}); err != nil {
		t.Fatal(err)
	}
	h.sweeper.Tick(ctx)
	if !h.srv.User(id).IsDisabled() {
		t.Error("tick should sweep once trial mode is on")
	}
}

func TestScanSessions(t *testing.T) {
	t.Parallel()
	h := newHarness(t, models.ExpiryActionDisable, 1)
	ctx := context.Background()

	h.srv.SetSessions([]jellyfin.Session{
		{ID: "1", UserName: "alice", RemoteEndPoint: "203.0.113.9:4000", Client: "Jellyfin Web", LastActivityDate: t0.Add(-time.Minute)},
		{ID: "2", UserName: "", RemoteEndPoint: "203.0.113.10"},
	})

	n, err := h.sweeper.ScanSessions(ctx)
	if err != nil || n != 1 {
		t.Fatalf("ScanSessions() = %d, %v; want 1", n, err)
	}

	// Nothing new since the last scan.
	h.clock.Advance(time.Hour)
	n, err = h.sweeper.ScanSessions(ctx)
	if err != nil || n != 0 {
		t.Fatalf("second ScanSessions() = %d, %v; want 0", n, err)
	}

	entries, _ := h.logs.Activity.Recent(ctx, 10)
	if len(entries) != 1 || entries[0].IP != "203.0.113.9" || entries[0].Activity != models.ActivitySession {
		t.Errorf("activity = %+v", entries)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Parallel()
	h := newHarness(t, models.ExpiryActionDisable, 1)
	s := NewSweeper(h.repo, jellyfin.NewClient(h.srv.URL(), apiKey, time.Second), nil, nil, h.clock, Config{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
