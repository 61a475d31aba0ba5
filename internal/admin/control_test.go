package admin

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lawjfmiranda/jurbot1/platform/config"
	"github.com/lawjfmiranda/jurbot1/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const (
	operatorNumber = "+5511988887777"
	senderNumber   = "+5511999990000"
)

func testConfig(max int, window time.Duration) *config.Config {
	return &config.Config{
		OperatorIdentity: operatorNumber,
		RateLimitMax:     max,
		RateLimitWindow:  window,
	}
}

func newRedisControl(t *testing.T, max int, window time.Duration) (*Control, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	control := NewControl(NewRedisStore(client), testConfig(max, window), logger.New("development"))
	return control, mr
}

func TestGateAllowsWithinWindow(t *testing.T) {
	control, _ := newRedisControl(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := control.Gate(ctx, senderNumber); err != nil {
			t.Fatalf("message %d: unexpected %v", i+1, err)
		}
	}
	if err := control.Gate(ctx, senderNumber); !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
}

func TestGateWindowResets(t *testing.T) {
	control, mr := newRedisControl(t, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := control.Gate(ctx, senderNumber); err != nil {
			t.Fatalf("unexpected %v", err)
		}
	}
	if err := control.Gate(ctx, senderNumber); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	mr.FastForward(61 * time.Second)

	if err := control.Gate(ctx, senderNumber); err != nil {
		t.Errorf("expected fresh window after expiry, got %v", err)
	}
}

func TestGateIsolatesSenders(t *testing.T) {
	control, _ := newRedisControl(t, 1, time.Minute)
	ctx := context.Background()

	if err := control.Gate(ctx, senderNumber); err != nil {
		t.Fatalf("unexpected %v", err)
	}
	if err := control.Gate(ctx, "+5521977776666"); err != nil {
		t.Errorf("other sender must have own window, got %v", err)
	}
}

func TestGatePaused(t *testing.T) {
	control, _ := newRedisControl(t, 10, time.Minute)
	ctx := context.Background()

	if err := control.Pause(ctx, 0); err != nil {
		t.Fatalf("pause: %v", err)
	}

	if err := control.Gate(ctx, senderNumber); !errors.Is(err, ErrPaused) {
		t.Errorf("expected ErrPaused, got %v", err)
	}
	// The operator bypasses the pause so it can send the resume command.
	if err := control.Gate(ctx, operatorNumber); err != nil {
		t.Errorf("operator must bypass pause, got %v", err)
	}

	if err := control.Resume(ctx); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if err := control.Gate(ctx, senderNumber); err != nil {
		t.Errorf("expected pass after resume, got %v", err)
	}
}

func TestTimedPauseExpires(t *testing.T) {
	control, mr := newRedisControl(t, 10, time.Minute)
	ctx := context.Background()

	if err := control.Pause(ctx, 5*time.Minute); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := control.Gate(ctx, senderNumber); !errors.Is(err, ErrPaused) {
		t.Fatalf("expected ErrPaused, got %v", err)
	}

	status, err := control.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.Paused || status.PausedUntil == nil {
		t.Errorf("expected timed pause in status, got %+v", status)
	}

	mr.FastForward(6 * time.Minute)

	if err := control.Gate(ctx, senderNumber); err != nil {
		t.Errorf("expected pass after pause expiry, got %v", err)
	}
}

func TestGateFailsOpenOnStoreError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	control := NewControl(NewRedisStore(client), testConfig(1, time.Minute), logger.New("development"))

	mr.Close()

	if err := control.Gate(context.Background(), senderNumber); err != nil {
		t.Errorf("expected fail-open on store error, got %v", err)
	}
}

func TestMemoryStoreWindow(t *testing.T) {
	store := NewMemoryStore()
	current := time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		count, err := store.IncrWindow(ctx, senderNumber, time.Minute)
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if count != i {
			t.Errorf("expected count %d, got %d", i, count)
		}
	}

	current = current.Add(61 * time.Second)
	count, err := store.IncrWindow(ctx, senderNumber, time.Minute)
	if err != nil {
		t.Fatalf("incr: %v", err)
	}
	if count != 1 {
		t.Errorf("expected fresh window, got count %d", count)
	}
}

func TestMemoryStoreTimedPause(t *testing.T) {
	store := NewMemoryStore()
	current := time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }
	ctx := context.Background()

	if err := store.SetPause(ctx, current.Add(5*time.Minute)); err != nil {
		t.Fatalf("set pause: %v", err)
	}
	paused, _, err := store.PauseState(ctx)
	if err != nil || !paused {
		t.Fatalf("expected paused, got %v %v", paused, err)
	}

	current = current.Add(6 * time.Minute)
	paused, _, err = store.PauseState(ctx)
	if err != nil || paused {
		t.Errorf("expected pause expired, got %v %v", paused, err)
	}
}

func TestHandleCommand(t *testing.T) {
	control, _ := newRedisControl(t, 10, time.Minute)
	ctx := context.Background()

	if _, handled := control.HandleCommand(ctx, senderNumber, "pausar"); handled {
		t.Error("non-operator must not issue commands")
	}

	reply, handled := control.HandleCommand(ctx, operatorNumber, "pausar 30")
	if !handled || !strings.Contains(reply, "30") {
		t.Errorf("expected timed pause reply, got (%q, %v)", reply, handled)
	}
	if err := control.Gate(ctx, senderNumber); !errors.Is(err, ErrPaused) {
		t.Errorf("expected ErrPaused after command, got %v", err)
	}

	reply, handled = control.HandleCommand(ctx, operatorNumber, "status")
	if !handled || !strings.Contains(reply, "pausado") {
		t.Errorf("expected paused status reply, got (%q, %v)", reply, handled)
	}

	reply, handled = control.HandleCommand(ctx, operatorNumber, "retomar")
	if !handled || !strings.Contains(reply, "retomado") {
		t.Errorf("expected resume reply, got (%q, %v)", reply, handled)
	}
	if err := control.Gate(ctx, senderNumber); err != nil {
		t.Errorf("expected pass after resume, got %v", err)
	}

	if _, handled := control.HandleCommand(ctx, operatorNumber, "bom dia"); handled {
		t.Error("ordinary text must not be treated as a command")
	}
}
