package admin

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lawjfmiranda/jurbot1/platform/config"
	"github.com/lawjfmiranda/jurbot1/platform/logger"
	"github.com/lawjfmiranda/jurbot1/platform/phone"
)

var (
	// ErrPaused means the engine is globally paused and the message must
	// not be processed.
	ErrPaused = errors.New("processing paused")

	// ErrRateLimited means the sender exceeded the message window.
	ErrRateLimited = errors.New("rate limited")
)

// Status is the operator-facing snapshot of the control state.
type Status struct {
	Paused      bool       `json:"paused"`
	PausedUntil *time.Time `json:"pausedUntil,omitempty"`
	WindowMax   int        `json:"windowMax"`
	Window      string     `json:"window"`
}

// Control gates inbound messages and executes operator commands.
// Gating never mutates conversation state; it runs before the engine.
type Control struct {
	store    Store
	operator string
	maxMsgs  int
	window   time.Duration
	log      *logger.Logger
}

// NewControl creates the admin control over the given store.
func NewControl(store Store, cfg config.AdminConfig, log *logger.Logger) *Control {
	return &Control{
		store:    store,
		operator: phone.NormalizeE164(cfg.GetOperatorIdentity()),
		maxMsgs:  cfg.GetRateLimitMax(),
		window:   cfg.GetRateLimitWindow(),
		log:      log,
	}
}

// IsOperator reports whether the identity is the configured operator.
func (c *Control) IsOperator(identity string) bool {
	return c.operator != "" && phone.NormalizeE164(identity) == c.operator
}

// Gate checks the pause flag and the sender's rate window. Returns ErrPaused
// or ErrRateLimited when the message must be rejected. The operator bypasses
// both checks. Store failures are logged and the message is allowed through:
// the rate limiter is a guard, not an authority, and a dead redis must not
// silence the intake line.
func (c *Control) Gate(ctx context.Context, identity string) error {
	if c.IsOperator(identity) {
		return nil
	}

	paused, _, err := c.store.PauseState(ctx)
	if err != nil {
		c.log.ExternalCallFailed("admin.store", err)
	} else if paused {
		return ErrPaused
	}

	count, err := c.store.IncrWindow(ctx, identity, c.window)
	if err != nil {
		c.log.ExternalCallFailed("admin.store", err)
		return nil
	}
	if count > c.maxMsgs {
		c.log.RateLimitExceeded(identity)
		return ErrRateLimited
	}
	return nil
}

// Pause activates the pause flag. Zero duration pauses indefinitely.
func (c *Control) Pause(ctx context.Context, d time.Duration) error {
	until := time.Time{}
	if d > 0 {
		until = time.Now().Add(d)
	}
	return c.store.SetPause(ctx, until)
}

// Resume clears the pause flag.
func (c *Control) Resume(ctx context.Context) error {
	return c.store.ClearPause(ctx)
}

// Status returns the current control state.
func (c *Control) Status(ctx context.Context) (Status, error) {
	paused, until, err := c.store.PauseState(ctx)
	if err != nil {
		return Status{}, err
	}
	status := Status{
		Paused:    paused,
		WindowMax: c.maxMsgs,
		Window:    c.window.String(),
	}
	if paused && !until.IsZero() {
		status.PausedUntil = &until
	}
	return status, nil
}

// HandleCommand intercepts operator chat commands. Returns the reply and
// true when the message was a command; non-operator senders never match.
func (c *Control) HandleCommand(ctx context.Context, identity, text string) (string, bool) {
	if !c.IsOperator(identity) {
		return "", false
	}

	fields := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	if len(fields) == 0 {
		return "", false
	}

	switch fields[0] {
	case "pausar", "pause":
		d := time.Duration(0)
		if len(fields) > 1 {
			if minutes, err := strconv.Atoi(fields[1]); err == nil && minutes > 0 {
				d = time.Duration(minutes) * time.Minute
			}
		}
		if err := c.Pause(ctx, d); err != nil {
			c.log.ExternalCallFailed("admin.store", err)
			return "❌ Não consegui pausar o atendimento.", true
		}
		if d > 0 {
			return fmt.Sprintf("⏸️ Atendimento pausado por %d minutos.", int(d.Minutes())), true
		}
		return "⏸️ Atendimento pausado até segunda ordem.", true

	case "retomar", "resume", "voltar":
		if err := c.Resume(ctx); err != nil {
			c.log.ExternalCallFailed("admin.store", err)
			return "❌ Não consegui retomar o atendimento.", true
		}
		return "▶️ Atendimento retomado.", true

	case "status":
		status, err := c.Status(ctx)
		if err != nil {
			c.log.ExternalCallFailed("admin.store", err)
			return "❌ Não consegui consultar o status.", true
		}
		if !status.Paused {
			return "✅ Atendimento ativo.", true
		}
		if status.PausedUntil != nil {
			return fmt.Sprintf("⏸️ Atendimento pausado até %s.", status.PausedUntil.Format("02/01 15:04")), true
		}
		return "⏸️ Atendimento pausado até segunda ordem.", true
	}

	return "", false
}
