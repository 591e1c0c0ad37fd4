// Package notify pushes critical warnings to the operator's phone through Pushover.
package notify

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/autodash/simulator/internal/config"
	"github.com/autodash/simulator/pkg/core"
	"github.com/cenkalti/backoff"
	"github.com/gregdel/pushover"
	"github.com/pkg/errors"
)

// DefaultCooldown suppresses repeats of the same warning.
const DefaultCooldown = time.Minute

// Sender is the part of *pushover.Pushover used here.
type Sender interface {
	SendMessage(*pushover.Message, *pushover.Recipient) (*pushover.Response, error)
}

// PushoverFacade is a wrapper on a Pushover client and a recipient. It
// simplifies function signatures that depend on both.
type PushoverFacade struct {
	push      Sender
	recipient *pushover.Recipient
	log       *slog.Logger

	newBackOff func() backoff.BackOff
	cooldown   time.Duration
	now        func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
	wg       sync.WaitGroup
}

// Option configures a PushoverFacade.
type Option func(*PushoverFacade)

// WithBackOff replaces the retry policy.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(p *PushoverFacade) { p.newBackOff = f }
}

// WithCooldown sets how long a warning message stays muted after being sent.
func WithCooldown(d time.Duration) Option {
	return func(p *PushoverFacade) { p.cooldown = d }
}

// WithNow replaces the clock used for the cooldown.
func WithNow(now func() time.Time) Option {
	return func(p *PushoverFacade) { p.now = now }
}

// New builds a facade from config. It returns nil when notifications are disabled.
func New(cfg config.NotifyConfig, logger *slog.Logger, opts ...Option) *PushoverFacade {
	if !cfg.Enabled || cfg.Token == "" || cfg.User == "" {
		return nil
	}
	return NewWithSender(pushover.New(cfg.Token), cfg.User, logger, opts...)
}

// NewWithSender builds a facade around any Sender.
func NewWithSender(push Sender, user string, logger *slog.Logger, opts ...Option) *PushoverFacade {
	if logger == nil {
		logger = slog.Default()
	}
	p := &PushoverFacade{
		push:      push,
		recipient: pushover.NewRecipient(user),
		log:       logger.With("component", "notify"),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 2 * time.Minute
			return b
		},
		cooldown: DefaultCooldown,
		now:      time.Now,
		lastSent: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SendMessageWithTitle sends one message, retrying with backoff.
func (p *PushoverFacade) SendMessageWithTitle(message, title string) (*pushover.Response, error) {
	onError := func(e error, d time.Duration) {
		p.log.Warn("Error sending Pushover message", "retryIn", d.Round(time.Millisecond), "error", e)
	}

	var resp *pushover.Response
	finalErr := backoff.RetryNotify(func() error {
		var err error
		resp, err = p.push.SendMessage(pushover.NewMessageWithTitle(message, title), p.recipient)
		return err
	}, p.newBackOff(), onError)
	return resp, errors.Wrap(finalErr, fmt.Sprintf("could not send %q after multiple tries", title))
}

// NotifyWarning sends raised critical warnings in the background. Other events
// and repeats inside the cooldown are ignored. It reports whether a send was started.
// A nil facade does nothing.
func (p *PushoverFacade) NotifyWarning(e core.WarningEvent) bool {
	if p == nil || !e.Raised || e.Level != core.LevelCritical {
		return false
	}

	p.mu.Lock()
	now := p.now()
	if last, ok := p.lastSent[e.Message]; ok && now.Sub(last) < p.cooldown {
		p.mu.Unlock()
		return false
	}
	p.lastSent[e.Message] = now
	p.mu.Unlock()

	title := fmt.Sprintf("autodash: %s", e.Message)
	message := fmt.Sprintf("%s at tick %d (session %s)", e.Message, e.Tick, e.SessionID)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if _, err := p.SendMessageWithTitle(message, title); err != nil {
			p.log.Error("Cannot send Pushover message", "error", err)
		}
	}()
	return true
}

// Wait blocks until background sends finish.
func (p *PushoverFacade) Wait() {
	if p == nil {
		return
	}
	p.wg.Wait()
}
