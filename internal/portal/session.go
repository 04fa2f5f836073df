// Package portal drives the billing portal's rendered UI: authenticated
// session establishment, per-account search, result pagination and row
// extraction, and per-row document downloads.
package portal

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/grupomas/invoice-cli/internal/browser"
	"github.com/grupomas/invoice-cli/internal/config"
	"github.com/grupomas/invoice-cli/internal/resilience"
)

// Session is one authenticated interactive context. Exactly one exists per
// batch run; it is shared, never copied, and closed exactly once.
type Session struct {
	engine browser.Engine
	page   browser.Page

	closeOnce sync.Once
	closeErr  error
}

// NewSession wraps an engine and its authenticated page.
func NewSession(engine browser.Engine, page browser.Page) *Session {
	return &Session{engine: engine, page: page}
}

// Page returns the authenticated page.
func (s *Session) Page() browser.Page { return s.page }

// Close tears down the browser engine. Safe to call more than once; only
// the first call does work.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.engine.Close()
	})
	return s.closeErr
}

// Manager establishes authenticated sessions with a bounded retry budget.
// Each attempt opens a fresh interactive context so no partial login state
// survives into the next attempt.
type Manager struct {
	cfg     *config.Config
	factory browser.Factory
}

// NewManager creates a session manager backed by the given engine factory.
func NewManager(cfg *config.Config, factory browser.Factory) *Manager {
	return &Manager{cfg: cfg, factory: factory}
}

// Authenticate logs into the portal. On exhaustion of the attempt budget the
// engine is torn down once and ErrAuth is returned; on success the caller
// owns the returned session and must close it.
func (m *Manager) Authenticate(ctx context.Context) (*Session, error) {
	log := zap.L().With(zap.String("component", "portal.session"))

	engine, err := m.factory(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "portal: launch engine")
	}

	retryCfg := resilience.RetryConfig{
		MaxAttempts: m.cfg.Auth.MaxAttempts,
		Delay:       m.cfg.Auth.RetryDelay(),
		OnRetry:     resilience.RetryLogger("portal.session", "authenticate"),
	}

	page, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (browser.Page, error) {
		return m.attempt(ctx, engine, log)
	})
	if err != nil {
		// Budget exhausted: the one teardown for the failed batch.
		if closeErr := engine.Close(); closeErr != nil {
			log.Warn("engine teardown after auth failure", zap.Error(closeErr))
		}
		return nil, eris.Wrapf(ErrAuth, "after %d attempts: %v", m.cfg.Auth.MaxAttempts, err)
	}

	return NewSession(engine, page), nil
}

// attempt runs one full login attempt in a fresh interactive context.
func (m *Manager) attempt(ctx context.Context, engine browser.Engine, log *zap.Logger) (browser.Page, error) {
	sel := m.cfg.Selectors

	page, err := engine.NewContext(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "portal: open context")
	}

	if err := page.Navigate(ctx, m.cfg.Portal.LoginURL); err != nil {
		return nil, err
	}
	if err := page.WaitVisible(ctx, sel.LoginForm, m.cfg.Timeouts.LoginForm()); err != nil {
		return nil, eris.Wrap(err, "portal: login form")
	}
	if err := page.Fill(ctx, sel.UsernameInput, m.cfg.Portal.Username); err != nil {
		return nil, err
	}
	if err := page.Fill(ctx, sel.PasswordInput, m.cfg.Portal.Password); err != nil {
		return nil, err
	}
	if err := page.Click(ctx, sel.LoginButton); err != nil {
		return nil, err
	}

	// The redirect is the success criterion: the post-login location must
	// sit under the success root and must not be the login surface.
	err = page.WaitFor(ctx, m.cfg.Auth.LoginWait(), func(ctx context.Context) (bool, error) {
		loc, err := page.Location(ctx)
		if err != nil {
			return false, nil
		}
		return m.loggedIn(loc), nil
	})
	if err != nil {
		m.logLoginFailure(ctx, page, log)
		return nil, eris.Wrap(err, "portal: post-login redirect")
	}

	m.dismissCookieBanner(ctx, page, log)

	// Confirmation only; the redirect already decided the attempt.
	if probe := sel.PostLoginProbe; probe != "" {
		if err := page.WaitVisible(ctx, probe, m.cfg.Timeouts.PostLoginProbe()); err != nil {
			log.Debug("post-login probe not visible", zap.String("selector", probe))
		}
	}

	loc, _ := page.Location(ctx)
	log.Info("login successful", zap.String("location", loc))
	return page, nil
}

func (m *Manager) loggedIn(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(location, m.cfg.Portal.SuccessURLRoot) &&
		!strings.Contains(lower, "login")
}

// logLoginFailure distinguishes a credential rejection from a plain redirect
// timeout in the logs. Both count as one failed attempt either way.
func (m *Manager) logLoginFailure(ctx context.Context, page browser.Page, log *zap.Logger) {
	loc, err := page.Location(ctx)
	if err != nil {
		log.Warn("login attempt failed, location unavailable", zap.Error(err))
		return
	}
	if strings.HasPrefix(loc, m.cfg.Portal.LoginURL) {
		if visible, _ := page.IsVisible(ctx, m.cfg.Selectors.LoginError); visible {
			log.Warn("login rejected: credential error indicator visible", zap.String("location", loc))
			return
		}
		log.Warn("login timed out: still on login surface", zap.String("location", loc))
		return
	}
	log.Warn("login timed out", zap.String("location", loc))
}

// dismissCookieBanner accepts the consent banner when present. Absence
// within the short wait is a non-event.
func (m *Manager) dismissCookieBanner(ctx context.Context, page browser.Page, log *zap.Logger) {
	sel := m.cfg.Selectors.CookieConsent
	if sel == "" {
		return
	}
	if err := page.WaitVisible(ctx, sel, m.cfg.Timeouts.CookieBanner()); err != nil {
		log.Debug("cookie banner not detected")
		return
	}
	if err := page.Click(ctx, sel); err != nil {
		log.Debug("cookie banner click failed", zap.Error(err))
		return
	}
	log.Debug("cookie banner accepted")
}
