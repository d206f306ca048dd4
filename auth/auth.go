// Package auth drives a browser session from an unauthenticated entry
// page to an authenticated landing state. The portal may present a
// native credential form, an institutional SSO button, a federated
// identity provider, or any mix of them, so the flow is a probe-then-act
// state machine: each step tests for its marker under a bounded wait,
// acts when the marker is present and is skipped otherwise.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"bbscraper/browser"
	"bbscraper/config"
	"bbscraper/log"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("bbscraper/auth")

// FailedError is returned when the retry budget is spent without the
// login marker clearing from the URL.
type FailedError struct {
	LastURL string
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("authentication failed, last seen url: %s", e.LastURL)
}

// IsLoginURL reports whether the url still carries the login marker,
// ie whether the app considers the user unauthenticated.
func IsLoginURL(url, marker string) bool {
	return strings.Contains(strings.ToLower(url), strings.ToLower(marker))
}

// Surface is the set of page operations the state machine drives. It is
// satisfied by browser pages through NewPageSurface and by fakes in
// tests.
type Surface interface {
	Navigate(url string) error
	Location() (string, error)
	Exists(sel string) bool
	ClickFirst(sel string) (bool, error)
	Fill(sel, value string) error
	Settle() error
	// ExpectPopup races a bounded wait for a new top-level surface
	// against the trigger. The second return value reports whether one
	// appeared.
	ExpectPopup(trigger func() error) (Surface, bool, error)
	Close()
}

type pageSurface struct {
	*browser.Page
}

func (p pageSurface) ExpectPopup(trigger func() error) (Surface, bool, error) {
	popup, ok, err := p.Page.ExpectPopup(trigger)
	if !ok || err != nil {
		return nil, ok, err
	}
	return pageSurface{popup}, true, nil
}

// NewPageSurface adapts a browser page to the Surface the state machine
// operates on.
func NewPageSurface(p *browser.Page) Surface {
	return pageSurface{p}
}

// step is one (marker, action) pair of the strategy table. Actions may
// return a new operating surface when authentication moves to a popup.
type step struct {
	name   string
	marker string
	run    func(s Surface) (Surface, error)
}

// Authenticator is the login/navigation state machine.
type Authenticator struct {
	cfg      *config.Config
	entryURL string
	retries  int
}

func New(cfg *config.Config, entryURL string) *Authenticator {
	retries := cfg.LoginRetries
	if retries <= 0 {
		retries = 3
	}
	return &Authenticator{
		cfg:      cfg,
		entryURL: entryURL,
		retries:  retries,
	}
}

// steps returns the strategy table in priority order. Adding a new
// identity-provider variant means adding a row here, not a branch.
func (a *Authenticator) steps() []step {
	sel := a.cfg.Selectors
	return []step{
		{
			name:   "native-credentials",
			marker: sel.UsernameInput,
			run: func(s Surface) (Surface, error) {
				if err := s.Fill(sel.UsernameInput, a.cfg.Username); err != nil {
					return s, err
				}
				if err := s.Fill(sel.PasswordInput, a.cfg.Password); err != nil {
					return s, err
				}
				_, err := s.ClickFirst(sel.SubmitButton)
				return s, err
			},
		},
		{
			name:   "sso-launch",
			marker: sel.SSOButton,
			run: func(s Surface) (Surface, error) {
				// the identity provider may open its own top-level
				// surface; if it does, it becomes the operating surface
				popup, opened, err := s.ExpectPopup(func() error {
					_, err := s.ClickFirst(sel.SSOButton)
					return err
				})
				if err != nil {
					return s, err
				}
				if opened {
					return popup, nil
				}
				return s, nil
			},
		},
		{
			name:   "federated-email",
			marker: sel.EmailInput,
			run: func(s Surface) (Surface, error) {
				if err := s.Fill(sel.EmailInput, a.cfg.Username); err != nil {
					return s, err
				}
				_, err := s.ClickFirst(sel.NextButton)
				return s, err
			},
		},
		{
			name:   "federated-password",
			marker: sel.FederatedPass,
			run: func(s Surface) (Surface, error) {
				if err := s.Fill(sel.FederatedPass, a.cfg.Password); err != nil {
					return s, err
				}
				_, err := s.ClickFirst(sel.SubmitButton)
				return s, err
			},
		},
		{
			name:   "device-trust",
			marker: sel.TrustMarker,
			run: func(s Surface) (Surface, error) {
				// prefer the explicit affirmative, fall back to any
				// available dismissal
				clicked, err := s.ClickFirst(sel.TrustAffirm)
				if err != nil || clicked {
					return s, err
				}
				_, err = s.ClickFirst(sel.TrustDismiss)
				return s, err
			},
		},
	}
}

// Login advances the session to an authenticated state. The whole flow
// is restarted from the entry page after a failed confirmation, at most
// a.retries times; cookies are kept across attempts since a retry models
// recovery from a rendering race, not a full re-authentication.
func (a *Authenticator) Login(ctx context.Context, primary Surface) error {
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()
	logger := log.LoggerFromContext(ctx)

	lastURL := a.entryURL
	for attempt := 1; attempt <= a.retries; attempt++ {
		logger.Info("starting login attempt", slog.Int("attempt", attempt), slog.Int("budget", a.retries))

		if err := primary.Navigate(a.entryURL); err != nil {
			return fmt.Errorf("failed to open login entry page: %w", err)
		}

		operating := primary
		for _, st := range a.steps() {
			if !operating.Exists(st.marker) {
				logger.Debug("step marker absent, skipping", slog.String("step", st.name))
				continue
			}
			logger.Debug("step marker found, acting", slog.String("step", st.name))
			next, err := st.run(operating)
			if err != nil {
				logger.Warn("step failed", slog.String("step", st.name), slog.String("err", err.Error()))
				break
			}
			if next != operating && next != nil {
				logger.Info("identity provider opened a new surface, switching", slog.String("step", st.name))
				operating = next
			}
			if err := operating.Settle(); err != nil {
				break
			}
		}

		// fold back to a single surface before confirming
		if operating != primary {
			operating.Close()
			if err := primary.Settle(); err != nil {
				return err
			}
		}

		loc, err := primary.Location()
		if err != nil {
			return fmt.Errorf("failed to read location after login attempt: %w", err)
		}
		lastURL = loc
		if !IsLoginURL(loc, a.cfg.LoginMarker) {
			logger.Info("login confirmed", slog.String("url", loc))
			return nil
		}
		logger.Warn("landed url still carries the login marker", slog.String("url", loc))
	}

	return &FailedError{LastURL: lastURL}
}
