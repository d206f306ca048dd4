package auth

import (
	"context"
	"testing"

	"bbscraper/config"

	"github.com/stretchr/testify/require"
)

const (
	loginURL  = "https://school.example/app/login"
	landedURL = "https://school.example/app/student#assignment-center"
)

type fakeSurface struct {
	present   map[string]bool
	location  string
	filled    map[string]string
	clicked   []string
	navigates int
	popup     *fakeSurface
	closed    bool
	// onClick lets a test flip surface state when a given selector is
	// clicked, eg landing the session after a submit
	onClick func(f *fakeSurface, sel string)
}

func newFakeSurface(location string) *fakeSurface {
	return &fakeSurface{
		present:  map[string]bool{},
		location: location,
		filled:   map[string]string{},
	}
}

func (f *fakeSurface) Navigate(url string) error { f.navigates++; return nil }
func (f *fakeSurface) Location() (string, error) { return f.location, nil }
func (f *fakeSurface) Exists(sel string) bool    { return f.present[sel] }
func (f *fakeSurface) Settle() error             { return nil }
func (f *fakeSurface) Close()                    { f.closed = true }

func (f *fakeSurface) ClickFirst(sel string) (bool, error) {
	if !f.present[sel] {
		return false, nil
	}
	f.clicked = append(f.clicked, sel)
	if f.onClick != nil {
		f.onClick(f, sel)
	}
	return true, nil
}

func (f *fakeSurface) Fill(sel, value string) error {
	f.filled[sel] = value
	return nil
}

func (f *fakeSurface) ExpectPopup(trigger func() error) (Surface, bool, error) {
	if err := trigger(); err != nil {
		return nil, false, err
	}
	if f.popup != nil {
		return f.popup, true, nil
	}
	return nil, false, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.NewConfig("")
	require.NoError(t, err)
	cfg.Username = "student@school.example"
	cfg.Password = "hunter2"
	cfg.BaseURL = "https://school.example"
	cfg.LoginRetries = 3
	return cfg
}

func TestLoginNativeForm(t *testing.T) {
	cfg := testConfig(t)
	sel := cfg.Selectors

	surface := newFakeSurface(loginURL)
	surface.present[sel.UsernameInput] = true
	surface.present[sel.SubmitButton] = true
	surface.onClick = func(f *fakeSurface, clicked string) {
		if clicked == sel.SubmitButton {
			f.location = landedURL
		}
	}

	err := New(cfg, loginURL).Login(context.Background(), surface)
	require.NoError(t, err)
	require.Equal(t, "student@school.example", surface.filled[sel.UsernameInput])
	require.Equal(t, "hunter2", surface.filled[sel.PasswordInput])
	require.Equal(t, 1, surface.navigates)
}

func TestLoginRetryBudgetExact(t *testing.T) {
	// the login marker never clears: the machine must give up after
	// exactly its retry budget, not fewer attempts and not unbounded
	cfg := testConfig(t)
	cfg.LoginRetries = 3

	surface := newFakeSurface(loginURL)

	err := New(cfg, loginURL).Login(context.Background(), surface)

	var failed *FailedError
	require.ErrorAs(t, err, &failed)
	require.Equal(t, loginURL, failed.LastURL)
	require.Equal(t, 3, surface.navigates)
}

func TestLoginSwitchesToPopupSurface(t *testing.T) {
	cfg := testConfig(t)
	sel := cfg.Selectors

	popup := newFakeSurface("https://idp.example/authorize")
	popup.present[sel.EmailInput] = true
	popup.present[sel.NextButton] = true
	popup.present[sel.FederatedPass] = true
	popup.present[sel.SubmitButton] = true

	primary := newFakeSurface(loginURL)
	primary.present[sel.SSOButton] = true
	primary.popup = popup
	popup.onClick = func(f *fakeSurface, clicked string) {
		if clicked == sel.SubmitButton {
			// completing auth on the popup lands the primary surface
			primary.location = landedURL
		}
	}

	err := New(cfg, loginURL).Login(context.Background(), primary)
	require.NoError(t, err)
	require.Equal(t, "student@school.example", popup.filled[sel.EmailInput])
	require.Equal(t, "hunter2", popup.filled[sel.FederatedPass])
	// the abandoned surface is cleaned up on fold-back
	require.True(t, popup.closed)
	require.False(t, primary.closed)
}

func TestLoginDeviceTrustPrefersAffirmative(t *testing.T) {
	cfg := testConfig(t)
	sel := cfg.Selectors

	surface := newFakeSurface(loginURL)
	surface.present[sel.TrustMarker] = true
	surface.present[sel.TrustAffirm] = true
	surface.present[sel.TrustDismiss] = true
	surface.onClick = func(f *fakeSurface, clicked string) {
		if clicked == sel.TrustAffirm {
			f.location = landedURL
		}
	}

	err := New(cfg, loginURL).Login(context.Background(), surface)
	require.NoError(t, err)
	require.Equal(t, []string{sel.TrustAffirm}, surface.clicked)
}

func TestLoginDeviceTrustFallsBackToDismissal(t *testing.T) {
	cfg := testConfig(t)
	sel := cfg.Selectors

	surface := newFakeSurface(loginURL)
	surface.present[sel.TrustMarker] = true
	surface.present[sel.TrustDismiss] = true
	surface.onClick = func(f *fakeSurface, clicked string) {
		if clicked == sel.TrustDismiss {
			f.location = landedURL
		}
	}

	err := New(cfg, loginURL).Login(context.Background(), surface)
	require.NoError(t, err)
	require.Equal(t, []string{sel.TrustDismiss}, surface.clicked)
}

func TestIsLoginURL(t *testing.T) {
	require.True(t, IsLoginURL("https://school.example/app/login", "login"))
	require.True(t, IsLoginURL("https://school.example/app#Login", "login"))
	require.False(t, IsLoginURL(landedURL, "login"))
}
