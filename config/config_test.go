package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewConfigDerivesURLs(t *testing.T) {
	t.Setenv("BB_BASE", "https://school.example///")
	t.Setenv("BB_LOGIN_URL", "")
	t.Setenv("BB_ASSIGN_URL", "")

	cfg, err := NewConfig("")
	require.NoError(t, err)
	require.Equal(t, "https://school.example", cfg.BaseURL)
	require.Equal(t, "https://school.example/app/login", cfg.LoginURL)
	require.Equal(t, "https://school.example/app/student#assignment-center", cfg.AssignURL)
	require.Equal(t, []string{
		"https://school.example/app/login",
		"https://school.example/app#login",
		"https://school.example",
	}, cfg.EntryURLs())
}

func TestNewConfigURLOverrides(t *testing.T) {
	t.Setenv("BB_BASE", "https://school.example")
	t.Setenv("BB_LOGIN_URL", "https://school.example/custom/signin")

	cfg, err := NewConfig("")
	require.NoError(t, err)
	require.Equal(t, "https://school.example/custom/signin", cfg.LoginURL)
}

func TestSelectorDefaultsAndOverride(t *testing.T) {
	t.Setenv("SEL_DETAIL_TITLE", ".custom-title")

	cfg, err := NewConfig("")
	require.NoError(t, err)
	require.Equal(t, ".custom-title", cfg.Selectors.Title)
	// untouched selectors keep their documented defaults
	require.NotEmpty(t, cfg.Selectors.Due)
	require.NotEmpty(t, cfg.Selectors.ListLinkPrecise)
	require.NotEmpty(t, cfg.Selectors.ListViewToggle)
}

func TestValidateReportsMissing(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "BB_USERNAME")
	require.Contains(t, err.Error(), "BB_PASSWORD")
	require.Contains(t, err.Error(), "BB_BASE")

	cfg = &Config{Username: "u", Password: "p", BaseURL: "https://school.example"}
	require.NoError(t, cfg.Validate())
}
