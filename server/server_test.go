package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bbscraper/auth"
	"bbscraper/config"
	"bbscraper/types"

	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.NewConfig("")
	require.NoError(t, err)
	cfg.WebhookSecret = "s3cret"
	cfg.Username = "student@school.example"
	cfg.Password = "hunter2"
	cfg.BaseURL = "https://school.example"
	return cfg
}

func doScrape(t *testing.T, cfg *config.Config, scrape ScrapeFunc, secret string) *httptest.ResponseRecorder {
	t.Helper()
	srv := New(cfg, scrape)
	req := httptest.NewRequest(http.MethodPost, "/scrape", nil)
	if secret != "" {
		req.Header.Set(SecretHeader, secret)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func staticResult(result *types.ScrapeResult, err error) ScrapeFunc {
	return func(context.Context) (*types.ScrapeResult, error) { return result, err }
}

func TestHealth(t *testing.T) {
	srv := New(testConfig(t), staticResult(nil, nil))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())
}

func TestScrapeSecretMismatch(t *testing.T) {
	cfg := testConfig(t)
	scrape := staticResult(&types.ScrapeResult{}, nil)

	for _, secret := range []string{"", "wrong", "S3CRET", "s3cret2", "s3cret "} {
		rec := doScrape(t, cfg, scrape, secret)
		if secret == "s3cret " {
			// trailing whitespace is trimmed before comparison, so this
			// one matches
			require.Equal(t, http.StatusOK, rec.Code)
			continue
		}
		require.Equal(t, http.StatusUnauthorized, rec.Code, "secret=%q", secret)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "unauthorized", body["error"])
	}
}

func TestScrapeMissingConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Username = ""
	cfg.BaseURL = ""

	rec := doScrape(t, cfg, staticResult(&types.ScrapeResult{}, nil), "s3cret")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body["error"], "BB_USERNAME")
	require.Contains(t, body["error"], "BB_BASE")
}

func TestScrapeSuccess(t *testing.T) {
	cfg := testConfig(t)
	result := &types.ScrapeResult{
		ScrapedAt: time.Now().UTC(),
		Assignments: []types.Assignment{
			{
				Title: "Essay",
				URL:   "https://school.example/lms-assignment/assignment/assignment-student-view/1",
				Resources: []types.Resource{
					{Name: "Background reading", Href: "https://en.wikipedia.org/wiki/Essay", MimeType: types.LinkMimeType},
				},
			},
		},
	}

	rec := doScrape(t, cfg, staticResult(result, nil), "s3cret")
	require.Equal(t, http.StatusOK, rec.Code)

	var decoded types.ScrapeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	require.Len(t, decoded.Assignments, 1)
	require.Equal(t, "text/html", decoded.Assignments[0].Resources[0].MimeType)
	require.WithinDuration(t, time.Now().UTC(), decoded.ScrapedAt, time.Minute)
}

func TestScrapeAuthenticationFailure(t *testing.T) {
	cfg := testConfig(t)
	scrape := staticResult(nil, &auth.FailedError{LastURL: "https://school.example/app/login"})

	rec := doScrape(t, cfg, scrape, "s3cret")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body["error"], "https://school.example/app/login")
}

func TestScrapeGenericFailure(t *testing.T) {
	cfg := testConfig(t)
	rec := doScrape(t, cfg, staticResult(nil, errors.New("browser crashed")), "s3cret")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestScrapeAppliesDeadline(t *testing.T) {
	cfg := testConfig(t)
	cfg.ScrapeTimeoutSeconds = 1

	var deadlineSet bool
	scrape := func(ctx context.Context) (*types.ScrapeResult, error) {
		_, deadlineSet = ctx.Deadline()
		return &types.ScrapeResult{}, nil
	}

	rec := doScrape(t, cfg, scrape, "s3cret")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, deadlineSet)
}

func TestScrapeMethodNotAllowed(t *testing.T) {
	srv := New(testConfig(t), staticResult(nil, nil))
	req := httptest.NewRequest(http.MethodGet, "/scrape", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
