// Package config holds the process-wide configuration. Values are read
// once at start-up from an optional yaml file and from environment
// variables, and are treated as read-only afterwards.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

type ctxKey string

// LoggerCtxKey is the context key under which a request-scoped logger is
// stored.
const LoggerCtxKey ctxKey = "logger"

var Debug = false

// Selectors groups every locator the scraper uses so the whole set can be
// audited (and overridden) as one typed unit. The defaults target the
// stock Blackbaud student app markup; every field has an env override
// since the site's markup is outside our control and expected to drift.
type Selectors struct {
	// assignment list discovery, strictest tier first
	ListLinkPrecise string `yaml:"list_link_precise" env:"SEL_LIST_LINK_PRECISE" env-default:"a[href*='lms-assignment/assignment/assignment-student-view']"`
	ListLinkLoose   string `yaml:"list_link_loose" env:"SEL_LIST_LINK_LOOSE" env-default:"a[href*='assignment-detail'], a[href*='lms-assignment']"`
	ListLinkKeyword string `yaml:"list_link_keyword" env:"SEL_LIST_LINK_KEYWORD" env-default:"assignment"`
	ListContainer   string `yaml:"list_container" env:"SEL_LIST_CONTAINER" env-default:"#assignment-center-list-view, .assignment-center"`
	// list-view toggle label variants, tried in order, best effort
	ListViewToggle []string `yaml:"list_view_toggle" env:"SEL_LIST_VIEW_TOGGLE" env-separator:"|" env-default:"#list-view-button|button[title='List View']|a[title='List']"`

	// detail page fields
	Title       string `yaml:"title" env:"SEL_DETAIL_TITLE" env-default:"h1, .assignment-title, .detail-title"`
	Course      string `yaml:"course" env:"SEL_DETAIL_COURSE" env-default:".assignment-course, .detail-course"`
	Due         string `yaml:"due" env:"SEL_DETAIL_DUE" env-default:".assignment-due, .detail-due"`
	Description string `yaml:"description" env:"SEL_DETAIL_DESC" env-default:".assignment-description, .detail-description"`
	// resource anchors: download markers, explicit download paths and
	// generic external links; mailto is filtered out in code
	ResourceAnchors string `yaml:"resource_anchors" env:"SEL_DETAIL_RES_ANCHORS" env-default:".assignment-resources a, .detail-resources a, a.resource-link, a[href*='download']"`

	// login flow markers
	UsernameInput string `yaml:"username_input" env:"SEL_LOGIN_USERNAME" env-default:"input[name='username'], input#Username"`
	PasswordInput string `yaml:"password_input" env:"SEL_LOGIN_PASSWORD" env-default:"input[name='password'], input#Password"`
	SubmitButton  string `yaml:"submit_button" env:"SEL_LOGIN_SUBMIT" env-default:"button[type='submit'], input[type='submit']"`
	SSOButton     string `yaml:"sso_button" env:"SEL_LOGIN_SSO" env-default:"//button[contains(., 'Sign in with SSO')] | //a[contains(., 'Sign in with SSO')]"`
	EmailInput    string `yaml:"email_input" env:"SEL_LOGIN_EMAIL" env-default:"input[type='email'], input[name='loginfmt']"`
	NextButton    string `yaml:"next_button" env:"SEL_LOGIN_NEXT" env-default:"input[type='submit'], button[type='submit']"`
	FederatedPass string `yaml:"federated_password" env:"SEL_LOGIN_FED_PASSWORD" env-default:"input[type='password']"`
	TrustAffirm   string `yaml:"trust_affirm" env:"SEL_TRUST_AFFIRM" env-default:"#idSIButton9, input[value='Yes']"`
	TrustDismiss  string `yaml:"trust_dismiss" env:"SEL_TRUST_DISMISS" env-default:"#idBtn_Back, input[value='No']"`
	TrustMarker   string `yaml:"trust_marker" env:"SEL_TRUST_MARKER" env-default:"//div[contains(., 'Stay signed in?')] | //div[contains(., 'Remember this device')]"`
}

// Config defines the overall structure of the scraper configuration.
// Values will be taken from a config yml file or environment variables
// or both.
type Config struct {
	WebhookSecret string `yaml:"webhook_secret" env:"WEBHOOK_SECRET"`
	Username      string `yaml:"username" env:"BB_USERNAME"`
	Password      string `yaml:"password" env:"BB_PASSWORD"`
	BaseURL       string `yaml:"base_url" env:"BB_BASE"`
	LoginURL      string `yaml:"login_url" env:"BB_LOGIN_URL"`
	AssignURL     string `yaml:"assign_url" env:"BB_ASSIGN_URL"`
	// LoginMarker is the URL fragment that indicates the app still
	// considers the user unauthenticated.
	LoginMarker string `yaml:"login_marker" env:"BB_LOGIN_MARKER" env-default:"login"`

	Port                 int    `yaml:"port" env:"PORT" env-default:"8080"`
	ScrapeTimeoutSeconds int    `yaml:"scrape_timeout_seconds" env:"SCRAPE_TIMEOUT_SECONDS" env-default:"600"`
	LoginRetries         int    `yaml:"login_retries" env:"LOGIN_RETRIES" env-default:"3"`
	PageLoadWaitMS       int    `yaml:"page_load_wait_ms" env:"PAGE_LOAD_WAIT_MS" env-default:"1200"`
	ProbeTimeoutMS       int    `yaml:"probe_timeout_ms" env:"PROBE_TIMEOUT_MS" env-default:"4000"`
	DownloadWaitMS       int    `yaml:"download_wait_ms" env:"DOWNLOAD_WAIT_MS" env-default:"5000"`
	UserAgent            string `yaml:"user_agent" env:"USER_AGENT"`

	Selectors Selectors `yaml:"selectors"`

	GoogleServiceAccountJSON string `yaml:"google_service_account_json" env:"GOOGLE_SERVICE_ACCOUNT_JSON"`
	DriveFolderID            string `yaml:"gdrive_folder_id" env:"GDRIVE_FOLDER_ID"`

	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Debug    bool   `yaml:"debug" env:"DEBUG"`
}

// NewConfig reads the configuration from the given yaml file (may be "")
// and the environment, then derives the URL defaults that depend on the
// base URL.
func NewConfig(configPath string) (*Config, error) {
	var config Config

	var err error
	if configPath != "" {
		err = cleanenv.ReadConfig(configPath, &config)
	} else {
		err = cleanenv.ReadEnv(&config)
	}
	if err != nil {
		return nil, err
	}

	config.BaseURL = strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	if config.LoginURL == "" && config.BaseURL != "" {
		config.LoginURL = config.BaseURL + "/app/login"
	}
	if config.AssignURL == "" && config.BaseURL != "" {
		config.AssignURL = config.BaseURL + "/app/student#assignment-center"
	}
	Debug = config.Debug
	return &config, nil
}

// EntryURLs returns the login entry candidates in priority order.
func (c *Config) EntryURLs() []string {
	urls := []string{}
	if c.LoginURL != "" {
		urls = append(urls, c.LoginURL)
	}
	if c.BaseURL != "" {
		urls = append(urls, c.BaseURL+"/app#login", c.BaseURL)
	}
	return urls
}

// Validate reports the required settings that are missing. The caller
// decides whether that is fatal; the HTTP boundary maps it to a 400.
func (c *Config) Validate() error {
	missing := []string{}
	if c.Username == "" {
		missing = append(missing, "BB_USERNAME")
	}
	if c.Password == "" {
		missing = append(missing, "BB_PASSWORD")
	}
	if c.BaseURL == "" {
		missing = append(missing, "BB_BASE")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env (%s)", strings.Join(missing, ", "))
	}
	return nil
}

func GetLogLevel() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
