// Package config builds runtime configuration from the environment so main
// stays lean. Secrets (issuer password, email server token, service-account
// key) are only ever read here.
package config

import "os"

// Badgr holds credentials and endpoints for the badge issuer.
type Badgr struct {
	BaseURL  string
	Username string
	Password string
	// Salt is the fixed value mixed into the recipient email hash. It must
	// match the salt declared in the assertion payload.
	Salt string
}

// Postmark holds the transactional email provider settings.
type Postmark struct {
	BaseURL     string
	ServerToken string
	From        string
}

// Sheets holds the spreadsheet sink settings. ServiceAccountJSON is the raw
// key file contents, not a path.
type Sheets struct {
	BaseURL            string
	ServiceAccountJSON string
	SpreadsheetID      string
	AppendRange        string
}

// Config is the full server configuration.
type Config struct {
	Addr          string
	LogLevel      string
	TrustedOrigin string

	// RequireAccessCode selects the deployment variant: when true the form
	// must carry full_name and a per-course access code; when false only
	// email and badge_class_id are required.
	RequireAccessCode bool

	// RegistryFile optionally overrides the compiled-in badge registry.
	RegistryFile string

	Badgr    Badgr
	Postmark Postmark
	Sheets   Sheets
}

// FromEnv builds a Config from environment variables, applying defaults for
// everything that is safe to default. Credentials have no defaults; their
// absence is detected by the stage that needs them.
func FromEnv() Config {
	return Config{
		Addr:              envOr("PUBLISH_BADGE_ADDR", ":8080"),
		LogLevel:          os.Getenv("LOG_LEVEL"),
		TrustedOrigin:     envOr("TRUSTED_ORIGIN", "https://courses.sciencecommunicationlab.org"),
		RequireAccessCode: os.Getenv("REQUIRE_ACCESS_CODE") != "false",
		RegistryFile:      os.Getenv("BADGE_REGISTRY_FILE"),
		Badgr: Badgr{
			BaseURL:  envOr("BADGR_BASE_URL", "https://api.badgr.io"),
			Username: envOr("BADGR_USERNAME", "badges@sciencecommunicationlab.org"),
			Password: os.Getenv("BADGR_PASSWORD"),
			Salt:     envOr("BADGR_RECIPIENT_SALT", "scicommlab"),
		},
		Postmark: Postmark{
			BaseURL:     envOr("POSTMARK_BASE_URL", "https://api.postmarkapp.com"),
			ServerToken: os.Getenv("POSTMARK_SERVER_TOKEN"),
			From:        envOr("EMAIL_FROM", "courses@sciencecommunicationlab.org"),
		},
		Sheets: Sheets{
			BaseURL:            envOr("SHEETS_BASE_URL", "https://sheets.googleapis.com"),
			ServiceAccountJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
			SpreadsheetID:      os.Getenv("BADGE_LOG_SPREADSHEET_ID"),
			AppendRange:        envOr("BADGE_LOG_RANGE", "Sheet1!A:D"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
