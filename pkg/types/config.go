package types

type Config struct {
	Environment     string `envconfig:"ENVIRONMENT" default:"development"`
	ServerPort      uint   `envconfig:"SERVER_PORT" default:"8080"`
	DatabaseURL     string `envconfig:"DATABASE_URL"`
	ReadTimeoutSec  uint   `envconfig:"READ_TIMEOUT_SEC" default:"10"`
	WriteTimeoutSec uint   `envconfig:"WRITE_TIMEOUT_SEC" default:"15"`

	// Cognito Auth
	CognitoUserPoolID string `envconfig:"COGNITO_USER_POOL_ID"`
	CognitoClientID   string `envconfig:"COGNITO_CLIENT_ID"`
	CognitoIssuerURL  string `envconfig:"COGNITO_ISSUER_URL"`

	// Document storage
	StorageBucket  string `envconfig:"STORAGE_BUCKET" default:"driver-documents"`
	StorageBaseURL string `envconfig:"STORAGE_BASE_URL"`

	// Push notifications
	PushTopicARN string `envconfig:"PUSH_TOPIC_ARN"`

	// Draft auto-save quiet period
	AutosaveDelayMS uint `envconfig:"AUTOSAVE_DELAY_MS" default:"1500"`

	// Batch field reconciliation schedule
	ReconcileCron    string `envconfig:"RECONCILE_CRON" default:"0 3 * * *"`
	ReconcileEnabled bool   `envconfig:"RECONCILE_ENABLED" default:"true"`

	// Cookie encryption keys (base64 encoded)
	// openssl rand -base64 32
	// to generate values
	CookieHashKey  string `envconfig:"COOKIE_HASH_KEY"`  // 32 or 64 bytes
	CookieBlockKey string `envconfig:"COOKIE_BLOCK_KEY"` // 16, 24, or 32 bytes
}

// Branding is operator-editable display configuration, read from the configs
// collection once per session and never mutated in place.
type Branding struct {
	CompanyName  string `json:"companyName"`
	LogoURL      string `json:"logoUrl"`
	PrimaryColor string `json:"primaryColor"`
	Tagline      string `json:"tagline,omitempty"`
}

// StatusStep drives the applicant-facing progress bar. The ordered list
// comes from the same config document as branding.
type StatusStep struct {
	Status      ApplicationStatus `json:"status"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
}

// PortalConfig is the immutable snapshot of configs/defaultConfig handed to
// the server at startup. Refreshing means re-reading, not mutating.
type PortalConfig struct {
	Branding    Branding     `json:"branding"`
	StatusSteps []StatusStep `json:"statusSteps"`
}
