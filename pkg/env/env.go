// Package env loads the harness configuration from the environment.
//
// The configuration is read once, validated eagerly and memoized; Reset drops
// the cached copy so tests can load it again with a different environment.
package env

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultAPIVersion      = "v1"
	defaultApproxThreshold = 0.0001 // 0.01%
	defaultUITimeout       = 10 * time.Second
	defaultTrailPrefix     = "cloudigrade-"
)

var (
	ErrBaseURLNotFound = errors.New("base url not found: make sure $CLOUDIGRADE_BASE_URL is set in your environment")
	ErrTokenNotFound   = errors.New("token not found: make sure $CLOUDIGRADE_TOKEN is set in your environment")
	ErrInvalidProfile  = errors.New("invalid aws profile")
)

var accountNumberRegex = regexp.MustCompile(`^\d{12}$`)

// AWSProfile is one customer AWS account the suite may register with the
// service.
type AWSProfile struct {
	// Name is the local AWS CLI profile used for cloud-side checks.
	Name string
	// ARN is the role the service assumes in the customer account.
	ARN string
	// AccountNumber is the 12 digit account id taken from ARN.
	AccountNumber string
	// CloudTrailName is the trail the service creates on registration.
	CloudTrailName string
}

// Config is the resolved harness configuration.
type Config struct {
	BaseURL        string
	APIVersion     string
	Scheme         string
	SSLVerify      bool
	SuperuserToken string
	Superuser      string

	// ValidRoles are customer role ARNs usable for account registration.
	ValidRoles  []string
	AWSProfiles []AWSProfile

	ApproxThreshold float64
	ShowDiff        bool
	LogLevel        string
	UITimeout       time.Duration
}

// URL returns the scheme qualified service root, without a trailing slash.
func (c Config) URL() string {
	host := c.BaseURL
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	return fmt.Sprintf("%s://%s", c.Scheme, strings.TrimRight(host, "/"))
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.SuperuserToken != "" {
		c.SuperuserToken = "********"
	}
	return c
}

var (
	mu     sync.Mutex
	cached *Config
)

// Get returns a copy of the memoized configuration, loading it on first use.
// It is safe to call from parallel tests.
func Get() (Config, error) {
	mu.Lock()
	defer mu.Unlock()
	if cached == nil {
		cfg, err := Load()
		if err != nil {
			return Config{}, err
		}
		cached = cfg
	}
	out := *cached
	out.ValidRoles = append([]string(nil), cached.ValidRoles...)
	out.AWSProfiles = append([]AWSProfile(nil), cached.AWSProfiles...)
	return out, nil
}

// Reset drops the memoized configuration. Only tests should need this.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	cached = nil
}

// Load reads and validates the configuration from the environment without
// touching the cache.
//
// Variables:
//   - CLOUDIGRADE_BASE_URL (required), CLOUDIGRADE_TOKEN (required)
//   - CLOUDIGRADE_API_VERSION, CLOUDIGRADE_USER, USE_HTTPS, SSL_VERIFY
//   - CLOUDIGRADE_CUSTOMER_ROLE_ARNS: whitespace separated role ARNs
//   - AWS_PROFILES: whitespace separated profile names; each needs
//     CLOUDIGRADE_ROLE_<NAME> holding its role ARN
//   - APPROX_THRESHOLD, SHOW_DIFF, INTEGRADE_LOG_LEVEL, INTEGRADE_UI_TIMEOUT
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("api_version", defaultAPIVersion)
	v.SetDefault("use_https", false)
	v.SetDefault("ssl_verify", false)
	v.SetDefault("approx_threshold", defaultApproxThreshold)
	v.SetDefault("show_diff", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("ui_timeout", defaultUITimeout)
	v.SetDefault("trail_prefix", defaultTrailPrefix)

	_ = v.BindEnv("base_url", "CLOUDIGRADE_BASE_URL")
	_ = v.BindEnv("token", "CLOUDIGRADE_TOKEN")
	_ = v.BindEnv("user", "CLOUDIGRADE_USER")
	_ = v.BindEnv("api_version", "CLOUDIGRADE_API_VERSION")
	_ = v.BindEnv("use_https", "USE_HTTPS")
	_ = v.BindEnv("ssl_verify", "SSL_VERIFY")
	_ = v.BindEnv("role_arns", "CLOUDIGRADE_CUSTOMER_ROLE_ARNS")
	_ = v.BindEnv("aws_profiles", "AWS_PROFILES")
	_ = v.BindEnv("trail_prefix", "CLOUDIGRADE_CLOUDTRAIL_PREFIX")
	_ = v.BindEnv("approx_threshold", "APPROX_THRESHOLD")
	_ = v.BindEnv("show_diff", "SHOW_DIFF")
	_ = v.BindEnv("log_level", "INTEGRADE_LOG_LEVEL")
	_ = v.BindEnv("ui_timeout", "INTEGRADE_UI_TIMEOUT")

	cfg := &Config{
		BaseURL:        strings.TrimSpace(v.GetString("base_url")),
		APIVersion:     v.GetString("api_version"),
		Scheme:         "http",
		SSLVerify:      v.GetBool("ssl_verify"),
		SuperuserToken: strings.TrimSpace(v.GetString("token")),
		Superuser:      v.GetString("user"),
		ValidRoles:     splitList(v.GetString("role_arns")),
		ShowDiff:       v.GetBool("show_diff"),
		LogLevel:       v.GetString("log_level"),
		UITimeout:      v.GetDuration("ui_timeout"),
	}
	if v.GetBool("use_https") {
		cfg.Scheme = "https"
	}

	if cfg.BaseURL == "" {
		return nil, ErrBaseURLNotFound
	}
	if cfg.SuperuserToken == "" {
		return nil, ErrTokenNotFound
	}

	cfg.ApproxThreshold = v.GetFloat64("approx_threshold")
	if cfg.ApproxThreshold <= 0 {
		return nil, fmt.Errorf("invalid APPROX_THRESHOLD %q: must be a positive number", v.GetString("approx_threshold"))
	}
	if cfg.UITimeout <= 0 {
		return nil, fmt.Errorf("invalid INTEGRADE_UI_TIMEOUT %q: must be a positive duration", v.GetString("ui_timeout"))
	}

	prefix := v.GetString("trail_prefix")
	for _, name := range splitList(v.GetString("aws_profiles")) {
		key := "CLOUDIGRADE_ROLE_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
		_ = v.BindEnv("role."+name, key)
		profile, err := NewAWSProfile(name, v.GetString("role."+name), prefix)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		cfg.AWSProfiles = append(cfg.AWSProfiles, profile)
	}

	return cfg, nil
}

// NewAWSProfile builds a profile from its role ARN, deriving the account
// number from the ARN's account field.
func NewAWSProfile(name, arn, trailPrefix string) (AWSProfile, error) {
	arn = strings.TrimSpace(arn)
	if arn == "" {
		return AWSProfile{}, fmt.Errorf("%w %q: role arn is empty", ErrInvalidProfile, name)
	}
	// arn:aws:iam::123456789012:role/name
	parts := strings.SplitN(arn, ":", 6)
	if len(parts) != 6 || parts[0] != "arn" || !strings.HasPrefix(parts[5], "role/") {
		return AWSProfile{}, fmt.Errorf("%w %q: %q is not an IAM role arn", ErrInvalidProfile, name, arn)
	}
	account := parts[4]
	if !accountNumberRegex.MatchString(account) {
		return AWSProfile{}, fmt.Errorf("%w %q: account number %q must be 12 digits", ErrInvalidProfile, name, account)
	}
	return AWSProfile{
		Name:           name,
		ARN:            arn,
		AccountNumber:  account,
		CloudTrailName: trailPrefix + account,
	}, nil
}

// ProfilesPresent reports whether at least n AWS profiles are configured.
func (c Config) ProfilesPresent(n int) bool {
	return len(c.AWSProfiles) >= n
}

// GetApproxThreshold returns the configured approximation threshold, or the
// default when the configuration cannot be loaded.
func GetApproxThreshold() float64 {
	cfg, err := Get()
	if err != nil {
		return defaultApproxThreshold
	}
	return cfg.ApproxThreshold
}

// GetShowDiff reports whether assertion failures should print full diffs.
func GetShowDiff() bool {
	cfg, err := Get()
	if err != nil {
		return false
	}
	return cfg.ShowDiff
}

func splitList(s string) []string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}
	return fields
}
