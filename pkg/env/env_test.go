package env

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CLOUDIGRADE_BASE_URL", "example.com")
	t.Setenv("CLOUDIGRADE_TOKEN", "0123456789abcdef")
	t.Setenv("CLOUDIGRADE_USER", "admin")
	t.Setenv("CLOUDIGRADE_API_VERSION", "")
	t.Setenv("USE_HTTPS", "")
	t.Setenv("SSL_VERIFY", "")
	t.Setenv("CLOUDIGRADE_CUSTOMER_ROLE_ARNS", "")
	t.Setenv("AWS_PROFILES", "")
	t.Setenv("APPROX_THRESHOLD", "")
	t.Setenv("INTEGRADE_UI_TIMEOUT", "")
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		https     string
		ssl       string
		expScheme string
		expSSL    bool
	}{
		{name: "http without verification", https: "False", ssl: "False", expScheme: "http", expSSL: false},
		{name: "http with verification", https: "false", ssl: "True", expScheme: "http", expSSL: true},
		{name: "https without verification", https: "True", ssl: "false", expScheme: "https", expSSL: false},
		{name: "https with verification", https: "true", ssl: "true", expScheme: "https", expSSL: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv("USE_HTTPS", tc.https)
			t.Setenv("SSL_VERIFY", tc.ssl)

			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, "0123456789abcdef", cfg.SuperuserToken)
			assert.Equal(t, "admin", cfg.Superuser)
			assert.Equal(t, "example.com", cfg.BaseURL)
			assert.Equal(t, tc.expScheme, cfg.Scheme)
			assert.Equal(t, tc.expSSL, cfg.SSLVerify)
			assert.Equal(t, "v1", cfg.APIVersion)
			assert.Equal(t, tc.expScheme+"://example.com", cfg.URL())
		})
	}
}

func TestLoadMissing(t *testing.T) {
	t.Run("base url", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("CLOUDIGRADE_BASE_URL", "")
		_, err := Load()
		assert.ErrorIs(t, err, ErrBaseURLNotFound)
	})

	t.Run("token", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("CLOUDIGRADE_TOKEN", "")
		_, err := Load()
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})

	t.Run("bad threshold", func(t *testing.T) {
		setBaseEnv(t)
		t.Setenv("APPROX_THRESHOLD", "-1")
		_, err := Load()
		assert.ErrorContains(t, err, "APPROX_THRESHOLD")
	})
}

func TestLoadLists(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("CLOUDIGRADE_CUSTOMER_ROLE_ARNS", "  arn:aws:iam::111111111111:role/a\n\tarn:aws:iam::222222222222:role/b ")
	t.Setenv("AWS_PROFILES", "customer1 customer-2")
	t.Setenv("CLOUDIGRADE_ROLE_CUSTOMER1", "arn:aws:iam::111111111111:role/a")
	t.Setenv("CLOUDIGRADE_ROLE_CUSTOMER_2", "arn:aws:iam::222222222222:role/b")
	t.Setenv("INTEGRADE_UI_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"arn:aws:iam::111111111111:role/a", "arn:aws:iam::222222222222:role/b"}, cfg.ValidRoles)
	require.Len(t, cfg.AWSProfiles, 2)
	assert.Equal(t, AWSProfile{
		Name:           "customer-2",
		ARN:            "arn:aws:iam::222222222222:role/b",
		AccountNumber:  "222222222222",
		CloudTrailName: "cloudigrade-222222222222",
	}, cfg.AWSProfiles[1])
	assert.True(t, cfg.ProfilesPresent(2))
	assert.False(t, cfg.ProfilesPresent(3))
	assert.Equal(t, 30*time.Second, cfg.UITimeout)
}

func TestLoadProfileMissingRole(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("AWS_PROFILES", "orphan")
	t.Setenv("CLOUDIGRADE_ROLE_ORPHAN", "")

	_, err := Load()
	assert.ErrorIs(t, err, ErrInvalidProfile)
}

func TestNewAWSProfile(t *testing.T) {
	tests := []struct {
		name    string
		arn     string
		wantErr bool
	}{
		{name: "valid", arn: "arn:aws:iam::123456789012:role/cloudigrade"},
		{name: "not an arn", arn: "role/cloudigrade", wantErr: true},
		{name: "user arn", arn: "arn:aws:iam::123456789012:user/bob", wantErr: true},
		{name: "short account", arn: "arn:aws:iam::12345:role/cloudigrade", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := NewAWSProfile("p", tc.arn, "trail-")
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidProfile)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "123456789012", p.AccountNumber)
			assert.Equal(t, "trail-123456789012", p.CloudTrailName)
		})
	}
}

func TestGetMemoizesUntilReset(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	setBaseEnv(t)

	first, err := Get()
	require.NoError(t, err)

	t.Setenv("CLOUDIGRADE_BASE_URL", "other.example.com")
	second, err := Get()
	require.NoError(t, err)
	assert.Equal(t, first.BaseURL, second.BaseURL)

	Reset()
	third, err := Get()
	require.NoError(t, err)
	assert.Equal(t, "other.example.com", third.BaseURL)
}

func TestGetConcurrent(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	setBaseEnv(t)

	var wg sync.WaitGroup
	urls := make([]string, 8)
	for i := range urls {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			cfg, err := Get()
			if err == nil {
				urls[i] = cfg.BaseURL
			}
			_ = GetApproxThreshold()
		}()
	}
	wg.Wait()

	for _, u := range urls {
		assert.Equal(t, "example.com", u)
	}
}

func TestRedacted(t *testing.T) {
	cfg := Config{SuperuserToken: "secret"}
	assert.Equal(t, "********", cfg.Redacted().SuperuserToken)
	assert.Equal(t, "secret", cfg.SuperuserToken)
}
