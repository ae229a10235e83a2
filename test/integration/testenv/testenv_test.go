package testenv

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cloudigrade/integrade/pkg/env"
)

func TestConfigParallel(t *testing.T) {
	env.Reset()
	t.Cleanup(env.Reset)
	t.Setenv("CLOUDIGRADE_BASE_URL", "cloudmeter.example.com")
	t.Setenv("CLOUDIGRADE_TOKEN", "0123456789abcdef")
	t.Setenv("AWS_PROFILES", "")
	t.Setenv("CLOUDIGRADE_CUSTOMER_ROLE_ARNS", "")

	for i := 0; i < 8; i++ {
		t.Run(fmt.Sprintf("caller %d", i), func(t *testing.T) {
			t.Parallel()
			cfg := Config(t)
			assert.Equal(t, "cloudmeter.example.com", cfg.BaseURL)
			assert.Equal(t, "0123456789abcdef", cfg.SuperuserToken)
		})
	}
}
