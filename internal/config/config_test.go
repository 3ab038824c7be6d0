package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/Amund211/liveops/internal/config"
	"github.com/stretchr/testify/require"
)

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

var validSecret = strings.Repeat("s", 32)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("LIVEOPS_HMAC_SECRET", validSecret)
	t.Setenv("SENTRY_DSN", "SENTRY_DSN")
}

func TestGetConfig(t *testing.T) {
	t.Run("environment is missing", func(t *testing.T) {
		// LIVEOPS_ENVIRONMENT is required, so this should fail
		_, err := config.ConfigFromEnv()
		require.ErrorIs(t, err, config.ErrMissingRequiredValue)
	})

	t.Run("environment is invalid", func(t *testing.T) {
		t.Setenv("LIVEOPS_ENVIRONMENT", "testing")

		_, err := config.ConfigFromEnv()
		require.ErrorIs(t, err, config.ErrInvalidValue)
	})

	t.Run("development defaults", func(t *testing.T) {
		t.Setenv("LIVEOPS_ENVIRONMENT", "development")

		conf, err := config.ConfigFromEnv()
		require.NoError(t, err)

		require.True(t, conf.IsDevelopment())
		require.False(t, conf.IsProduction())
		require.False(t, conf.IsStaging())

		require.Equal(t, "http://localhost:8080", conf.GatewayURL())
		require.Equal(t, "http://localhost:8082", conf.LeaderboardURL())
		require.Equal(t, "http://localhost:8083", conf.ProgressionURL())
		require.Equal(t, "http://localhost:8081", conf.FairnessURL())
		require.Equal(t, config.LeaderboardRouteBoard, conf.LeaderboardRoute())
		require.Equal(t, 10, conf.LeaderboardLimit())
		require.Equal(t, 5*time.Second, conf.LeaderboardInterval())
		require.Equal(t, 10*time.Second, conf.DashboardInterval())
		require.Equal(t, 30*time.Second, conf.HealthInterval())
		require.Equal(t, "3000", conf.ListenPort())
		require.Equal(t, []string{"localhost"}, conf.AllowedOrigins())
		require.Empty(t, conf.SentryDSN())
		require.False(t, conf.OTelEnabled())

		// A development secret is filled in so events can still be signed locally
		require.GreaterOrEqual(t, len(conf.HMACSecret()), 32)
	})

	t.Run("values are read correctly", func(t *testing.T) {
		for _, env := range []environment{production, staging, development} {
			t.Run(string(env), func(t *testing.T) {
				setRequired(t)
				t.Setenv("LIVEOPS_ENVIRONMENT", string(env))
				t.Setenv("LIVEOPS_GATEWAY_URL", "https://gateway.example.com/")
				t.Setenv("LIVEOPS_LEADERBOARD_ROUTE", "window")
				t.Setenv("LIVEOPS_LEADERBOARD_LIMIT", "25")
				t.Setenv("LIVEOPS_HEALTH_INTERVAL", "1m")
				t.Setenv("LIVEOPS_ALLOWED_ORIGINS", "localhost, example.com,")
				t.Setenv("OTEL_ENABLED", "true")

				conf, err := config.ConfigFromEnv()
				require.NoError(t, err)

				require.Equal(t, env == production, conf.IsProduction())
				require.Equal(t, env == staging, conf.IsStaging())
				require.Equal(t, env == development, conf.IsDevelopment())

				require.Equal(t, "https://gateway.example.com", conf.GatewayURL())
				require.Equal(t, validSecret, conf.HMACSecret())
				require.Equal(t, "SENTRY_DSN", conf.SentryDSN())
				require.Equal(t, config.LeaderboardRouteWindow, conf.LeaderboardRoute())
				require.Equal(t, 25, conf.LeaderboardLimit())
				require.Equal(t, time.Minute, conf.HealthInterval())
				require.Equal(t, []string{"localhost", "example.com"}, conf.AllowedOrigins())
				require.True(t, conf.OTelEnabled())
			})
		}
	})

	t.Run("production and staging fail when missing variables", func(t *testing.T) {
		for _, env := range []environment{production, staging} {
			for _, variable := range []string{"LIVEOPS_HMAC_SECRET", "SENTRY_DSN"} {
				t.Run(string(env)+"/"+variable, func(t *testing.T) {
					setRequired(t)
					t.Setenv("LIVEOPS_ENVIRONMENT", string(env))
					t.Setenv(variable, "")

					_, err := config.ConfigFromEnv()
					require.ErrorIs(t, err, config.ErrMissingRequiredValue)
				})
			}
		}
	})

	t.Run("short secret is rejected outside development", func(t *testing.T) {
		setRequired(t)
		t.Setenv("LIVEOPS_ENVIRONMENT", "production")
		t.Setenv("LIVEOPS_HMAC_SECRET", "too-short")

		_, err := config.ConfigFromEnv()
		require.ErrorIs(t, err, config.ErrInvalidValue)
	})

	t.Run("invalid values", func(t *testing.T) {
		cases := map[string]string{
			"LIVEOPS_GATEWAY_URL":          "not a url",
			"LIVEOPS_FAIRNESS_URL":         "/relative",
			"LIVEOPS_LEADERBOARD_ROUTE":    "weekly",
			"LIVEOPS_LEADERBOARD_LIMIT":    "0",
			"LIVEOPS_DASHBOARD_INTERVAL":   "10ms",
			"LIVEOPS_LEADERBOARD_INTERVAL": "soon",
		}
		for variable, value := range cases {
			t.Run(variable, func(t *testing.T) {
				t.Setenv("LIVEOPS_ENVIRONMENT", "development")
				t.Setenv(variable, value)

				_, err := config.ConfigFromEnv()
				require.ErrorIs(t, err, config.ErrInvalidValue)
			})
		}
	})

	t.Run("non sensitive string does not leak the secret", func(t *testing.T) {
		setRequired(t)
		t.Setenv("LIVEOPS_ENVIRONMENT", "staging")

		conf, err := config.ConfigFromEnv()
		require.NoError(t, err)

		str := conf.NonSensitiveString()
		require.Contains(t, str, "staging")
		require.NotContains(t, str, validSecret)
		require.NotContains(t, str, "SENTRY_DSN")
	})
}
