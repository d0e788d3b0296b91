package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(endpoints ...EndpointConfig) *Config {
	return &Config{
		Enabled:         true,
		DefaultLimit:    5,
		DefaultWindow:   time.Minute,
		IdleTTL:         time.Hour,
		Whitelist:       map[string]bool{"10.0.0.1": true},
		Blacklist:       map[string]bool{"10.0.0.2": true},
		EndpointConfigs: endpoints,
	}
}

func fixedLimiter(cfg *Config, at time.Time) (*Limiter, *time.Time) {
	l := NewLimiter(cfg)
	now := at
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLimiter_BurstThenDeny(t *testing.T) {
	cfg := testConfig(EndpointConfig{Path: "/runs", Method: "POST", Limit: 60, Window: time.Minute, Burst: 2})
	l, _ := fixedLimiter(cfg, time.Unix(1700000000, 0))
	defer l.Stop()

	ok, info := l.Allow("c", "/runs", "POST")
	assert.True(t, ok)
	assert.Equal(t, 60, info.Limit)
	assert.Equal(t, 1, info.Remaining)

	ok, _ = l.Allow("c", "/runs", "POST")
	assert.True(t, ok)

	ok, info = l.Allow("c", "/runs", "POST")
	assert.False(t, ok)
	assert.Equal(t, 0, info.Remaining)
	assert.InDelta(t, time.Second, info.RetryAfter, float64(10*time.Millisecond))
}

func TestLimiter_Refill(t *testing.T) {
	cfg := testConfig(EndpointConfig{Path: "/runs", Method: "POST", Limit: 60, Window: time.Minute, Burst: 1})
	l, now := fixedLimiter(cfg, time.Unix(1700000000, 0))
	defer l.Stop()

	ok, _ := l.Allow("c", "/runs", "POST")
	require.True(t, ok)
	ok, _ = l.Allow("c", "/runs", "POST")
	require.False(t, ok)

	*now = now.Add(time.Second)
	ok, _ = l.Allow("c", "/runs", "POST")
	assert.True(t, ok)
}

func TestLimiter_ClientsAreIndependent(t *testing.T) {
	cfg := testConfig(EndpointConfig{Path: "/auth/token", Method: "POST", Limit: 1, Window: time.Hour, Burst: 1})
	l, _ := fixedLimiter(cfg, time.Unix(1700000000, 0))
	defer l.Stop()

	ok, _ := l.Allow("a", "/auth/token", "POST")
	assert.True(t, ok)
	ok, _ = l.Allow("a", "/auth/token", "POST")
	assert.False(t, ok)
	ok, _ = l.Allow("b", "/auth/token", "POST")
	assert.True(t, ok)
}

func TestLimiter_PrefixEndpointsShareBucket(t *testing.T) {
	cfg := testConfig(EndpointConfig{Path: "/artifacts/", Method: "POST", Limit: 1, Window: time.Hour, Burst: 1})
	l, _ := fixedLimiter(cfg, time.Unix(1700000000, 0))
	defer l.Stop()

	ok, _ := l.Allow("c", "/artifacts/a1/signed-url", "POST")
	assert.True(t, ok)
	ok, _ = l.Allow("c", "/artifacts/a2/revalidate", "POST")
	assert.False(t, ok)
}

func TestLimiter_DefaultLimit(t *testing.T) {
	l, _ := fixedLimiter(testConfig(), time.Unix(1700000000, 0))
	defer l.Stop()

	for i := 0; i < 5; i++ {
		ok, _ := l.Allow("c", "/jobs/j1/logs", "GET")
		require.True(t, ok, "request %d", i)
	}
	ok, info := l.Allow("c", "/jobs/j1/logs", "GET")
	assert.False(t, ok)
	assert.Equal(t, 5, info.Limit)

	// other paths use their own default bucket
	ok, _ = l.Allow("c", "/jobs/j2/logs", "GET")
	assert.True(t, ok)
}

func TestLimiter_WhitelistBlacklist(t *testing.T) {
	cfg := testConfig(EndpointConfig{Path: "/runs", Method: "POST", Limit: 1, Window: time.Hour, Burst: 1})
	l, _ := fixedLimiter(cfg, time.Unix(1700000000, 0))
	defer l.Stop()

	for i := 0; i < 3; i++ {
		ok, _ := l.Allow("10.0.0.1", "/runs", "POST")
		assert.True(t, ok)
	}
	ok, _ := l.Allow("10.0.0.2", "/health", "GET")
	assert.False(t, ok)
}

func TestLimiter_Disabled(t *testing.T) {
	l := NewLimiter(&Config{Enabled: false})
	defer l.Stop()

	for i := 0; i < 100; i++ {
		ok, info := l.Allow("c", "/runs", "POST")
		require.True(t, ok)
		assert.True(t, info.Allowed)
	}
}

func TestLimiter_ExemptEndpoints(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultLimit = 1
	l, _ := fixedLimiter(cfg, time.Unix(1700000000, 0))
	defer l.Stop()

	for i := 0; i < 10; i++ {
		ok, _ := l.Allow("c", "/health", "GET")
		assert.True(t, ok)
		ok, _ = l.Allow("c", "/metrics", "GET")
		assert.True(t, ok)
	}
}

func TestLimiter_Prune(t *testing.T) {
	start := time.Unix(1700000000, 0)
	l, now := fixedLimiter(testConfig(), start)
	defer l.Stop()

	l.Allow("a", "/x", "GET")
	*now = start.Add(30 * time.Minute)
	l.Allow("b", "/x", "GET")

	assert.Equal(t, 1, l.Prune(start.Add(90*time.Minute)))
	assert.Len(t, l.buckets, 1)
	assert.Equal(t, 1, l.Prune(start.Add(3*time.Hour)))
}

func TestLimiter_StopTwice(t *testing.T) {
	cfg := testConfig()
	cfg.CleanupInterval = time.Millisecond
	l := NewLimiter(cfg)
	l.Stop()
	assert.NotPanics(t, l.Stop)
}

func TestMatchEndpoint(t *testing.T) {
	configs := []EndpointConfig{
		{Path: "/runs", Method: "POST"},
		{Path: "/runs/stream", Method: "POST"},
		{Path: "/artifacts/", Method: "POST"},
		{Path: "/artifacts/special/", Method: "POST"},
	}

	tests := []struct {
		path, method string
		want         string
	}{
		{"/runs", "POST", "/runs"},
		{"/runs/stream", "POST", "/runs/stream"},
		{"/runs", "GET", ""},
		{"/artifacts/a1/signed-url", "POST", "/artifacts/"},
		{"/artifacts/special/x", "POST", "/artifacts/special/"},
		{"/artifacts/a1", "GET", ""},
		{"/unknown", "POST", ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			got := MatchEndpoint(tt.path, tt.method, configs)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Path)
		})
	}

	assert.Same(t, unlimited, MatchEndpoint("/health", "GET", configs))
	assert.Same(t, unlimited, MatchEndpoint("/metrics", "GET", configs))
}

func TestLoadConfig(t *testing.T) {
	env := map[string]string{
		"RATE_LIMIT_DEFAULT_LIMIT":  "42",
		"RATE_LIMIT_DEFAULT_WINDOW": "30s",
		"RATE_LIMIT_WHITELIST":      "1.1.1.1, 2.2.2.2",
		"RATE_LIMIT_BLACKLIST":      "",
	}
	cfg := LoadConfig(func(k string) string { return env[k] })

	assert.True(t, cfg.Enabled)
	assert.Equal(t, 42, cfg.DefaultLimit)
	assert.Equal(t, 30*time.Second, cfg.DefaultWindow)
	assert.True(t, cfg.Whitelist["1.1.1.1"])
	assert.True(t, cfg.Whitelist["2.2.2.2"])
	assert.Empty(t, cfg.Blacklist)
	assert.NotEmpty(t, cfg.EndpointConfigs)

	disabled := LoadConfig(func(k string) string {
		if k == "RATE_LIMIT_ENABLED" {
			return "false"
		}
		return ""
	})
	assert.False(t, disabled.Enabled)
}
