package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledLimiterAllowsEverything(t *testing.T) {
	l := NewLimiter(&Config{Enabled: false})
	defer l.Stop()

	for i := 0; i < 100; i++ {
		allowed, _ := l.Allow("1.2.3.4", "/runs", "POST")
		assert.True(t, allowed)
	}
}

func TestBurstThenLimited(t *testing.T) {
	l := NewLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  1000,
		DefaultWindow: time.Minute,
		Endpoints: []EndpointConfig{
			{Path: "/runs", Method: "POST", Limit: 10, Window: time.Hour, Burst: 2},
		},
	})
	defer l.Stop()

	allowed, info := l.Allow("1.2.3.4", "/runs", "POST")
	require.True(t, allowed)
	assert.Equal(t, 10, info.Limit)

	allowed, _ = l.Allow("1.2.3.4", "/runs", "POST")
	require.True(t, allowed)

	allowed, info = l.Allow("1.2.3.4", "/runs", "POST")
	require.False(t, allowed)
	assert.Greater(t, info.RetryAfter, time.Duration(0))
}

func TestClientsAreIndependent(t *testing.T) {
	l := NewLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  1000,
		DefaultWindow: time.Minute,
		Endpoints: []EndpointConfig{
			{Path: "/runs", Method: "POST", Limit: 1, Window: time.Hour, Burst: 1},
		},
	})
	defer l.Stop()

	allowed, _ := l.Allow("1.1.1.1", "/runs", "POST")
	require.True(t, allowed)
	allowed, _ = l.Allow("1.1.1.1", "/runs", "POST")
	require.False(t, allowed)

	allowed, _ = l.Allow("2.2.2.2", "/runs", "POST")
	assert.True(t, allowed)
}

func TestHealthAndEventStreamsUnlimited(t *testing.T) {
	l := NewLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Hour,
	})
	defer l.Stop()

	for i := 0; i < 50; i++ {
		allowed, _ := l.Allow("1.2.3.4", "/health", "GET")
		require.True(t, allowed)
		allowed, _ = l.Allow("1.2.3.4", "/runs/abc/events", "GET")
		require.True(t, allowed)
	}
}

func TestPrefixMatchCoversSubroutes(t *testing.T) {
	configs := []EndpointConfig{
		{Path: "/runs", Method: "POST", Limit: 10, Window: time.Hour},
		{Path: "/runs/", Method: "POST", Limit: 100, Window: time.Minute},
	}

	exact := matchEndpoint("/runs", "POST", configs)
	require.NotNil(t, exact)
	assert.Equal(t, 10, exact.Limit)

	sub := matchEndpoint("/runs/some-id/continue", "POST", configs)
	require.NotNil(t, sub)
	assert.Equal(t, 100, sub.Limit)

	assert.Nil(t, matchEndpoint("/other", "POST", configs))
}
