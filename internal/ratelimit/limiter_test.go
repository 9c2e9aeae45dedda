package ratelimit

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_Basic(t *testing.T) {
	l := New(Config{QueriesPerSecond: 10, BurstSize: 10, CleanupInterval: time.Minute})
	ip := net.ParseIP("192.168.1.1")

	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow(ip), "query %d should be allowed", i)
	}
	assert.False(t, l.Allow(ip))
}

func TestLimiter_DifferentClientsIndependent(t *testing.T) {
	l := New(Config{QueriesPerSecond: 5, BurstSize: 5, CleanupInterval: time.Minute})
	ip1 := net.ParseIP("192.168.1.1")
	ip2 := net.ParseIP("192.168.1.2")

	for i := 0; i < 5; i++ {
		l.Allow(ip1)
	}
	assert.False(t, l.Allow(ip1))

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow(ip2))
	}
}

func TestLimiter_Exempt(t *testing.T) {
	l := New(Config{QueriesPerSecond: 1, BurstSize: 1, CleanupInterval: time.Minute})
	require.NoError(t, l.Exempt("127.0.0.0/8"))

	ip := net.ParseIP("127.0.0.1")
	for i := 0; i < 50; i++ {
		assert.True(t, l.Allow(ip))
	}
}
