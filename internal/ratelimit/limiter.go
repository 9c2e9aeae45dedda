// Package ratelimit implements per-client query rate limiting with a
// token bucket per source IP. It is a non-goal surface per spec.md:
// present in configuration and wireable into the listener, but
// enforcement policy (what happens on exhaustion beyond "drop") is
// left to the operator.
package ratelimit

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config controls per-client limits and exemptions.
type Config struct {
	QueriesPerSecond float64
	BurstSize        int
	CleanupInterval  time.Duration
}

// DefaultConfig returns 100 QPS with a burst of 200, per spec.md's
// representative defaults.
func DefaultConfig() Config {
	return Config{QueriesPerSecond: 100, BurstSize: 200, CleanupInterval: 5 * time.Minute}
}

// Limiter is a per-client-IP token bucket rate limiter.
type Limiter struct {
	mu          sync.RWMutex
	byIP        map[string]*rate.Limiter
	qps         rate.Limit
	burst       int
	interval    time.Duration
	lastCleanup time.Time
	exempt      []*net.IPNet
}

// New creates a Limiter from cfg.
func New(cfg Config) *Limiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	return &Limiter{
		byIP:        make(map[string]*rate.Limiter),
		qps:         rate.Limit(cfg.QueriesPerSecond),
		burst:       cfg.BurstSize,
		interval:    cfg.CleanupInterval,
		lastCleanup: time.Now(),
	}
}

// Exempt adds a network exempt from rate limiting.
func (l *Limiter) Exempt(cidr string) error {
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		ip := net.ParseIP(cidr)
		if ip == nil {
			return err
		}
		if v4 := ip.To4(); v4 != nil {
			ipnet = &net.IPNet{IP: v4, Mask: net.CIDRMask(32, 32)}
		} else {
			ipnet = &net.IPNet{IP: ip, Mask: net.CIDRMask(128, 128)}
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.exempt = append(l.exempt, ipnet)
	return nil
}

// Allow reports whether a query from ip may proceed.
func (l *Limiter) Allow(ip net.IP) bool {
	if l.isExempt(ip) {
		return true
	}

	key := ip.String()

	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Since(l.lastCleanup) > l.interval {
		l.byIP = make(map[string]*rate.Limiter)
		l.lastCleanup = time.Now()
	}

	lim, ok := l.byIP[key]
	if !ok {
		lim = rate.NewLimiter(l.qps, l.burst)
		l.byIP[key] = lim
	}
	return lim.Allow()
}

func (l *Limiter) isExempt(ip net.IP) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, n := range l.exempt {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// Stats reports current tracked-client counts.
type Stats struct {
	TrackedClients int
	ExemptNets     int
}

// Stats returns a snapshot of the limiter's bookkeeping.
func (l *Limiter) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Stats{TrackedClients: len(l.byIP), ExemptNets: len(l.exempt)}
}
