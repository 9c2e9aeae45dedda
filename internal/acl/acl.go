// Package acl implements a per-listener allow/deny CIDR list for
// incoming DNS queries. It is a non-goal surface per spec.md: present
// in configuration and consulted by the listener, but ACL enforcement
// policy itself is out of scope, so the default policy is allow-all.
package acl

import (
	"net"
	"sync"
)

// List is an ordered allow/deny CIDR list with a default policy.
type List struct {
	mu           sync.RWMutex
	allow        []*net.IPNet
	deny         []*net.IPNet
	defaultAllow bool
}

// New creates a List with the given default policy.
func New(defaultAllow bool) *List {
	return &List{defaultAllow: defaultAllow}
}

// Allow adds a network or single address to the allow list.
func (l *List) Allow(cidr string) error {
	ipnet, err := parseNet(cidr)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allow = append(l.allow, ipnet)
	return nil
}

// Deny adds a network or single address to the deny list.
func (l *List) Deny(cidr string) error {
	ipnet, err := parseNet(cidr)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deny = append(l.deny, ipnet)
	return nil
}

// Permits reports whether ip may query this listener. Deny entries
// take precedence over allow entries, which take precedence over the
// default policy.
func (l *List) Permits(ip net.IP) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, n := range l.deny {
		if n.Contains(ip) {
			return false
		}
	}
	for _, n := range l.allow {
		if n.Contains(ip) {
			return true
		}
	}
	return l.defaultAllow
}

func parseNet(cidr string) (*net.IPNet, error) {
	_, ipnet, err := net.ParseCIDR(cidr)
	if err == nil {
		return ipnet, nil
	}
	ip := net.ParseIP(cidr)
	if ip == nil {
		return nil, err
	}
	if v4 := ip.To4(); v4 != nil {
		return &net.IPNet{IP: v4, Mask: net.CIDRMask(32, 32)}, nil
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(128, 128)}, nil
}
