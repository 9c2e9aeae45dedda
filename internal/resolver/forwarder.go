// Package resolver implements the stub (forwarding) resolver: it
// forwards a question to a configured upstream forwarder, validates
// the response against the cross-section diff rules, and returns a
// decoded message or a distinguishable error.
package resolver

import (
	"crypto/rand"
	"math/big"
	"sync/atomic"
)

// SelectionPolicy chooses which address of a forwarder to try next.
type SelectionPolicy string

const (
	PolicyFirst      SelectionPolicy = "first"
	PolicyRoundRobin SelectionPolicy = "round_robin"
	PolicyRandom     SelectionPolicy = "random"
)

// Forwarder is a named upstream with an ordered address list and a
// selection policy.
type Forwarder struct {
	Name      string
	Addresses []string
	Policy    SelectionPolicy

	counter atomic.Uint64
}

// NextAddresses returns the forwarder's addresses ordered by policy
// for a single resolution attempt; the resolver tries them in order
// until one answers.
func (f *Forwarder) NextAddresses() []string {
	if len(f.Addresses) == 0 {
		return nil
	}
	switch f.Policy {
	case PolicyRoundRobin:
		start := int(f.counter.Add(1)-1) % len(f.Addresses)
		return rotate(f.Addresses, start)
	case PolicyRandom:
		start := randIndex(len(f.Addresses))
		return rotate(f.Addresses, start)
	default: // PolicyFirst
		return f.Addresses
	}
}

func rotate(addrs []string, start int) []string {
	out := make([]string, len(addrs))
	for i := range addrs {
		out[i] = addrs[(start+i)%len(addrs)]
	}
	return out
}

func randIndex(n int) int {
	if n <= 1 {
		return 0
	}
	max := big.NewInt(int64(n))
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		return 0
	}
	return int(v.Int64())
}
