package resolver

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/2SCloud/scloud-dns/internal/wire"
)

// Config controls the stub resolver's timeout/retry behavior. Per the
// spec's own flagged open question, PerQueryTimeout is its own field:
// earlier source variants reused the server's graceful shutdown
// timeout for this, which was accidental, not intentional.
type Config struct {
	PerQueryTimeout time.Duration
	Retries         int
}

// DefaultConfig returns a 2s per-query timeout with 3 attempts.
func DefaultConfig() Config {
	return Config{PerQueryTimeout: 2 * time.Second, Retries: 3}
}

// Stub is a forwarding-only resolver: it has no iterative/recursive
// resolution logic of its own, only upstream forwarder dispatch.
type Stub struct {
	cfg Config
}

// New creates a Stub resolver.
func New(cfg Config) *Stub {
	if cfg.PerQueryTimeout == 0 {
		cfg.PerQueryTimeout = 2 * time.Second
	}
	if cfg.Retries == 0 {
		cfg.Retries = 3
	}
	return &Stub{cfg: cfg}
}

// Resolve forwards questions to forwarder, validating the reply per
// §4.6. It makes up to cfg.Retries attempts in total, moving on to the
// next attempt only on a timeout; any other error is returned at once.
func (s *Stub) Resolve(ctx context.Context, questions []wire.Question, fw *Forwarder) (*wire.Message, error) {
	if fw == nil || len(fw.Addresses) == 0 {
		return nil, ErrNoForwarders
	}

	id, err := freshID()
	if err != nil {
		return nil, fmt.Errorf("resolver: generate id: %w", err)
	}

	query := &wire.Message{
		Header:   wire.Header{ID: id, RD: true, QDCount: uint16(len(questions))},
		Question: questions,
	}
	queryBytes, err := wire.Encode(query)
	if err != nil {
		return nil, fmt.Errorf("resolver: encode query: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < s.cfg.Retries; attempt++ {
		for _, addr := range fw.NextAddresses() {
			resp, err := s.exchange(ctx, addr, queryBytes, id)
			if err == nil {
				if verr := ValidateResponse(questions, resp); verr != nil {
					return nil, verr
				}
				return resp, nil
			}
			lastErr = err
			if !isTimeout(err) {
				return nil, err
			}
		}
	}

	if lastErr == nil {
		lastErr = ErrRetriesExhausted
	}
	return nil, fmt.Errorf("%w: %v", ErrRetriesExhausted, lastErr)
}

func (s *Stub) exchange(ctx context.Context, addr string, query []byte, queryID uint16) (*wire.Message, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolver: dial %s: %w", addr, err)
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok || time.Until(deadline) > s.cfg.PerQueryTimeout {
		deadline = time.Now().Add(s.cfg.PerQueryTimeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("resolver: set deadline: %w", err)
	}

	if _, err := conn.Write(query); err != nil {
		return nil, fmt.Errorf("resolver: send: %w", err)
	}

	buf := make([]byte, wire.MaxMessageSize)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, err // timeout classified by isTimeout
	}

	resp, err := wire.Decode(buf[:n])
	if err != nil {
		return nil, fmt.Errorf("resolver: decode: %w", err)
	}

	if resp.Header.ID != queryID {
		return nil, ErrInvalidDNSID
	}
	if !resp.Header.QR {
		return nil, ErrInvalidDNSResponse
	}

	return resp, nil
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

func freshID() (uint16, error) {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}
