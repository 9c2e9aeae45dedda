package resolver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2SCloud/scloud-dns/internal/wire"
)

// fakeUpstream starts a UDP listener that replies with a caller-built
// response (or nothing, to exercise the retry/timeout path).
func fakeUpstream(t *testing.T, respond func(query *wire.Message) *wire.Message) string {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, wire.MaxMessageSize)
		for {
			n, raddr, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			q, err := wire.Decode(buf[:n])
			if err != nil {
				continue
			}
			resp := respond(q)
			if resp == nil {
				continue // simulate a dropped/delayed packet
			}
			out, err := wire.Encode(resp)
			if err != nil {
				continue
			}
			conn.WriteToUDP(out, raddr)
		}
	}()

	return conn.LocalAddr().String()
}

// Scenario 3: response id mismatch must be rejected and never cached
// (caching is the pipeline's job; here we just assert the resolver
// itself reports the distinguishable error).
func TestResolve_IDMismatchRejected(t *testing.T) {
	addr := fakeUpstream(t, func(q *wire.Message) *wire.Message {
		resp := wire.NewResponse(q)
		resp.Header.ID = q.Header.ID + 1 // forged id
		resp.Header.QR = true
		return resp
	})

	s := New(Config{PerQueryTimeout: 500 * time.Millisecond, Retries: 1})
	fw := &Forwarder{Name: "up", Addresses: []string{addr}, Policy: PolicyFirst}

	_, err := s.Resolve(context.Background(), []wire.Question{{Name: "github.com.", Type: wire.TypeA, Class: wire.ClassIN}}, fw)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidDNSID)
}

// Scenario 4: answer-name mismatch.
func TestResolve_AnswerQNameMismatchRejected(t *testing.T) {
	addr := fakeUpstream(t, func(q *wire.Message) *wire.Message {
		resp := wire.NewResponse(q)
		resp.Header.QR = true
		resp.Answer = []wire.RR{{Name: "evil.com.", Class: wire.ClassIN, TTL: 60, Data: wire.A{}}}
		resp.Finalize()
		return resp
	})

	s := New(Config{PerQueryTimeout: 500 * time.Millisecond, Retries: 1})
	fw := &Forwarder{Name: "up", Addresses: []string{addr}, Policy: PolicyFirst}

	_, err := s.Resolve(context.Background(), []wire.Question{{Name: "github.com.", Type: wire.TypeA, Class: wire.ClassIN}}, fw)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResponseMismatch)
}

func TestResolve_ValidResponseAccepted(t *testing.T) {
	addr := fakeUpstream(t, func(q *wire.Message) *wire.Message {
		resp := wire.NewResponse(q)
		resp.Header.QR = true
		resp.Answer = []wire.RR{{Name: q.Question[0].Name, Class: wire.ClassIN, TTL: 60, Data: wire.A{}}}
		resp.Finalize()
		return resp
	})

	s := New(DefaultConfig())
	fw := &Forwarder{Name: "up", Addresses: []string{addr}, Policy: PolicyFirst}

	resp, err := s.Resolve(context.Background(), []wire.Question{{Name: "example.com.", Type: wire.TypeA, Class: wire.ClassIN}}, fw)
	require.NoError(t, err)
	require.Len(t, resp.Answer, 1)
}

func TestForwarder_RoundRobinAdvances(t *testing.T) {
	fw := &Forwarder{Name: "rr", Addresses: []string{"a", "b", "c"}, Policy: PolicyRoundRobin}

	first := fw.NextAddresses()[0]
	second := fw.NextAddresses()[0]
	third := fw.NextAddresses()[0]

	assert.NotEqual(t, first, second)
	seen := map[string]bool{first: true, second: true, third: true}
	assert.Len(t, seen, 3)
}

func TestForwarder_FirstAlwaysSameOrder(t *testing.T) {
	fw := &Forwarder{Name: "f", Addresses: []string{"a", "b"}, Policy: PolicyFirst}
	assert.Equal(t, []string{"a", "b"}, fw.NextAddresses())
	assert.Equal(t, []string{"a", "b"}, fw.NextAddresses())
}

func TestValidateResponse_AuthorityOutOfZoneRejected(t *testing.T) {
	resp := &wire.Message{
		Authority: []wire.RR{{Name: "evil.com.", Class: wire.ClassIN, TTL: 60, Data: wire.NS{Host: "ns.evil.com."}}},
	}
	err := ValidateResponse([]wire.Question{{Name: "example.com.", Type: wire.TypeA, Class: wire.ClassIN}}, resp)
	require.Error(t, err)
}
