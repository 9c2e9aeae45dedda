// Package server wires the configuration, zone store, cache, resolver
// and pipeline together and owns the UDP listener socket(s).
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/2SCloud/scloud-dns/internal/acl"
	"github.com/2SCloud/scloud-dns/internal/cache"
	"github.com/2SCloud/scloud-dns/internal/config"
	"github.com/2SCloud/scloud-dns/internal/cookie"
	"github.com/2SCloud/scloud-dns/internal/pipeline"
	"github.com/2SCloud/scloud-dns/internal/ratelimit"
	"github.com/2SCloud/scloud-dns/internal/resolver"
	"github.com/2SCloud/scloud-dns/internal/rrl"
	"github.com/2SCloud/scloud-dns/internal/wire"
	"github.com/2SCloud/scloud-dns/internal/zonefile"
	"github.com/2SCloud/scloud-dns/internal/zonemgr"
)

// Server owns the listening sockets and the staged pipeline that
// processes every datagram received on them.
type Server struct {
	cfg *config.Config
	log *slog.Logger

	cache    *cache.ShardedCache
	zones    *zonemgr.Manager
	resolver *resolver.Stub
	forwarders map[string]*resolver.Forwarder

	acl       *acl.List
	rateLimit *ratelimit.Limiter
	cookies   *cookie.Manager
	rrl       *rrl.Limiter

	pipeline *pipeline.Pipeline
	conns    []*net.UDPConn

	queries atomic.Uint64
	answers atomic.Uint64
	errors  atomic.Uint64

	wg sync.WaitGroup
}

// Stats is a point-in-time snapshot of server-level counters.
type Stats struct {
	Queries uint64
	Answers uint64
	Errors  uint64
	Cache   cache.Stats
}

// New builds a Server from cfg. No socket is opened and no receive
// loop is started until Start.
func New(cfg *config.Config, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}

	if p := cfg.Cache.EvictionPolicy; p != "" && p != "lru" {
		log.Warn("unsupported cache eviction policy, using lru", "eviction_policy", p)
	}

	c := cache.NewShardedCache(cache.Config{
		Enabled:            cfg.Cache.Enabled,
		MaxEntries:         cfg.Cache.MaxEntries,
		MaxTTLSeconds:      uint32(cfg.Cache.MaxTTLSeconds),
		NegativeTTLSeconds: uint32(cfg.Cache.NegativeTTLSeconds),
		EvictionPolicy:     cfg.Cache.EvictionPolicy,
	})

	zm := zonemgr.New()

	forwarders := make(map[string]*resolver.Forwarder, len(cfg.Forwarders))
	for _, fc := range cfg.Forwarders {
		forwarders[fc.Name] = &resolver.Forwarder{
			Name:      fc.Name,
			Addresses: fc.Addresses,
			Policy:    resolver.SelectionPolicy(fc.Policy),
		}
	}

	res := resolver.New(resolver.Config{
		PerQueryTimeout: time.Duration(cfg.Recursion.RecursionTimeoutMS) * time.Millisecond,
		Retries:         3,
	})

	al := acl.New(true)
	rl := ratelimit.New(ratelimit.Config{
		QueriesPerSecond: 100, BurstSize: 200, CleanupInterval: 5 * time.Minute,
	})
	cm, err := cookie.NewManager(cookie.Config{Enabled: false})
	if err != nil {
		return nil, fmt.Errorf("server: cookie manager: %w", err)
	}

	rrlCfg := rrl.DefaultConfig()
	rrlCfg.Enabled = false // non-goal surface: consulted, never enforced by default
	responseLimiter := rrl.NewLimiter(rrlCfg)

	reg := prometheus.NewRegistry()
	metrics := pipeline.NewMetrics(reg)

	s := &Server{
		cfg:        cfg,
		log:        log,
		cache:      c,
		zones:      zm,
		resolver:   res,
		forwarders: forwarders,
		acl:        al,
		rateLimit:  rl,
		cookies:    cm,
		rrl:        responseLimiter,
	}

	s.pipeline = pipeline.New(
		pipeline.Config{
			MaxConcurrentRequests: cfg.Server.MaxConcurrentRequests,
			MaxResponseSizeUDP:    cfg.AmplificationMitigation.MaxResponseSizeUDP,
		},
		c, zm, res, s.defaultForwarder(), metrics, log, s.sendUDP,
	)

	return s, nil
}

func (s *Server) defaultForwarder() *resolver.Forwarder {
	for _, fw := range s.forwarders {
		return fw
	}
	return nil
}

// LoadZone parses and loads a BIND-style zone file, replacing any
// previously loaded zone of the same name via an atomic store swap.
func (s *Server) LoadZone(path, origin string) error {
	z, err := zonefile.ParseZoneFile(path, origin, zonefile.DefaultConfig())
	if err != nil {
		return fmt.Errorf("server: load zone %s: %w", origin, err)
	}
	if err := z.Validate(); err != nil {
		return fmt.Errorf("server: validate zone %s: %w", origin, err)
	}
	s.zones.Reload(append(s.zoneSnapshot(), z))
	return nil
}

func (s *Server) zoneSnapshot() []*zonefile.Zone {
	store := s.zones.Store()
	if store == nil {
		return nil
	}
	return store.Zones()
}

// Start opens the configured UDP listener sockets and launches the
// pipeline's stage goroutines plus one receive loop per socket.
func (s *Server) Start() error {
	s.pipeline.Start()

	for _, lc := range s.cfg.Listeners {
		addr := fmt.Sprintf("%s:%d", lc.Address, lc.Port)
		udpAddr, err := net.ResolveUDPAddr("udp", addr)
		if err != nil {
			return fmt.Errorf("server: resolve %s: %w", addr, err)
		}
		conn, err := net.ListenUDP("udp", udpAddr)
		if err != nil {
			return fmt.Errorf("server: listen %s: %w", addr, err)
		}
		s.conns = append(s.conns, conn)

		s.wg.Add(1)
		go s.receiveLoop(conn)
	}

	return nil
}

func (s *Server) receiveLoop(conn *net.UDPConn) {
	defer s.wg.Done()
	buf := make([]byte, wire.MaxMessageSize)

	for {
		n, raddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if isClosed(err) {
				return
			}
			s.log.Warn("listener read error", "error", err)
			continue
		}

		if !s.admitted(raddr) {
			continue
		}

		deadline := time.Now().Add(s.cfg.Server.ShutdownTimeout())
		task, ok := s.pipeline.Admit(buf[:n], raddr, deadline)
		if !ok {
			continue // admission saturated: drop silently per §4.7
		}
		s.queries.Add(1)
		s.pipeline.Submit(task)
	}
}

// admitted consults the ACL and rate limiter before a datagram even
// reaches the admission semaphore, per spec.md's listener-level ACL
// and per-client rate limiting config surfaces.
func (s *Server) admitted(raddr *net.UDPAddr) bool {
	if s.acl != nil && !s.acl.Permits(raddr.IP) {
		return false
	}
	if s.rateLimit != nil && !s.rateLimit.Allow(raddr.IP) {
		return false
	}
	return true
}

func (s *Server) sendUDP(addr net.Addr, b []byte) error {
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		return fmt.Errorf("server: unsupported address type %T", addr)
	}
	if len(s.conns) == 0 {
		return fmt.Errorf("server: no open socket to send from")
	}

	s.checkResponseRate(udpAddr, b)

	_, err := s.conns[0].WriteToUDP(b, udpAddr)
	if err == nil {
		s.answers.Add(1)
	} else {
		s.errors.Add(1)
	}
	return err
}

// checkResponseRate consults the RRL limiter for visibility into what
// it would do with this response; enforcement is a non-goal, so the
// verdict is logged, never acted on.
func (s *Server) checkResponseRate(to *net.UDPAddr, encoded []byte) {
	if s.rrl == nil {
		return
	}
	msg, err := wire.Decode(encoded)
	if err != nil || len(msg.Question) == 0 {
		return
	}
	q := msg.Question[0]
	category := rrl.CategorizeResponse(int(msg.Header.Rcode), len(msg.Answer), len(msg.Authority))
	if action := s.rrl.Check(to.IP, q.Name, uint16(q.Type), category); action != rrl.ActionAllow {
		s.log.Debug("rrl would act", "action", action.String(), "client", to.IP, "qname", q.Name)
	}
}

// Stop closes listening sockets, waits up to the configured graceful
// shutdown timeout for the receive loops to return, then stops the
// pipeline. It does not wait for tasks already inside the pipeline.
func (s *Server) Stop() error {
	for _, c := range s.conns {
		c.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout())
	defer cancel()

	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("graceful shutdown timed out, stopping pipeline anyway")
	}

	s.pipeline.Stop()
	if s.rrl != nil {
		s.rrl.Close()
	}
	return s.cache.Close()
}

// GetStats returns a snapshot of server-level counters.
func (s *Server) GetStats() Stats {
	return Stats{
		Queries: s.queries.Load(),
		Answers: s.answers.Load(),
		Errors:  s.errors.Load(),
		Cache:   s.cache.GetStats(),
	}
}

func isClosed(err error) bool {
	return err != nil && (errors.Is(err, net.ErrClosed) ||
		fmt.Sprintf("%v", err) == "EOF")
}
