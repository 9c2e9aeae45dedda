package pipeline

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/2SCloud/scloud-dns/internal/cache"
	"github.com/2SCloud/scloud-dns/internal/resolver"
	"github.com/2SCloud/scloud-dns/internal/wire"
	"github.com/2SCloud/scloud-dns/internal/zonemgr"
)

// resolverCtx derives a context bounded by the task's deadline, so a
// slow upstream never holds a resolver goroutine past the point the
// original client has given up. The caller must invoke the returned
// cancel function once the resolve attempt completes.
func resolverCtx(t *Task) (context.Context, context.CancelFunc) {
	if t.Deadline.IsZero() {
		return context.WithCancel(context.Background())
	}
	return context.WithDeadline(context.Background(), t.Deadline)
}

// chanCapacity is the buffered channel capacity between stages.
const chanCapacity = 1024

// Pipeline wires the eight stage goroutines together with buffered
// channels, per §4.7/§5: Listener -> Decoder -> Dispatcher -> (Cache
// Lookup | Zone Manager | Resolver) -> Cache Writer -> Encoder -> Sender.
type Pipeline struct {
	admission *Admission
	cache     *cache.ShardedCache
	zones     *zonemgr.Manager
	resolver  *resolver.Stub
	forwarder *resolver.Forwarder
	metrics   *Metrics
	sendFn    func(addr net.Addr, b []byte) error
	maxUDP    int

	log *slog.Logger

	decodeCh  chan *Task
	dispatch  chan *Task
	cacheCh   chan *Task
	zoneCh    chan *Task
	resolveCh chan *Task
	writeCh   chan *Task
	encodeCh  chan *Task
	sendCh    chan *Task

	stop chan struct{}
}

// Config configures the pipeline's dependencies and tuning knobs.
type Config struct {
	MaxConcurrentRequests int
	MaxResponseSizeUDP    int // default 4096 per amplification_mitigation
}

// DefaultConfig returns the documented pipeline defaults.
func DefaultConfig() Config {
	return Config{MaxConcurrentRequests: 512, MaxResponseSizeUDP: 4096}
}

// New builds a Pipeline. sendFn is the Sender stage's write-to-client
// hook, separated out so tests don't need a live socket.
func New(cfg Config, c *cache.ShardedCache, zm *zonemgr.Manager, res *resolver.Stub, fw *resolver.Forwarder, m *Metrics, log *slog.Logger, sendFn func(net.Addr, []byte) error) *Pipeline {
	if cfg.MaxResponseSizeUDP <= 0 {
		cfg.MaxResponseSizeUDP = 4096
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		admission: NewAdmission(cfg.MaxConcurrentRequests),
		cache:     c,
		zones:     zm,
		resolver:  res,
		forwarder: fw,
		metrics:   m,
		sendFn:    sendFn,
		maxUDP:    cfg.MaxResponseSizeUDP,
		log:       log,
		decodeCh:  make(chan *Task, chanCapacity),
		dispatch:  make(chan *Task, chanCapacity),
		cacheCh:   make(chan *Task, chanCapacity),
		zoneCh:    make(chan *Task, chanCapacity),
		resolveCh: make(chan *Task, chanCapacity),
		writeCh:   make(chan *Task, chanCapacity),
		encodeCh:  make(chan *Task, chanCapacity),
		sendCh:    make(chan *Task, chanCapacity),
		stop:      make(chan struct{}),
	}
}

// Start launches one goroutine per stage.
func (p *Pipeline) Start() {
	go p.runDecoder()
	go p.runDispatcher()
	go p.runCacheLookup()
	go p.runZoneManager()
	go p.runResolver()
	go p.runCacheWriter()
	go p.runEncoder()
	go p.runSender()
}

// Stop signals every stage goroutine to exit. Stages do not drain their
// input channels first; tasks still queued are not processed.
func (p *Pipeline) Stop() {
	close(p.stop)
}

// Admit is the Listener stage's admission step: acquire a permit for
// a freshly read datagram, or report saturation so the caller can drop
// it silently.
func (p *Pipeline) Admit(raw []byte, from net.Addr, deadline time.Time) (*Task, bool) {
	if !p.admission.TryAcquire() {
		return nil, false
	}
	t := NewTask(raw, from, deadline)
	if p.metrics != nil {
		p.metrics.TasksAdmitted.Inc()
	}
	return t, true
}

// Submit hands an admitted task to the decoder stage.
func (p *Pipeline) Submit(t *Task) {
	select {
	case p.decodeCh <- t:
	case <-p.stop:
		p.admission.Release()
	}
}

func (p *Pipeline) drop(stage, reason string, t *Task) {
	if p.metrics != nil {
		p.metrics.TasksDropped.WithLabelValues(stage, reason).Inc()
	}
	p.admission.Release()
}

func (p *Pipeline) runDecoder() {
	for {
		select {
		case <-p.stop:
			return
		case t := <-p.decodeCh:
			msg, err := wire.Decode(t.Raw)
			if err != nil {
				if p.metrics != nil {
					p.metrics.DecodeErrors.Inc()
				}
				p.drop("decoder", "malformed", t)
				continue
			}
			t.Query = msg
			select {
			case p.dispatch <- t:
			case <-p.stop:
				p.admission.Release()
			}
		}
	}
}

func (p *Pipeline) runDispatcher() {
	for {
		select {
		case <-p.stop:
			return
		case t := <-p.dispatch:
			if t.Expired() {
				p.drop("dispatcher", "deadline_exceeded", t)
				continue
			}
			select {
			case p.cacheCh <- t:
			case <-p.stop:
				p.admission.Release()
			}
		}
	}
}

func (p *Pipeline) runCacheLookup() {
	for {
		select {
		case <-p.stop:
			return
		case t := <-p.cacheCh:
			if p.cache == nil || len(t.Query.Question) == 0 {
				select {
				case p.zoneCh <- t:
				case <-p.stop:
					p.admission.Release()
				}
				continue
			}

			q := t.Query.Question[0]
			key := cache.Key(q.Name, q.Type, q.Class)
			t.cacheKey = key

			if entry, ok := p.cache.Get(key); ok {
				if p.metrics != nil {
					p.metrics.CacheHits.Inc()
				}
				t.Response = wire.NewResponse(t.Query).WithRcode(entry.Rcode)
				t.Response.Header.AA = entry.AA
				t.Response.Answer = entry.Answer
				t.Response.Authority = entry.Authority
				t.Response.Additional = entry.Additional
				t.Response.Finalize()
				select {
				case p.encodeCh <- t:
				case <-p.stop:
					p.admission.Release()
				}
				continue
			}

			if p.metrics != nil {
				p.metrics.CacheMisses.Inc()
			}
			select {
			case p.zoneCh <- t:
			case <-p.stop:
				p.admission.Release()
			}
		}
	}
}

func (p *Pipeline) runZoneManager() {
	for {
		select {
		case <-p.stop:
			return
		case t := <-p.zoneCh:
			if p.zones == nil || len(t.Query.Question) == 0 {
				select {
				case p.resolveCh <- t:
				case <-p.stop:
					p.admission.Release()
				}
				continue
			}

			result := p.zones.Lookup(t.Query.Question[0])
			if !result.Authoritative {
				select {
				case p.resolveCh <- t:
				case <-p.stop:
					p.admission.Release()
				}
				continue
			}

			t.authoritative = true
			t.cacheable = true
			t.Response = wire.NewResponse(t.Query).WithRcode(result.Rcode)
			t.Response.Header.AA = true
			t.Response.Answer = result.Answer
			t.Response.Authority = result.Authority
			t.Response.Finalize()

			select {
			case p.writeCh <- t:
			case <-p.stop:
				p.admission.Release()
			}
		}
	}
}

func (p *Pipeline) runResolver() {
	for {
		select {
		case <-p.stop:
			return
		case t := <-p.resolveCh:
			if p.resolver == nil || p.forwarder == nil {
				t.Response = wire.NewResponse(t.Query).WithRcode(wire.RcodeServerFailure)
				t.Response.Finalize()
				select {
				case p.encodeCh <- t:
				case <-p.stop:
					p.admission.Release()
				}
				continue
			}

			ctx, cancel := resolverCtx(t)
			resp, err := p.resolver.Resolve(ctx, t.Query.Question, p.forwarder)
			cancel()
			if err != nil {
				if p.metrics != nil {
					p.metrics.ResolverErrors.Inc()
					p.metrics.ServfailSynth.Inc()
				}
				t.Response = wire.NewResponse(t.Query).WithRcode(wire.RcodeServerFailure)
				t.Response.Finalize()
				select {
				case p.encodeCh <- t:
				case <-p.stop:
					p.admission.Release()
				}
				continue
			}

			t.cacheable = true
			t.Response = resp
			select {
			case p.writeCh <- t:
			case <-p.stop:
				p.admission.Release()
			}
		}
	}
}

// cacheExpiry computes a response's cache expiry per §4.3: a positive
// answer lives for the lowest record TTL in the answer section capped
// by the cache's configured max, a negative response (NXDOMAIN, or
// NOERROR with an empty answer) lives for the configured negative TTL.
func (p *Pipeline) cacheExpiry(m *wire.Message) time.Time {
	cfg := p.cache.Config()

	if m.Header.Rcode != wire.RcodeSuccess || len(m.Answer) == 0 {
		return time.Now().Add(time.Duration(cfg.NegativeTTLSeconds) * time.Second)
	}

	ttl := m.Answer[0].TTL
	for _, rr := range m.Answer[1:] {
		if rr.TTL < ttl {
			ttl = rr.TTL
		}
	}
	if cfg.MaxTTLSeconds > 0 && ttl > cfg.MaxTTLSeconds {
		ttl = cfg.MaxTTLSeconds
	}
	return time.Now().Add(time.Duration(ttl) * time.Second)
}

func (p *Pipeline) runCacheWriter() {
	for {
		select {
		case <-p.stop:
			return
		case t := <-p.writeCh:
			if p.cache != nil && t.cacheable && t.cacheKey != 0 {
				entry := cache.Entry{
					Answer:     t.Response.Answer,
					Authority:  t.Response.Authority,
					Additional: t.Response.Additional,
					Rcode:      t.Response.Header.Rcode,
					AA:         t.authoritative,
					ExpiresAt:  p.cacheExpiry(t.Response),
				}
				p.cache.Set(t.cacheKey, entry)
			}
			select {
			case p.encodeCh <- t:
			case <-p.stop:
				p.admission.Release()
			}
		}
	}
}

func (p *Pipeline) runEncoder() {
	for {
		select {
		case <-p.stop:
			return
		case t := <-p.encodeCh:
			t.Response.Finalize()
			out, err := wire.Encode(t.Response)
			if err == nil && len(out) > p.maxUDP {
				out, err = p.truncate(t.Response)
			}
			if err != nil {
				if p.metrics != nil {
					p.metrics.EncodeErrors.Inc()
				}
				p.log.Warn("encode failed", "task_id", t.TaskID, "error", err)
				p.drop("encoder", "encode_error", t)
				continue
			}
			t.Raw = out
			select {
			case p.sendCh <- t:
			case <-p.stop:
				p.admission.Release()
			}
		}
	}
}

// truncate implements the UDP amplification-mitigation fallback: drop
// additional records first, then authority, then answers, until the
// encoded message fits maxUDP, setting TC=1.
func (p *Pipeline) truncate(m *wire.Message) ([]byte, error) {
	m.Header.TC = true
	if p.metrics != nil {
		p.metrics.TruncatedUDP.Inc()
	}

	for len(m.Additional) > 0 {
		m.Additional = m.Additional[:len(m.Additional)-1]
		m.Finalize()
		out, err := wire.Encode(m)
		if err != nil {
			return nil, err
		}
		if len(out) <= p.maxUDP {
			return out, nil
		}
	}
	for len(m.Authority) > 0 {
		m.Authority = m.Authority[:len(m.Authority)-1]
		m.Finalize()
		out, err := wire.Encode(m)
		if err != nil {
			return nil, err
		}
		if len(out) <= p.maxUDP {
			return out, nil
		}
	}
	for len(m.Answer) > 0 {
		m.Answer = m.Answer[:len(m.Answer)-1]
		m.Finalize()
		out, err := wire.Encode(m)
		if err != nil {
			return nil, err
		}
		if len(out) <= p.maxUDP {
			return out, nil
		}
	}
	m.Finalize()
	return wire.Encode(m)
}

func (p *Pipeline) runSender() {
	for {
		select {
		case <-p.stop:
			return
		case t := <-p.sendCh:
			if p.sendFn != nil {
				if err := p.sendFn(t.ForWho, t.Raw); err != nil {
					p.log.Warn("send failed", "task_id", t.TaskID, "error", err)
				}
			}
			if p.metrics != nil {
				p.metrics.ResponsesSent.Inc()
			}
			p.admission.Release()
		}
	}
}
