// Package zonemgr implements the zone manager: given a question, it
// decides whether any loaded zone is authoritative and, if so,
// synthesizes the authoritative answer (including NXDOMAIN/NOERROR
// empty synthesis and a bounded local CNAME chase).
package zonemgr

import (
	"sync/atomic"

	"github.com/2SCloud/scloud-dns/internal/wire"
	"github.com/2SCloud/scloud-dns/internal/zonefile"
)

const maxCNAMEChase = 8

// Manager holds the current zone snapshot. Reloads replace the whole
// snapshot atomically; readers in flight finish against the snapshot
// they started with.
type Manager struct {
	store atomic.Pointer[zonefile.Store]
}

// New creates a Manager with no zones loaded.
func New() *Manager {
	m := &Manager{}
	m.store.Store(zonefile.NewStore(nil))
	return m
}

// Reload swaps in a freshly parsed set of zones.
func (m *Manager) Reload(zones []*zonefile.Zone) {
	m.store.Store(zonefile.NewStore(zones))
}

// Store returns the current zone snapshot, for callers (e.g. the
// server's zone-add path) that need to read the loaded set without
// going through Lookup.
func (m *Manager) Store() *zonefile.Store {
	return m.store.Load()
}

// Result is the outcome of a Lookup.
type Result struct {
	Authoritative bool
	Rcode         wire.Rcode
	Answer        []wire.RR
	Authority     []wire.RR
}

// Lookup finds the zone whose origin is the longest suffix of q.Name
// and synthesizes a response. Authoritative is false when no loaded
// zone covers q.Name, signaling the caller to route to the resolver.
func (m *Manager) Lookup(q wire.Question) Result {
	store := m.store.Load()
	zone := store.Lookup(q.Name)
	if zone == nil {
		return Result{Authoritative: false}
	}
	return m.lookupInZone(store, zone, q.Name, q.Type, 0)
}

func (m *Manager) lookupInZone(store *zonefile.Store, zone *zonefile.Zone, name string, qtype wire.Type, depth int) Result {
	if qtype == wire.TypeANY {
		recs := allRecordsAt(zone, name)
		if len(recs) > 0 {
			return Result{Authoritative: true, Rcode: wire.RcodeSuccess, Answer: recs}
		}
	} else if recs := zone.GetRecords(name, qtype); len(recs) > 0 {
		return Result{Authoritative: true, Rcode: wire.RcodeSuccess, Answer: recs}
	}

	// CNAME at owner, qtype isn't CNAME: answer with the CNAME and
	// chase the target locally if it's covered by a loaded zone.
	if qtype != wire.TypeCNAME {
		if cnames := zone.GetRecords(name, wire.TypeCNAME); len(cnames) > 0 {
			answer := []wire.RR{cnames[0]}
			target := cnames[0].Data.(wire.CNAME).Target

			if depth < maxCNAMEChase {
				if next := store.Lookup(target); next != nil {
					chased := m.lookupInZone(store, next, target, qtype, depth+1)
					if chased.Authoritative {
						answer = append(answer, chased.Answer...)
					}
				}
			}
			return Result{Authoritative: true, Rcode: wire.RcodeSuccess, Answer: answer}
		}
	}

	if zone.HasOwner(name) {
		return Result{
			Authoritative: true,
			Rcode:         wire.RcodeSuccess,
			Authority:     soaRecord(zone),
		}
	}

	return Result{
		Authoritative: true,
		Rcode:         wire.RcodeNameError,
		Authority:     soaRecord(zone),
	}
}

func allRecordsAt(zone *zonefile.Zone, name string) []wire.RR {
	var out []wire.RR
	for _, rrs := range zone.Records[name] {
		out = append(out, rrs...)
	}
	return out
}

func soaRecord(zone *zonefile.Zone) []wire.RR {
	if zone.SOA == nil {
		return nil
	}
	return []wire.RR{{
		Name:  zone.Origin,
		Class: zone.Class,
		TTL:   zone.SOA.MinimumTTL,
		Data:  *zone.SOA,
	}}
}
