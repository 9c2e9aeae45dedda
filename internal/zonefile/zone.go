// Package zonefile holds the in-memory zone model and the BIND-style
// zone file reader/writer the zone manager loads zones through.
package zonefile

import (
	"fmt"
	"strings"

	"github.com/2SCloud/scloud-dns/internal/wire"
)

// Config controls zone file parsing behavior.
type Config struct {
	DefaultTTL uint32
	Strict     bool
}

// DefaultConfig returns the parser defaults: a 3600s TTL fallback and
// strict mode (validation failures are load errors, not warnings).
func DefaultConfig() Config {
	return Config{DefaultTTL: 3600, Strict: true}
}

// Zone is a single authoritative zone: its SOA and all other records,
// indexed by owner name then record type.
type Zone struct {
	Name   string
	Origin string
	Class  wire.Class
	SOA    *wire.SOA

	Records map[string]map[wire.Type][]wire.RR
}

// New creates an empty zone rooted at name (fully qualified on write
// if the caller forgot the trailing dot).
func New(name string) *Zone {
	if !strings.HasSuffix(name, ".") {
		name += "."
	}
	return &Zone{
		Name:    name,
		Origin:  name,
		Class:   wire.ClassIN,
		Records: make(map[string]map[wire.Type][]wire.RR),
	}
}

// AddRecord adds rr under owner, keeping the SOA in its own slot.
func (z *Zone) AddRecord(owner string, rr wire.RR) error {
	owner = z.fullyQualify(owner)
	if !isSubdomain(z.Origin, owner) {
		return fmt.Errorf("zonefile: record %s not in zone %s", owner, z.Origin)
	}
	rr.Name = owner

	if rr.Type() == wire.TypeSOA {
		soa := rr.Data.(wire.SOA)
		z.SOA = &soa
		return nil
	}

	if z.Records[owner] == nil {
		z.Records[owner] = make(map[wire.Type][]wire.RR)
	}
	z.Records[owner][rr.Type()] = append(z.Records[owner][rr.Type()], rr)
	return nil
}

// GetRecords returns records at owner for type t, falling back to a
// wildcard match (walking up the label tree) when no exact owner
// exists. Wildcard hits are returned with Name rewritten to owner.
func (z *Zone) GetRecords(owner string, t wire.Type) []wire.RR {
	owner = z.fullyQualify(owner)

	if typeMap, ok := z.Records[owner]; ok {
		if recs, ok := typeMap[t]; ok {
			return recs
		}
	}

	labels := splitLabels(owner)
	for i := 0; i < len(labels); i++ {
		wildcard := "*." + joinLabels(labels[i+1:])
		if wildcard == "*." {
			wildcard = "*."
		}
		if typeMap, ok := z.Records[wildcard]; ok {
			if recs, ok := typeMap[t]; ok {
				out := make([]wire.RR, len(recs))
				for j, rr := range recs {
					cp := rr
					cp.Name = owner
					out[j] = cp
				}
				return out
			}
		}
	}

	return nil
}

// HasOwner reports whether any record (of any type) exists at owner.
func (z *Zone) HasOwner(owner string) bool {
	owner = z.fullyQualify(owner)
	_, ok := z.Records[owner]
	return ok
}

// GetNameservers returns the NS records at the zone apex.
func (z *Zone) GetNameservers() []wire.NS {
	recs := z.GetRecords(z.Origin, wire.TypeNS)
	out := make([]wire.NS, 0, len(recs))
	for _, rr := range recs {
		if ns, ok := rr.Data.(wire.NS); ok {
			out = append(out, ns)
		}
	}
	return out
}

// GetAllRecords returns every record in the zone, in no defined order.
func (z *Zone) GetAllRecords() []wire.RR {
	var out []wire.RR
	for _, typeMap := range z.Records {
		for _, recs := range typeMap {
			out = append(out, recs...)
		}
	}
	return out
}

// Validate checks the zone-level invariants the zone manager relies
// on: an apex SOA, at least one NS record with glue if in-zone, CNAME
// exclusivity at any owner, and MX targets that aren't CNAMEs.
func (z *Zone) Validate() error {
	if z.SOA == nil {
		return fmt.Errorf("zonefile: zone %s missing SOA record", z.Origin)
	}

	ns := z.GetNameservers()
	if len(ns) == 0 {
		return fmt.Errorf("zonefile: zone %s has no nameservers", z.Origin)
	}

	for _, n := range ns {
		if !isSubdomain(z.Origin, n.Host) {
			continue
		}
		hasGlue := len(z.GetRecords(n.Host, wire.TypeA)) > 0 || len(z.GetRecords(n.Host, wire.TypeAAAA)) > 0
		if !hasGlue {
			return fmt.Errorf("zonefile: nameserver %s in zone but missing glue records", n.Host)
		}
	}

	for owner, typeMap := range z.Records {
		if cnames, ok := typeMap[wire.TypeCNAME]; ok {
			if len(typeMap) > 1 {
				return fmt.Errorf("zonefile: CNAME record at %s coexists with other records", owner)
			}
			if len(cnames) > 1 {
				return fmt.Errorf("zonefile: multiple CNAME records at %s", owner)
			}
		}
	}

	for owner, typeMap := range z.Records {
		for _, rr := range typeMap[wire.TypeMX] {
			mx := rr.Data.(wire.MX)
			if mx.Host == "." {
				continue
			}
			if len(z.GetRecords(mx.Host, wire.TypeCNAME)) > 0 {
				return fmt.Errorf("zonefile: MX record at %s points to CNAME %s", owner, mx.Host)
			}
		}
	}

	return nil
}

// Clone returns a deep copy of the zone.
func (z *Zone) Clone() *Zone {
	clone := &Zone{
		Name:    z.Name,
		Origin:  z.Origin,
		Class:   z.Class,
		Records: make(map[string]map[wire.Type][]wire.RR, len(z.Records)),
	}
	if z.SOA != nil {
		soa := *z.SOA
		clone.SOA = &soa
	}
	for owner, typeMap := range z.Records {
		cp := make(map[wire.Type][]wire.RR, len(typeMap))
		for t, recs := range typeMap {
			cp[t] = append([]wire.RR(nil), recs...)
		}
		clone.Records[owner] = cp
	}
	return clone
}

func (z *Zone) fullyQualify(name string) string {
	if name == "" || name == "@" {
		return z.Origin
	}
	if strings.HasSuffix(name, ".") {
		return name
	}
	return name + "." + z.Origin
}

func isSubdomain(origin, name string) bool {
	origin = strings.ToLower(origin)
	name = strings.ToLower(name)
	if name == origin {
		return true
	}
	return strings.HasSuffix(name, "."+origin)
}

func splitLabels(name string) []string {
	name = strings.TrimSuffix(name, ".")
	if name == "" {
		return nil
	}
	return strings.Split(name, ".")
}

func joinLabels(labels []string) string {
	if len(labels) == 0 {
		return "."
	}
	return strings.Join(labels, ".") + "."
}

// Stats summarizes a zone's record counts.
type Stats struct {
	Name       string
	RecordSets int
	Records    int
	Owners     int
}

// GetStats computes zone statistics.
func (z *Zone) GetStats() Stats {
	s := Stats{Name: z.Name, Owners: len(z.Records)}
	for _, typeMap := range z.Records {
		for _, recs := range typeMap {
			s.RecordSets++
			s.Records += len(recs)
		}
	}
	return s
}
