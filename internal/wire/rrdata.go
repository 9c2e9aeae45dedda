package wire

import (
	"fmt"
	"net"
	"strings"
)

// RRData is the per-type decoded form of a resource record's RDATA.
// Concrete implementations hand-decode their own wire layout; Unknown
// preserves the raw bytes for any type this codec doesn't special-case,
// so decoding never fails on a record type it hasn't been taught yet.
type RRData interface {
	// rrType returns the RR type this data decodes/encodes.
	rrType() Type
	// encode appends the wire-format rdata (without the length prefix)
	// to buf using names as given (no compression).
	encode(buf []byte) []byte
	// String renders the rdata the way a zone file would.
	String() string
}

// RR is a fully-decoded resource record: owner name, class, TTL and
// type-specific data.
type RR struct {
	Name  string
	Class Class
	TTL   uint32
	Data  RRData
}

func (rr RR) Type() Type {
	if rr.Data == nil {
		return 0
	}
	return rr.Data.rrType()
}

type A struct{ IP net.IP }

func (A) rrType() Type { return TypeA }
func (a A) encode(buf []byte) []byte {
	ip4 := a.IP.To4()
	if ip4 == nil {
		ip4 = net.IPv4zero.To4()
	}
	return append(buf, ip4...)
}
func (a A) String() string { return a.IP.String() }

type AAAA struct{ IP net.IP }

func (AAAA) rrType() Type { return TypeAAAA }
func (a AAAA) encode(buf []byte) []byte {
	ip6 := a.IP.To16()
	if ip6 == nil {
		ip6 = net.IPv6zero
	}
	return append(buf, ip6...)
}
func (a AAAA) String() string { return a.IP.String() }

type NS struct{ Host string }

func (NS) rrType() Type          { return TypeNS }
func (n NS) encode(buf []byte) []byte { return encodeName(buf, n.Host) }
func (n NS) String() string      { return n.Host }

type CNAME struct{ Target string }

func (CNAME) rrType() Type          { return TypeCNAME }
func (c CNAME) encode(buf []byte) []byte { return encodeName(buf, c.Target) }
func (c CNAME) String() string      { return c.Target }

type PTR struct{ Target string }

func (PTR) rrType() Type          { return TypePTR }
func (p PTR) encode(buf []byte) []byte { return encodeName(buf, p.Target) }
func (p PTR) String() string      { return p.Target }

type MX struct {
	Preference uint16
	Host       string
}

func (MX) rrType() Type { return TypeMX }
func (m MX) encode(buf []byte) []byte {
	buf = append(buf, byte(m.Preference>>8), byte(m.Preference))
	return encodeName(buf, m.Host)
}
func (m MX) String() string { return fmt.Sprintf("%d %s", m.Preference, m.Host) }

type TXT struct{ Strings []string }

func (TXT) rrType() Type { return TypeTXT }
func (t TXT) encode(buf []byte) []byte {
	for _, s := range t.Strings {
		b := []byte(s)
		if len(b) > 255 {
			b = b[:255]
		}
		buf = append(buf, byte(len(b)))
		buf = append(buf, b...)
	}
	return buf
}
func (t TXT) String() string {
	parts := make([]string, len(t.Strings))
	for i, s := range t.Strings {
		parts[i] = `"` + s + `"`
	}
	return strings.Join(parts, " ")
}

type SRV struct {
	Priority uint16
	Weight   uint16
	Port     uint16
	Target   string
}

func (SRV) rrType() Type { return TypeSRV }
func (s SRV) encode(buf []byte) []byte {
	buf = append(buf, byte(s.Priority>>8), byte(s.Priority))
	buf = append(buf, byte(s.Weight>>8), byte(s.Weight))
	buf = append(buf, byte(s.Port>>8), byte(s.Port))
	return encodeName(buf, s.Target)
}
func (s SRV) String() string {
	return fmt.Sprintf("%d %d %d %s", s.Priority, s.Weight, s.Port, s.Target)
}

type CAA struct {
	Flag  uint8
	Tag   string
	Value string
}

func (CAA) rrType() Type { return TypeCAA }
func (c CAA) encode(buf []byte) []byte {
	buf = append(buf, c.Flag, byte(len(c.Tag)))
	buf = append(buf, []byte(c.Tag)...)
	buf = append(buf, []byte(c.Value)...)
	return buf
}
func (c CAA) String() string {
	return fmt.Sprintf("%d %s %q", c.Flag, c.Tag, c.Value)
}

type NAPTR struct {
	Order       uint16
	Preference  uint16
	Flags       string
	Service     string
	Regexp      string
	Replacement string
}

func (NAPTR) rrType() Type { return TypeNAPTR }
func (n NAPTR) encode(buf []byte) []byte {
	buf = append(buf, byte(n.Order>>8), byte(n.Order))
	buf = append(buf, byte(n.Preference>>8), byte(n.Preference))
	buf = appendCharString(buf, n.Flags)
	buf = appendCharString(buf, n.Service)
	buf = appendCharString(buf, n.Regexp)
	return encodeName(buf, n.Replacement)
}
func (n NAPTR) String() string {
	return fmt.Sprintf("%d %d %q %q %q %s", n.Order, n.Preference, n.Flags, n.Service, n.Regexp, n.Replacement)
}

// SOA carries the zone's start-of-authority fields (RFC 1035 §3.3.13).
type SOA struct {
	PrimaryNS  string
	Mbox       string
	Serial     uint32
	Refresh    uint32
	Retry      uint32
	Expire     uint32
	MinimumTTL uint32
}

func (SOA) rrType() Type { return TypeSOA }
func (s SOA) encode(buf []byte) []byte {
	buf = encodeName(buf, s.PrimaryNS)
	buf = encodeName(buf, s.Mbox)
	buf = appendUint32(buf, s.Serial)
	buf = appendUint32(buf, s.Refresh)
	buf = appendUint32(buf, s.Retry)
	buf = appendUint32(buf, s.Expire)
	buf = appendUint32(buf, s.MinimumTTL)
	return buf
}
func (s SOA) String() string {
	return fmt.Sprintf("%s %s %d %d %d %d %d", s.PrimaryNS, s.Mbox, s.Serial, s.Refresh, s.Retry, s.Expire, s.MinimumTTL)
}

// Unknown preserves the raw rdata bytes for any type this codec does
// not decode structurally.
type Unknown struct {
	Code Type
	Raw  []byte
}

func (u Unknown) rrType() Type          { return u.Code }
func (u Unknown) encode(buf []byte) []byte { return append(buf, u.Raw...) }
func (u Unknown) String() string      { return fmt.Sprintf("\\# %d %x", len(u.Raw), u.Raw) }

func appendUint32(buf []byte, v uint32) []byte {
	return append(buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func appendCharString(buf []byte, s string) []byte {
	b := []byte(s)
	if len(b) > 255 {
		b = b[:255]
	}
	buf = append(buf, byte(len(b)))
	return append(buf, b...)
}
