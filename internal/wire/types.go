// Package wire implements a hand-rolled RFC 1035 DNS message codec:
// header bit-packing, compression-pointer-aware name decoding with
// loop/bounds protection, and per-type resource record data.
//
// Names other than the teacher's miekg/dns-based handling are
// deliberately avoided here; see DESIGN.md for why this package does
// not wrap a third-party DNS library.
package wire

import "fmt"

// Security limits mirrored from the constants this codec is grounded
// on (Unbound's CVE-2024-8508 mitigations): bound compression chains,
// cap records per section, and cap total section size.
const (
	MaxCompressionDepth = 20
	MaxRRsPerSection    = 100
	MaxRRSetSize        = 32 * 1024
	MaxMessageSize      = 65535
	HeaderSize          = 12
	MaxLabelLength      = 63
	MaxDomainLength     = 255
)

// Type is a DNS RR/question TYPE code point (RFC 1035 §3.2.2, plus
// later RFCs). Unrecognized codes round-trip through String as
// TYPE<n>, so this type never needs an "unknown" sibling constant.
type Type uint16

const (
	TypeA     Type = 1
	TypeNS    Type = 2
	TypeCNAME Type = 5
	TypeSOA   Type = 6
	TypePTR   Type = 12
	TypeMX    Type = 15
	TypeTXT   Type = 16
	TypeAAAA  Type = 28
	TypeSRV   Type = 33
	TypeNAPTR Type = 35
	TypeOPT   Type = 41
	TypeCAA   Type = 257
	TypeANY   Type = 255
)

var typeNames = map[Type]string{
	TypeA:     "A",
	TypeNS:    "NS",
	TypeCNAME: "CNAME",
	TypeSOA:   "SOA",
	TypePTR:   "PTR",
	TypeMX:    "MX",
	TypeTXT:   "TXT",
	TypeAAAA:  "AAAA",
	TypeSRV:   "SRV",
	TypeNAPTR: "NAPTR",
	TypeOPT:   "OPT",
	TypeCAA:   "CAA",
	TypeANY:   "ANY",
}

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("TYPE%d", uint16(t))
}

// TypeFromString maps a zone-file rrtype token to a Type, falling back
// to the TYPE<n> numeric form for unknown mnemonics.
func TypeFromString(s string) (Type, bool) {
	for t, n := range typeNames {
		if n == s {
			return t, true
		}
	}
	var n uint16
	if _, err := fmt.Sscanf(s, "TYPE%d", &n); err == nil {
		return Type(n), true
	}
	return 0, false
}

// Class is a DNS CLASS code point (RFC 1035 §3.2.4/§3.2.5).
type Class uint16

const (
	ClassNONE Class = 0
	ClassIN   Class = 1
	ClassCS   Class = 2
	ClassCH   Class = 3
	ClassHS   Class = 4
	ClassANY  Class = 255
)

var className = map[Class]string{
	ClassNONE: "NONE",
	ClassIN:   "IN",
	ClassCS:   "CS",
	ClassCH:   "CH",
	ClassHS:   "HS",
	ClassANY:  "ANY",
}

func (c Class) String() string {
	if n, ok := className[c]; ok {
		return n
	}
	return fmt.Sprintf("CLASS%d", uint16(c))
}

// ValidClass reports whether c is one of the closed set of CLASS code
// points this server understands (RFC 1035 §3.2.4/§3.2.5). Any other
// code is a parse error on decode.
func ValidClass(c Class) bool {
	_, ok := className[c]
	return ok
}

// ClassFromString maps a zone-file class token to a Class.
func ClassFromString(s string) (Class, bool) {
	for c, n := range className {
		if n == s {
			return c, true
		}
	}
	return 0, false
}

// Opcode is the 4-bit header OPCODE field.
type Opcode uint8

const (
	OpcodeQuery  Opcode = 0
	OpcodeIQuery Opcode = 1
	OpcodeStatus Opcode = 2
	OpcodeNotify Opcode = 4
	OpcodeUpdate Opcode = 5
)

// Rcode is the 4-bit (or, with EDNS0, extended) header RCODE field.
type Rcode uint16

const (
	RcodeSuccess        Rcode = 0
	RcodeFormatError    Rcode = 1
	RcodeServerFailure  Rcode = 2
	RcodeNameError      Rcode = 3
	RcodeNotImplemented Rcode = 4
	RcodeRefused        Rcode = 5
)

func (r Rcode) String() string {
	switch r {
	case RcodeSuccess:
		return "NOERROR"
	case RcodeFormatError:
		return "FORMERR"
	case RcodeServerFailure:
		return "SERVFAIL"
	case RcodeNameError:
		return "NXDOMAIN"
	case RcodeNotImplemented:
		return "NOTIMP"
	case RcodeRefused:
		return "REFUSED"
	default:
		return fmt.Sprintf("RCODE%d", uint16(r))
	}
}

// Header is the 12-byte DNS message header (RFC 1035 §4.1.1).
type Header struct {
	ID      uint16
	QR      bool
	Opcode  Opcode
	AA      bool
	TC      bool
	RD      bool
	RA      bool
	Z       uint8
	Rcode   Rcode
	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

// Question is a single question section entry.
type Question struct {
	Name  string
	Type  Type
	Class Class
}

// Message is a fully decoded DNS message. Names inside RRs are fully
// expanded (never left compressed) so a Message can be freely
// re-encoded into an unrelated buffer or forwarded between sections.
type Message struct {
	Header     Header
	Question   []Question
	Answer     []RR
	Authority  []RR
	Additional []RR
}

// NewQuery builds a minimal standard query message for qname/qtype/qclass.
func NewQuery(id uint16, qname string, qtype Type, qclass Class) *Message {
	return &Message{
		Header: Header{
			ID:      id,
			RD:      true,
			QDCount: 1,
		},
		Question: []Question{{Name: qname, Type: qtype, Class: qclass}},
	}
}
