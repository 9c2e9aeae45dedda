package wire

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeRawName(labels ...string) []byte {
	var out []byte
	for _, l := range labels {
		out = append(out, byte(len(l)))
		out = append(out, l...)
	}
	return append(out, 0)
}

// Scenario 1: uncompressed A query decode.
func TestDecode_UncompressedAQuery(t *testing.T) {
	var msg []byte
	msg = append(msg, 0xAA, 0xAA) // id
	msg = append(msg, 0x01, 0x00) // flags: RD=1
	msg = append(msg, 0x00, 0x01) // qdcount=1
	msg = append(msg, 0x00, 0x00) // ancount
	msg = append(msg, 0x00, 0x00) // nscount
	msg = append(msg, 0x00, 0x00) // arcount
	msg = append(msg, encodeRawName("rust", "trends", "com")...)
	msg = append(msg, 0x00, 0x01) // qtype A
	msg = append(msg, 0x00, 0x01) // qclass IN

	require.Len(t, msg, 33)

	m, err := Decode(msg)
	require.NoError(t, err)
	require.Len(t, m.Question, 1)
	assert.Equal(t, "rust.trends.com.", m.Question[0].Name)
	assert.Equal(t, TypeA, m.Question[0].Type)
	assert.Equal(t, ClassIN, m.Question[0].Class)
	assert.Empty(t, m.Answer)
	assert.Empty(t, m.Authority)
	assert.Empty(t, m.Additional)
	assert.True(t, m.Header.RD)
	assert.False(t, m.Header.QR)
}

// Scenario 2: header serialize.
func TestEncode_HeaderExactBytes(t *testing.T) {
	m := &Message{
		Header: Header{ID: 0xAAAA, QR: false, Opcode: OpcodeQuery, RD: true, QDCount: 1},
	}
	out, err := Encode(m)
	require.NoError(t, err)
	got := out[:12]
	want := []byte{0xAA, 0xAA, 0x01, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	assert.Equal(t, want, got)
}

// Scenario 8: compression pointer round-trip — a name appears once
// literally (in the answer owner) and once as a pointer to that first
// occurrence (the additional record's owner); both must decode equal.
func TestDecode_CompressionPointerRoundTrip(t *testing.T) {
	msg := make([]byte, 12)
	msg[4], msg[5] = 0x00, 0x01 // qdcount=1
	msg[6], msg[7] = 0x00, 0x01 // ancount=1
	msg[10], msg[11] = 0x00, 0x01 // arcount=1

	msg = append(msg, encodeRawName("example", "com")...)
	msg = append(msg, 0x00, 0x01, 0x00, 0x01) // qtype A, qclass IN

	literalOffset := len(msg)
	msg = append(msg, encodeRawName("ns1", "example", "com")...)
	msg = append(msg, 0x00, 0x02) // type NS
	msg = append(msg, 0x00, 0x01) // class IN
	msg = append(msg, 0x00, 0x00, 0x0E, 0x10) // ttl 3600
	msg = append(msg, 0x00, 0x02) // rdlength 2 (a pointer)
	msg = append(msg, byte(0xC0|(literalOffset>>8)), byte(literalOffset)) // NS rdata points at literal name

	additionalPointer := len(msg)
	msg = append(msg, byte(0xC0|(literalOffset>>8)), byte(literalOffset))
	msg = append(msg, 0x00, 0x01, 0x00, 0x01) // type A, class IN
	msg = append(msg, 0x00, 0x00, 0x0E, 0x10) // ttl
	msg = append(msg, 0x00, 0x04) // rdlength 4
	msg = append(msg, 198, 51, 100, 2)
	_ = additionalPointer

	m, err := Decode(msg)
	require.NoError(t, err)
	require.Len(t, m.Answer, 1)
	require.Len(t, m.Additional, 1)
	ns, ok := m.Answer[0].Data.(NS)
	require.True(t, ok)
	assert.Equal(t, "ns1.example.com.", ns.Host)
	assert.Equal(t, "ns1.example.com.", m.Additional[0].Name)
	assert.Equal(t, ns.Host, m.Additional[0].Name)
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	orig := &Message{
		Header: Header{ID: 1234, QR: true, AA: true, RD: true, RA: true, Rcode: RcodeSuccess},
		Question: []Question{
			{Name: "example.com.", Type: TypeA, Class: ClassIN},
		},
		Answer: []RR{
			{Name: "example.com.", Class: ClassIN, TTL: 300, Data: A{IP: net.ParseIP("198.51.100.1")}},
			{Name: "example.com.", Class: ClassIN, TTL: 300, Data: AAAA{IP: net.ParseIP("2001:db8::1")}},
		},
		Authority: []RR{
			{Name: "example.com.", Class: ClassIN, TTL: 3600, Data: NS{Host: "ns1.example.com."}},
		},
		Additional: []RR{
			{Name: "mail.example.com.", Class: ClassIN, TTL: 300, Data: MX{Preference: 10, Host: "mail.example.com."}},
		},
	}
	orig.Finalize()

	wire, err := Encode(orig)
	require.NoError(t, err)
	decoded, err := Decode(wire)
	require.NoError(t, err)

	assert.Equal(t, orig.Header.ID, decoded.Header.ID)
	assert.Equal(t, orig.Header.QR, decoded.Header.QR)
	assert.Equal(t, orig.Header.AA, decoded.Header.AA)
	assert.Equal(t, len(orig.Question), len(decoded.Question))
	assert.Equal(t, len(orig.Answer), len(decoded.Answer))
	assert.Equal(t, orig.Question[0].Name, decoded.Question[0].Name)

	a, ok := decoded.Answer[0].Data.(A)
	require.True(t, ok)
	assert.Equal(t, "198.51.100.1", a.IP.String())

	ns, ok := decoded.Authority[0].Data.(NS)
	require.True(t, ok)
	assert.Equal(t, "ns1.example.com.", ns.Host)
}

func TestDecode_HeaderTooShort(t *testing.T) {
	_, err := Decode(make([]byte, 11))
	assert.ErrorIs(t, err, ErrMessageTooShort)
}

func TestDecode_HeaderExactlyTwelveBytes(t *testing.T) {
	msg := make([]byte, 12)
	m, err := Decode(msg)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), m.Header.QDCount)
}

func TestEncodeName_LabelBoundary(t *testing.T) {
	label63 := make([]byte, 63)
	for i := range label63 {
		label63[i] = 'a'
	}
	name := string(label63) + ".com."
	buf, err := encodeName(nil, name)
	require.NoError(t, err)
	assert.Equal(t, byte(63), buf[0])
}

// Boundary per §8: a label of 64 bytes is rejected on write, not
// truncated.
func TestEncodeName_LabelTooLongRejected(t *testing.T) {
	label64 := make([]byte, 64)
	for i := range label64 {
		label64[i] = 'a'
	}
	name := string(label64) + ".com."
	_, err := encodeName(nil, name)
	assert.ErrorIs(t, err, ErrLabelTooLong)
}

func TestEncodeName_NameTooLongRejected(t *testing.T) {
	label := make([]byte, 50)
	for i := range label {
		label[i] = 'a'
	}
	name := ""
	for i := 0; i < 6; i++ {
		name += string(label) + "."
	}
	_, err := encodeName(nil, name)
	assert.ErrorIs(t, err, ErrNameTooLong)
}

func TestEncode_RejectsOverlongLabelInRR(t *testing.T) {
	label64 := make([]byte, 64)
	for i := range label64 {
		label64[i] = 'a'
	}
	m := NewResponse(NewQuery(1, "example.com.", TypeA, ClassIN))
	m.Answer = []RR{{Name: string(label64) + ".example.com.", Class: ClassIN, TTL: 60, Data: A{IP: net.ParseIP("198.51.100.1")}}}
	m.Finalize()

	_, err := Encode(m)
	assert.ErrorIs(t, err, ErrLabelTooLong)
}

func TestDecode_UnknownQuestionClassRejected(t *testing.T) {
	msg := make([]byte, 12)
	msg[4], msg[5] = 0x00, 0x01 // qdcount=1

	msg = append(msg, encodeRawName("example", "com")...)
	msg = append(msg, 0x00, 0x01) // qtype A
	msg = append(msg, 0x00, 0x09) // qclass 9: not in the closed set

	_, err := Decode(msg)
	assert.ErrorIs(t, err, ErrUnknownClass)
}

func TestDecode_UnknownRRClassRejected(t *testing.T) {
	msg := make([]byte, 12)
	msg[6], msg[7] = 0x00, 0x01 // ancount=1

	msg = append(msg, encodeRawName("example", "com")...)
	msg = append(msg, 0x00, 0x01) // type A
	msg = append(msg, 0x00, 0x09) // class 9: not in the closed set
	msg = append(msg, 0x00, 0x00, 0x01, 0x2C) // ttl
	msg = append(msg, 0x00, 0x04) // rdlength
	msg = append(msg, 198, 51, 100, 2)

	_, err := Decode(msg)
	assert.ErrorIs(t, err, ErrUnknownClass)
}

func TestDecode_CompressionSelfPointerRejected(t *testing.T) {
	msg := make([]byte, 12)
	msg[4], msg[5] = 0x00, 0x01 // qdcount=1

	ptrOffset := len(msg)
	msg = append(msg, byte(0xC0|(ptrOffset>>8)), byte(ptrOffset))
	msg = append(msg, 0x00, 0x01, 0x00, 0x01)

	_, err := Decode(msg)
	require.Error(t, err)
}

func TestDecode_PointerPastBufferRejected(t *testing.T) {
	msg := make([]byte, 12)
	msg[4], msg[5] = 0x00, 0x01

	msg = append(msg, 0xC0, 0xFF) // points far past the buffer
	msg = append(msg, 0x00, 0x01, 0x00, 0x01)

	_, err := Decode(msg)
	require.Error(t, err)
}

func TestDecode_RDLengthExceedsBuffer(t *testing.T) {
	msg := make([]byte, 12)
	msg[6], msg[7] = 0x00, 0x01 // ancount=1

	msg = append(msg, encodeRawName("example", "com")...)
	msg = append(msg, 0x00, 0x01) // type A
	msg = append(msg, 0x00, 0x01) // class IN
	msg = append(msg, 0x00, 0x00, 0x01, 0x2C) // ttl
	msg = append(msg, 0xFF, 0xFF) // rdlength way too large
	msg = append(msg, 1, 2, 3, 4)

	_, err := Decode(msg)
	assert.ErrorIs(t, err, ErrRDataTooShort)
}

func TestTypeString_UnknownFallsBackToNumeric(t *testing.T) {
	assert.Equal(t, "A", TypeA.String())
	assert.Equal(t, "TYPE999", Type(999).String())
}

func TestClassString_UnknownFallsBackToNumeric(t *testing.T) {
	assert.Equal(t, "IN", ClassIN.String())
	assert.Equal(t, "CLASS7", Class(7).String())
}
