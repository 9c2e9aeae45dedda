package wire

import (
	"fmt"
	"strings"
)

// Encode serializes m without name compression, rejecting any label
// over 63 octets or any name over 255 octets on write (RFC 1035 §3.1)
// rather than silently truncating it. Uncompressed encoding keeps the
// codec simple and avoids a second class of pointer bugs; messages
// this server emits are small enough (answers for zones it is
// authoritative for, or forwarded responses re-serialized as-is) that
// compression is not needed to stay under typical UDP limits.
func Encode(m *Message) ([]byte, error) {
	buf := make([]byte, 0, 512)
	buf = encodeHeader(buf, m.Header)

	for _, q := range m.Question {
		var err error
		buf, err = encodeName(buf, q.Name)
		if err != nil {
			return nil, fmt.Errorf("question %q: %w", q.Name, err)
		}
		buf = append(buf, byte(q.Type>>8), byte(q.Type))
		buf = append(buf, byte(q.Class>>8), byte(q.Class))
	}

	var err error
	if buf, err = encodeSection(buf, m.Answer); err != nil {
		return nil, fmt.Errorf("answer section: %w", err)
	}
	if buf, err = encodeSection(buf, m.Authority); err != nil {
		return nil, fmt.Errorf("authority section: %w", err)
	}
	if buf, err = encodeSection(buf, m.Additional); err != nil {
		return nil, fmt.Errorf("additional section: %w", err)
	}

	return buf, nil
}

func encodeHeader(buf []byte, h Header) []byte {
	buf = append(buf, byte(h.ID>>8), byte(h.ID))

	var flags uint16
	if h.QR {
		flags |= 0x8000
	}
	flags |= uint16(h.Opcode&0x0F) << 11
	if h.AA {
		flags |= 0x0400
	}
	if h.TC {
		flags |= 0x0200
	}
	if h.RD {
		flags |= 0x0100
	}
	if h.RA {
		flags |= 0x0080
	}
	flags |= uint16(h.Z&0x07) << 4
	flags |= uint16(h.Rcode) & 0x0F

	buf = append(buf, byte(flags>>8), byte(flags))

	buf = append(buf, byte(h.QDCount>>8), byte(h.QDCount))
	buf = append(buf, byte(h.ANCount>>8), byte(h.ANCount))
	buf = append(buf, byte(h.NSCount>>8), byte(h.NSCount))
	buf = append(buf, byte(h.ARCount>>8), byte(h.ARCount))

	return buf
}

func encodeSection(buf []byte, rrs []RR) ([]byte, error) {
	for _, rr := range rrs {
		var err error
		buf, err = encodeRR(buf, rr)
		if err != nil {
			return nil, fmt.Errorf("rr %q: %w", rr.Name, err)
		}
	}
	return buf, nil
}

func encodeRR(buf []byte, rr RR) ([]byte, error) {
	buf, err := encodeName(buf, rr.Name)
	if err != nil {
		return nil, err
	}

	typ := rr.Type()
	buf = append(buf, byte(typ>>8), byte(typ))
	buf = append(buf, byte(rr.Class>>8), byte(rr.Class))
	buf = appendUint32(buf, rr.TTL)

	lenPos := len(buf)
	buf = append(buf, 0, 0) // rdlength placeholder

	rdataStart := len(buf)
	if rr.Data != nil {
		buf = rr.Data.encode(buf)
	}
	rdlen := len(buf) - rdataStart
	buf[lenPos] = byte(rdlen >> 8)
	buf[lenPos+1] = byte(rdlen)

	return buf, nil
}

// encodeName appends name as an uncompressed sequence of length-
// prefixed labels terminated by a zero label. The root name (".") and
// the empty string both encode to a single zero byte. A label over
// MaxLabelLength or a name over MaxDomainLength is rejected rather
// than truncated.
func encodeName(buf []byte, name string) ([]byte, error) {
	trimmed := strings.TrimSuffix(name, ".")
	if trimmed == "" {
		return append(buf, 0), nil
	}
	if len(trimmed)+1 > MaxDomainLength {
		return nil, fmt.Errorf("%w: %q", ErrNameTooLong, name)
	}
	for _, label := range strings.Split(trimmed, ".") {
		if len(label) > MaxLabelLength {
			return nil, fmt.Errorf("%w: %q", ErrLabelTooLong, label)
		}
		buf = append(buf, byte(len(label)))
		buf = append(buf, label...)
	}
	return append(buf, 0), nil
}
