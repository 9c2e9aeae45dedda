package wire

// NewResponse builds the header/question skeleton of a response to q,
// copying the ID and question section and setting QR. Callers append
// Answer/Authority/Additional records and set Rcode/AA/RA as needed.
func NewResponse(q *Message) *Message {
	resp := &Message{
		Header: Header{
			ID:      q.Header.ID,
			QR:      true,
			Opcode:  q.Header.Opcode,
			RD:      q.Header.RD,
			QDCount: q.Header.QDCount,
		},
		Question: q.Question,
	}
	return resp
}

// WithRcode sets the response code and returns m for chaining.
func (m *Message) WithRcode(rc Rcode) *Message {
	m.Header.Rcode = rc
	return m
}

// Finalize recomputes the header section counts from the current
// slices. Call this after mutating Answer/Authority/Additional and
// before Encode.
func (m *Message) Finalize() *Message {
	m.Header.QDCount = uint16(len(m.Question))
	m.Header.ANCount = uint16(len(m.Answer))
	m.Header.NSCount = uint16(len(m.Authority))
	m.Header.ARCount = uint16(len(m.Additional))
	return m
}

// Question0 returns the first question and true, or the zero value and
// false if the message carries no question (malformed for a query, but
// legal for e.g. an UPDATE).
func (m *Message) Question0() (Question, bool) {
	if len(m.Question) == 0 {
		return Question{}, false
	}
	return m.Question[0], true
}
