package resolver

import "errors"

var (
	// ErrInvalidDNSID is returned when a response's id doesn't match
	// the query's id.
	ErrInvalidDNSID = errors.New("resolver: INVALID_DNS_ID")

	// ErrInvalidDNSResponse is returned when a response fails a basic
	// shape check (missing qr bit, for instance).
	ErrInvalidDNSResponse = errors.New("resolver: INVALID_DNS_RESPONSE")

	// ErrResponseMismatch is returned when the cross-section diff
	// (§4.6) rejects a record as not belonging to the original
	// questions.
	ErrResponseMismatch = errors.New("resolver: RESPONSE_MISMATCH")

	// ErrNoForwarders indicates a resolve was attempted with no
	// configured forwarder addresses.
	ErrNoForwarders = errors.New("resolver: no forwarder addresses configured")

	// ErrRetriesExhausted indicates every retry attempt timed out.
	ErrRetriesExhausted = errors.New("resolver: retries exhausted")
)

// MismatchKind further classifies an ErrResponseMismatch.
type MismatchKind string

const (
	MismatchAnswerQName     MismatchKind = "ANSWER_QNAME_MISMATCH"
	MismatchAuthorityBwick  MismatchKind = "AUTHORITY_NOT_IN_BAILIWICK"
	MismatchAdditionalGlue  MismatchKind = "ADDITIONAL_NOT_GLUE"
)
