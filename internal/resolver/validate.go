package resolver

import (
	"fmt"
	"strings"

	"github.com/2SCloud/scloud-dns/internal/wire"
)

// ValidateResponse implements the §4.6 cross-section diff: answers
// must own-name-equal a question, authorities must equal or be a parent
// domain of some question name, and additionals may also be a name
// below some question name. Unlike a scrub-only
// filter, any violation rejects the whole response rather than
// dropping just the offending record, since an attacker's one good
// record alongside forged ones must not let any forged data through.
func ValidateResponse(questions []wire.Question, resp *wire.Message) error {
	qnames := make(map[string]bool, len(questions))
	for _, q := range questions {
		qnames[normalize(q.Name)] = true
	}

	for _, rr := range resp.Answer {
		if !qnames[normalize(rr.Name)] {
			return fmt.Errorf("%w: %s (%s)", ErrResponseMismatch, MismatchAnswerQName, rr.Name)
		}
	}

	for _, rr := range resp.Authority {
		if !inBailiwickOfAny(rr.Name, qnames, false) {
			return fmt.Errorf("%w: %s (%s)", ErrResponseMismatch, MismatchAuthorityBwick, rr.Name)
		}
	}

	for _, rr := range resp.Additional {
		if !inBailiwickOfAny(rr.Name, qnames, true) {
			return fmt.Errorf("%w: %s (%s)", ErrResponseMismatch, MismatchAdditionalGlue, rr.Name)
		}
	}

	return nil
}

func normalize(name string) string {
	return strings.ToLower(name)
}

// inBailiwickOfAny reports whether name is a question name or a
// suffix of it (a parent domain), for any of qnames. With allowChild,
// a name below a question name also counts.
func inBailiwickOfAny(name string, qnames map[string]bool, allowChild bool) bool {
	name = normalize(name)
	for q := range qnames {
		if name == q || strings.HasSuffix(q, "."+name) || (allowChild && strings.HasSuffix(name, "."+q)) {
			return true
		}
	}
	return false
}
