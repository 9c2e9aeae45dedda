package zonefile

import (
	"fmt"
	"strings"
)

// Export renders the zone back to BIND-style zone file text: $ORIGIN
// and $TTL directives, the SOA, then every other record grouped by
// owner in Go map iteration order, which is not insertion order and
// can differ between calls.
func (z *Zone) Export() (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "$ORIGIN %s\n", z.Origin)
	defaultTTL := uint32(3600)
	if z.SOA != nil {
		defaultTTL = z.SOA.MinimumTTL
	}
	fmt.Fprintf(&b, "$TTL %d\n\n", defaultTTL)

	if z.SOA != nil {
		fmt.Fprintf(&b, "%s\t%d\t%s\tSOA\t%s %s %d %d %d %d %d\n",
			quoteIfNeeded(makeRelative(z.Origin, z.Origin)), defaultTTL, z.Class,
			z.SOA.PrimaryNS, z.SOA.Mbox, z.SOA.Serial, z.SOA.Refresh, z.SOA.Retry, z.SOA.Expire, z.SOA.MinimumTTL)
	}

	for owner, typeMap := range z.Records {
		rel := quoteIfNeeded(makeRelative(owner, z.Origin))
		for typ, recs := range typeMap {
			for _, rr := range recs {
				fmt.Fprintf(&b, "%s\t%d\t%s\t%s\t%s\n", rel, rr.TTL, rr.Class, typ, rr.Data.String())
			}
		}
	}

	return b.String(), nil
}

// makeRelative renders name relative to origin the way BIND zone
// files do: "@" at the apex, the bare left-hand labels otherwise, and
// the original FQDN unchanged for anything outside origin.
func makeRelative(name, origin string) string {
	name = strings.ToLower(name)
	lowerOrigin := strings.ToLower(origin)

	if name == lowerOrigin {
		return "@"
	}
	if strings.HasSuffix(name, "."+lowerOrigin) {
		return strings.TrimSuffix(name, "."+lowerOrigin)
	}
	return strings.TrimSuffix(name, ".")
}

// quoteIfNeeded wraps s in double quotes when it contains characters
// that would otherwise be ambiguous in zone file text (bare "@"/"*"
// tokens have directive/wildcard meaning; ":" can be confused with
// other field separators in hand-written records).
func quoteIfNeeded(s string) string {
	switch s {
	case "@", "*":
		return `"` + s + `"`
	}
	if strings.ContainsAny(s, ":") {
		return `"` + s + `"`
	}
	return s
}
