package zonefile

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/2SCloud/scloud-dns/internal/wire"
)

// ParseZoneFile reads a BIND-style zone file at path into a Zone
// rooted at origin. $TTL sets the default TTL for records that omit
// one; $ORIGIN overrides the owner-qualification root for subsequent
// lines. Records that fail type-specific parsing are skipped with a
// warning rather than aborting the load.
func ParseZoneFile(path, origin string, cfg Config) (*Zone, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("zonefile: open %s: %w", path, err)
	}
	defer f.Close()

	if !strings.HasSuffix(origin, ".") {
		origin += "."
	}
	z := New(origin)

	defaultTTL := cfg.DefaultTTL
	currentOrigin := origin

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := stripComment(scanner.Text())
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "$TTL") {
			fields := strings.Fields(line)
			if len(fields) < 2 {
				return nil, fmt.Errorf("zonefile: malformed $TTL directive: %q", line)
			}
			ttl, err := strconv.ParseUint(fields[1], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("zonefile: malformed $TTL value %q: %w", fields[1], err)
			}
			defaultTTL = uint32(ttl)
			continue
		}

		if strings.HasPrefix(line, "$ORIGIN") {
			fields := strings.Fields(line)
			if len(fields) < 2 {
				return nil, fmt.Errorf("zonefile: malformed $ORIGIN directive: %q", line)
			}
			currentOrigin = fqdn(fields[1])
			continue
		}

		rr, owner, err := parseRecordLine(line, currentOrigin, defaultTTL)
		if err != nil {
			slog.Warn("zonefile: skipping malformed record", "line", line, "error", err)
			continue
		}
		if rr == nil {
			continue // parseRecordLine returns a non-nil RR whenever err is nil
		}

		if owner == "@" {
			owner = currentOrigin
		} else if !strings.HasSuffix(owner, ".") {
			owner = owner + "." + currentOrigin
		}

		if err := z.AddRecord(owner, *rr); err != nil {
			slog.Warn("zonefile: skipping out-of-zone record", "line", line, "error", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("zonefile: scan %s: %w", path, err)
	}

	if cfg.Strict {
		if err := z.Validate(); err != nil {
			return nil, fmt.Errorf("zonefile: validation failed: %w", err)
		}
	}

	return z, nil
}

// stripComment removes a trailing ";" comment, ignoring semicolons
// that appear inside a double-quoted string (TXT rdata commonly
// contains them, e.g. DMARC records).
func stripComment(line string) string {
	inQuotes := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			inQuotes = !inQuotes
		case ';':
			if !inQuotes {
				return line[:i]
			}
		}
	}
	return line
}

func fqdn(name string) string {
	if strings.HasSuffix(name, ".") {
		return name
	}
	return name + "."
}

var classTokens = map[string]bool{"IN": true, "CH": true, "HS": true, "CS": true, "NONE": true, "ANY": true}

// parseRecordLine parses "<owner> [ttl] [class] <type> <rdata...>".
// SOA lines come back as an ordinary RR like any other type; the
// caller passes it to z.AddRecord, which keeps the SOA in its own slot.
func parseRecordLine(line, origin string, defaultTTL uint32) (*wire.RR, string, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return nil, "", fmt.Errorf("too few fields")
	}

	owner := fields[0]
	rest := fields[1:]

	ttl := defaultTTL
	class := wire.ClassIN

	if n, err := strconv.ParseUint(rest[0], 10, 32); err == nil {
		ttl = uint32(n)
		rest = rest[1:]
	} else if classTokens[strings.ToUpper(rest[0])] {
		c, _ := wire.ClassFromString(strings.ToUpper(rest[0]))
		class = c
		rest = rest[1:]
	}

	if len(rest) == 0 {
		return nil, "", fmt.Errorf("missing type")
	}

	if n, err := strconv.ParseUint(rest[0], 10, 32); err == nil {
		ttl = uint32(n)
		rest = rest[1:]
	} else if classTokens[strings.ToUpper(rest[0])] {
		c, _ := wire.ClassFromString(strings.ToUpper(rest[0]))
		class = c
		rest = rest[1:]
	}

	if len(rest) == 0 {
		return nil, "", fmt.Errorf("missing type")
	}

	typeToken := strings.ToUpper(rest[0])
	rdata := rest[1:]

	typ, ok := wire.TypeFromString(typeToken)
	if !ok {
		return nil, "", fmt.Errorf("unsupported type %q", typeToken)
	}

	data, err := parseRData(typ, rdata, origin)
	if err != nil {
		return nil, "", fmt.Errorf("rdata for %s: %w", typeToken, err)
	}

	return &wire.RR{Name: owner, Class: class, TTL: ttl, Data: data}, owner, nil
}

func parseRData(typ wire.Type, fields []string, origin string) (wire.RRData, error) {
	qualify := func(name string) string {
		if name == "@" {
			return origin
		}
		return fqdn(name)
	}

	switch typ {
	case wire.TypeA:
		if len(fields) != 1 {
			return nil, fmt.Errorf("want 1 field, got %d", len(fields))
		}
		ip := net.ParseIP(fields[0]).To4()
		if ip == nil {
			return nil, fmt.Errorf("invalid IPv4 address %q", fields[0])
		}
		return wire.A{IP: ip}, nil

	case wire.TypeAAAA:
		if len(fields) != 1 {
			return nil, fmt.Errorf("want 1 field, got %d", len(fields))
		}
		ip := net.ParseIP(fields[0])
		if ip == nil {
			return nil, fmt.Errorf("invalid IPv6 address %q", fields[0])
		}
		return wire.AAAA{IP: ip}, nil

	case wire.TypeNS:
		if len(fields) != 1 {
			return nil, fmt.Errorf("want 1 field, got %d", len(fields))
		}
		return wire.NS{Host: qualify(fields[0])}, nil

	case wire.TypeCNAME:
		if len(fields) != 1 {
			return nil, fmt.Errorf("want 1 field, got %d", len(fields))
		}
		return wire.CNAME{Target: qualify(fields[0])}, nil

	case wire.TypePTR:
		if len(fields) != 1 {
			return nil, fmt.Errorf("want 1 field, got %d", len(fields))
		}
		return wire.PTR{Target: qualify(fields[0])}, nil

	case wire.TypeMX:
		if len(fields) != 2 {
			return nil, fmt.Errorf("want 2 fields, got %d", len(fields))
		}
		pref, err := strconv.ParseUint(fields[0], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid priority %q: %w", fields[0], err)
		}
		return wire.MX{Preference: uint16(pref), Host: qualify(fields[1])}, nil

	case wire.TypeSRV:
		if len(fields) != 4 {
			return nil, fmt.Errorf("want 4 fields, got %d", len(fields))
		}
		priority, err := strconv.ParseUint(fields[0], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid priority: %w", err)
		}
		weight, err := strconv.ParseUint(fields[1], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid weight: %w", err)
		}
		port, err := strconv.ParseUint(fields[2], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid port: %w", err)
		}
		return wire.SRV{
			Priority: uint16(priority), Weight: uint16(weight), Port: uint16(port),
			Target: qualify(fields[3]),
		}, nil

	case wire.TypeCAA:
		if len(fields) != 3 {
			return nil, fmt.Errorf("want 3 fields, got %d", len(fields))
		}
		flag, err := strconv.ParseUint(fields[0], 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid flags: %w", err)
		}
		return wire.CAA{Flag: uint8(flag), Tag: fields[1], Value: strings.Trim(fields[2], `"`)}, nil

	case wire.TypeNAPTR:
		if len(fields) != 6 {
			return nil, fmt.Errorf("want 6 fields, got %d", len(fields))
		}
		order, err := strconv.ParseUint(fields[0], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid order: %w", err)
		}
		pref, err := strconv.ParseUint(fields[1], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid preference: %w", err)
		}
		return wire.NAPTR{
			Order: uint16(order), Preference: uint16(pref),
			Flags: strings.Trim(fields[2], `"`), Service: strings.Trim(fields[3], `"`),
			Regexp: strings.Trim(fields[4], `"`), Replacement: qualify(fields[5]),
		}, nil

	case wire.TypeSOA:
		if len(fields) != 7 {
			return nil, fmt.Errorf("want 7 fields, got %d", len(fields))
		}
		nums := make([]uint32, 5)
		for i, f := range fields[2:] {
			n, err := strconv.ParseUint(f, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid SOA field %q: %w", f, err)
			}
			nums[i] = uint32(n)
		}
		return wire.SOA{
			PrimaryNS: qualify(fields[0]), Mbox: qualify(fields[1]),
			Serial: nums[0], Refresh: nums[1], Retry: nums[2], Expire: nums[3], MinimumTTL: nums[4],
		}, nil

	case wire.TypeTXT:
		return wire.TXT{Strings: []string{strings.Trim(strings.Join(fields, " "), `"`)}}, nil

	default:
		return nil, fmt.Errorf("unsupported rdata type %s", typ)
	}
}
