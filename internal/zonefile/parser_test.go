package zonefile

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2SCloud/scloud-dns/internal/wire"
)

const fixturePath = "testdata/example.org.zone"

func TestParseZoneFile_Name(t *testing.T) {
	cfg := DefaultConfig()
	z, err := ParseZoneFile(fixturePath, "example.org.", cfg)
	require.NoError(t, err)
	require.NotNil(t, z)
	assert.Equal(t, "example.org.", z.Origin)
}

func TestParseZoneFile_SOA(t *testing.T) {
	z, err := ParseZoneFile(fixturePath, "example.org.", DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, z.SOA)

	assert.Equal(t, "ns1.example.org.", z.SOA.PrimaryNS)
	assert.Equal(t, "hostmaster.example.org.", z.SOA.Mbox)
	assert.EqualValues(t, 2024010100, z.SOA.Serial)
	assert.EqualValues(t, 7200, z.SOA.Refresh)
}

func TestParseZoneFile_NSRecords(t *testing.T) {
	z, err := ParseZoneFile(fixturePath, "example.org.", DefaultConfig())
	require.NoError(t, err)

	ns := z.GetNameservers()
	require.Len(t, ns, 2)

	names := map[string]bool{}
	for _, n := range ns {
		names[n.Host] = true
	}
	assert.True(t, names["ns1.example.org."])
	assert.True(t, names["ns2.example.org."])
}

func TestParseZoneFile_ARecords(t *testing.T) {
	z, err := ParseZoneFile(fixturePath, "example.org.", DefaultConfig())
	require.NoError(t, err)

	www := z.GetRecords("www.example.org.", wire.TypeA)
	assert.Len(t, www, 2)

	apex := z.GetRecords("example.org.", wire.TypeA)
	require.Len(t, apex, 1)
	a := apex[0].Data.(wire.A)
	assert.True(t, a.IP.Equal(net.ParseIP("198.51.100.1")))
}

func TestParseZoneFile_MXRecords(t *testing.T) {
	z, err := ParseZoneFile(fixturePath, "example.org.", DefaultConfig())
	require.NoError(t, err)

	mx := z.GetRecords("example.org.", wire.TypeMX)
	require.Len(t, mx, 2)

	prefs := map[uint16]bool{}
	for _, rr := range mx {
		prefs[rr.Data.(wire.MX).Preference] = true
	}
	assert.True(t, prefs[10])
	assert.True(t, prefs[20])
}

func TestParseZoneFile_TXTRecords(t *testing.T) {
	z, err := ParseZoneFile(fixturePath, "example.org.", DefaultConfig())
	require.NoError(t, err)

	txt := z.GetRecords("example.org.", wire.TypeTXT)
	require.Len(t, txt, 1)

	dmarc := z.GetRecords("_dmarc.example.org.", wire.TypeTXT)
	require.Len(t, dmarc, 1)
	assert.Contains(t, dmarc[0].Data.(wire.TXT).Strings[0], "DMARC1")
}

func TestParseZoneFile_SRVRecords(t *testing.T) {
	z, err := ParseZoneFile(fixturePath, "example.org.", DefaultConfig())
	require.NoError(t, err)

	srv := z.GetRecords("_sip._tcp.example.org.", wire.TypeSRV)
	require.Len(t, srv, 2)

	first := srv[0].Data.(wire.SRV)
	assert.EqualValues(t, 10, first.Priority)
	assert.EqualValues(t, 5060, first.Port)
}

func TestParseZoneFile_CNAME(t *testing.T) {
	z, err := ParseZoneFile(fixturePath, "example.org.", DefaultConfig())
	require.NoError(t, err)

	cname := z.GetRecords("ftp.example.org.", wire.TypeCNAME)
	require.Len(t, cname, 1)
	assert.Equal(t, "www.example.org.", cname[0].Data.(wire.CNAME).Target)
}

func TestParseZoneFile_Wildcard(t *testing.T) {
	z, err := ParseZoneFile(fixturePath, "example.org.", DefaultConfig())
	require.NoError(t, err)

	wildcard := z.GetRecords("*.example.org.", wire.TypeA)
	require.Len(t, wildcard, 1)

	random := z.GetRecords("foo.example.org.", wire.TypeA)
	require.Len(t, random, 1)
	assert.Equal(t, "foo.example.org.", random[0].Name)
}

func TestParseZoneFile_Validation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strict = true
	z, err := ParseZoneFile(fixturePath, "example.org.", cfg)
	require.NoError(t, err)
	assert.NoError(t, z.Validate())
}

func TestParseZoneFile_MissingFile(t *testing.T) {
	_, err := ParseZoneFile("testdata/does-not-exist.zone", "example.org.", DefaultConfig())
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	z := New("test.example.")
	require.NoError(t, z.AddRecord("@", wire.RR{
		Name: "test.example.", Class: wire.ClassIN, TTL: 3600,
		Data: wire.SOA{PrimaryNS: "ns1.test.example.", Mbox: "admin.test.example.", Serial: 2024010100, Refresh: 7200, Retry: 3600, Expire: 1209600, MinimumTTL: 3600},
	}))
	require.NoError(t, z.AddRecord("@", wire.RR{
		Name: "test.example.", Class: wire.ClassIN, TTL: 3600, Data: wire.NS{Host: "ns1.test.example."},
	}))
	require.NoError(t, z.AddRecord("www", wire.RR{
		Name: "www.test.example.", Class: wire.ClassIN, TTL: 3600, Data: wire.A{IP: net.ParseIP("192.0.2.1")},
	}))

	out, err := z.Export()
	require.NoError(t, err)
	assert.Contains(t, out, "$ORIGIN test.example.")
	assert.Contains(t, out, "$TTL")
	assert.Contains(t, out, "SOA")
	assert.Contains(t, out, "NS")
	assert.Contains(t, out, "192.0.2.1")
}

func TestMakeRelative(t *testing.T) {
	cases := []struct{ name, origin, want string }{
		{"example.org.", "example.org.", "@"},
		{"www.example.org.", "example.org.", "www"},
		{"sub.www.example.org.", "example.org.", "sub.www"},
		{"external.com.", "example.org.", "external.com"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, makeRelative(c.name, c.origin), "makeRelative(%q, %q)", c.name, c.origin)
	}
}

func TestQuoteIfNeeded(t *testing.T) {
	cases := []struct{ in, want string }{
		{"www", "www"},
		{"@", `"@"`},
		{"*", `"*"`},
		{"_dmarc", "_dmarc"},
		{"test:colon", `"test:colon"`},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, quoteIfNeeded(c.in), "quoteIfNeeded(%q)", c.in)
	}
}
