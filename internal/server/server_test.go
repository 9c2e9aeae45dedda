package server

import (
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2SCloud/scloud-dns/internal/config"
	"github.com/2SCloud/scloud-dns/internal/wire"
)

func freePort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	port := conn.LocalAddr().(*net.UDPAddr).Port
	conn.Close()
	return port
}

func TestServer_StartAndAnswerAuthoritativeQuery(t *testing.T) {
	cfg := config.Default()
	port := freePort(t)
	cfg.Listeners = []config.ListenerConfig{{Name: "main", Address: "127.0.0.1", Port: port, Protocols: []string{"udp"}}}

	s, err := New(cfg, nil)
	require.NoError(t, err)

	zonePath := writeTestZone(t)
	require.NoError(t, s.LoadZone(zonePath, "example.org."))
	require.NoError(t, s.Start())
	defer s.Stop()

	clientConn, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: port})
	require.NoError(t, err)
	defer clientConn.Close()
	clientConn.SetDeadline(time.Now().Add(2 * time.Second))

	query, err := wire.Encode(wire.NewQuery(42, "www.example.org.", wire.TypeA, wire.ClassIN))
	require.NoError(t, err)
	_, err = clientConn.Write(query)
	require.NoError(t, err)

	buf := make([]byte, wire.MaxMessageSize)
	n, err := clientConn.Read(buf)
	require.NoError(t, err)

	resp, err := wire.Decode(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, uint16(42), resp.Header.ID)
	assert.True(t, resp.Header.QR)
	assert.True(t, resp.Header.AA)
	assert.NotEmpty(t, resp.Answer)
}

func writeTestZone(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := dir + "/example.org.zone"
	content := `$TTL 3600
$ORIGIN example.org.
@	IN	SOA	ns1.example.org. hostmaster.example.org. 2024010100 7200 3600 1209600 3600
@	IN	NS	ns1.example.org.
ns1	IN	A	198.51.100.2
www	IN	A	198.51.100.10
`
	require.NoError(t, writeFile(path, content))
	return path
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
