package email

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailwatch/internal/config"
)

func testClient(t *testing.T, ln net.Listener, attempts int) *Client {
	t.Helper()
	addr := ln.Addr().(*net.TCPAddr)
	return NewClient(
		config.EmailConfig{
			Server:   "127.0.0.1",
			Port:     addr.Port,
			Username: "watcher@example.com",
			Password: "secret",
			UseSSL:   false,
		},
		config.RetryConfig{
			ConnectAttempts:     attempts,
			ConnectDelaySeconds: 0,
		},
		zap.NewNop(),
	)
}

func TestConnectRetriesTransientUntilExhausted(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	// Accepting and immediately closing makes the greeting read fail
	// with EOF, which classifies as transient.
	var accepted atomic.Int32
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			accepted.Add(1)
			conn.Close()
		}
	}()

	c := testClient(t, ln, 3)
	_, err = c.Connect(context.Background(), "INBOX")

	require.Error(t, err)
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	require.True(t, connErr.RetriesExhausted)
	require.EqualValues(t, 3, accepted.Load())
}

func TestConnectDoesNotRetryAuthRejection(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	var accepted atomic.Int32
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			accepted.Add(1)
			go rejectLogin(conn)
		}
	}()

	c := testClient(t, ln, 3)
	_, err = c.Connect(context.Background(), "INBOX")

	require.Error(t, err)
	require.True(t, IsAuthError(err))
	require.EqualValues(t, 1, accepted.Load())
}

// rejectLogin speaks just enough IMAP to refuse the LOGIN command.
func rejectLogin(conn net.Conn) {
	defer conn.Close()
	fmt.Fprintf(conn, "* OK ready\r\n")

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		tag := fields[0]
		switch strings.ToUpper(fields[1]) {
		case "CAPABILITY":
			fmt.Fprintf(conn, "* CAPABILITY IMAP4rev1\r\n%s OK CAPABILITY completed\r\n", tag)
		case "LOGIN":
			fmt.Fprintf(conn, "%s NO [AUTHENTICATIONFAILED] invalid credentials\r\n", tag)
			return
		case "LOGOUT":
			fmt.Fprintf(conn, "* BYE shutting down\r\n%s OK LOGOUT completed\r\n", tag)
			return
		default:
			fmt.Fprintf(conn, "%s BAD unsupported in this test server\r\n", tag)
		}
	}
}
