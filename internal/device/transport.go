package device

import (
	"fmt"
	"io"
	"net"
	"regexp"
	"time"
)

// Transport is the byte stream to one physical device.
type Transport interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
}

var ipv4Pattern = regexp.MustCompile(`^((25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)$`)

// ValidateIPv4 rejects malformed device addresses before any dialing
// happens.
func ValidateIPv4(address string) error {
	if !ipv4Pattern.MatchString(address) {
		return fmt.Errorf("%q is not a valid IPv4 address", address)
	}
	return nil
}

// DialTCP opens a TCP transport to host:port with a connect timeout.
func DialTCP(host string, port int, timeout time.Duration) (Transport, error) {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", host, port), timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s:%d: %w", host, port, err)
	}
	return conn.(*net.TCPConn), nil
}
