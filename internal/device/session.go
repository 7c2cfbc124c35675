package device

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"
)

// Session is the worker-side handle to the wire. Driver code reaches it
// only inside closures passed to Actor.Do, so every exchange is already
// serialized.
type Session struct {
	cfg    Config
	t      Transport
	reader *bufio.Reader
	logger *slog.Logger
}

func newSession(t Transport, cfg Config, logger *slog.Logger) *Session {
	return &Session{
		cfg:    cfg,
		t:      t,
		reader: bufio.NewReader(t),
		logger: logger,
	}
}

// Send writes one framed payload without expecting a reply.
func (s *Session) Send(payload string) error {
	if s.cfg.WriteDelay > 0 {
		time.Sleep(s.cfg.WriteDelay)
	}
	frame := payload + s.cfg.Terminator
	if _, err := s.t.Write([]byte(frame)); err != nil {
		return &Error{Device: s.cfg.Name, Kind: Comm, Err: fmt.Errorf("write failed: %w", err)}
	}
	s.logger.Debug("Sent command.", "payload", payload)
	return nil
}

// SendAndReceive writes one framed payload and reads one reply frame.
// When pattern is non-nil the reply must match it in full; a mismatch is
// a Protocol error, or just a warning returning the raw text when the
// actor runs in soft-fail mode.
func (s *Session) SendAndReceive(payload string, pattern *regexp.Regexp) (string, error) {
	if err := s.Send(payload); err != nil {
		return "", err
	}
	reply, err := s.readFrame()
	if err != nil {
		return "", err
	}
	return s.validate(payload, reply, pattern)
}

// SendAndReceiveMultiline writes one framed payload and keeps reading
// frames until the line goes quiet, returning them joined by newlines.
// Instruments with chatty status responses need this.
func (s *Session) SendAndReceiveMultiline(payload string) (string, error) {
	if err := s.Send(payload); err != nil {
		return "", err
	}
	var lines []string
	for {
		reply, err := s.readFrame()
		if err != nil {
			if len(lines) > 0 && isTimeout(err) {
				return strings.Join(lines, "\n"), nil
			}
			return "", err
		}
		lines = append(lines, reply)
	}
}

// Receive reads one reply frame without writing first.
func (s *Session) Receive() (string, error) {
	return s.readFrame()
}

func (s *Session) readFrame() (string, error) {
	if s.cfg.ReadTimeout > 0 {
		if err := s.t.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
			return "", &Error{Device: s.cfg.Name, Kind: Comm, Err: err}
		}
	}
	raw, err := s.reader.ReadString(s.cfg.Delim)
	if err != nil {
		return "", &Error{Device: s.cfg.Name, Kind: Comm, Err: fmt.Errorf("read failed: %w", err)}
	}
	reply := strings.TrimRight(raw, string(s.cfg.Delim)+"\r\n\x00")
	s.logger.Debug("Received reply.", "reply", reply)
	return reply, nil
}

func (s *Session) validate(payload, reply string, pattern *regexp.Regexp) (string, error) {
	if pattern == nil || matchesFull(pattern, reply) {
		return reply, nil
	}
	if s.cfg.SoftFail {
		s.logger.Warn("Reply did not match expected pattern, passing through raw.",
			"payload", payload, "reply", reply, "pattern", pattern.String())
		return reply, nil
	}
	return "", &Error{
		Device: s.cfg.Name,
		Kind:   Protocol,
		Err:    fmt.Errorf("reply %q to %q does not match %q", reply, payload, pattern.String()),
	}
}

// flush discards any unread bytes after a fault so the next command does
// not consume a stale reply.
func (s *Session) flush() {
	_ = s.t.SetReadDeadline(time.Now().Add(10 * time.Millisecond))
	for {
		if _, err := s.reader.ReadByte(); err != nil {
			break
		}
	}
	_ = s.t.SetReadDeadline(time.Time{})
}

func (s *Session) close() error {
	return s.t.Close()
}

func matchesFull(pattern *regexp.Regexp, text string) bool {
	loc := pattern.FindStringIndex(text)
	return loc != nil && loc[0] == 0 && loc[1] == len(text)
}

func isTimeout(err error) bool {
	var derr *Error
	if errors.As(err, &derr) {
		err = derr.Err
	}
	var timeoutErr interface{ Timeout() bool }
	return errors.As(err, &timeoutErr) && timeoutErr.Timeout() || errors.Is(err, os.ErrDeadlineExceeded)
}
