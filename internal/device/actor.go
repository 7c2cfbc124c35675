// Package device implements the shared actor protocol for hardware
// communication. One worker goroutine owns each transport; public driver
// verbs submit closures over a channel and block for the reply, which
// linearizes all I/O per device. Driver-internal composition runs inside
// the worker and talks to the session directly, never re-entering the
// queue.
package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Config tunes one actor's framing and cadence.
type Config struct {
	// Name tags log lines and errors, usually the rig node ID.
	Name string

	// Terminator is appended to every outgoing payload.
	Terminator string

	// Delim ends one incoming reply frame.
	Delim byte

	// WriteDelay is a settle pause before each write; serial instruments
	// drop characters without it.
	WriteDelay time.Duration

	// ReadTimeout bounds each read of a reply frame.
	ReadTimeout time.Duration

	// SoftFail downgrades reply pattern mismatches from errors to logged
	// warnings returning the raw text.
	SoftFail bool

	// Keepalive, when set, runs in the worker whenever the actor has been
	// idle for KeepaliveEvery. Instruments with watchdogs need this.
	Keepalive      func(s *Session)
	KeepaliveEvery time.Duration

	Logger *slog.Logger
}

type result struct {
	text string
	err  error
}

type request struct {
	fn    func(s *Session) (string, error)
	reply chan result
}

// Actor serializes access to one transport.
type Actor struct {
	cfg      Config
	session  *Session
	requests chan request
	done     chan struct{}
	logger   *slog.Logger
}

// NewActor starts the worker goroutine for t. The actor owns the
// transport from here on; callers interact only through Do and Close.
func NewActor(t Transport, cfg Config) *Actor {
	if cfg.Delim == 0 {
		cfg.Delim = '\n'
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("device", cfg.Name)

	a := &Actor{
		cfg:      cfg,
		session:  newSession(t, cfg, logger),
		requests: make(chan request),
		done:     make(chan struct{}),
		logger:   logger,
	}
	go a.run()
	return a
}

// Do submits fn for execution by the worker and blocks until it finishes
// or ctx is cancelled. fn receives the session and may perform any number
// of exchanges; they execute back to back with no interleaving from other
// callers.
func (a *Actor) Do(ctx context.Context, fn func(s *Session) (string, error)) (string, error) {
	req := request{fn: fn, reply: make(chan result, 1)}

	select {
	case a.requests <- req:
	case <-a.done:
		return "", Errorf(a.cfg.Name, Comm, "actor closed")
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case res := <-req.reply:
		return res.text, res.err
	case <-ctx.Done():
		// The worker still finishes the command; the buffered reply
		// channel keeps it from blocking on the abandoned caller.
		return "", ctx.Err()
	}
}

// Close stops the worker and closes the transport. Safe to call once.
func (a *Actor) Close() {
	close(a.done)
}

func (a *Actor) run() {
	keepaliveEvery := a.cfg.KeepaliveEvery
	if keepaliveEvery <= 0 {
		keepaliveEvery = time.Hour
	}
	ticker := time.NewTicker(keepaliveEvery)
	defer ticker.Stop()

	for {
		select {
		case <-a.done:
			if err := a.session.close(); err != nil {
				a.logger.Warn("Error closing transport.", "error", err)
			}
			return

		case req := <-a.requests:
			text, err := req.fn(a.session)
			req.reply <- result{text: text, err: err}
			var derr *Error
			if errors.As(err, &derr) && derr.Kind == Comm {
				a.recover(err)
			}
			ticker.Reset(keepaliveEvery)

		case <-ticker.C:
			if a.cfg.Keepalive != nil {
				a.cfg.Keepalive(a.session)
			}
		}
	}
}

// recover handles a transport fault: the read buffer is flushed and every
// queued caller is failed immediately rather than left blocking.
func (a *Actor) recover(cause error) {
	a.logger.Error("Device communication fault, purging queued commands.", "error", cause)
	a.session.flush()
	for {
		select {
		case req := <-a.requests:
			req.reply <- result{err: &Error{
				Device: a.cfg.Name,
				Kind:   Comm,
				Err:    fmt.Errorf("command aborted after fault: %w", cause),
			}}
		default:
			return
		}
	}
}
