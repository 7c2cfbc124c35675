package vlog

import (
	"fmt"
	"net/url"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Forwarder is a socket.io Sink pushing recording-speed events to an
// external video-capture collaborator.
type Forwarder struct {
	manager *socket.Manager
	io      *socket.Socket
}

// NewForwarder connects to the video logger at endpoint, e.g.
// "http://127.0.0.1:8090/video".
func NewForwarder(endpoint string) (*Forwarder, error) {
	parsedURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse video endpoint: %w", err)
	}

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	opts := socket.DefaultOptions()
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(parsedURL.Path, opts)
	io.Connect()

	return &Forwarder{manager: manager, io: io}, nil
}

// EmitSpeed implements Sink.
func (f *Forwarder) EmitSpeed(multiplier int) error {
	return f.io.Emit("recording_speed", map[string]any{"multiplier": multiplier})
}

// Close disconnects from the video logger.
func (f *Forwarder) Close() {
	f.io.Disconnect()
}
