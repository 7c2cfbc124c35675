package chemputer

import (
	"log/slog"
	"net"
	"sync"
	"time"
)

// The boards carry a hardware watchdog that cuts power to the motors
// when the host goes silent. One broadcast covers every board on the
// segment, so the broadcaster starts once for the whole process.
const (
	keepaliveCookie   = "reset_wdt\x00"
	keepaliveAddr     = "192.168.255.255:3000"
	keepaliveInterval = 500 * time.Millisecond
)

var keepaliveOnce sync.Once

func startKeepalive(logger *slog.Logger) {
	keepaliveOnce.Do(func() {
		go broadcastKeepalive(logger)
	})
}

func broadcastKeepalive(logger *slog.Logger) {
	conn, err := net.Dial("udp", keepaliveAddr)
	if err != nil {
		logger.Error("Failed to open watchdog broadcast socket.", "error", err)
		return
	}
	logger.Info("Starting watchdog keepalive broadcast.", "target", keepaliveAddr)
	for {
		if _, err := conn.Write([]byte(keepaliveCookie)); err != nil {
			logger.Warn("Watchdog broadcast failed.", "error", err)
		}
		time.Sleep(keepaliveInterval)
	}
}
