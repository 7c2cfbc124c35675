package app

import (
	"errors"
	"time"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	RigPath    string // hcl files describing the platform
	ScriptPath string // the script to execute

	Simulation   bool   // run against simulated hardware
	Resume       bool   // restore vessel volumes from the snapshot first
	SnapshotPath string // where vessel volumes are dumped after each instruction

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	VideoEndpoint   string // socket.io video logger, empty to disable

	DialTimeout time.Duration
}

// DefaultDialTimeout bounds how long device bring-up waits per connection.
const DefaultDialTimeout = 5 * time.Second

func NewConfig(cfg Config) (*Config, error) {
	if cfg.RigPath == "" {
		return nil, errors.New("RigPath is a required configuration field and cannot be empty")
	}
	if cfg.ScriptPath == "" {
		return nil, errors.New("ScriptPath is a required configuration field and cannot be empty")
	}
	if cfg.Resume && cfg.SnapshotPath == "" {
		return nil, errors.New("Resume requires a SnapshotPath to restore from")
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}

	return &cfg, nil
}
