package vlog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	speeds []int
}

func (s *fakeSink) EmitSpeed(multiplier int) error {
	s.speeds = append(s.speeds, multiplier)
	return nil
}

func TestHandlerDivertsRecordingSpeed(t *testing.T) {
	var console bytes.Buffer
	sink := &fakeSink{}
	logger := slog.New(NewHandler(slog.NewTextHandler(&console, nil), sink))

	SetSpeed(context.Background(), logger, 20)
	SetSpeed(context.Background(), logger, 1)
	logger.Info("Moving liquid.")

	assert.Equal(t, []int{20, 1}, sink.speeds)
	// Recording hints never reach the console stream.
	assert.NotContains(t, console.String(), "recording speed")
	assert.Contains(t, console.String(), "Moving liquid.")
}

func TestHandlerWithoutSinkDropsRecordingSpeed(t *testing.T) {
	var console bytes.Buffer
	logger := slog.New(NewHandler(slog.NewTextHandler(&console, nil), nil))

	SetSpeed(context.Background(), logger, 5)
	logger.Info("still logging")

	require.NotContains(t, console.String(), "recording speed")
	require.Contains(t, console.String(), "still logging")
}

func TestHandlerPreservesAttrsOnPassthrough(t *testing.T) {
	var console bytes.Buffer
	sink := &fakeSink{}
	logger := slog.New(NewHandler(slog.NewTextHandler(&console, nil), sink)).With("device", "pump_1")

	logger.Info("homed")
	SetSpeed(context.Background(), logger, 50)

	assert.Contains(t, console.String(), "device=pump_1")
	assert.Equal(t, []int{50}, sink.speeds)
}
