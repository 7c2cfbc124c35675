package chemputer

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/chemrig/internal/device"
)

func newTestBoard(t *testing.T, name string) (*device.Actor, *bufio.Reader, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	actor := device.NewActor(client, device.Config{
		Name:       name,
		Terminator: "\x00",
		Delim:      '\x00',
	})
	t.Cleanup(func() {
		actor.Close()
		server.Close()
	})
	return actor, bufio.NewReader(server), server
}

func readFrame(t *testing.T, reader *bufio.Reader) string {
	t.Helper()
	frame, err := reader.ReadString('\x00')
	require.NoError(t, err)
	return frame
}

func TestPumpMoveAbsoluteConvertsToMicroliters(t *testing.T) {
	actor, reader, _ := newTestBoard(t, "pump_1")
	pump := &Pump{name: "pump_1", actor: actor}

	got := make(chan string, 1)
	go func() { got <- readFrame(t, reader) }()

	require.NoError(t, pump.MoveAbsolute(context.Background(), 5, 20))

	select {
	case frame := <-got:
		assert.Equal(t, "move_abs 5000 20000\x00", frame)
	case <-time.After(time.Second):
		t.Fatal("no command reached the board")
	}
}

func TestPumpWaitUntilReadyAcceptsDone(t *testing.T) {
	actor, _, server := newTestBoard(t, "pump_1")
	pump := &Pump{name: "pump_1", actor: actor}

	go server.Write([]byte("DONE\x00"))
	require.NoError(t, pump.WaitUntilReady(context.Background()))
}

func TestPumpWaitUntilReadyRejectsFault(t *testing.T) {
	actor, _, server := newTestBoard(t, "pump_1")
	pump := &Pump{name: "pump_1", actor: actor}

	go server.Write([]byte("ERRORS: 4\x00"))
	err := pump.WaitUntilReady(context.Background())
	require.Error(t, err)

	var derr *device.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, device.Protocol, derr.Kind)
}

func TestPumpHardHomeRejectsSlowSpeeds(t *testing.T) {
	pump := &Pump{name: "pump_1"}

	err := pump.HardHome(context.Background(), 30)
	require.Error(t, err)

	var derr *device.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, device.InvalidParameter, derr.Kind)
}

func TestValveMoveToPosition(t *testing.T) {
	actor, reader, _ := newTestBoard(t, "valve_1")
	valve := &Valve{name: "valve_1", actor: actor}

	got := make(chan string, 1)
	go func() { got <- readFrame(t, reader) }()

	require.NoError(t, valve.MoveToPosition(context.Background(), 3))

	select {
	case frame := <-got:
		assert.Equal(t, "pos 3\x00", frame)
	case <-time.After(time.Second):
		t.Fatal("no command reached the board")
	}
}
