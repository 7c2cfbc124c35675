package arduino

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
		Name:        name,
		Delim:       '\n',
		ReadTimeout: time.Second,
	})
	t.Cleanup(func() {
		actor.Close()
		server.Close()
	})
	return actor, bufio.NewReader(server), server
}

func TestSensorReadsInteger(t *testing.T) {
	actor, reader, server := newTestBoard(t, "conductivity_1")
	sensor := &Sensor{name: "conductivity_1", actor: actor}

	go func() {
		// Commands have no terminator, just the single query byte.
		b, err := reader.ReadByte()
		require.NoError(t, err)
		assert.Equal(t, byte('Q'), b)
		server.Write([]byte("1523\n"))
	}()

	reading, err := sensor.Reading(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1523.0, reading)
}

func TestSwitchSetChecksEcho(t *testing.T) {
	actor, reader, server := newTestBoard(t, "relay_1")
	relay := &Switch{name: "relay_1", actor: actor}

	go func() {
		b, err := reader.ReadByte()
		require.NoError(t, err)
		assert.Equal(t, byte('1'), b)
		server.Write([]byte("1\n"))
	}()

	require.NoError(t, relay.Set(context.Background(), true))
}

func TestSwitchSetRejectsWrongState(t *testing.T) {
	actor, reader, server := newTestBoard(t, "relay_1")
	relay := &Switch{name: "relay_1", actor: actor}

	go func() {
		reader.ReadByte()
		server.Write([]byte("0\n"))
	}()

	err := relay.Set(context.Background(), true)
	require.Error(t, err)

	var derr *device.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, device.Protocol, derr.Kind)
}
