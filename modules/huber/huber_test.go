package huber

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/chemrig/internal/device"
)

func newTestChiller(t *testing.T) (*Chiller, *bufio.Reader, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	actor := device.NewActor(client, device.Config{
		Name:        "chiller_1",
		Terminator:  "\r\n",
		Delim:       '\n',
		ReadTimeout: time.Second,
	})
	t.Cleanup(func() {
		actor.Close()
		server.Close()
	})
	return &Chiller{name: "chiller_1", actor: actor}, bufio.NewReader(server), server
}

func TestSetTemperatureEncodesTwosComplement(t *testing.T) {
	chiller, reader, server := newTestChiller(t)

	go func() {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		// -10.00°C is -1000 counts, 0xFC18 in 16-bit two's complement.
		assert.Equal(t, "{M00FC18", strings.TrimSpace(line))
		server.Write([]byte("{S00FC18\r\n"))
	}()

	require.NoError(t, chiller.SetTemperature(context.Background(), -10))
}

func TestTemperatureDecodesNegativeValues(t *testing.T) {
	chiller, reader, server := newTestChiller(t)

	go func() {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		assert.Equal(t, "{M01****", strings.TrimSpace(line))
		server.Write([]byte("{S01F830\r\n"))
	}()

	temp, err := chiller.Temperature(context.Background())
	require.NoError(t, err)
	assert.Equal(t, -20.0, temp)
}

func TestExchangeRejectsWrongRegisterEcho(t *testing.T) {
	chiller, reader, server := newTestChiller(t)

	go func() {
		reader.ReadString('\n')
		server.Write([]byte("{S050000\r\n"))
	}()

	_, err := chiller.Setpoint(context.Background())
	require.Error(t, err)

	var derr *device.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, device.Protocol, derr.Kind)
}

func TestSetRampDurationBounds(t *testing.T) {
	chiller, _, _ := newTestChiller(t)

	err := chiller.SetRampDuration(context.Background(), 40000)
	require.Error(t, err)

	var derr *device.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, device.InvalidParameter, derr.Kind)
}
