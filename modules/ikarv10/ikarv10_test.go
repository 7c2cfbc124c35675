package ikarv10

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

func newTestRotavap(t *testing.T) (*Rotavap, *bufio.Reader, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	actor := device.NewActor(client, device.Config{
		Name:        "rotavap_1",
		Terminator:  "\r\n",
		Delim:       '\n',
		ReadTimeout: time.Second,
	})
	t.Cleanup(func() {
		actor.Close()
		server.Close()
	})
	return &Rotavap{name: "rotavap_1", actor: actor}, bufio.NewReader(server), server
}

func readLine(t *testing.T, reader *bufio.Reader) string {
	t.Helper()
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	return strings.TrimSpace(line)
}

func TestInitialisePulsesEveryChannel(t *testing.T) {
	rv, reader, _ := newTestRotavap(t)

	got := make(chan []string, 1)
	go func() {
		var lines []string
		for range 4 {
			lines = append(lines, readLine(t, reader))
		}
		got <- lines
	}()

	require.NoError(t, rv.initialise(context.Background()))

	select {
	case lines := <-got:
		assert.Equal(t, []string{"START_2", "STOP_2", "START_4", "STOP_4"}, lines)
	case <-time.After(time.Second):
		t.Fatal("initialise never reached the instrument")
	}
}

func TestSetRotationSpeedValidatesRange(t *testing.T) {
	rv, _, _ := newTestRotavap(t)

	for _, rpm := range []float64{10, 300} {
		err := rv.SetRotationSpeed(context.Background(), rpm)
		require.Error(t, err)

		var derr *device.Error
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, device.InvalidParameter, derr.Kind)
	}
}

func TestStartHeaterBathArmsKeepalive(t *testing.T) {
	rv, reader, _ := newTestRotavap(t)

	go readLine(t, reader)
	require.NoError(t, rv.StartHeaterBath(context.Background()))
	assert.True(t, rv.heating.Load())

	go readLine(t, reader)
	require.NoError(t, rv.StopHeaterBath(context.Background()))
	assert.False(t, rv.heating.Load())
}

func TestBathTemperatureParsesValueReply(t *testing.T) {
	rv, reader, server := newTestRotavap(t)

	go func() {
		line := readLine(t, reader)
		assert.Equal(t, "IN_PV_2", line)
		server.Write([]byte("45.0 2\r\n"))
	}()

	temp, err := rv.BathTemperature(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 45.0, temp)
}
