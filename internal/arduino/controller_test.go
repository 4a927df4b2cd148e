package arduino

import (
	"bytes"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort is an in-memory stand-in for a serial line: the test writes
// sensor lines into pr's feed and captures commands in sent.
type fakePort struct {
	reader *io.PipeReader
	feed   *io.PipeWriter

	mu     sync.Mutex
	sent   bytes.Buffer
	closed bool
}

func newFakePort() *fakePort {
	r, w := io.Pipe()
	return &fakePort{reader: r, feed: w}
}

func (f *fakePort) Read(p []byte) (int, error) { return f.reader.Read(p) }

func (f *fakePort) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent.Write(p)
}

func (f *fakePort) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		f.feed.Close()
		f.reader.Close()
	}
	return nil
}

func (f *fakePort) written() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent.String()
}

func withFakePort(t *testing.T) (*Controller, *fakePort) {
	t.Helper()
	port := newFakePort()
	orig := opener
	opener = func(portName string, baud int) (Port, error) { return port, nil }
	t.Cleanup(func() {
		opener = orig
		port.Close()
	})

	c := NewController(zerolog.Nop())
	require.NoError(t, c.Connect("/dev/ttyUSB0", 9600))
	return c, port
}

func TestController_SensorLines(t *testing.T) {
	c, port := withFakePort(t)
	assert.True(t, c.Connected())
	assert.False(t, c.SensorTriggered())

	_, err := port.feed.Write([]byte("MOTION\n"))
	require.NoError(t, err)
	require.Eventually(t, c.SensorTriggered, time.Second, 5*time.Millisecond)

	_, err = port.feed.Write([]byte("garbage\nCLEAR\n"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return !c.SensorTriggered() }, time.Second, 5*time.Millisecond)
}

func TestController_SendWalkStop(t *testing.T) {
	c, port := withFakePort(t)

	c.Send("WALK")
	c.Send("STOP")
	assert.Equal(t, "WALK\nSTOP\n", port.written())
}

func TestController_SendSuppressesRepeats(t *testing.T) {
	c, port := withFakePort(t)

	c.Send("STOP")
	c.Send("STOP")
	c.Send("STOP")
	assert.Equal(t, "STOP\n", port.written())
}

func TestController_SendWhileDisconnected(t *testing.T) {
	c := NewController(zerolog.Nop())
	assert.NotPanics(t, func() { c.Send("WALK") })
	assert.False(t, c.Connected())
}

func TestController_CloseResetsState(t *testing.T) {
	c, port := withFakePort(t)

	_, err := port.feed.Write([]byte("MOTION\n"))
	require.NoError(t, err)
	require.Eventually(t, c.SensorTriggered, time.Second, 5*time.Millisecond)

	c.Close()
	assert.False(t, c.Connected())
	assert.False(t, c.SensorTriggered())
}

func TestController_PortDeathMarksDisconnected(t *testing.T) {
	c, port := withFakePort(t)

	port.feed.Close()
	require.Eventually(t, func() bool { return !c.Connected() }, time.Second, 5*time.Millisecond)
}
