package arduino

import (
	"bufio"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"go.bug.st/serial"
)

// Port is the subset of a serial connection the controller needs.
// go.bug.st/serial satisfies it; tests substitute an in-memory pipe.
type Port interface {
	io.ReadWriteCloser
}

// opener is swapped out in tests.
var opener = func(portName string, baud int) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	return serial.Open(portName, mode)
}

// ListPorts enumerates serial ports available on this host.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}

// Controller talks to the intersection hardware over a serial line. Two
// concerns share the wire: the PIR motion sensor reports MOTION/CLEAR
// lines, and the walk sign is driven by writing a single WALK or STOP
// word. All writes are best effort; a lost line never propagates past
// this boundary.
type Controller struct {
	mu        sync.Mutex
	port      Port
	connected bool
	triggered bool
	lastSent  string
	log       zerolog.Logger
}

func NewController(log zerolog.Logger) *Controller {
	return &Controller{log: log}
}

// Connect opens the named port and starts the sensor reader. A previous
// connection is closed first.
func (c *Controller) Connect(portName string, baud int) error {
	port, err := opener(portName, baud)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.port != nil {
		c.port.Close()
	}
	c.port = port
	c.connected = true
	c.triggered = false
	c.lastSent = ""
	c.mu.Unlock()

	go c.readLoop(port)
	c.log.Info().Str("port", portName).Int("baud", baud).Msg("arduino connected")
	return nil
}

// Connected reports whether a serial link is up.
func (c *Controller) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// SensorTriggered reports the last PIR state read off the wire.
func (c *Controller) SensorTriggered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.triggered
}

// Send writes one command line. Repeats of the previous command are
// skipped to keep the wire quiet; errors are logged and swallowed.
func (c *Controller) Send(command string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected || command == c.lastSent {
		return
	}
	if _, err := c.port.Write([]byte(command + "\n")); err != nil {
		c.log.Warn().Err(err).Str("command", command).Msg("serial write failed")
		return
	}
	c.lastSent = command
}

// Close shuts the serial link down.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.port != nil {
		c.port.Close()
		c.port = nil
	}
	c.connected = false
	c.triggered = false
}

// readLoop parses sensor lines until the port dies. MOTION arms the
// trigger, CLEAR disarms it; anything else is ignored.
func (c *Controller) readLoop(port Port) {
	scanner := bufio.NewScanner(port)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "MOTION":
			c.setTriggered(true)
		case "CLEAR":
			c.setTriggered(false)
		}
	}

	c.mu.Lock()
	// Only mark disconnected if this loop's port is still current.
	if c.port == port {
		c.connected = false
		c.triggered = false
	}
	c.mu.Unlock()
	c.log.Info().Msg("arduino reader stopped")
}

func (c *Controller) setTriggered(v bool) {
	c.mu.Lock()
	if c.triggered != v {
		c.triggered = v
		c.log.Debug().Bool("triggered", v).Msg("pir sensor state")
	}
	c.mu.Unlock()
}
