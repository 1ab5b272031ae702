// Package udpinput registers the "udp" stage: reads datagrams off a UDP
// socket and emits one event per packet, generalized from the teacher's
// pkg/stages/listen.go Control-callback pattern for low-level socket
// options.
package udpinput

import (
	"fmt"
	"net"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/haginara/logcabin/pkg/event"
	"github.com/haginara/logcabin/pkg/registry"
	"github.com/haginara/logcabin/pkg/stage"
)

func init() {
	registry.Register("udp", New)
}

type udpInput struct {
	*stage.StageBase

	field string
	bind  string

	conn     *net.UDPConn
	stopRead chan struct{}
	readDone chan struct{}
}

// New builds the "udp" input. Options: "bind" (required, e.g.
// ":514"), "field" (destination field for the raw packet, default
// "data").
func New(name string, opts registry.Options, logger zerolog.Logger) (stage.Stage, error) {
	bind := opts.String("bind", "")
	if bind == "" {
		return nil, fmt.Errorf("%w: udp: missing required option \"bind\"", stage.ErrConfiguration)
	}
	u := &udpInput{
		field:    opts.String("field", "data"),
		bind:     bind,
		stopRead: make(chan struct{}),
		readDone: make(chan struct{}),
	}
	u.StageBase = stage.New(name, u, opts.Int("queue_size", 64), logger)
	return u, nil
}

// Process is never invoked: an input stage's own Start loop writes
// directly to the output sink, not through the ordinary Get/Process
// worker. It is implemented to satisfy stage.Processor.
func (u *udpInput) Process(ev *event.Event) (bool, error) {
	return true, nil
}

func (u *udpInput) reusePortControl(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

func (u *udpInput) Start() {
	u.StageBase.Start()

	lc := net.ListenConfig{Control: u.reusePortControl}
	pc, err := lc.ListenPacket(u.Ctx, "udp", u.bind)
	if err != nil {
		u.Error().Err(err).Msg("udp listen failed")
		close(u.readDone)
		return
	}
	u.conn = pc.(*net.UDPConn)
	go u.read()
}

func (u *udpInput) read() {
	defer close(u.readDone)
	buf := make([]byte, 64*1024)
	for {
		select {
		case <-u.stopRead:
			return
		default:
		}
		n, _, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		ev := event.New(map[string]any{u.field: string(buf[:n])})
		if err := u.Output().Put(u.Ctx, ev); err != nil {
			return
		}
	}
}

func (u *udpInput) Stop() {
	close(u.stopRead)
	if u.conn != nil {
		u.conn.Close()
	}
	<-u.readDone
	u.StageBase.Stop()
}
