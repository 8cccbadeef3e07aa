package capture

import (
	"expvar"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	slog "github.com/vearne/simplelog"
	"go.uber.org/atomic"

	"github.com/vearne/rawsniff/trace"
	"github.com/vearne/rawsniff/util"
)

var stats *expvar.Map

func init() {
	stats = expvar.NewMap("rawsniff")
	stats.Init()
}

// State is the lifecycle state of a Session.
type State uint8

const (
	StateUninitialized State = iota
	StateInitialized
	StateStarted
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Options for a capture session, the zero value is usable.
type Options struct {
	// SnapLen is the largest packet the socket read accepts and the snapshot
	// length announced in the trace header. Defaults to trace.DefaultSnapLen.
	SnapLen int
	// Provider defaults to NewPlatformProvider().
	Provider Provider
	// Clock defaults to WallClock{}.
	Clock Clock
}

// Stats counts what a session has written.
type Stats struct {
	Packets int64
	Bytes   int64
}

// Session captures one interface into one trace output.
type Session struct {
	sync.Mutex

	id       string
	iface    string
	out      io.Writer
	provider Provider
	clock    Clock
	snaplen  int

	writer *trace.Writer
	buf    *recordBuffer

	state   State
	failed  bool
	closed  bool
	running *atomic.Bool

	packets *atomic.Int64
	bytes   *atomic.Int64
}

// NewSession creates a session for iface writing to out.
// Nothing is opened until Init.
func NewSession(iface string, out io.Writer, opts Options) *Session {
	if opts.SnapLen <= 0 {
		opts.SnapLen = trace.DefaultSnapLen
	}
	if opts.Provider == nil {
		opts.Provider = NewPlatformProvider()
	}
	if opts.Clock == nil {
		opts.Clock = WallClock{}
	}
	return &Session{
		id:       uuid.NewString(),
		iface:    iface,
		out:      out,
		provider: opts.Provider,
		clock:    opts.Clock,
		snaplen:  opts.SnapLen,
		running:  atomic.NewBool(false),
		packets:  atomic.NewInt64(0),
		bytes:    atomic.NewInt64(0),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) InterfaceName() string {
	return s.iface
}

func (s *Session) State() State {
	s.Lock()
	defer s.Unlock()
	return s.state
}

// Running reports whether the capture loop will read another packet.
func (s *Session) Running() bool {
	return s.running.Load()
}

func (s *Session) Stats() Stats {
	return Stats{Packets: s.packets.Load(), Bytes: s.bytes.Load()}
}

// Init binds the socket, enables promiscuous mode and writes the trace header.
// On failure the session stays uninitialized and cannot be initialized again.
func (s *Session) Init() error {
	s.Lock()
	defer s.Unlock()
	switch {
	case s.failed:
		return ErrSessionUnusable
	case s.state != StateUninitialized:
		return ErrAlreadyInitialized
	}

	err := s.init()
	if err != nil {
		s.failed = true
		slog.Error("[%s] init capture on %s failed: %v", s.id, s.iface, err)
		return err
	}
	s.state = StateInitialized
	slog.Info("[%s] capture initialized on %s, provider:%v, snaplen:%d",
		s.id, s.iface, s.provider, s.writer.SnapLen())
	return nil
}

func (s *Session) init() error {
	if err := s.bindSocket(); err != nil {
		return err
	}
	// windows needs the socket bound before SIO_RCVALL
	if err := s.provider.SetPromiscuous(s.iface, true); err != nil {
		return newError(PromiscuousModeFailed, s.iface, err)
	}

	w, err := s.writeHeader()
	if err != nil {
		if perr := s.provider.SetPromiscuous(s.iface, false); perr != nil {
			slog.Warn("[%s] disable promiscuous mode on %s: %v", s.id, s.iface, perr)
		}
		return err
	}

	s.writer = w
	s.buf = newRecordBuffer(s.snaplen)
	return nil
}

func (s *Session) writeHeader() (*trace.Writer, error) {
	w, err := trace.NewWriter(s.out, uint32(s.snaplen))
	if err != nil {
		return nil, newError(OutputUnavailable, s.iface, err)
	}
	if err := w.WriteFileHeader(); err != nil {
		return nil, newError(HeaderWriteFailed, s.iface, err)
	}
	return w, nil
}

func (s *Session) bindSocket() error {
	if err := s.provider.Open(); err != nil {
		return newError(BindFailed, s.iface, errors.Wrap(err, "socket error"))
	}

	if len(s.iface) >= ifNameSize {
		return newError(NameTooLong, s.iface,
			fmt.Errorf("%d bytes, limit is %d", len(s.iface), ifNameSize-1))
	}

	addr, err := s.provider.ResolveBindAddress(s.iface)
	if err != nil {
		if errors.Is(err, InterfaceNotFound) {
			if names := util.NICNames(); len(names) > 0 {
				slog.Warn("[%s] interface %q not found, available: %s",
					s.id, s.iface, strings.Join(names, ","))
			}
			return err
		}
		return newError(BindFailed, s.iface, errors.Wrap(err, "resolve"))
	}
	slog.Debug("[%s] resolved %s", s.id, addr)

	if err := s.provider.Bind(addr); err != nil {
		return newError(BindFailed, s.iface, errors.Wrapf(err, "bind %s", addr))
	}
	return nil
}

// StartCapture runs the capture loop on the calling goroutine until StopCapture
// is called or a capture step fails. Stopping takes effect between packets.
func (s *Session) StartCapture() error {
	s.Lock()
	switch s.state {
	case StateStarted:
		s.Unlock()
		return ErrAlreadyStarted
	case StateStopped:
		s.Unlock()
		return ErrSessionStopped
	case StateUninitialized:
		s.Unlock()
		return ErrNotInitialized
	}
	s.state = StateStarted
	s.running.Store(true)
	s.Unlock()

	if err := s.provider.SetPromiscuous(s.iface, true); err != nil {
		err = newError(PromiscuousModeFailed, s.iface, err)
		slog.Error("[%s] %v", s.id, err)
		return err
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	slog.Info("[%s] starting capture on interface %s", s.id, s.iface)
	for s.running.Load() {
		if err := s.Capture(); err != nil {
			if !s.running.Load() {
				// stopped while the last read was in flight
				slog.Debug("[%s] read after stop: %v", s.id, err)
				break
			}
			if errors.Is(err, ErrEndOfStream) {
				slog.Info("[%s] stopped reading from %s: %v", s.id, s.iface, err)
			} else {
				slog.Error("[%s] stopped reading from %s: %v", s.id, s.iface, err)
			}
			return err
		}
	}
	slog.Info("[%s] capture on %s stopped, packets:%d", s.id, s.iface, s.packets.Load())
	return nil
}

// Capture reads one packet and appends it to the trace.
func (s *Session) Capture() error {
	if s.writer == nil {
		return ErrNotInitialized
	}

	n, err := s.provider.Read(s.buf.payload())
	if err != nil {
		return newError(SocketReadFailed, s.iface, err)
	}
	if n == 0 {
		return ErrEndOfStream
	}
	slog.Debug("[%s] %d bytes received", s.id, n)

	ts := s.clock.Now()
	frame := s.buf.frame(n)
	if err := s.writer.WriteRecord(frame, ts); err != nil {
		return newError(RecordWriteFailed, s.iface, err)
	}

	s.packets.Inc()
	s.bytes.Add(int64(len(frame)))
	stats.Add("packets", 1)
	stats.Add("bytes", int64(len(frame)))
	return nil
}

// StopCapture ends a started capture. It returns ErrNotStarted, and does
// nothing, unless the session is started. Failing to leave promiscuous mode
// is only logged.
func (s *Session) StopCapture() error {
	s.Lock()
	defer s.Unlock()
	if s.state != StateStarted {
		return ErrNotStarted
	}
	s.running.Store(false)
	s.state = StateStopped

	if err := s.provider.SetPromiscuous(s.iface, false); err != nil {
		slog.Warn("[%s] %v", s.id, newError(PromiscuousModeFailed, s.iface, err))
	}
	return nil
}

// Close stops the capture and releases the socket and the output.
func (s *Session) Close() error {
	s.StopCapture()

	s.Lock()
	defer s.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	// Init already turned promiscuous mode on
	if s.state == StateInitialized {
		if err := s.provider.SetPromiscuous(s.iface, false); err != nil {
			slog.Warn("[%s] %v", s.id, newError(PromiscuousModeFailed, s.iface, err))
		}
	}

	err := s.provider.Close()
	if c, ok := s.out.(io.Closer); ok {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
