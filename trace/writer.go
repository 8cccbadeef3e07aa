// Package trace encodes captured frames into a classic libpcap trace file.
//
// A trace file is one global header followed by records. Every record is a
// 16 byte header (seconds, microseconds, captured length, original length)
// and then the frame bytes. Frames always start with an Ethernet header, so
// the file is written with LINKTYPE_ETHERNET.
package trace

import (
	"bufio"
	"io"
	"reflect"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/pkg/errors"
)

const (
	// FileHeaderLen is the size of the pcap global header.
	FileHeaderLen = 24
	// RecordHeaderLen is the size of the per-record header.
	RecordHeaderLen = 16
	// DefaultSnapLen is the snapshot length announced when none is configured.
	DefaultSnapLen = 65535
)

var (
	ErrOutputUnavailable = errors.New("trace output is not open")
	ErrHeaderWritten     = errors.New("trace header already written")
	ErrHeaderMissing     = errors.New("trace header not written yet")
)

// Timestamp is a capture time relative to the trace epoch.
type Timestamp struct {
	Sec    uint32
	Micros uint32
}

// Time converts ts back to a time.Time.
func (ts Timestamp) Time() time.Time {
	return time.Unix(int64(ts.Sec), int64(ts.Micros)*int64(time.Microsecond))
}

type flusher interface {
	Flush() error
}

// Writer owns the trace output stream.
// Nothing written through it stays buffered once a call returns.
type Writer struct {
	out           io.Writer
	buf           *bufio.Writer
	pw            *pcapgo.Writer
	snaplen       uint32
	headerWritten bool
	records       uint64
}

// NewWriter wraps out. snaplen is announced in the global header, 0 selects DefaultSnapLen.
func NewWriter(out io.Writer, snaplen uint32) (*Writer, error) {
	if isNil(out) {
		return nil, ErrOutputUnavailable
	}
	if snaplen == 0 {
		snaplen = DefaultSnapLen
	}
	buf := bufio.NewWriterSize(out, RecordHeaderLen+int(snaplen)+14)
	return &Writer{
		out:     out,
		buf:     buf,
		pw:      pcapgo.NewWriter(buf),
		snaplen: snaplen,
	}, nil
}

// WriteFileHeader writes the global header. It may only be called once.
func (w *Writer) WriteFileHeader() error {
	if w.headerWritten {
		return ErrHeaderWritten
	}
	if err := w.pw.WriteFileHeader(w.snaplen, layers.LinkTypeEthernet); err != nil {
		return errors.Wrap(err, "write file header")
	}
	if err := w.flush(); err != nil {
		return errors.Wrap(err, "flush file header")
	}
	w.headerWritten = true
	return nil
}

// WriteRecord writes one record holding frame, captured at ts.
// Captured and original length are both len(frame).
func (w *Writer) WriteRecord(frame []byte, ts Timestamp) error {
	if !w.headerWritten {
		return ErrHeaderMissing
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     ts.Time(),
		CaptureLength: len(frame),
		Length:        len(frame),
	}
	if err := w.pw.WritePacket(ci, frame); err != nil {
		return errors.Wrapf(err, "write record %d", w.records+1)
	}
	if err := w.flush(); err != nil {
		return errors.Wrapf(err, "flush record %d", w.records+1)
	}
	w.records++
	return nil
}

// SnapLen returns the snapshot length written in the global header.
func (w *Writer) SnapLen() uint32 {
	return w.snaplen
}

// Records returns the number of records written so far.
func (w *Writer) Records() uint64 {
	return w.records
}

func (w *Writer) flush() error {
	if err := w.buf.Flush(); err != nil {
		return err
	}
	if f, ok := w.out.(flusher); ok {
		return f.Flush()
	}
	return nil
}

// isNil also catches typed nils such as a (*os.File)(nil) stored in an io.Writer.
func isNil(out io.Writer) bool {
	if out == nil {
		return true
	}
	v := reflect.ValueOf(out)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
