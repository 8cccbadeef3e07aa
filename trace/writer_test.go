package trace

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct {
	failAfter int
	written   int
}

func (f *failingWriter) Write(p []byte) (int, error) {
	if f.written+len(p) > f.failAfter {
		return 0, errors.New("disk full")
	}
	f.written += len(p)
	return len(p), nil
}

func TestNewWriterOutputUnavailable(t *testing.T) {
	_, err := NewWriter(nil, 0)
	assert.Equal(t, ErrOutputUnavailable, err)

	var f *os.File
	_, err = NewWriter(f, 0)
	assert.Equal(t, ErrOutputUnavailable, err)
}

func TestWriteFileHeader(t *testing.T) {
	var out bytes.Buffer
	w, err := NewWriter(&out, 0)
	require.Nil(t, err)
	assert.Equal(t, uint32(DefaultSnapLen), w.SnapLen())

	require.Nil(t, w.WriteFileHeader())
	require.Equal(t, FileHeaderLen, out.Len())

	hdr := out.Bytes()
	assert.Equal(t, uint32(0xa1b2c3d4), binary.LittleEndian.Uint32(hdr[0:4]))
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(hdr[4:6]))
	assert.Equal(t, uint16(4), binary.LittleEndian.Uint16(hdr[6:8]))
	assert.Equal(t, uint32(DefaultSnapLen), binary.LittleEndian.Uint32(hdr[16:20]))
	assert.Equal(t, uint32(layers.LinkTypeEthernet), binary.LittleEndian.Uint32(hdr[20:24]))

	assert.Equal(t, ErrHeaderWritten, w.WriteFileHeader())
	assert.Equal(t, FileHeaderLen, out.Len())
}

func TestWriteRecordBeforeHeader(t *testing.T) {
	var out bytes.Buffer
	w, err := NewWriter(&out, 0)
	require.Nil(t, err)

	assert.Equal(t, ErrHeaderMissing, w.WriteRecord([]byte{1, 2, 3}, Timestamp{}))
	assert.Equal(t, 0, out.Len())
}

func TestWriteRecordRoundTrip(t *testing.T) {
	var out bytes.Buffer
	w, err := NewWriter(&out, 2048)
	require.Nil(t, err)
	require.Nil(t, w.WriteFileHeader())

	frames := [][]byte{
		bytes.Repeat([]byte{0xaa}, 54),
		bytes.Repeat([]byte{0xbb}, 60),
	}
	stamps := []Timestamp{{Sec: 1700000000, Micros: 1}, {Sec: 1700000001, Micros: 999999}}
	for i := range frames {
		require.Nil(t, w.WriteRecord(frames[i], stamps[i]))
	}
	assert.Equal(t, uint64(2), w.Records())
	assert.Equal(t, FileHeaderLen+2*RecordHeaderLen+54+60, out.Len())

	r, err := pcapgo.NewReader(&out)
	require.Nil(t, err)
	assert.Equal(t, layers.LinkTypeEthernet, r.LinkType())
	assert.Equal(t, uint32(2048), r.Snaplen())

	for i := range frames {
		data, ci, err := r.ReadPacketData()
		require.Nil(t, err)
		assert.Equal(t, frames[i], data)
		assert.Equal(t, len(frames[i]), ci.CaptureLength)
		assert.Equal(t, len(frames[i]), ci.Length)
		assert.Equal(t, int64(stamps[i].Sec), ci.Timestamp.Unix())
		assert.Equal(t, int(stamps[i].Micros)*1000, ci.Timestamp.Nanosecond())
	}
	_, _, err = r.ReadPacketData()
	assert.Equal(t, io.EOF, err)
}

func TestWriteRecordLargerThanSnapLen(t *testing.T) {
	var out bytes.Buffer
	w, err := NewWriter(&out, 16)
	require.Nil(t, err)
	require.Nil(t, w.WriteFileHeader())

	frame := bytes.Repeat([]byte{0x01}, 64)
	require.Nil(t, w.WriteRecord(frame, Timestamp{Sec: 1}))
	assert.Equal(t, FileHeaderLen+RecordHeaderLen+64, out.Len())

	rec := out.Bytes()[FileHeaderLen:]
	assert.Equal(t, uint32(64), binary.LittleEndian.Uint32(rec[8:12]))
	assert.Equal(t, uint32(64), binary.LittleEndian.Uint32(rec[12:16]))
}

func TestWriteRecordFlushesCallerBuffer(t *testing.T) {
	var out bytes.Buffer
	bw := bufio.NewWriter(&out)
	w, err := NewWriter(bw, 0)
	require.Nil(t, err)

	require.Nil(t, w.WriteFileHeader())
	assert.Equal(t, FileHeaderLen, out.Len())

	require.Nil(t, w.WriteRecord([]byte{1, 2, 3, 4}, Timestamp{}))
	assert.Equal(t, FileHeaderLen+RecordHeaderLen+4, out.Len())
}

func TestWriteFailures(t *testing.T) {
	w, err := NewWriter(&failingWriter{failAfter: 10}, 0)
	require.Nil(t, err)
	assert.NotNil(t, w.WriteFileHeader())

	w, err = NewWriter(&failingWriter{failAfter: FileHeaderLen + 4}, 0)
	require.Nil(t, err)
	require.Nil(t, w.WriteFileHeader())
	assert.NotNil(t, w.WriteRecord(make([]byte, 40), Timestamp{}))
	assert.Equal(t, uint64(0), w.Records())
}
