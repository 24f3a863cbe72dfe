package ccid

import (
	"encoding/binary"
	"errors"
	"time"
)

// errTimeout mimics a bulk transfer that expired without data.
var errTimeout = errors.New("bulk transfer timeout")

type testEndpoint struct {
	size int
}

func (e *testEndpoint) MaxPacketSize() int { return e.size }

type readResult struct {
	data []byte
	err  error
}

// fakeReader plays the reader side of a CCID exchange. Bulk-out writes are
// recorded; bulk-in reads are served from a queue, then from fallback.
type fakeReader struct {
	in  *testEndpoint
	out *testEndpoint

	writes     [][]byte
	shortWrite map[int]int // write index -> reported byte count
	writeErr   map[int]error

	reads     []readResult
	fallback  *readResult
	readCalls int
}

func newFakeReader(inSize, outSize int) *fakeReader {
	return &fakeReader{
		in:         &testEndpoint{size: inSize},
		out:        &testEndpoint{size: outSize},
		shortWrite: map[int]int{},
		writeErr:   map[int]error{},
	}
}

func (f *fakeReader) BulkTransfer(ep Endpoint, buf []byte, timeout time.Duration) (int, error) {
	if ep == f.out {
		idx := len(f.writes)
		f.writes = append(f.writes, append([]byte(nil), buf...))
		if err, ok := f.writeErr[idx]; ok {
			return 0, err
		}
		if n, ok := f.shortWrite[idx]; ok {
			return n, nil
		}
		return len(buf), nil
	}

	f.readCalls++
	var r readResult
	switch {
	case len(f.reads) > 0:
		r = f.reads[0]
		f.reads = f.reads[1:]
	case f.fallback != nil:
		r = *f.fallback
	default:
		return 0, errTimeout
	}
	if r.err != nil {
		return 0, r.err
	}
	return copy(buf, r.data), nil
}

// queue splits a raw response into bulk-in packets of the IN endpoint size.
func (f *fakeReader) queue(raw []byte) {
	for len(raw) > 0 {
		n := min(f.in.size, len(raw))
		f.reads = append(f.reads, readResult{data: raw[:n]})
		raw = raw[n:]
	}
}

func (f *fakeReader) queueErr(err error) {
	f.reads = append(f.reads, readResult{err: err})
}

func (f *fakeReader) sent() []byte {
	var all []byte
	for _, w := range f.writes {
		all = append(all, w...)
	}
	return all
}

// dataBlock builds a raw RDR_to_PC_DataBlock message.
func dataBlock(seq, status, errCode byte, data []byte) []byte {
	raw := make([]byte, HeaderLength+len(data))
	raw[0] = byte(MessageDataBlock)
	binary.LittleEndian.PutUint32(raw[1:5], uint32(len(data)))
	raw[6] = seq
	raw[7] = status
	raw[8] = errCode
	copy(raw[HeaderLength:], data)
	return raw
}

// fakeClock advances only when the transceiver sleeps.
type fakeClock struct {
	now    time.Time
	sleeps int
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.sleeps++
	c.now = c.now.Add(d)
}

func newTestTransceiver(r *fakeReader, opts ...Option) (*Transceiver, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	tr := NewTransceiver(r, r.in, r.out, opts...)
	tr.now = clock.Now
	tr.sleep = clock.Sleep
	return tr, clock
}
