package audioring

import (
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smallnest/ringbuffer"
)

// Frame is one inbound PCM frame tagged with its speaker. Frames are stored
// length-prefixed inside a byte ring so a bursty connection can never grow
// memory unboundedly; the oldest frames are dropped instead.
type Frame struct {
	Speaker   uuid.UUID
	Data      []byte
	Timestamp time.Time
}

func (f *Frame) MarshalBinary() ([]byte, error) {
	// speaker(16) + timestamp(8) + dataLen(4) + data
	buf := make([]byte, 16+8+4+len(f.Data))
	copy(buf[0:16], f.Speaker[:])
	binary.LittleEndian.PutUint64(buf[16:], uint64(f.Timestamp.UnixNano()))
	binary.LittleEndian.PutUint32(buf[24:], uint32(len(f.Data)))
	copy(buf[28:], f.Data)
	return buf, nil
}

func (f *Frame) UnmarshalBinary(data []byte) error {
	if len(data) < 28 {
		return errors.New("frame record too short")
	}
	copy(f.Speaker[:], data[0:16])
	f.Timestamp = time.Unix(0, int64(binary.LittleEndian.Uint64(data[16:])))
	dataLen := int(binary.LittleEndian.Uint32(data[24:]))
	if len(data[28:]) < dataLen {
		return errors.New("frame record truncated")
	}
	f.Data = make([]byte, dataLen)
	copy(f.Data, data[28:28+dataLen])
	return nil
}

// FrameRing is a bounded FIFO of speaker-tagged frames.
type FrameRing interface {
	Enqueue(f Frame) error
	Dequeue() (Frame, bool)
	Len() int
	Capacity() int
}

// ringImpl guards each whole record operation with its own mutex: a record is
// a length prefix plus a body, and letting a reader interleave between the two
// underlying ring calls would desync the stream.
type ringImpl struct {
	mu   sync.Mutex
	size int
	rb   *ringbuffer.RingBuffer
}

func New(size int) FrameRing {
	return &ringImpl{
		size: size,
		rb:   ringbuffer.New(size).SetBlocking(false),
	}
}

func (r *ringImpl) Capacity() int { return r.size }

func (r *ringImpl) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rb.Length()
}

func (r *ringImpl) Enqueue(f Frame) error {
	data, err := f.MarshalBinary()
	if err != nil {
		return err
	}

	required := len(data) + 4
	if required > r.rb.Capacity() {
		return errors.New("audio frame too large for ring")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// drop oldest frames until the new one fits
	for r.rb.Free() < required {
		if !r.skipOldest() {
			r.rb.Reset()
			break
		}
	}

	sizeBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(sizeBytes, uint32(len(data)))
	if _, err := r.rb.Write(sizeBytes); err != nil {
		return err
	}
	_, err = r.rb.Write(data)
	return err
}

func (r *ringImpl) Dequeue() (Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rb.IsEmpty() {
		return Frame{}, false
	}

	sizeBytes := make([]byte, 4)
	if n, err := r.rb.Read(sizeBytes); err != nil || n != 4 {
		return Frame{}, false
	}
	size := int(binary.LittleEndian.Uint32(sizeBytes))
	if size <= 0 || size > r.size {
		// can only happen if the stream desynced; drop everything rather
		// than allocate a garbage length
		r.rb.Reset()
		return Frame{}, false
	}

	data := make([]byte, size)
	if n, err := r.rb.Read(data); err != nil || n != size {
		return Frame{}, false
	}

	var f Frame
	if err := f.UnmarshalBinary(data); err != nil {
		return Frame{}, false
	}
	return f, true
}

// skipOldest drops one whole record. Caller holds r.mu.
func (r *ringImpl) skipOldest() bool {
	if r.rb.IsEmpty() {
		return false
	}
	sizeBytes := make([]byte, 4)
	if n, err := r.rb.Read(sizeBytes); err != nil || n != 4 {
		return false
	}
	size := int(binary.LittleEndian.Uint32(sizeBytes))
	if size > 0 {
		skip := make([]byte, size)
		if n, err := r.rb.Read(skip); err != nil || n != size {
			return false
		}
	}
	return true
}
