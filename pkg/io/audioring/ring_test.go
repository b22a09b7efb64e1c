package audioring

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
)

func frame(speaker uuid.UUID, fill byte, size int) Frame {
	data := bytes.Repeat([]byte{fill}, size)
	return Frame{Speaker: speaker, Data: data, Timestamp: time.Now()}
}

func TestEnqueueDequeueOrder(t *testing.T) {
	ring := New(4096)
	speaker := uuid.New()

	for i := 0; i < 5; i++ {
		if err := ring.Enqueue(frame(speaker, byte(i), 100)); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	for i := 0; i < 5; i++ {
		f, ok := ring.Dequeue()
		if !ok {
			t.Fatalf("dequeue %d failed", i)
		}
		if f.Speaker != speaker {
			t.Errorf("frame %d lost its speaker tag", i)
		}
		if len(f.Data) != 100 || f.Data[0] != byte(i) {
			t.Errorf("frame %d corrupted: len=%d first=%d", i, len(f.Data), f.Data[0])
		}
	}

	if _, ok := ring.Dequeue(); ok {
		t.Error("drained ring should report empty")
	}
}

func TestOverflowDropsOldest(t *testing.T) {
	// room for roughly three 100-byte records
	ring := New(3 * (4 + 28 + 100))
	speaker := uuid.New()

	for i := 0; i < 10; i++ {
		if err := ring.Enqueue(frame(speaker, byte(i), 100)); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	first, ok := ring.Dequeue()
	if !ok {
		t.Fatal("expected at least one frame after overflow")
	}
	if first.Data[0] < 7 {
		t.Errorf("oldest frames should have been dropped, got fill %d", first.Data[0])
	}

	// everything still dequeued is well-formed and in order
	prev := first.Data[0]
	for {
		f, ok := ring.Dequeue()
		if !ok {
			break
		}
		if f.Data[0] != prev+1 {
			t.Errorf("out-of-order frame: %d after %d", f.Data[0], prev)
		}
		prev = f.Data[0]
	}
	if prev != 9 {
		t.Errorf("newest frame must survive the overflow, last seen %d", prev)
	}
}

func TestOversizedFrameRejected(t *testing.T) {
	ring := New(64)
	err := ring.Enqueue(frame(uuid.New(), 1, 1024))
	if err == nil {
		t.Fatal("expected an error for a frame larger than the ring")
	}
	if ring.Len() != 0 {
		t.Error("rejected frame must not occupy the ring")
	}
}

func TestConcurrentProducerConsumer(t *testing.T) {
	// one websocket read loop enqueuing against one pump goroutine draining;
	// every frame that comes out must be whole, never a torn record
	ring := New(8 * (4 + 28 + 100))
	speaker := uuid.New()

	const total = 50000
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < total; i++ {
			if err := ring.Enqueue(frame(speaker, byte(i%251), 100)); err != nil {
				t.Errorf("enqueue %d: %v", i, err)
				return
			}
		}
	}()

	consumed := 0
	for {
		f, ok := ring.Dequeue()
		if !ok {
			select {
			case <-done:
				if ring.Len() == 0 {
					if consumed == 0 {
						t.Fatal("consumer saw no frames")
					}
					return
				}
			default:
			}
			continue
		}
		if f.Speaker != speaker {
			t.Fatalf("frame %d lost its speaker tag", consumed)
		}
		if len(f.Data) != 100 {
			t.Fatalf("frame %d torn: %d bytes", consumed, len(f.Data))
		}
		for _, b := range f.Data {
			if b != f.Data[0] {
				t.Fatalf("frame %d has mixed payload bytes", consumed)
			}
		}
		consumed++
	}
}

func TestFrameBinaryRoundTrip(t *testing.T) {
	in := Frame{
		Speaker:   uuid.New(),
		Data:      []byte{1, 2, 3, 4},
		Timestamp: time.Unix(0, 1724580000000000000),
	}
	raw, err := in.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out Frame
	if err := out.UnmarshalBinary(raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Speaker != in.Speaker || !bytes.Equal(out.Data, in.Data) {
		t.Error("round trip lost frame content")
	}
	if !out.Timestamp.Equal(in.Timestamp) {
		t.Errorf("timestamp drifted: %v vs %v", out.Timestamp, in.Timestamp)
	}

	var short Frame
	if err := short.UnmarshalBinary(raw[:10]); err == nil {
		t.Error("truncated record must fail to unmarshal")
	}
}
