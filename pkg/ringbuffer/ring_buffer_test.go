package ringbuffer

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRingBufferWriteRead(t *testing.T) {
	r := New[float32](8)
	require.Equal(t, 8, r.Cap())
	require.Equal(t, 0, r.Len())

	n := r.Write([]float32{1, 2, 3})
	require.Equal(t, 3, n)
	require.Equal(t, 3, r.Len())

	buf := make([]float32, 8)
	n = r.Read(buf)
	require.Equal(t, 3, n)
	require.Equal(t, []float32{1, 2, 3}, buf[:n])
	require.Equal(t, uint64(3), r.Consumed())
	require.Equal(t, 0, r.Len())
}

func TestRingBufferWraparound(t *testing.T) {
	r := New[int](8)

	require.Equal(t, 6, r.Write([]int{0, 1, 2, 3, 4, 5}))
	buf := make([]int, 4)
	require.Equal(t, 4, r.Read(buf))
	require.Equal(t, []int{0, 1, 2, 3}, buf)

	// the next write straddles the end of the storage
	require.Equal(t, 6, r.Write([]int{6, 7, 8, 9, 10, 11}))

	out := make([]int, 8)
	require.Equal(t, 8, r.Read(out))
	require.Equal(t, []int{4, 5, 6, 7, 8, 9, 10, 11}, out)
	require.Equal(t, uint64(12), r.Consumed())
}

func TestRingBufferPartialWrite(t *testing.T) {
	r := New[int](4)

	require.Equal(t, 4, r.Write([]int{1, 2, 3, 4, 5, 6}))
	require.Equal(t, 0, r.Write([]int{7}))

	buf := make([]int, 4)
	require.Equal(t, 4, r.Read(buf))
	require.Equal(t, []int{1, 2, 3, 4}, buf)
}

func TestRingBufferUnderrun(t *testing.T) {
	r := New[float32](8)

	buf := make([]float32, 4)
	require.Equal(t, 0, r.Read(buf))
	require.Equal(t, uint64(0), r.Consumed())

	r.Write([]float32{1, 2, 3})
	require.Equal(t, 3, r.Read(buf))
	require.Equal(t, uint64(3), r.Consumed())
}

func TestRingBufferFlush(t *testing.T) {
	r := New[int](8)

	r.Write([]int{1, 2, 3, 4})
	r.Flush()
	r.Write([]int{5, 6, 7})

	buf := make([]int, 8)
	n := r.Read(buf)
	require.Equal(t, 3, n)
	require.Equal(t, []int{5, 6, 7}, buf[:n])
	require.Equal(t, uint64(3), r.Consumed(), "discarded items must not count as consumed")
}

func TestRingBufferFlushReclaimsSpace(t *testing.T) {
	r := New[int](4)

	require.Equal(t, 4, r.Write([]int{1, 2, 3, 4}))
	r.Flush()

	// the discarded items are reclaimed by the consumer side, not the flush
	require.Equal(t, 0, r.Write([]int{5}))
	require.Equal(t, 0, r.Read(make([]int, 4)))
	require.Equal(t, 4, r.Write([]int{5, 6, 7, 8}))

	buf := make([]int, 4)
	require.Equal(t, 4, r.Read(buf))
	require.Equal(t, []int{5, 6, 7, 8}, buf)
}

func TestRingBufferSpaceSignal(t *testing.T) {
	r := New[int](2)
	require.Equal(t, 2, r.Write([]int{1, 2}))

	go func() {
		buf := make([]int, 1)
		r.Read(buf)
	}()

	select {
	case <-r.Space():
	case <-time.After(time.Second):
		t.Fatal("no space notification")
	}
	require.Equal(t, 1, r.Write([]int{3}))
}

func TestRingBufferConcurrentSPSC(t *testing.T) {
	const total = 100000
	r := New[int](64)

	go func() {
		src := make([]int, total)
		for i := range src {
			src[i] = i
		}
		for len(src) > 0 {
			n := r.Write(src)
			src = src[n:]
			if n == 0 {
				runtime.Gosched()
			}
		}
	}()

	got := make([]int, 0, total)
	buf := make([]int, 48)
	for len(got) < total {
		n := r.Read(buf)
		if n == 0 {
			runtime.Gosched()
			continue
		}
		got = append(got, buf[:n]...)
	}

	for i, v := range got {
		if v != i {
			t.Fatalf("item #%d: expected %d, got %d", i, i, v)
		}
	}
	require.Equal(t, uint64(total), r.Consumed())
}
