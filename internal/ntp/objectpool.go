package ntp

import (
	"sync"
)

// Object pools to reduce allocations on every exchange
var (
	// datagramPool holds receive buffers for the UDP transport
	datagramPool = sync.Pool{
		New: func() interface{} {
			b := make([]byte, maxDatagramSize)
			return &b
		},
	}

	// float64SlicePool reduces allocations for float64 slices used in statistics
	float64SlicePool = sync.Pool{
		New: func() interface{} {
			s := make([]float64, 0, DefaultHistorySize)
			return &s
		},
	}
)

// getDatagram gets a full-size receive buffer from the pool
func getDatagram() *[]byte {
	b := datagramPool.Get().(*[]byte)
	*b = (*b)[:maxDatagramSize]
	return b
}

// putDatagram returns a receive buffer to the pool
func putDatagram(b *[]byte) {
	if b == nil || cap(*b) < maxDatagramSize {
		return
	}
	datagramPool.Put(b)
}

// GetFloat64Slice gets a float64 slice from the pool
func GetFloat64Slice(capacity int) *[]float64 {
	s := float64SlicePool.Get().(*[]float64)
	if cap(*s) < capacity {
		*s = make([]float64, 0, capacity)
	} else {
		*s = (*s)[:0]
	}
	return s
}

// PutFloat64Slice returns a float64 slice to the pool
func PutFloat64Slice(s *[]float64) {
	if s == nil {
		return
	}
	*s = (*s)[:0]
	float64SlicePool.Put(s)
}
