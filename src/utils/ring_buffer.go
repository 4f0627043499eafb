package utils

import (
	"battery-observer/src/models"
)

// -----------------------------------------------------------------------------
// RingBuffer is a fixed-size circular buffer of readings in arrival order.
// A capacity <= 0 makes it an unbounded append-only list.
// -----------------------------------------------------------------------------

type RingBuffer struct {
	data     []models.MReading
	capacity int
	index    int // Next write position (bounded mode)
	size     int // Current number of elements
}

// -----------------------------------------------------------------------------

// NewRingBuffer creates a new buffer with fixed capacity
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		return &RingBuffer{}
	}

	return &RingBuffer{
		data:     make([]models.MReading, capacity),
		capacity: capacity,
	}
}

// -----------------------------------------------------------------------------

// Append adds a reading, overwriting the oldest one when full
func (rb *RingBuffer) Append(r models.MReading) {
	if rb.capacity <= 0 {
		rb.data = append(rb.data, r)
		rb.size++
		return
	}

	rb.data[rb.index] = r
	rb.index = (rb.index + 1) % rb.capacity

	if rb.size < rb.capacity {
		rb.size++
	}
}

// -----------------------------------------------------------------------------

// oldest returns the physical index of the oldest element
func (rb *RingBuffer) oldest() int {
	if rb.capacity > 0 && rb.size == rb.capacity {
		return rb.index
	}
	return 0
}

// -----------------------------------------------------------------------------

// at returns the i-th element counted from the oldest
func (rb *RingBuffer) at(i int) models.MReading {
	if rb.capacity <= 0 {
		return rb.data[i]
	}
	return rb.data[(rb.oldest()+i)%rb.capacity]
}

// -----------------------------------------------------------------------------

// GetAll returns all data in insertion order (oldest to newest)
func (rb *RingBuffer) GetAll() []models.MReading {
	result := make([]models.MReading, rb.size)
	for i := 0; i < rb.size; i++ {
		result[i] = rb.at(i)
	}
	return result
}

// -----------------------------------------------------------------------------

// Size returns current number of elements
func (rb *RingBuffer) Size() int {
	return rb.size
}
