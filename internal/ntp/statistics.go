package ntp

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/maximewewer/ntp-offset/pkg/mathutil"
)

// DefaultHistorySize is the number of exchanges kept per server
const DefaultHistorySize = 10

// Statistics summarizes the recent exchanges with one server
type Statistics struct {
	MedianOffset    time.Duration
	MeanOffset      time.Duration
	StdDevOffset    time.Duration
	Jitter          time.Duration
	SamplesCount    int
	PacketLossRatio float64
}

// CalculateStatistics computes statistics from the offsets and delays of
// the exchanges that produced a reply, out of totalSamples attempts
func CalculateStatistics(offsets, delays []time.Duration, totalSamples int) *Statistics {
	if len(offsets) == 0 {
		return &Statistics{
			PacketLossRatio: 1.0,
		}
	}

	stats := &Statistics{
		SamplesCount:    len(offsets),
		PacketLossRatio: calculatePacketLoss(len(offsets), totalSamples),
	}

	offsetsPtr := GetFloat64Slice(len(offsets))
	delaysPtr := GetFloat64Slice(len(delays))
	defer PutFloat64Slice(offsetsPtr)
	defer PutFloat64Slice(delaysPtr)

	offsetSecs := (*offsetsPtr)[:0]
	for _, o := range offsets {
		offsetSecs = append(offsetSecs, o.Seconds())
	}
	delaySecs := (*delaysPtr)[:0]
	for _, d := range delays {
		delaySecs = append(delaySecs, d.Seconds())
	}

	stats.MedianOffset = seconds(median(offsetSecs))
	stats.MeanOffset = seconds(mean(offsetSecs))
	stats.StdDevOffset = seconds(stdDev(offsetSecs))

	// Jitter is the variability of the round-trip delay
	stats.Jitter = seconds(stdDev(delaySecs))

	return stats
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func calculatePacketLoss(received, total int) float64 {
	return mathutil.Ratio(total-received, total)
}

// median calculates the median value of a slice of float64 values.
// For even-length slices, returns the average of the two middle values.
// Returns 0 if the slice is empty.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sortedPtr := GetFloat64Slice(len(values))
	defer PutFloat64Slice(sortedPtr)

	sorted := append((*sortedPtr)[:0], values...)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2.0
	}
	return sorted[n/2]
}

// mean calculates the arithmetic mean of values, 0 if empty
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdDev calculates the sample standard deviation (N-1 denominator).
// Returns 0 if the slice has 0 or 1 element.
func stdDev(values []float64) float64 {
	if len(values) <= 1 {
		return 0
	}

	m := mean(values)
	sumSquaredDiff := 0.0

	for _, v := range values {
		diff := v - m
		sumSquaredDiff += diff * diff
	}

	variance := sumSquaredDiff / float64(len(values)-1)
	return math.Sqrt(variance)
}

type sample struct {
	offset time.Duration
	delay  time.Duration
	ok     bool
}

// window is a fixed-size ring of samples
type window struct {
	samples []sample
	next    int
	count   int
}

func (w *window) add(s sample) {
	w.samples[w.next] = s
	w.next = (w.next + 1) % len(w.samples)
	if w.count < len(w.samples) {
		w.count++
	}
}

// History keeps the outcome of the last exchanges with each server
type History struct {
	mu      sync.Mutex
	size    int
	windows map[string]*window
}

// NewHistory creates a history keeping size exchanges per server
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}

	return &History{
		size:    size,
		windows: make(map[string]*window),
	}
}

// Record adds an exchange outcome for server. A nil resp counts as a lost exchange.
func (h *History) Record(server string, resp *Response) {
	h.mu.Lock()
	defer h.mu.Unlock()

	w, exists := h.windows[server]
	if !exists {
		w = &window{samples: make([]sample, h.size)}
		h.windows[server] = w
	}

	if resp == nil {
		w.add(sample{})
		return
	}
	w.add(sample{offset: resp.Offset, delay: resp.Delay, ok: true})
}

// Statistics summarizes the recorded exchanges with server. It returns
// nil if nothing was recorded.
func (h *History) Statistics(server string) *Statistics {
	h.mu.Lock()
	defer h.mu.Unlock()

	w, exists := h.windows[server]
	if !exists || w.count == 0 {
		return nil
	}

	offsets := make([]time.Duration, 0, w.count)
	delays := make([]time.Duration, 0, w.count)
	for _, s := range w.samples[:w.count] {
		if s.ok {
			offsets = append(offsets, s.offset)
			delays = append(delays, s.delay)
		}
	}

	return CalculateStatistics(offsets, delays, w.count)
}
