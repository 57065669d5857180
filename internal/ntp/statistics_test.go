package ntp

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ms(v ...int) []time.Duration {
	out := make([]time.Duration, len(v))
	for i, x := range v {
		out[i] = time.Duration(x) * time.Millisecond
	}
	return out
}

func responseWith(offset, delay time.Duration) *Response {
	return &Response{Result: &Result{Offset: offset, Delay: delay}}
}

func TestCalculateStatistics_Empty(t *testing.T) {
	stats := CalculateStatistics(nil, nil, 5)

	assert.NotNil(t, stats)
	assert.Equal(t, 0, stats.SamplesCount)
	assert.Equal(t, 1.0, stats.PacketLossRatio)
	assert.Equal(t, time.Duration(0), stats.MedianOffset)
	assert.Equal(t, time.Duration(0), stats.MeanOffset)
}

func TestCalculateStatistics_SingleSample(t *testing.T) {
	stats := CalculateStatistics(ms(100), ms(50), 1)

	assert.Equal(t, 1, stats.SamplesCount)
	assert.Equal(t, 0.0, stats.PacketLossRatio)
	assert.InDelta(t, 0.1, stats.MedianOffset.Seconds(), 1e-9)
	assert.InDelta(t, 0.1, stats.MeanOffset.Seconds(), 1e-9)
	assert.Equal(t, time.Duration(0), stats.StdDevOffset) // Only one sample
	assert.Equal(t, time.Duration(0), stats.Jitter)       // Only one sample
}

func TestCalculateStatistics_MultipleSamples(t *testing.T) {
	stats := CalculateStatistics(ms(100, 150, 80, 120, 110), ms(50, 60, 55, 52, 58), 5)

	assert.Equal(t, 5, stats.SamplesCount)
	assert.Equal(t, 0.0, stats.PacketLossRatio)
	assert.InDelta(t, 0.110, stats.MedianOffset.Seconds(), 1e-9)
	assert.InDelta(t, 0.112, stats.MeanOffset.Seconds(), 1e-9)
	assert.Greater(t, stats.StdDevOffset, time.Duration(0))
	assert.Greater(t, stats.Jitter, time.Duration(0))
}

func TestCalculateStatistics_NegativeOffsets(t *testing.T) {
	stats := CalculateStatistics(ms(-100, -150, -80), ms(50, 60, 55), 3)

	assert.InDelta(t, -0.100, stats.MedianOffset.Seconds(), 1e-9)
	assert.Less(t, stats.MeanOffset, time.Duration(0))
	assert.Greater(t, stats.StdDevOffset, time.Duration(0))
}

func TestCalculatePacketLoss(t *testing.T) {
	tests := []struct {
		name     string
		received int
		total    int
		expected float64
	}{
		{"no_loss", 5, 5, 0.0},
		{"partial_loss", 3, 5, 0.4},
		{"complete_loss", 0, 5, 1.0},
		{"zero_total", 0, 0, 0.0},
		{"more_received_than_sent", 6, 5, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, calculatePacketLoss(tt.received, tt.total), 1e-9)
		})
	}
}

func TestMedian(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{"empty", nil, 0},
		{"single", []float64{3}, 3},
		{"odd", []float64{5, 1, 3}, 3},
		{"even", []float64{4, 1, 3, 2}, 2.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, median(tt.values))
		})
	}
}

func TestMedian_DoesNotReorderInput(t *testing.T) {
	values := []float64{3, 1, 2}
	median(values)
	assert.Equal(t, []float64{3, 1, 2}, values)
}

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, mean(nil))
	assert.Equal(t, 2.0, mean([]float64{1, 2, 3}))
	assert.Equal(t, -1.5, mean([]float64{-1, -2}))
}

func TestStdDev(t *testing.T) {
	assert.Equal(t, 0.0, stdDev(nil))
	assert.Equal(t, 0.0, stdDev([]float64{42}))
	assert.Equal(t, 0.0, stdDev([]float64{2, 2, 2}))
	assert.InDelta(t, 1.0, stdDev([]float64{1, 2, 3}), 1e-12)
}

func TestHistory_Empty(t *testing.T) {
	h := NewHistory(3)
	assert.Nil(t, h.Statistics("unknown"))
}

func TestHistory_RecordAndLoss(t *testing.T) {
	h := NewHistory(4)

	h.Record("a", responseWith(10*time.Millisecond, 20*time.Millisecond))
	h.Record("a", nil)
	h.Record("a", responseWith(30*time.Millisecond, 40*time.Millisecond))

	stats := h.Statistics("a")
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.SamplesCount)
	assert.InDelta(t, 1.0/3.0, stats.PacketLossRatio, 1e-9)
	assert.InDelta(t, 0.02, stats.MedianOffset.Seconds(), 1e-9)
}

func TestHistory_WindowSlides(t *testing.T) {
	h := NewHistory(2)

	h.Record("a", nil)
	h.Record("a", nil)
	h.Record("a", responseWith(time.Millisecond, time.Millisecond))
	h.Record("a", responseWith(3*time.Millisecond, time.Millisecond))

	stats := h.Statistics("a")
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.SamplesCount)
	assert.Equal(t, 0.0, stats.PacketLossRatio)
	assert.InDelta(t, 0.002, stats.MeanOffset.Seconds(), 1e-9)
}

func TestHistory_AllLost(t *testing.T) {
	h := NewHistory(0)
	assert.Equal(t, DefaultHistorySize, h.size)

	h.Record("a", nil)
	stats := h.Statistics("a")
	require.NotNil(t, stats)
	assert.Equal(t, 0, stats.SamplesCount)
	assert.Equal(t, 1.0, stats.PacketLossRatio)
}

func TestHistory_ServersAreIndependent(t *testing.T) {
	h := NewHistory(3)
	h.Record("a", responseWith(time.Millisecond, time.Millisecond))
	h.Record("b", nil)

	assert.Equal(t, 0.0, h.Statistics("a").PacketLossRatio)
	assert.Equal(t, 1.0, h.Statistics("b").PacketLossRatio)
}

func TestHistory_Concurrent(t *testing.T) {
	h := NewHistory(5)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				h.Record("a", responseWith(time.Millisecond, time.Millisecond))
				h.Statistics("a")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, h.Statistics("a").SamplesCount)
}

func TestFloat64SlicePool(t *testing.T) {
	s := GetFloat64Slice(3)
	require.NotNil(t, s)
	assert.Len(t, *s, 0)
	assert.GreaterOrEqual(t, cap(*s), 3)

	*s = append(*s, 1, 2, 3)
	PutFloat64Slice(s)
	PutFloat64Slice(nil)

	large := GetFloat64Slice(1000)
	assert.GreaterOrEqual(t, cap(*large), 1000)
	assert.Len(t, *large, 0)
}

func TestDatagramPool(t *testing.T) {
	b := getDatagram()
	require.NotNil(t, b)
	assert.Len(t, *b, maxDatagramSize)

	*b = (*b)[:10]
	putDatagram(b)

	again := getDatagram()
	assert.Len(t, *again, maxDatagramSize)

	putDatagram(nil)
	small := make([]byte, 4)
	putDatagram(&small)
}
