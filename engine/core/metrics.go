package core

import (
	"time"

	"github.com/spaghettifunk/vkloop/engine/containers"
)

const AVG_COUNT = 30

// FrameMetrics keeps a rolling frame time average and a frames-per-second
// counter. It is owned by the main loop and not safe for concurrent use.
type FrameMetrics struct {
	msTimes            *containers.RingQueue[float64]
	msSum              float64
	msAvg              float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64
	totalFrames        uint64
}

func NewFrameMetrics() *FrameMetrics {
	return &FrameMetrics{
		msTimes: containers.NewRingQueue[float64](AVG_COUNT),
	}
}

func (m *FrameMetrics) Update(frameElapsed time.Duration) {
	frameMS := float64(frameElapsed) / float64(time.Millisecond)

	// Calculate frame ms average
	if dropped, ok := m.msTimes.Push(frameMS); ok {
		m.msSum -= dropped
	}
	m.msSum += frameMS
	if m.msTimes.IsFull() {
		m.msAvg = m.msSum / float64(AVG_COUNT)
	}

	// Calculate Frames per second.
	m.accumulatedFrameMS += frameMS
	if m.accumulatedFrameMS > 1000 {
		m.fps = float64(m.frames)
		m.accumulatedFrameMS -= 1000
		m.frames = 0
	}

	// Count all Frames.
	m.frames++
	m.totalFrames++
}

func (m *FrameMetrics) FPS() float64 {
	return m.fps
}

// FrameTime is the average frame time in milliseconds over the last
// AVG_COUNT frames. It stays zero until the window is full.
func (m *FrameMetrics) FrameTime() float64 {
	return m.msAvg
}

func (m *FrameMetrics) TotalFrames() uint64 {
	return m.totalFrames
}
