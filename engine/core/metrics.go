package core

const frameAvgCount uint8 = 30

// Metrics keeps a rolling frame-time average and a once-per-second FPS
// counter. It is owned and updated by the control thread only.
type Metrics struct {
	frameAvgCounter    uint8
	msTimes            [frameAvgCount]float64
	msAvg              float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

// Update folds one frame's elapsed time (seconds) into the counters.
func (m *Metrics) Update(frameElapsedTime float64) {
	frameMS := frameElapsedTime * 1000.0
	m.msTimes[m.frameAvgCounter] = frameMS
	if m.frameAvgCounter == frameAvgCount-1 {
		sum := 0.0
		for i := uint8(0); i < frameAvgCount; i++ {
			sum += m.msTimes[i]
		}
		m.msAvg = sum / float64(frameAvgCount)
	}
	m.frameAvgCounter++
	m.frameAvgCounter %= frameAvgCount

	m.accumulatedFrameMS += frameMS
	if m.accumulatedFrameMS > 1000 {
		m.fps = float64(m.frames)
		m.accumulatedFrameMS -= 1000
		m.frames = 0
	}

	m.frames++
}

func (m *Metrics) FPS() float64 {
	return m.fps
}

// FrameTime returns the rolling average frame time in milliseconds.
func (m *Metrics) FrameTime() float64 {
	return m.msAvg
}

func (m *Metrics) Frame() (float64, float64) {
	return m.fps, m.msAvg
}
