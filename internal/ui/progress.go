package ui

import (
	"sync"
	"time"
)

// speedSampleInterval is how often the tracker recomputes throughput.
// Sampling per Update call would be pure noise at ingest rates.
const speedSampleInterval = 500 * time.Millisecond

// etaSmoothingFactor controls how much weight a new ETA estimate gets.
// 0.3 means 30% new value + 70% previous value, keeping the display stable
// when per-batch ingest times vary.
const etaSmoothingFactor = 0.3

// speedMeter derives items/sec from periodic progress observations and
// feeds the throughput sparkline.
type speedMeter struct {
	lastCount int       // Progress value at the last sample
	lastAt    time.Time // When the last sample was taken
	current   float64   // Most recent items/sec
	avg       float64   // Exponentially smoothed average
	peak      float64   // Maximum observed
	samples   int
	spark     *Sparkline
}

func newSpeedMeter() *speedMeter {
	return &speedMeter{
		lastAt: time.Now(),
		spark:  NewSparkline(60),
	}
}

// observe updates the meter with a new progress value. It only takes a
// sample when at least speedSampleInterval has passed since the last one.
func (m *speedMeter) observe(count int) {
	now := time.Now()
	elapsed := now.Sub(m.lastAt)
	if elapsed < speedSampleInterval {
		return
	}

	if delta := count - m.lastCount; delta > 0 {
		speed := float64(delta) / elapsed.Seconds()
		m.current = speed

		m.samples++
		if m.samples == 1 {
			m.avg = speed
		} else {
			// Smoothing factor 0.2 gives a responsive but stable average
			m.avg = 0.2*speed + 0.8*m.avg
		}

		if speed > m.peak {
			m.peak = speed
		}

		m.spark.Add(speed)
	}

	m.lastCount = count
	m.lastAt = now
}

func (m *speedMeter) reset() {
	m.lastCount = 0
	m.lastAt = time.Now()
	m.current = 0
	m.avg = 0
	m.peak = 0
	m.samples = 0
	m.spark.Clear()
}

func (m *speedMeter) stats() SpeedStats {
	return SpeedStats{Current: m.current, Avg: m.avg, Peak: m.peak}
}

// SpeedStats contains speed metrics for display.
type SpeedStats struct {
	Current float64 // Current items/sec
	Avg     float64 // Rolling average
	Peak    float64 // Maximum observed
}

// ProgressStats contains a snapshot of current progress.
type ProgressStats struct {
	Stage      Stage
	Current    int
	Total      int
	Progress   float64
	ETA        time.Duration
	CurrentDoc string
	ErrorCount int
	WarnCount  int
	Speed      SpeedStats
}

// ProgressTracker manages progress state across ingest stages.
// It is safe for concurrent use.
type ProgressTracker struct {
	mu         sync.RWMutex
	stage      Stage
	current    int
	total      int
	currentDoc string
	startTime  time.Time
	stageStart time.Time
	errors     []ErrorEvent
	warnings   []ErrorEvent

	lastETA time.Duration // Previous ETA, for exponential smoothing
	speed   *speedMeter
}

// NewProgressTracker creates a new progress tracker.
func NewProgressTracker() *ProgressTracker {
	now := time.Now()
	return &ProgressTracker{
		stage:      StageReading,
		startTime:  now,
		stageStart: now,
		speed:      newSpeedMeter(),
	}
}

// SetStage transitions to a new stage. Progress, ETA smoothing, and the
// speed meter all restart from zero.
func (p *ProgressTracker) SetStage(stage Stage, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stage = stage
	p.total = total
	p.current = 0
	p.currentDoc = ""
	p.stageStart = time.Now()
	p.lastETA = 0
	p.speed.reset()
}

// Update updates progress within the current stage.
func (p *ProgressTracker) Update(current int, docID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = current
	if docID != "" {
		p.currentDoc = docID
	}

	p.speed.observe(current)
}

// AddError records an error or warning.
func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.IsWarn {
		p.warnings = append(p.warnings, event)
	} else {
		p.errors = append(p.errors, event)
	}
}

// Progress returns current progress percentage (0.0-1.0).
func (p *ProgressTracker) Progress() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.total == 0 {
		return 0.0
	}

	progress := float64(p.current) / float64(p.total)
	if progress > 1.0 {
		return 1.0
	}
	return progress
}

// ETA estimates remaining time based on current progress.
// Takes the write lock because calculateETA updates lastETA for smoothing.
func (p *ProgressTracker) ETA() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.calculateETA()
}

// Elapsed returns time since tracker creation.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return time.Since(p.startTime)
}

// Stats returns a snapshot of current statistics.
// Takes the write lock because calculateETA updates lastETA for smoothing.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	progress := 0.0
	if p.total > 0 {
		progress = float64(p.current) / float64(p.total)
		if progress > 1.0 {
			progress = 1.0
		}
	}

	return ProgressStats{
		Stage:      p.stage,
		Current:    p.current,
		Total:      p.total,
		Progress:   progress,
		ETA:        p.calculateETA(),
		CurrentDoc: p.currentDoc,
		ErrorCount: len(p.errors),
		WarnCount:  len(p.warnings),
		Speed:      p.speed.stats(),
	}
}

// calculateETA estimates remaining time with exponential smoothing.
// Must be called with the lock held.
func (p *ProgressTracker) calculateETA() time.Duration {
	if p.current == 0 || p.total == 0 {
		return 0
	}

	elapsed := time.Since(p.stageStart)
	progress := float64(p.current) / float64(p.total)

	if progress <= 0 || progress >= 1.0 {
		return 0
	}

	totalEstimate := time.Duration(float64(elapsed) / progress)
	rawRemaining := totalEstimate - elapsed

	if rawRemaining < 0 {
		return 0
	}

	// smoothed = α * new + (1-α) * old
	if p.lastETA == 0 {
		p.lastETA = rawRemaining
		return rawRemaining
	}

	smoothed := time.Duration(
		etaSmoothingFactor*float64(rawRemaining) +
			(1-etaSmoothingFactor)*float64(p.lastETA),
	)
	p.lastETA = smoothed

	return smoothed
}

// Errors returns the list of recorded errors.
func (p *ProgressTracker) Errors() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]ErrorEvent, len(p.errors))
	copy(result, p.errors)
	return result
}

// Warnings returns the list of recorded warnings.
func (p *ProgressTracker) Warnings() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]ErrorEvent, len(p.warnings))
	copy(result, p.warnings)
	return result
}

// RenderSparkline returns the throughput sparkline at the given width.
func (p *ProgressTracker) RenderSparkline(width int) string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.speed.spark.Render(width)
}

// SpeedStats returns current speed statistics.
func (p *ProgressTracker) SpeedStats() SpeedStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.speed.stats()
}
