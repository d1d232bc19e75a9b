package engine

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CurveKind selects how the span after an automation point interpolates
type CurveKind int

const (
	CurveLinear CurveKind = iota
	CurveExponential
	CurveLogarithmic
	CurveBezier
)

var curveNames = map[CurveKind]string{
	CurveLinear:      "linear",
	CurveExponential: "exponential",
	CurveLogarithmic: "logarithmic",
	CurveBezier:      "bezier",
}

func (c CurveKind) String() string {
	if s, ok := curveNames[c]; ok {
		return s
	}
	return "linear"
}

// MarshalText encodes the curve by name
func (c CurveKind) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a curve name; unknown names are an error
func (c *CurveKind) UnmarshalText(text []byte) error {
	for kind, name := range curveNames {
		if name == string(text) {
			*c = kind
			return nil
		}
	}
	return fmt.Errorf("unknown curve %q", text)
}

// AutomationPoint is one breakpoint on a lane. Curve shapes the span
// from this point to the next; CP1/CP2 are the bezier handle values.
type AutomationPoint struct {
	Time  float64   `json:"time"` // ms on the transport timeline
	Value float64   `json:"value"`
	Curve CurveKind `json:"curve"`
	CP1   float64   `json:"cp1,omitempty"`
	CP2   float64   `json:"cp2,omitempty"`
}

// AutomationLane is a named automation track for one CC on one channel.
// Points stay sorted by time.
type AutomationLane struct {
	ID        string            `json:"id"`
	CC        uint8             `json:"cc"`
	Channel   uint8             `json:"channel"`
	Points    []AutomationPoint `json:"points"`
	Enabled   bool              `json:"enabled"`
	Recording bool              `json:"recording"`
}

// automationFrameInterval is the playback callback period
const automationFrameInterval = 16 * time.Millisecond

// CCAutomationManager owns automation lanes with a record/playback
// transport. Playback advances by measured frame delta, not by a fixed
// increment, so a late frame never loses transport time.
type CCAutomationManager struct {
	mu    sync.Mutex
	log   *zap.Logger
	sched Scheduler

	lanes      []*AutomationLane
	nextLaneID int

	recording   bool
	armedLaneID string // "" while recording means auto-create

	playing     bool
	currentTime float64 // ms
	looping     bool
	loopStart   float64
	loopEnd     float64
	lastFrame   time.Time
	cancelFrame Cancel

	emit func(cc, channel, value uint8)
}

// NewCCAutomationManager creates an empty transport. emit receives each
// evaluated lane value.
func NewCCAutomationManager(sched Scheduler, emit func(cc, channel, value uint8), log *zap.Logger) *CCAutomationManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &CCAutomationManager{sched: sched, emit: emit, log: log}
}

// CreateLane adds an enabled empty lane for cc on channel
func (am *CCAutomationManager) CreateLane(cc, channel uint8) *AutomationLane {
	am.mu.Lock()
	defer am.mu.Unlock()
	return am.createLaneLocked(cc, channel)
}

func (am *CCAutomationManager) createLaneLocked(cc, channel uint8) *AutomationLane {
	am.nextLaneID++
	lane := &AutomationLane{
		ID:      fmt.Sprintf("lane-%d", am.nextLaneID),
		CC:      cc,
		Channel: channel,
		Enabled: true,
	}
	am.lanes = append(am.lanes, lane)
	am.log.Debug("automation lane created",
		zap.String("id", lane.ID),
		zap.Uint8("cc", cc),
		zap.Uint8("channel", channel))
	return lane
}

// RemoveLane deletes a lane by id; unknown ids are a no-op
func (am *CCAutomationManager) RemoveLane(id string) {
	am.mu.Lock()
	defer am.mu.Unlock()
	for i, lane := range am.lanes {
		if lane.ID == id {
			am.lanes = append(am.lanes[:i], am.lanes[i+1:]...)
			return
		}
	}
}

// Lanes returns a deep snapshot of all lanes
func (am *CCAutomationManager) Lanes() []AutomationLane {
	am.mu.Lock()
	defer am.mu.Unlock()
	out := make([]AutomationLane, 0, len(am.lanes))
	for _, lane := range am.lanes {
		snap := *lane
		snap.Points = append([]AutomationPoint(nil), lane.Points...)
		out = append(out, snap)
	}
	return out
}

// SetLaneEnabled toggles playback evaluation for one lane
func (am *CCAutomationManager) SetLaneEnabled(id string, on bool) {
	am.mu.Lock()
	defer am.mu.Unlock()
	if lane := am.findLocked(id); lane != nil {
		lane.Enabled = on
	}
}

func (am *CCAutomationManager) findLocked(id string) *AutomationLane {
	for _, lane := range am.lanes {
		if lane.ID == id {
			return lane
		}
	}
	return nil
}

// StartRecording arms the transport. With a lane id, that lane is
// cleared and will receive every recorded point; with an empty id,
// points go to (or create) the lane matching their cc+channel.
func (am *CCAutomationManager) StartRecording(laneID string) error {
	am.mu.Lock()
	defer am.mu.Unlock()
	if laneID != "" {
		lane := am.findLocked(laneID)
		if lane == nil {
			return fmt.Errorf("unknown automation lane %q", laneID)
		}
		lane.Points = lane.Points[:0]
		lane.Recording = true
	}
	am.recording = true
	am.armedLaneID = laneID
	return nil
}

// StopRecording disarms the transport
func (am *CCAutomationManager) StopRecording() {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.recording = false
	if lane := am.findLocked(am.armedLaneID); lane != nil {
		lane.Recording = false
	}
	am.armedLaneID = ""
}

// Recording reports whether the transport is armed
func (am *CCAutomationManager) Recording() bool {
	am.mu.Lock()
	defer am.mu.Unlock()
	return am.recording
}

// Record appends a linear point at the current transport time. While a
// specific lane is armed all points land there; otherwise the first
// lane matching cc+channel receives it, created on demand.
func (am *CCAutomationManager) Record(cc, channel, value uint8) {
	am.mu.Lock()
	defer am.mu.Unlock()
	if !am.recording {
		return
	}
	var lane *AutomationLane
	if am.armedLaneID != "" {
		lane = am.findLocked(am.armedLaneID)
	} else {
		for _, l := range am.lanes {
			if l.CC == cc && l.Channel == channel {
				lane = l
				break
			}
		}
		if lane == nil {
			lane = am.createLaneLocked(cc, channel)
		}
	}
	if lane == nil {
		return
	}
	insertPoint(lane, AutomationPoint{Time: am.currentTime, Value: float64(value), Curve: CurveLinear})
}

// insertPoint keeps the lane's points sorted by time
func insertPoint(lane *AutomationLane, p AutomationPoint) {
	idx := sort.Search(len(lane.Points), func(i int) bool { return lane.Points[i].Time > p.Time })
	lane.Points = append(lane.Points, AutomationPoint{})
	copy(lane.Points[idx+1:], lane.Points[idx:])
	lane.Points[idx] = p
}

// AddPoint inserts a point into a lane by id, preserving time order
func (am *CCAutomationManager) AddPoint(laneID string, p AutomationPoint) error {
	am.mu.Lock()
	defer am.mu.Unlock()
	lane := am.findLocked(laneID)
	if lane == nil {
		return fmt.Errorf("unknown automation lane %q", laneID)
	}
	insertPoint(lane, p)
	return nil
}

// SetLoop configures loop playback over [start, end) ms
func (am *CCAutomationManager) SetLoop(start, end float64, on bool) {
	am.mu.Lock()
	defer am.mu.Unlock()
	if end < start {
		start, end = end, start
	}
	am.loopStart = start
	am.loopEnd = end
	am.looping = on
}

// Play starts the frame callback
func (am *CCAutomationManager) Play() {
	am.mu.Lock()
	if am.playing {
		am.mu.Unlock()
		return
	}
	am.playing = true
	am.lastFrame = am.sched.Now()
	am.scheduleFrameLocked()
	am.mu.Unlock()
}

// Stop cancels the frame callback; the transport position is kept
func (am *CCAutomationManager) Stop() {
	am.mu.Lock()
	am.playing = false
	if am.cancelFrame != nil {
		am.cancelFrame()
		am.cancelFrame = nil
	}
	am.mu.Unlock()
}

// Playing reports whether the transport is running
func (am *CCAutomationManager) Playing() bool {
	am.mu.Lock()
	defer am.mu.Unlock()
	return am.playing
}

// CurrentTime returns the transport position in ms
func (am *CCAutomationManager) CurrentTime() float64 {
	am.mu.Lock()
	defer am.mu.Unlock()
	return am.currentTime
}

// SeekTo jumps the transport and immediately re-emits every lane's
// value at the new position, playing or not.
func (am *CCAutomationManager) SeekTo(timeMs float64) {
	am.mu.Lock()
	if timeMs < 0 {
		timeMs = 0
	}
	am.currentTime = timeMs
	am.lastFrame = am.sched.Now()
	outputs := am.evaluateLocked()
	am.mu.Unlock()
	am.flush(outputs)
}

func (am *CCAutomationManager) scheduleFrameLocked() {
	am.cancelFrame = am.sched.Schedule(automationFrameInterval, am.frame)
}

// frame advances the transport by the measured delta and emits every
// enabled lane's value
func (am *CCAutomationManager) frame() {
	am.mu.Lock()
	if !am.playing {
		am.mu.Unlock()
		return
	}
	now := am.sched.Now()
	delta := now.Sub(am.lastFrame)
	am.lastFrame = now
	am.currentTime += float64(delta) / float64(time.Millisecond)

	if am.looping && am.loopEnd > am.loopStart {
		if am.currentTime >= am.loopEnd {
			am.currentTime = am.loopStart + math.Mod(am.currentTime-am.loopStart, am.loopEnd-am.loopStart)
		} else if am.currentTime < am.loopStart {
			// jitter guard: never drift below the loop window
			am.currentTime = am.loopStart
		}
	}

	outputs := am.evaluateLocked()
	am.scheduleFrameLocked()
	am.mu.Unlock()
	am.flush(outputs)
}

type ccValue struct {
	cc, channel, value uint8
}

func (am *CCAutomationManager) evaluateLocked() []ccValue {
	var out []ccValue
	for _, lane := range am.lanes {
		if !lane.Enabled || len(lane.Points) == 0 {
			continue
		}
		v := interpolateLane(lane.Points, am.currentTime)
		out = append(out, ccValue{cc: lane.CC, channel: lane.Channel, value: clampCC(v)})
	}
	return out
}

func (am *CCAutomationManager) flush(outputs []ccValue) {
	if am.emit == nil {
		return
	}
	for _, o := range outputs {
		am.emit(o.cc, o.channel, o.value)
	}
}

func clampCC(v float64) uint8 {
	r := math.Round(v)
	if r < 0 {
		return 0
	}
	if r > 127 {
		return 127
	}
	return uint8(r)
}

// interpolateLane evaluates a sorted point list at time t: hold before
// the first point, hold after the last, otherwise shape the bracketing
// span with the earlier point's curve.
func interpolateLane(points []AutomationPoint, t float64) float64 {
	if len(points) == 0 {
		return 0
	}
	if t <= points[0].Time {
		return points[0].Value
	}
	last := points[len(points)-1]
	if t >= last.Time {
		return last.Value
	}

	idx := sort.Search(len(points), func(i int) bool { return points[i].Time > t }) - 1
	p1 := points[idx]
	p2 := points[idx+1]
	if p2.Time == p1.Time {
		return p2.Value
	}
	u := (t - p1.Time) / (p2.Time - p1.Time)

	switch p1.Curve {
	case CurveExponential:
		return p1.Value + (p2.Value-p1.Value)*u*u
	case CurveLogarithmic:
		return p1.Value + (p2.Value-p1.Value)*math.Sqrt(u)
	case CurveBezier:
		inv := 1 - u
		return inv*inv*inv*p1.Value +
			3*inv*inv*u*p1.CP1 +
			3*inv*u*u*p1.CP2 +
			u*u*u*p2.Value
	default:
		return p1.Value + (p2.Value-p1.Value)*u
	}
}
