package engine

import (
	"math"
	"testing"
	"time"
)

type ccCapture struct {
	values []ccValue
}

func (c *ccCapture) collect(cc, channel, value uint8) {
	c.values = append(c.values, ccValue{cc: cc, channel: channel, value: value})
}

func (c *ccCapture) reset() { c.values = nil }

func TestInterpolateLaneHoldsAndExactPoints(t *testing.T) {
	points := []AutomationPoint{
		{Time: 100, Value: 10, Curve: CurveLinear},
		{Time: 200, Value: 50, Curve: CurveLinear},
		{Time: 400, Value: 30, Curve: CurveLinear},
	}

	tests := []struct {
		at   float64
		want float64
	}{
		{0, 10},    // before first holds first
		{100, 10},  // exact point returns exactly
		{200, 50},  // exact point returns exactly
		{400, 30},  // exact point returns exactly
		{150, 30},  // linear midpoint
		{300, 40},  // linear midpoint
		{500, 30},  // after last holds last
		{1e9, 30},
	}
	for _, tt := range tests {
		got := interpolateLane(points, tt.at)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("interpolateLane(%v) = %v, want %v", tt.at, got, tt.want)
		}
	}
}

func TestInterpolateLaneCurves(t *testing.T) {
	mk := func(curve CurveKind) []AutomationPoint {
		return []AutomationPoint{
			{Time: 0, Value: 0, Curve: curve, CP1: 10, CP2: 90},
			{Time: 100, Value: 100},
		}
	}

	// halfway along each curve shape
	if got := interpolateLane(mk(CurveLinear), 50); math.Abs(got-50) > 1e-9 {
		t.Errorf("linear midpoint = %v, want 50", got)
	}
	if got := interpolateLane(mk(CurveExponential), 50); math.Abs(got-25) > 1e-9 {
		t.Errorf("exponential midpoint = %v, want 25", got)
	}
	if got := interpolateLane(mk(CurveLogarithmic), 50); math.Abs(got-100*math.Sqrt(0.5)) > 1e-9 {
		t.Errorf("logarithmic midpoint = %v, want %v", got, 100*math.Sqrt(0.5))
	}
	// cubic bezier at u=0.5: 0.125*0 + 0.375*10 + 0.375*90 + 0.125*100
	if got := interpolateLane(mk(CurveBezier), 50); math.Abs(got-50) > 1e-9 {
		t.Errorf("bezier midpoint = %v, want 50", got)
	}
}

func TestRecordAutoCreatesMatchingLane(t *testing.T) {
	fs := newFakeScheduler()
	am := NewCCAutomationManager(fs, nil, nil)

	if err := am.StartRecording(""); err != nil {
		t.Fatal(err)
	}
	am.Record(74, 0, 100)
	am.Record(74, 0, 110)
	am.Record(11, 1, 50)

	lanes := am.Lanes()
	if len(lanes) != 2 {
		t.Fatalf("expected 2 auto-created lanes, got %d", len(lanes))
	}
	if lanes[0].CC != 74 || len(lanes[0].Points) != 2 {
		t.Errorf("lane 0 = cc %d with %d points", lanes[0].CC, len(lanes[0].Points))
	}
	if lanes[1].CC != 11 || lanes[1].Channel != 1 {
		t.Errorf("lane 1 = cc %d channel %d", lanes[1].CC, lanes[1].Channel)
	}
}

func TestRecordToArmedLaneClearsIt(t *testing.T) {
	fs := newFakeScheduler()
	am := NewCCAutomationManager(fs, nil, nil)
	lane := am.CreateLane(7, 0)
	if err := am.AddPoint(lane.ID, AutomationPoint{Time: 0, Value: 99}); err != nil {
		t.Fatal(err)
	}

	if err := am.StartRecording(lane.ID); err != nil {
		t.Fatal(err)
	}
	// armed lane catches every CC, matching or not
	am.Record(42, 5, 64)

	lanes := am.Lanes()
	if len(lanes) != 1 {
		t.Fatalf("expected 1 lane, got %d", len(lanes))
	}
	if len(lanes[0].Points) != 1 || lanes[0].Points[0].Value != 64 {
		t.Errorf("armed lane should have been cleared then recorded into: %+v", lanes[0].Points)
	}

	am.StopRecording()
	if am.Recording() {
		t.Error("transport still armed after StopRecording")
	}
}

func TestRecordUnknownLaneFails(t *testing.T) {
	am := NewCCAutomationManager(newFakeScheduler(), nil, nil)
	if err := am.StartRecording("lane-999"); err == nil {
		t.Fatal("arming an unknown lane must fail")
	}
}

func TestRecordKeepsPointsSorted(t *testing.T) {
	fs := newFakeScheduler()
	am := NewCCAutomationManager(fs, nil, nil)
	lane := am.CreateLane(7, 0)
	for _, p := range []AutomationPoint{
		{Time: 300, Value: 3}, {Time: 100, Value: 1}, {Time: 200, Value: 2},
	} {
		if err := am.AddPoint(lane.ID, p); err != nil {
			t.Fatal(err)
		}
	}
	points := am.Lanes()[0].Points
	for i := 1; i < len(points); i++ {
		if points[i].Time < points[i-1].Time {
			t.Fatalf("points out of order: %+v", points)
		}
	}
}

func TestPlaybackEmitsEnabledLanes(t *testing.T) {
	fs := newFakeScheduler()
	cap := &ccCapture{}
	am := NewCCAutomationManager(fs, cap.collect, nil)

	lane := am.CreateLane(74, 0)
	am.AddPoint(lane.ID, AutomationPoint{Time: 0, Value: 0, Curve: CurveLinear})
	am.AddPoint(lane.ID, AutomationPoint{Time: 1000, Value: 127, Curve: CurveLinear})

	muted := am.CreateLane(11, 0)
	am.AddPoint(muted.ID, AutomationPoint{Time: 0, Value: 64})
	am.SetLaneEnabled(muted.ID, false)

	am.Play()
	fs.advance(500 * time.Millisecond)
	am.Stop()

	if len(cap.values) == 0 {
		t.Fatal("no CC output during playback")
	}
	for _, v := range cap.values {
		if v.cc == 11 {
			t.Fatal("disabled lane must not emit")
		}
	}
	last := cap.values[len(cap.values)-1]
	want := clampCC(127 * 500.0 / 1000.0)
	// frame boundaries land within one interval of the target time
	if int(last.value) < int(want)-3 || int(last.value) > int(want)+3 {
		t.Errorf("value at ~500ms = %d, want about %d", last.value, want)
	}
}

func TestPlaybackLoopWraps(t *testing.T) {
	fs := newFakeScheduler()
	am := NewCCAutomationManager(fs, nil, nil)
	am.SetLoop(100, 200, true)

	am.Play()
	fs.advance(350 * time.Millisecond)

	got := am.CurrentTime()
	if got < 100 || got >= 200 {
		t.Errorf("transport at %vms, want inside loop [100,200)", got)
	}
	am.Stop()
}

func TestSeekEmitsRegardlessOfPlayState(t *testing.T) {
	fs := newFakeScheduler()
	cap := &ccCapture{}
	am := NewCCAutomationManager(fs, cap.collect, nil)

	lane := am.CreateLane(74, 2)
	am.AddPoint(lane.ID, AutomationPoint{Time: 0, Value: 0, Curve: CurveLinear})
	am.AddPoint(lane.ID, AutomationPoint{Time: 100, Value: 100, Curve: CurveLinear})

	am.SeekTo(50)
	if len(cap.values) != 1 {
		t.Fatalf("seek while stopped should emit once per lane, got %d", len(cap.values))
	}
	v := cap.values[0]
	if v.cc != 74 || v.channel != 2 || v.value != 50 {
		t.Errorf("seek emitted %+v", v)
	}
	if am.Playing() {
		t.Error("seek must not start playback")
	}
}

func TestStopCancelsFrameCallback(t *testing.T) {
	fs := newFakeScheduler()
	cap := &ccCapture{}
	am := NewCCAutomationManager(fs, cap.collect, nil)
	lane := am.CreateLane(1, 0)
	am.AddPoint(lane.ID, AutomationPoint{Time: 0, Value: 10})

	am.Play()
	fs.advance(50 * time.Millisecond)
	am.Stop()
	cap.reset()

	fs.advance(time.Second)
	if len(cap.values) != 0 {
		t.Errorf("frames still firing after Stop: %d", len(cap.values))
	}
}
