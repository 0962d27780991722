package main

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/taigrr/vergence/pkg/math3d"
	"github.com/taigrr/vergence/pkg/recording"
	"github.com/taigrr/vergence/pkg/render"
	"github.com/taigrr/vergence/pkg/scene"
	"github.com/taigrr/vergence/pkg/tracker"
)

const capture = `time,lox,loy,loz,ldx,ldy,ldz,rox,roy,roz,rdx,rdy,rdz,cox,coy,coz,cdx,cdy,cdz
0.000,-0.032,0,0,0.032,0,0.5,0.032,0,0,-0.032,0,0.5,0,0,0,0,0,1
0.011,-0.032,0,0,0,0,1,0.032,0,0,0,0,1,0,0,0,0,0,1
`

func testOptions() options {
	return options{
		markerRadius: 0.05,
		scene: &scene.Scene{Targets: []scene.Target{
			{Name: "cup", Center: math3d.V3(0, 0, 0.5), Radius: 0.05},
			{Name: "far", Center: math3d.V3(0, 0, 3), Radius: 0.1},
		}},
	}
}

func TestProcess(t *testing.T) {
	var out, debug bytes.Buffer
	opts := testOptions()
	opts.debug = &debug

	sum, err := process(strings.NewReader(capture), &out, opts)
	if err != nil {
		t.Fatal(err)
	}
	if sum.frames != 2 || sum.held != 1 || sum.hitFrames != 2 {
		t.Errorf("summary = %+v, want 2 frames, 1 held, 2 hit frames", sum)
	}
	if !sum.last.Held {
		t.Error("last estimate should be held")
	}

	rows, err := csv.NewReader(&out).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}
	col := map[string]int{}
	for i, name := range recording.ResultHeader {
		col[name] = i
	}
	for i, row := range rows[1:] {
		if got := row[col["hits"]]; got != "cup" {
			t.Errorf("row %d hits = %q, want cup", i, got)
		}
		if got := row[col["distance"]]; got != "0.50000" {
			t.Errorf("row %d distance = %q, want 0.50000", i, got)
		}
	}
	if got := rows[2][col["held"]]; got != "true" {
		t.Errorf("held = %q, want true", got)
	}

	d := debug.String()
	if !strings.Contains(d, "frame 0 ") || !strings.Contains(d, "frame 1 ") {
		t.Errorf("debug output missing frames:\n%s", d)
	}
	if !strings.Contains(d, "nearest=cup") || !strings.Contains(d, "det=") {
		t.Errorf("debug output missing determinant or nearest target:\n%s", d)
	}
	if !strings.Contains(d, "closest undefined") {
		t.Errorf("debug output missing undefined closest point:\n%s", d)
	}
}

func TestProcessMalformed(t *testing.T) {
	input := strings.Join(recording.FrameHeader, ",") + "\n0,1,2\n"
	var out bytes.Buffer
	_, err := process(strings.NewReader(input), &out, testOptions())
	if !errors.Is(err, recording.ErrMalformedRow) {
		t.Errorf("err = %v, want ErrMalformedRow", err)
	}
}

func TestProcessEmptyScene(t *testing.T) {
	var out bytes.Buffer
	sum, err := process(strings.NewReader(capture), &out, options{scene: &scene.Scene{}})
	if err != nil {
		t.Fatal(err)
	}
	if sum.hitFrames != 0 {
		t.Errorf("hitFrames = %d, want 0", sum.hitFrames)
	}
}

func TestViewStateAdvance(t *testing.T) {
	v := NewViewState(0)

	idx, reset, _, hud := v.advance(3)
	if idx != 0 || reset || !hud {
		t.Fatalf("first advance = %d, %t, hud %t; want 0, false, true", idx, reset, hud)
	}
	v.advance(3)
	v.advance(3)
	if idx, reset, _, _ = v.advance(3); idx != 0 || !reset {
		t.Errorf("wrap = %d, %t; want 0, true", idx, reset)
	}

	v.TogglePause()
	if idx, _, _, _ = v.advance(3); idx != 0 {
		t.Errorf("paused advance moved to %d", idx)
	}
	v.Step(2)
	if idx, reset, _, _ = v.advance(3); idx != 2 || reset {
		t.Errorf("step forward = %d, %t; want 2, false", idx, reset)
	}
	v.Step(5)
	if idx, _, _, _ = v.advance(3); idx != 2 {
		t.Errorf("step past end = %d, want 2", idx)
	}
	v.Step(-1)
	if idx, reset, _, _ = v.advance(3); idx != 1 || !reset {
		t.Errorf("step back = %d, %t; want 1, true", idx, reset)
	}

	v.Restart()
	if idx, reset, _, _ = v.advance(3); idx != 0 || !reset {
		t.Errorf("restart = %d, %t; want 0, true", idx, reset)
	}

	v.ToggleHUD()
	if _, _, _, hud = v.advance(3); hud {
		t.Error("HUD still shown after toggle")
	}
}

func TestViewStateZoom(t *testing.T) {
	v := NewViewState(100)
	v.Zoom(2)
	if _, _, scale, _ := v.advance(1); scale != 200 {
		t.Errorf("scale = %v, want 200", scale)
	}

	fit := NewViewState(0)
	fit.Zoom(2)
	if _, _, scale, _ := fit.advance(1); scale != 0 {
		t.Errorf("scale before fitting = %v, want 0", scale)
	}
	fit.Fit(40)
	fit.Zoom(1.25)
	if _, _, scale, _ := fit.advance(1); scale != 50 {
		t.Errorf("zoomed fitted scale = %v, want 50", scale)
	}
	fit.Fit(10)
	if _, _, scale, _ := fit.advance(1); scale != 50 {
		t.Errorf("refit overrode scale: %v, want 50", scale)
	}
}

func TestViewZoomFromDefaultScale(t *testing.T) {
	fb := render.NewFramebuffer(100, 50)
	opts := testOptions()
	v := NewViewState(0)

	_, _, scale, _ := v.advance(1)
	cfg := plotConfig(scale, fb, opts, tracker.Estimate{Distance: 1})
	v.Fit(cfg.Scale)
	v.Zoom(2)

	_, _, zoomed, _ := v.advance(1)
	if !approx(zoomed, 2*cfg.Scale) {
		t.Errorf("zoomed scale = %v, want %v", zoomed, 2*cfg.Scale)
	}
	if cfg := plotConfig(zoomed, fb, opts, tracker.Estimate{Distance: 1}); !approx(cfg.Scale, zoomed) {
		t.Errorf("plot scale = %v, want %v", cfg.Scale, zoomed)
	}
}

func TestPlotConfig(t *testing.T) {
	fb := render.NewFramebuffer(100, 50)
	opts := testOptions()
	est := tracker.Estimate{Distance: 1}

	cfg := plotConfig(0, fb, opts, est)
	// The far target sets the depth to 3.1 m.
	if want := 0.9 * 50 / 3.1; !approx(cfg.Scale, want) {
		t.Errorf("fitted Scale = %v, want %v", cfg.Scale, want)
	}
	if !approx(cfg.Center.Z, 1.55) {
		t.Errorf("Center.Z = %v, want 1.55", cfg.Center.Z)
	}
	if cfg.MarkerRadius != 0.05 {
		t.Errorf("MarkerRadius = %v, want 0.05", cfg.MarkerRadius)
	}

	if cfg := plotConfig(40, fb, opts, est); cfg.Scale != 40 {
		t.Errorf("explicit Scale = %v, want 40", cfg.Scale)
	}
}

func approx(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}

func TestCloseInto(t *testing.T) {
	failing := errors.New("disk full")

	var err error
	closeInto(&err, "close output", func() error { return failing })
	if !errors.Is(err, failing) {
		t.Errorf("err = %v, want wrapped %v", err, failing)
	}

	earlier := errors.New("read capture")
	err = earlier
	closeInto(&err, "close output", func() error { return failing })
	if err != earlier {
		t.Errorf("err = %v, want the earlier error kept", err)
	}

	err = nil
	closeInto(&err, "close output", func() error { return nil })
	if err != nil {
		t.Errorf("err = %v, want nil", err)
	}
}

func TestCloseIntoReportsLostWrite(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "debug.txt"))
	if err != nil {
		t.Fatal(err)
	}
	bw := bufio.NewWriter(f)
	bw.WriteString("frame 0\n")
	f.Close()

	var runErr error
	closeInto(&runErr, "flush debug file", bw.Flush)
	if runErr == nil {
		t.Error("flush to a closed file should be reported")
	}
}
