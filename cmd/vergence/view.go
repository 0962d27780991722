package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	uv "github.com/charmbracelet/ultraviolet"

	"github.com/taigrr/vergence/pkg/render"
	"github.com/taigrr/vergence/pkg/scene"
	"github.com/taigrr/vergence/pkg/tracker"
)

// ViewState holds the playback state shared by the event handler and the
// render loop.
type ViewState struct {
	mu      sync.Mutex
	frame   int
	paused  bool
	step    int
	restart bool
	scale   float64
	showHUD bool
}

// NewViewState creates the initial playback state.
func NewViewState(scale float64) *ViewState {
	return &ViewState{frame: -1, scale: scale, showHUD: true}
}

// TogglePause pauses or resumes playback.
func (v *ViewState) TogglePause() {
	v.mu.Lock()
	v.paused = !v.paused
	v.mu.Unlock()
}

// Paused reports whether playback is paused.
func (v *ViewState) Paused() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.paused
}

// Step queues n frames to advance while paused. Negative n steps back.
func (v *ViewState) Step(n int) {
	v.mu.Lock()
	if v.paused {
		v.step += n
	}
	v.mu.Unlock()
}

// Fit records the scale the render loop fitted to the scene, unless a scale
// is already set. Zooming starts from it.
func (v *ViewState) Fit(scale float64) {
	v.mu.Lock()
	if v.scale <= 0 && scale > 0 {
		v.scale = scale
	}
	v.mu.Unlock()
}

// Zoom multiplies the plot scale by f. Before a scale is set or fitted
// there is nothing to multiply.
func (v *ViewState) Zoom(f float64) {
	v.mu.Lock()
	if v.scale > 0 {
		v.scale = min(max(v.scale*f, 1), 5000)
	}
	v.mu.Unlock()
}

// Restart rewinds playback to the first frame.
func (v *ViewState) Restart() {
	v.mu.Lock()
	v.restart = true
	v.mu.Unlock()
}

// ToggleHUD shows or hides the text overlay.
func (v *ViewState) ToggleHUD() {
	v.mu.Lock()
	v.showHUD = !v.showHUD
	v.mu.Unlock()
}

// advance returns the index of the next frame to show out of n, and
// whether the tracker must be reset first. Stepping back replays from the
// start because the tracker only moves forward.
func (v *ViewState) advance(n int) (idx int, reset bool, scale float64, hud bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch {
	case v.restart:
		v.restart = false
		v.frame = 0
		reset = true
	case v.paused && v.step < 0:
		v.frame = max(v.frame+v.step, 0)
		v.step = 0
		reset = true
	case v.paused && v.step > 0:
		v.frame = min(v.frame+v.step, n-1)
		v.step = 0
	case !v.paused:
		v.frame++
		if v.frame >= n {
			v.frame = 0
			reset = true
		}
	}
	return max(v.frame, 0), reset, v.scale, v.showHUD
}

// HUD renders an overlay with playback info and the current estimate.
type HUD struct {
	filename  string
	frames    int
	fps       float64
	fpsFrames int
	fpsTime   time.Time
}

// NewHUD creates a new HUD.
func NewHUD(filename string, frames int) *HUD {
	return &HUD{
		filename: filename,
		frames:   frames,
		fpsTime:  time.Now(),
	}
}

// UpdateFPS updates the FPS counter (call once per frame).
func (h *HUD) UpdateFPS() {
	h.fpsFrames++
	elapsed := time.Since(h.fpsTime)
	if elapsed >= time.Second {
		h.fps = float64(h.fpsFrames) / elapsed.Seconds()
		h.fpsFrames = 0
		h.fpsTime = time.Now()
	}
}

// Render draws the HUD on the top and bottom rows of scr.
func (h *HUD) Render(scr uv.Screen, idx int, est tracker.Estimate, hits []string, paused bool) {
	b := scr.Bounds()
	state := "playing"
	if paused {
		state = "paused"
	}
	top := fmt.Sprintf(" %s  frame %d/%d  t=%.3fs  %s  %.0f fps",
		h.filename, idx+1, h.frames, est.Frame.Time, state, h.fps)
	render.DrawText(scr, b.Min.X, b.Min.Y, top, render.ColorTargetHit)

	line := fmt.Sprintf(" distance %.3fm", est.Distance)
	if est.Held {
		line += " (held)"
	}
	if cp := est.Closest; cp.Defined() {
		line += fmt.Sprintf("  gap %.4fm", cp.Gap())
	}
	if len(hits) > 0 {
		line += fmt.Sprintf("  hits %v", hits)
	}
	render.DrawText(scr, b.Min.X, b.Max.Y-1, line, render.ColorMarker)
}

func runView(name string, frames []tracker.Frame, opts options) error {
	term := uv.DefaultTerminal()

	width, height, err := term.GetSize()
	if err != nil {
		return fmt.Errorf("get terminal size: %w", err)
	}

	if err := term.Start(); err != nil {
		return fmt.Errorf("start terminal: %w", err)
	}

	term.EnterAltScreen()
	term.HideCursor()
	term.Resize(width, height)

	// Two framebuffer rows per terminal row
	var fbMu sync.Mutex
	fb := render.NewFramebuffer(width, height*2)

	tr := tracker.New(opts.tracker)
	hud := NewHUD(name, len(frames))
	viewState := NewViewState(*plotScale)

	// Context for clean shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	// Event handler
	go func() {
		for ev := range term.Events() {
			switch ev := ev.(type) {
			case uv.WindowSizeEvent:
				fbMu.Lock()
				width, height = ev.Width, ev.Height
				term.Erase()
				term.Resize(width, height)
				fb = render.NewFramebuffer(width, height*2)
				fbMu.Unlock()

			case uv.KeyPressEvent:
				switch {
				case ev.MatchString("escape", "q", "ctrl+c"):
					cancel()
					return
				case ev.MatchString("space"):
					viewState.TogglePause()
				case ev.MatchString("right", "l"):
					viewState.Step(1)
				case ev.MatchString("left", "h"):
					viewState.Step(-1)
				case ev.MatchString("+", "="):
					viewState.Zoom(1.25)
				case ev.MatchString("-", "_"):
					viewState.Zoom(0.8)
				case ev.MatchString("r"):
					viewState.Restart()
				case ev.MatchString("?"), ev.MatchString("shift+/"):
					viewState.ToggleHUD()
				}
			}
		}
	}()

	cleanup := func() {
		term.ExitAltScreen()
		term.ShowCursor()
		term.Shutdown(context.Background())
	}

	// Main loop
	targetDuration := time.Second / time.Duration(max(*targetFPS, 1))
	shown := -1
	var est tracker.Estimate

	for {
		select {
		case <-ctx.Done():
			cleanup()
			return nil
		default:
		}

		now := time.Now()

		idx, reset, scale, showHUD := viewState.advance(len(frames))
		if reset {
			tr.Reset()
			shown = -1
		}
		// Feed every frame up to idx so smoothing and hold state match a
		// straight pass over the capture.
		for shown < idx {
			shown++
			est = tr.Update(frames[shown])
		}
		hits := opts.scene.Overlapping(est.Marker, opts.markerRadius)

		fbMu.Lock()
		cfg := plotConfig(scale, fb, opts, est)
		viewState.Fit(cfg.Scale)
		plot := render.NewPlot(fb, cfg)
		plot.DrawEstimate(est, opts.scene.Targets, hits)
		area := term.Bounds()
		fb.Draw(term, area)
		fbMu.Unlock()

		hud.UpdateFPS()
		if showHUD {
			hud.Render(term, idx, est, scene.Names(hits), viewState.Paused())
		}

		if err := term.Display(); err != nil {
			cleanup()
			return fmt.Errorf("display: %w", err)
		}

		// Frame timing
		elapsed := time.Since(now)
		if elapsed < targetDuration {
			time.Sleep(targetDuration - elapsed)
		}
	}
}
