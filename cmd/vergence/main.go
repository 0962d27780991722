// vergence - Binocular gaze convergence from eye tracker captures
// Reads a CSV capture of left, right and combined gaze rays and estimates
// where the eyes converge on every frame.
//
// Usage:
//
//	vergence [options] capture.csv     - write per-frame results as CSV
//	vergence -view [options] capture.csv - replay the capture in the terminal
//
// View controls:
//
//	Space       - Pause/resume
//	Left/Right  - Step one frame while paused
//	+/-         - Zoom in/out
//	R           - Restart from the first frame
//	?           - Toggle HUD overlay
//	Esc/Q       - Quit
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/taigrr/vergence/pkg/gaze"
	"github.com/taigrr/vergence/pkg/math3d"
	"github.com/taigrr/vergence/pkg/recording"
	"github.com/taigrr/vergence/pkg/render"
	"github.com/taigrr/vergence/pkg/scene"
	"github.com/taigrr/vergence/pkg/tracker"
)

var (
	epsilon      = flag.Float64("eps", gaze.DefaultEpsilon, "Degeneracy threshold for parallel gaze rays")
	smoothing    = flag.Float64("smooth", 0, "Marker distance spring frequency (0 disables smoothing)")
	damping      = flag.Float64("damping", 1, "Marker distance spring damping ratio")
	sampleRate   = flag.Int("rate", tracker.DefaultFPS, "Capture sample rate in Hz")
	markerRadius = flag.Float64("marker", 0.05, "Marker sphere radius in meters for target hits")
	scenePath    = flag.String("scene", "", "glTF/GLB file with target spheres")
	outPath      = flag.String("o", "", "Write results to file instead of stdout")
	pngPath      = flag.String("png", "", "Save a top-down plot of the last frame as PNG")
	debugPath    = flag.String("debug", "", "Write per-frame diagnostics to file")
	view         = flag.Bool("view", false, "Replay the capture in the terminal")
	targetFPS    = flag.Int("fps", 60, "Playback FPS in view mode")
	plotScale    = flag.Float64("scale", 0, "View zoom in pixels per meter (0 fits the scene)")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "vergence - Binocular gaze convergence from eye tracker captures\n\n")
		fmt.Fprintf(os.Stderr, "Usage: vergence [options] <capture.csv|->\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nView controls:\n")
		fmt.Fprintf(os.Stderr, "  Space       - Pause/resume\n")
		fmt.Fprintf(os.Stderr, "  Left/Right  - Step one frame while paused\n")
		fmt.Fprintf(os.Stderr, "  +/-         - Zoom in/out\n")
		fmt.Fprintf(os.Stderr, "  R           - Restart\n")
		fmt.Fprintf(os.Stderr, "  ?           - Toggle HUD overlay\n")
		fmt.Fprintf(os.Stderr, "  Esc/Q       - Quit\n")
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	if err := run(flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options carries the flag values into the processing code.
type options struct {
	tracker      tracker.Config
	markerRadius float64
	scene        *scene.Scene
	debug        io.Writer
}

func optionsFromFlags() options {
	return options{
		tracker: tracker.Config{
			Solver:             gaze.Solver{Epsilon: *epsilon},
			SmoothingFrequency: *smoothing,
			Damping:            *damping,
			FPS:                *sampleRate,
		},
		markerRadius: *markerRadius,
		scene:        &scene.Scene{},
	}
}

func run(capturePath string) (err error) {
	opts := optionsFromFlags()

	if *scenePath != "" {
		s, err := scene.Load(*scenePath)
		if err != nil {
			return fmt.Errorf("load scene: %w", err)
		}
		opts.scene = s
		fmt.Fprintf(os.Stderr, "Loaded: %s (%d targets)\n", filepath.Base(*scenePath), len(s.Targets))
	}

	if *debugPath != "" {
		f, cerr := os.Create(*debugPath)
		if cerr != nil {
			return fmt.Errorf("create debug file: %w", cerr)
		}
		defer closeInto(&err, "close debug file", f.Close)
		bw := bufio.NewWriter(f)
		defer closeInto(&err, "flush debug file", bw.Flush)
		opts.debug = bw
	}

	in := os.Stdin
	if capturePath != "-" {
		f, err := os.Open(capturePath)
		if err != nil {
			return fmt.Errorf("open capture: %w", err)
		}
		defer f.Close()
		in = f
	}

	if *view {
		frames, err := recording.NewReader(in).ReadAll()
		if err != nil {
			return fmt.Errorf("read capture: %w", err)
		}
		if len(frames) == 0 {
			return fmt.Errorf("capture has no frames")
		}
		return runView(filepath.Base(capturePath), frames, opts)
	}

	var out io.Writer = os.Stdout
	if *outPath != "" {
		f, cerr := os.Create(*outPath)
		if cerr != nil {
			return fmt.Errorf("create output: %w", cerr)
		}
		defer closeInto(&err, "close output", f.Close)
		out = f
	}

	sum, err := process(in, out, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Processed %d frames (%d held, %d with target hits)\n", sum.frames, sum.held, sum.hitFrames)

	if *pngPath != "" && sum.frames > 0 {
		fb := render.NewFramebuffer(160, 120)
		plot := render.NewPlot(fb, plotConfig(*plotScale, fb, opts, sum.last))
		plot.DrawEstimate(sum.last, opts.scene.Targets, opts.scene.Overlapping(sum.last.Marker, opts.markerRadius))
		if err := fb.SavePNG(*pngPath); err != nil {
			return fmt.Errorf("save png: %w", err)
		}
	}
	return nil
}

// closeInto runs fn and stores its error in *err unless an earlier error
// is already there.
func closeInto(err *error, what string, fn func() error) {
	if cerr := fn(); cerr != nil && *err == nil {
		*err = fmt.Errorf("%s: %w", what, cerr)
	}
}

// summary reports what process saw.
type summary struct {
	frames    int
	held      int
	hitFrames int
	last      tracker.Estimate
}

// process runs every frame of a capture through a tracker and writes one
// result row per frame.
func process(in io.Reader, out io.Writer, opts options) (summary, error) {
	var sum summary
	r := recording.NewReader(in)
	w := recording.NewWriter(out)
	tr := tracker.New(opts.tracker)

	for {
		f, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return sum, fmt.Errorf("read capture: %w", err)
		}

		est := tr.Update(f)
		hits := opts.scene.Overlapping(est.Marker, opts.markerRadius)
		if err := w.Write(est, scene.Names(hits)); err != nil {
			return sum, fmt.Errorf("write results: %w", err)
		}
		if opts.debug != nil {
			writeDebug(opts.debug, sum.frames, est, opts.scene, hits)
		}

		sum.frames++
		if est.Held {
			sum.held++
		}
		if len(hits) > 0 {
			sum.hitFrames++
		}
		sum.last = est
	}

	if err := w.Flush(); err != nil {
		return sum, fmt.Errorf("write results: %w", err)
	}
	return sum, nil
}

// writeDebug writes one diagnostic line per frame.
func writeDebug(w io.Writer, n int, est tracker.Estimate, sc *scene.Scene, hits []scene.Target) {
	f := est.Frame
	fmt.Fprintf(w, "frame %d t=%.5f left=%v%v right=%v%v combined=%v%v\n",
		n, f.Time, f.Left.Origin, f.Left.Direction, f.Right.Origin, f.Right.Direction,
		f.Combined.Origin, f.Combined.Direction)

	if in := est.Intersection; in.Defined() {
		fmt.Fprintf(w, "\tintersection=%v t1=%.5f t2=%.5f dist=%.5f\n", in.Point, in.T1, in.T2, est.IntersectionDistance)
	} else {
		fmt.Fprintf(w, "\tintersection undefined (%v) dist=%.5f\n", in.Err, est.IntersectionDistance)
	}
	if cp := est.Closest; cp.Defined() {
		fmt.Fprintf(w, "\tclosest=%v t=%.5f s=%.5f gap=%.5f dist=%.5f\n", cp.Point, cp.T, cp.S, cp.Gap(), est.ClosestDistance)
	} else {
		fmt.Fprintf(w, "\tclosest undefined (%v) dist=%.5f\n", cp.Err, est.ClosestDistance)
	}
	fmt.Fprintf(w, "\tdet=%.3e\n", gaze.Determinant(f.Left, f.Right))
	if t, d, ok := sc.Nearest(est.Marker); ok {
		fmt.Fprintf(w, "\tnearest=%s surface=%.5f\n", t.Name, d)
	}
	fmt.Fprintf(w, "\tmarker=%v distance=%.5f held=%t hits=%v\n", est.Marker, est.Distance, est.Held, scene.Names(hits))
}

// plotConfig frames the eyes and the current marker. A positive scale
// overrides the fitted zoom.
func plotConfig(scale float64, fb *render.Framebuffer, opts options, est tracker.Estimate) render.PlotConfig {
	depth := 2.0
	if d := est.Distance; d > 0 && d < 10 {
		depth = d * 1.5
	}
	for _, t := range opts.scene.Targets {
		depth = max(depth, t.Center.Z+t.Radius)
	}
	if scale <= 0 && fb.Width > 0 && fb.Height > 0 {
		scale = 0.9 * min(float64(fb.Height)/depth, float64(fb.Width)/(2*depth))
	}
	origin := est.Frame.Combined.Origin
	if !origin.IsFinite() {
		origin = math3d.Zero3()
	}
	return render.PlotConfig{
		Scale:        scale,
		Center:       origin.Add(math3d.V3(0, 0, depth/2)),
		GridStep:     0.5,
		MarkerRadius: opts.markerRadius,
	}
}
