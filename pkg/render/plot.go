package render

import (
	"math"

	"github.com/taigrr/vergence/pkg/gaze"
	"github.com/taigrr/vergence/pkg/math3d"
	"github.com/taigrr/vergence/pkg/scene"
	"github.com/taigrr/vergence/pkg/tracker"
)

// DefaultPlotScale is the default zoom in pixels per meter.
const DefaultPlotScale = 20

// PlotConfig configures the mapping from world space to the framebuffer.
type PlotConfig struct {
	// Scale is the number of pixels per meter. Zero selects
	// DefaultPlotScale.
	Scale float64
	// Center is the world point drawn at the middle of the framebuffer.
	// Only X and Z are used.
	Center math3d.Vec3
	// GridStep is the spacing of grid lines in meters. Zero disables the
	// grid.
	GridStep float64
	// MarkerRadius is the radius of the marker sphere in meters.
	MarkerRadius float64
}

// Plot draws a top-down view of the XZ plane: +X to the right and +Z
// (forward) toward the top of the framebuffer. Y is ignored.
type Plot struct {
	fb  *Framebuffer
	cfg PlotConfig
}

// NewPlot creates a plot over fb.
func NewPlot(fb *Framebuffer, cfg PlotConfig) *Plot {
	if cfg.Scale <= 0 {
		cfg.Scale = DefaultPlotScale
	}
	return &Plot{fb: fb, cfg: cfg}
}

// Framebuffer returns the target framebuffer.
func (p *Plot) Framebuffer() *Framebuffer {
	return p.fb
}

// Project maps a world point to pixel coordinates. It returns false for a
// non-finite point.
func (p *Plot) Project(v math3d.Vec3) (int, int, bool) {
	if !v.IsFinite() {
		return 0, 0, false
	}
	x := float64(p.fb.Width)/2 + (v.X-p.cfg.Center.X)*p.cfg.Scale
	y := float64(p.fb.Height)/2 - (v.Z-p.cfg.Center.Z)*p.cfg.Scale
	return int(math.Round(x)), int(math.Round(y)), true
}

// DrawSegment draws a line between two world points.
func (p *Plot) DrawSegment(a, b math3d.Vec3, c Color) {
	x0, y0, ok0 := p.Project(a)
	x1, y1, ok1 := p.Project(b)
	if !ok0 || !ok1 {
		return
	}
	// Keep Bresenham bounded for points far off screen.
	limit := 4 * (p.fb.Width + p.fb.Height)
	if abs(x0) > limit || abs(y0) > limit || abs(x1) > limit || abs(y1) > limit {
		return
	}
	p.fb.DrawLine(x0, y0, x1, y1, c)
}

// DrawRay draws length meters of a gaze ray from its origin.
func (p *Plot) DrawRay(r gaze.Ray, length float64, c Color) {
	if !r.Valid() {
		return
	}
	p.DrawSegment(r.Origin, r.At(length), c)
}

// DrawCross draws a point as a small cross of the given size in pixels.
func (p *Plot) DrawCross(v math3d.Vec3, size int, c Color) {
	x, y, ok := p.Project(v)
	if !ok {
		return
	}
	p.fb.DrawLine(x-size, y, x+size, y, c)
	p.fb.DrawLine(x, y-size, x, y+size, c)
}

// DrawSphere draws the XZ outline of a sphere.
func (p *Plot) DrawSphere(center math3d.Vec3, radius float64, c Color) {
	x, y, ok := p.Project(center)
	if !ok {
		return
	}
	p.fb.DrawCircle(x, y, int(math.Round(radius*p.cfg.Scale)), c)
}

// DrawGrid draws grid lines every step meters across the visible area.
func (p *Plot) DrawGrid(step float64, c Color) {
	if step <= 0 {
		return
	}
	halfW := float64(p.fb.Width) / 2 / p.cfg.Scale
	halfH := float64(p.fb.Height) / 2 / p.cfg.Scale
	minX, maxX := p.cfg.Center.X-halfW, p.cfg.Center.X+halfW
	minZ, maxZ := p.cfg.Center.Z-halfH, p.cfg.Center.Z+halfH

	for x := math.Ceil(minX/step) * step; x <= maxX; x += step {
		p.DrawSegment(math3d.V3(x, 0, minZ), math3d.V3(x, 0, maxZ), c)
	}
	for z := math.Ceil(minZ/step) * step; z <= maxZ; z += step {
		p.DrawSegment(math3d.V3(minX, 0, z), math3d.V3(maxX, 0, z), c)
	}
}

// DrawEstimate draws one vergence estimate over the scene targets. Targets
// listed in hits are highlighted.
func (p *Plot) DrawEstimate(est tracker.Estimate, targets []scene.Target, hits []scene.Target) {
	p.fb.Clear(ColorBackground)
	p.DrawGrid(p.cfg.GridStep, ColorGrid)

	hit := make(map[string]bool, len(hits))
	for _, t := range hits {
		hit[t.Name] = true
	}
	for _, t := range targets {
		c := ColorTarget
		if hit[t.Name] {
			c = ColorTargetHit
		}
		p.DrawSphere(t.Center, t.Radius, c)
	}

	length := math.Max(est.Distance*1.25, 0.5)
	if math.IsNaN(length) {
		length = tracker.DefaultInitialDistance
	}
	f := est.Frame
	p.DrawRay(f.Left, length, ColorLeftEye)
	p.DrawRay(f.Right, length, ColorRightEye)
	p.DrawRay(f.Combined, length, ColorCombined)

	if est.Closest.Defined() {
		p.DrawSegment(est.Closest.OnFirst, est.Closest.OnSecond, ColorClosest)
		p.DrawCross(est.Closest.Point, 1, ColorClosest)
	}
	if est.Intersection.Defined() {
		p.DrawCross(est.Intersection.Point, 2, ColorIntersect)
	}
	p.DrawSphere(est.Marker, p.cfg.MarkerRadius, ColorMarker)
}
