// Package scene holds the spherical targets a gaze marker is tested against.
package scene

import (
	"math"

	"github.com/taigrr/vergence/pkg/math3d"
)

// Target is a spherical object in the scene.
type Target struct {
	Name   string
	Center math3d.Vec3
	Radius float64
}

// Scene is an ordered set of targets.
type Scene struct {
	Targets []Target
}

// Overlapping returns the targets whose sphere touches or intersects the
// sphere at center with the given radius, in scene order.
func (s *Scene) Overlapping(center math3d.Vec3, radius float64) []Target {
	if !center.IsFinite() {
		return nil
	}
	var hits []Target
	for _, t := range s.Targets {
		if t.Center.Distance(center) <= t.Radius+radius {
			hits = append(hits, t)
		}
	}
	return hits
}

// Nearest returns the target whose surface is closest to p. The distance is
// negative when p lies inside the target. It returns false for an empty
// scene or a non-finite point.
func (s *Scene) Nearest(p math3d.Vec3) (Target, float64, bool) {
	if len(s.Targets) == 0 || !p.IsFinite() {
		return Target{}, math.NaN(), false
	}
	best := -1
	bestDist := math.Inf(1)
	for i, t := range s.Targets {
		if d := t.Center.Distance(p) - t.Radius; d < bestDist {
			best, bestDist = i, d
		}
	}
	return s.Targets[best], bestDist, true
}

// Names returns the names of ts.
func Names(ts []Target) []string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = t.Name
	}
	return names
}
