package scene

import (
	"fmt"

	"github.com/qmuntal/gltf"
	"github.com/taigrr/vergence/pkg/math3d"
)

// Load reads targets from a glTF or GLB file.
func Load(path string) (*Scene, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}
	s, err := FromDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// FromDocument builds a scene from a glTF document. Every node that
// references a mesh becomes a target centered at the node's world-space
// origin. The mesh is assumed to be a unit-diameter sphere, so the radius is
// half the largest world-space axis scale.
//
// Nodes are taken from the default scene, or from every root node when the
// document has no default scene.
func FromDocument(doc *gltf.Document) (*Scene, error) {
	roots, err := rootNodes(doc)
	if err != nil {
		return nil, err
	}

	s := &Scene{}
	visited := make([]bool, len(doc.Nodes))
	var walk func(idx int, parent math3d.Mat4) error
	walk = func(idx int, parent math3d.Mat4) error {
		if idx < 0 || idx >= len(doc.Nodes) {
			return fmt.Errorf("node index %d out of range", idx)
		}
		if visited[idx] {
			return fmt.Errorf("node %d reached twice", idx)
		}
		visited[idx] = true

		node := doc.Nodes[idx]
		world := parent.Mul(localTransform(node))

		if node.Mesh != nil {
			name := node.Name
			if name == "" {
				name = fmt.Sprintf("node%d", idx)
			}
			s.Targets = append(s.Targets, Target{
				Name:   name,
				Center: world.MulVec3(math3d.Zero3()),
				Radius: 0.5 * world.AxisScale().MaxComponent(),
			})
		}

		for _, child := range node.Children {
			if err := walk(child, world); err != nil {
				return err
			}
		}
		return nil
	}

	for _, idx := range roots {
		if err := walk(idx, math3d.Identity()); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// rootNodes returns the node indices to start traversal from.
func rootNodes(doc *gltf.Document) ([]int, error) {
	if doc.Scene != nil {
		i := *doc.Scene
		if i < 0 || i >= len(doc.Scenes) {
			return nil, fmt.Errorf("default scene %d out of range", i)
		}
		return doc.Scenes[i].Nodes, nil
	}

	isChild := make([]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			if c >= 0 && c < len(isChild) {
				isChild[c] = true
			}
		}
	}
	var roots []int
	for i := range doc.Nodes {
		if !isChild[i] {
			roots = append(roots, i)
		}
	}
	return roots, nil
}

// localTransform returns the node's matrix, or its TRS composition when no
// matrix is set.
func localTransform(n *gltf.Node) math3d.Mat4 {
	if m := math3d.Mat4(n.Matrix); m != (math3d.Mat4{}) && m != math3d.Identity() {
		return m
	}
	t := n.TranslationOrDefault()
	r := n.RotationOrDefault()
	s := n.ScaleOrDefault()
	return math3d.TRS(
		math3d.V3(t[0], t[1], t[2]),
		math3d.Quat(r[0], r[1], r[2], r[3]),
		math3d.V3(s[0], s[1], s[2]),
	)
}
