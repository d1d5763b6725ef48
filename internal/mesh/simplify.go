package mesh

import (
	"github.com/fogleman/simplify"
	"github.com/ungerik/go3d/float64/vec3"
)

// Simplify decimates m to roughly factor of its triangle count using quadric
// edge collapse. Vertices that end up at the same position are shared again
// in the result. Triangles with out-of-range indices are dropped.
func Simplify(m *Mesh, factor float64) *Mesh {
	if factor >= 1 || len(m.Triangles) == 0 {
		return New(append([]vec3.T(nil), m.Vertices...), append([]Triangle(nil), m.Triangles...))
	}

	triangles := make([]*simplify.Triangle, 0, len(m.Triangles))
	for _, t := range m.Triangles {
		if !m.inRange(t) {
			continue
		}
		triangles = append(triangles, simplify.NewTriangle(
			toSimplify(m.Vertices[t[0]]),
			toSimplify(m.Vertices[t[1]]),
			toSimplify(m.Vertices[t[2]]),
		))
	}
	reduced := simplify.NewMesh(triangles).Simplify(factor)

	index := make(map[simplify.Vector]int)
	vertices := make([]vec3.T, 0, len(reduced.Triangles)*3/2)
	lookup := func(v simplify.Vector) int {
		if i, ok := index[v]; ok {
			return i
		}
		i := len(vertices)
		index[v] = i
		vertices = append(vertices, vec3.T{v.X, v.Y, v.Z})
		return i
	}

	out := make([]Triangle, 0, len(reduced.Triangles))
	for _, t := range reduced.Triangles {
		out = append(out, Triangle{lookup(t.V1), lookup(t.V2), lookup(t.V3)})
	}
	return New(vertices, out)
}

func toSimplify(v vec3.T) simplify.Vector {
	return simplify.Vector{X: v[0], Y: v[1], Z: v[2]}
}
