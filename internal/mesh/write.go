package mesh

import (
	"bufio"
	"fmt"
	"io"
)

// Write encodes m in the format accepted by Parse. Positions are written as
// they are stored; callers write camera-space meshes.
func Write(w io.Writer, m *Mesh) error {
	if len(m.Triangles)%3 != 0 {
		return fmt.Errorf("triangle index count %d is not a multiple of 3", len(m.Triangles))
	}

	bw := bufio.NewWriter(w)
	for i, v := range m.Vertices {
		r, g, b := 1.0, 1.0, 1.0
		if i < len(m.Colors) {
			c := m.Colors[i]
			r, g, b = float64(c.R)/255, float64(c.G)/255, float64(c.B)/255
		}
		fmt.Fprintf(bw, "v %g %g %g %g %g %g\n", v.X, v.Y, v.Z, r, g, b)
	}
	for i := 0; i < len(m.Triangles); i += 3 {
		a, b, c := m.Triangles[i]+1, m.Triangles[i+1]+1, m.Triangles[i+2]+1
		fmt.Fprintf(bw, "f %d//%d %d//%d %d//%d\n", a, a, b, b, c, c)
	}
	return bw.Flush()
}
