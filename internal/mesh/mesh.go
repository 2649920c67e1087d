// Package mesh reads and writes the text mesh files produced by scan
// reconstruction and maps them into the consumer's coordinate space.
//
// The format is line oriented:
//
//	v x y z r g b      vertex position and colour (colour components in [0,1])
//	f a//n b//n c//n   triangle, 1-based vertex indices
//
// Other lines (comments, normals, texture coordinates, groups) are ignored.
package mesh

import (
	"bufio"
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// EngineScale converts reconstruction units (metres) into consumer units.
const EngineScale = 150.0

// ErrMalformed is returned for lines that cannot be parsed.
var ErrMalformed = errors.New("malformed mesh line")

// Mesh is an indexed triangle mesh with one colour per vertex.
type Mesh struct {
	Vertices  []r3.Vec
	Triangles []int32 // three entries per triangle, 0-based
	Colors    []color.RGBA
}

// Parse reads a mesh in camera space. Positions are returned exactly as
// written in the file; use Center and ToEngineSpace to place it.
func Parse(r io.Reader) (*Mesh, error) {
	m := &Mesh{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if len(line) < 2 {
			continue
		}
		switch {
		case line[0] == 'v' && line[1] == ' ':
			if err := m.parseVertex(line); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
		case line[0] == 'f' && line[1] == ' ':
			if err := m.parseFace(line); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read mesh: %w", err)
	}

	for i, idx := range m.Triangles {
		if int(idx) >= len(m.Vertices) {
			return nil, fmt.Errorf("triangle %d references vertex %d of %d: %w",
				i/3, idx+1, len(m.Vertices), ErrMalformed)
		}
	}
	return m, nil
}

func (m *Mesh) parseVertex(line string) error {
	tokens := strings.Fields(line)
	if len(tokens) < 4 {
		return fmt.Errorf("vertex needs at least 3 coordinates: %w", ErrMalformed)
	}

	var vals [6]float64
	// Vertices without colour are white.
	vals[3], vals[4], vals[5] = 1, 1, 1
	for i := 1; i < len(tokens) && i <= 6; i++ {
		f, err := strconv.ParseFloat(tokens[i], 64)
		if err != nil {
			return fmt.Errorf("vertex field %d %q: %w", i, tokens[i], ErrMalformed)
		}
		vals[i-1] = f
	}

	m.Vertices = append(m.Vertices, r3.Vec{X: vals[0], Y: vals[1], Z: vals[2]})
	m.Colors = append(m.Colors, color.RGBA{
		R: unitToByte(vals[3]),
		G: unitToByte(vals[4]),
		B: unitToByte(vals[5]),
		A: 255,
	})
	return nil
}

func (m *Mesh) parseFace(line string) error {
	tokens := strings.Fields(line)
	if len(tokens) < 4 {
		return fmt.Errorf("face needs 3 vertices: %w", ErrMalformed)
	}
	for _, tok := range tokens[1:4] {
		ref, _, _ := strings.Cut(tok, "/")
		idx, err := strconv.ParseInt(ref, 10, 32)
		if err != nil || idx < 1 {
			return fmt.Errorf("face index %q: %w", tok, ErrMalformed)
		}
		m.Triangles = append(m.Triangles, int32(idx-1))
	}
	return nil
}

func unitToByte(c float64) uint8 {
	if c <= 0 {
		return 0
	}
	if c >= 1 {
		return 255
	}
	// The epsilon keeps values written as n/255 from truncating to n-1.
	return uint8(c*255 + 1e-9)
}

// Centroid returns the arithmetic mean of all vertex positions.
func (m *Mesh) Centroid() r3.Vec {
	var sum r3.Vec
	if len(m.Vertices) == 0 {
		return sum
	}
	for _, v := range m.Vertices {
		sum = r3.Add(sum, v)
	}
	return r3.Scale(1/float64(len(m.Vertices)), sum)
}

// Center moves the mesh so its centroid is at the origin and returns the
// centroid that was removed.
func (m *Mesh) Center() r3.Vec {
	c := m.Centroid()
	for i, v := range m.Vertices {
		m.Vertices[i] = r3.Sub(v, c)
	}
	return c
}

// ToEngineSpace scales every vertex by EngineScale and converts it from
// camera axes to engine axes.
func (m *Mesh) ToEngineSpace() {
	for i, v := range m.Vertices {
		m.Vertices[i] = r3.Scale(EngineScale, CameraToEngine(v))
	}
}

// CameraToEngine converts a camera-space vector (x right, y up, z forward)
// to engine space (X forward, Y right, Z up).
func CameraToEngine(v r3.Vec) r3.Vec {
	return r3.Vec{X: v.Z, Y: v.X, Z: v.Y}
}

// Bounds returns the component-wise minimum and maximum vertex positions.
func (m *Mesh) Bounds() (lo, hi r3.Vec) {
	if len(m.Vertices) == 0 {
		return lo, hi
	}
	lo, hi = m.Vertices[0], m.Vertices[0]
	for _, v := range m.Vertices[1:] {
		lo = r3.Vec{X: min(lo.X, v.X), Y: min(lo.Y, v.Y), Z: min(lo.Z, v.Z)}
		hi = r3.Vec{X: max(hi.X, v.X), Y: max(hi.Y, v.Y), Z: max(hi.Z, v.Z)}
	}
	return lo, hi
}

// ReadScan parses a reconstructed scan and prepares it for display:
// centred on its centroid, scaled and converted to engine axes.
func ReadScan(r io.Reader) (*Mesh, error) {
	m, err := Parse(r)
	if err != nil {
		return nil, err
	}
	m.Center()
	m.ToEngineSpace()
	return m, nil
}

// Load opens filename and reads it with ReadScan.
func Load(filename string) (*Mesh, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open mesh: %w", err)
	}
	defer f.Close()

	m, err := ReadScan(f)
	if err != nil {
		return nil, fmt.Errorf("load mesh %s: %w", filename, err)
	}
	return m, nil
}
