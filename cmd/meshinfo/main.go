// Command meshinfo prints a summary of a saved scan mesh.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/depthscan/internal/mesh"
)

var (
	raw = flag.Bool("raw", false, "Report camera-space coordinates instead of engine space")
)

func summarize(w io.Writer, name string, m *mesh.Mesh) {
	lo, hi := m.Bounds()
	c := m.Centroid()
	fmt.Fprintf(w, "%s\n", name)
	fmt.Fprintf(w, "  vertices:  %d\n", len(m.Vertices))
	fmt.Fprintf(w, "  triangles: %d\n", len(m.Triangles)/3)
	fmt.Fprintf(w, "  bounds:    (%.3f, %.3f, %.3f) .. (%.3f, %.3f, %.3f)\n", lo.X, lo.Y, lo.Z, hi.X, hi.Y, hi.Z)
	fmt.Fprintf(w, "  centroid:  (%.3f, %.3f, %.3f)\n", c.X, c.Y, c.Z)
}

func readMesh(path string, raw bool) (*mesh.Mesh, error) {
	if !raw {
		return mesh.Load(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return mesh.Parse(f)
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: meshinfo [-raw] scan.obj...\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	failed := false
	for _, path := range flag.Args() {
		m, err := readMesh(path, *raw)
		if err != nil {
			log.Printf("%s: %v", path, err)
			failed = true
			continue
		}
		summarize(os.Stdout, path, m)
	}
	if failed {
		os.Exit(1)
	}
}
