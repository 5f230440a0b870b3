package mesh

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/thisistherk/bvh/log"
	"github.com/thisistherk/bvh/types"
)

var logger = log.New("mesh")

// ReadFile parses a Wavefront OBJ file into a mesh.
func ReadFile(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return read(f, path)
}

// Read parses Wavefront OBJ data into a mesh.
func Read(r io.Reader) (*Mesh, error) {
	return read(r, "<stream>")
}

// Parse OBJ geometry. Only v and f directives contribute; faces with more
// than three corners are assumed convex and triangulated as a fan. Normals,
// uv coords, materials and object groups are skipped.
func read(r io.Reader, name string) (*Mesh, error) {
	start := time.Now()
	mesh := newMesh()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 512*1024), 512*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}

		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, emitError(name, lineNum, "unsupported syntax for vertex position; expected 3 coordinates; got %d", len(fields)-1)
			}

			var p types.Vec3
			for ii := 0; ii < 3; ii++ {
				val, err := strconv.ParseFloat(fields[ii+1], 32)
				if err != nil {
					return nil, emitError(name, lineNum, "could not parse vertex coordinate %q", fields[ii+1])
				}
				p[ii] = float32(val)
			}
			mesh.addVertex(p)
		case "f":
			if len(fields) < 4 {
				return nil, emitError(name, lineNum, "face needs at least 3 vertices; got %d", len(fields)-1)
			}

			i0, err := faceVertex(fields[1], mesh.Vertices())
			if err != nil {
				return nil, emitError(name, lineNum, "%s", err)
			}
			i1, err := faceVertex(fields[2], mesh.Vertices())
			if err != nil {
				return nil, emitError(name, lineNum, "%s", err)
			}

			// Assume convex faces so anything triangulates as a fan
			for ii := 3; ii < len(fields); ii++ {
				i2, err := faceVertex(fields[ii], mesh.Vertices())
				if err != nil {
					return nil, emitError(name, lineNum, "%s", err)
				}

				mesh.addTriangle(i0, i1, i2)
				i1 = i2
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("[%s] error: %s", name, err)
	}

	logger.Debugf(
		"parsed %d triangles (%d vertices) from %s in %d ms",
		mesh.Triangles(), mesh.Vertices(), name,
		time.Since(start).Nanoseconds()/1e6,
	)

	return mesh, nil
}

// Resolve one face corner to a 0-based vertex index. Corners may carry
// uv/normal references (v, v/vt, v//vn, v/vt/vn); only the position index is
// used. Negative indices count back from the vertices defined so far.
func faceVertex(field string, vertices uint32) (uint32, error) {
	posRef := field
	if cut := strings.IndexByte(field, '/'); cut != -1 {
		posRef = field[:cut]
	}

	idx, err := strconv.Atoi(posRef)
	if err != nil {
		return 0, fmt.Errorf("could not parse face vertex %q", field)
	}

	switch {
	case idx > 0 && uint32(idx) <= vertices:
		return uint32(idx - 1), nil
	case idx < 0 && uint32(-idx) <= vertices:
		return vertices - uint32(-idx), nil
	default:
		return 0, fmt.Errorf("face vertex %q out of range; %d vertices defined", field, vertices)
	}
}

// Generate an error message prefixed with the parse location.
func emitError(file string, line int, msgFormat string, args ...interface{}) error {
	return fmt.Errorf("[%s: %d] error: %s", file, line, fmt.Sprintf(msgFormat, args...))
}
