package mesh

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ungerik/go3d/float64/vec3"
)

var (
	// ErrTooFewTokens is wrapped by a FormatError when a v or f record is truncated.
	ErrTooFewTokens = errors.New("too few tokens")
	// ErrIndexOutOfRange marks a face referencing a vertex that does not exist.
	ErrIndexOutOfRange = errors.New("vertex index out of range")
)

// FormatError is the only error kind ParseOBJ returns. It covers truncated
// records, unparsable numbers and, in strict mode, out-of-range face indices.
type FormatError struct {
	Line   int    // 1-based line number
	Record string // "v" or "f"
	Token  string // offending token, empty when the record is too short
	Err    error
}

func (e *FormatError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("obj: line %d: bad %q record, token %q: %v", e.Line, e.Record, e.Token, e.Err)
	}
	return fmt.Sprintf("obj: line %d: bad %q record: %v", e.Line, e.Record, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Axis selects how source coordinates map onto mesh coordinates.
type Axis int

const (
	// AxisSwapYZ stores (x, z, y) for a source vertex (x, y, z). This is the default.
	AxisSwapYZ Axis = iota
	// AxisIdentity keeps source coordinates as they are.
	AxisIdentity
)

// FaceMode selects how f records with more than three references are read.
type FaceMode int

const (
	// FaceFirstTriangle uses the first three references of every face.
	FaceFirstTriangle FaceMode = iota
	// FaceFan triangulates n-gons as a fan around the first reference.
	FaceFan
)

type options struct {
	axis     Axis
	faceMode FaceMode
	strict   bool
}

// Option configures ParseOBJ.
type Option func(*options)

func WithAxis(a Axis) Option {
	return func(o *options) { o.axis = a }
}

func WithFaceMode(m FaceMode) Option {
	return func(o *options) { o.faceMode = m }
}

// WithStrictIndices makes the parser reject faces that reference missing vertices.
func WithStrictIndices(strict bool) Option {
	return func(o *options) { o.strict = strict }
}

// ReadOBJ reads all of r and parses it with ParseOBJ.
func ReadOBJ(r io.Reader, opts ...Option) (*Mesh, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read obj: %w", err)
	}
	return ParseOBJ(string(data), opts...)
}

// ParseOBJ converts OBJ text into a Mesh. Only v and f records are read;
// every other line is ignored. Any malformed v or f record fails the whole
// parse and no mesh is returned.
func ParseOBJ(text string, opts ...Option) (*Mesh, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	vertices := make([]vec3.T, 0, 256)
	triangles := make([]Triangle, 0, 256)
	var faceLines []int // only tracked in strict mode

	for i, line := range strings.Split(text, "\n") {
		lineNum := i + 1
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "v":
			v, err := parseVertex(fields, lineNum)
			if err != nil {
				return nil, err
			}
			if o.axis == AxisSwapYZ {
				v[1], v[2] = v[2], v[1]
			}
			vertices = append(vertices, v)
		case "f":
			tris, err := parseFace(fields, lineNum, o.faceMode)
			if err != nil {
				return nil, err
			}
			triangles = append(triangles, tris...)
			if o.strict {
				for range tris {
					faceLines = append(faceLines, lineNum)
				}
			}
		}
	}

	if o.strict {
		for i, t := range triangles {
			for _, idx := range t {
				if idx < 0 || idx >= len(vertices) {
					return nil, &FormatError{
						Line:   faceLines[i],
						Record: "f",
						Token:  strconv.Itoa(idx + 1),
						Err:    ErrIndexOutOfRange,
					}
				}
			}
		}
	}

	return New(vertices, triangles), nil
}

func parseVertex(fields []string, lineNum int) (vec3.T, error) {
	var v vec3.T
	if len(fields) < 4 {
		return v, &FormatError{Line: lineNum, Record: "v", Err: ErrTooFewTokens}
	}
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return v, &FormatError{Line: lineNum, Record: "v", Token: fields[i+1], Err: err}
		}
		v[i] = f
	}
	return v, nil
}

func parseFace(fields []string, lineNum int, mode FaceMode) ([]Triangle, error) {
	if len(fields) < 4 {
		return nil, &FormatError{Line: lineNum, Record: "f", Err: ErrTooFewTokens}
	}
	refs := fields[1:4]
	if mode == FaceFan {
		refs = fields[1:]
	}

	idx := make([]int, len(refs))
	for i, ref := range refs {
		// v, v/vt, v//vn, v/vt/vn: only the position index matters
		head, _, _ := strings.Cut(ref, "/")
		n, err := strconv.Atoi(head)
		if err != nil {
			return nil, &FormatError{Line: lineNum, Record: "f", Token: ref, Err: err}
		}
		idx[i] = n - 1
	}

	tris := make([]Triangle, 0, len(idx)-2)
	for i := 1; i < len(idx)-1; i++ {
		tris = append(tris, Triangle{idx[0], idx[i], idx[i+1]})
	}
	return tris, nil
}
