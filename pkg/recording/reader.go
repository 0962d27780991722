// Package recording reads eye tracker captures and writes vergence results
// as CSV.
package recording

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/taigrr/vergence/pkg/gaze"
	"github.com/taigrr/vergence/pkg/math3d"
	"github.com/taigrr/vergence/pkg/tracker"
)

// FrameHeader lists the columns of a capture, in order.
var FrameHeader = []string{
	"time",
	"lox", "loy", "loz", "ldx", "ldy", "ldz",
	"rox", "roy", "roz", "rdx", "rdy", "rdz",
	"cox", "coy", "coz", "cdx", "cdy", "cdz",
}

var (
	// ErrHeader is returned when a capture does not start with FrameHeader.
	ErrHeader = errors.New("recording: unexpected header")
	// ErrMalformedRow is returned for a row that cannot be parsed.
	ErrMalformedRow = errors.New("recording: malformed row")
)

// Reader reads frames from a CSV capture.
type Reader struct {
	csv    *csv.Reader
	line   int
	header bool
}

// NewReader creates a Reader. Lines starting with '#' are ignored.
func NewReader(r io.Reader) *Reader {
	c := csv.NewReader(r)
	c.Comment = '#'
	c.FieldsPerRecord = -1
	c.TrimLeadingSpace = true
	c.ReuseRecord = true
	return &Reader{csv: c}
}

// Next returns the next frame, or io.EOF after the last one.
func (r *Reader) Next() (tracker.Frame, error) {
	if !r.header {
		rec, err := r.read()
		if err == io.EOF {
			return tracker.Frame{}, fmt.Errorf("empty capture: %w", ErrHeader)
		}
		if err != nil {
			return tracker.Frame{}, err
		}
		if !equalFold(rec, FrameHeader) {
			return tracker.Frame{}, fmt.Errorf("line %d: got %q: %w", r.line, strings.Join(rec, ","), ErrHeader)
		}
		r.header = true
	}

	rec, err := r.read()
	if err != nil {
		return tracker.Frame{}, err
	}
	if len(rec) != len(FrameHeader) {
		return tracker.Frame{}, fmt.Errorf("line %d: %d fields, want %d: %w", r.line, len(rec), len(FrameHeader), ErrMalformedRow)
	}

	var v [19]float64
	for i, field := range rec {
		f, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return tracker.Frame{}, fmt.Errorf("line %d: column %s: %w: %w", r.line, FrameHeader[i], ErrMalformedRow, err)
		}
		v[i] = f
	}

	ray := func(i int) gaze.Ray {
		return gaze.NewRay(math3d.V3(v[i], v[i+1], v[i+2]), math3d.V3(v[i+3], v[i+4], v[i+5]))
	}
	return tracker.Frame{
		Time:     v[0],
		Left:     ray(1),
		Right:    ray(7),
		Combined: ray(13),
	}, nil
}

// ReadAll reads every remaining frame.
func (r *Reader) ReadAll() ([]tracker.Frame, error) {
	var frames []tracker.Frame
	for {
		f, err := r.Next()
		if err == io.EOF {
			return frames, nil
		}
		if err != nil {
			return frames, err
		}
		frames = append(frames, f)
	}
}

func (r *Reader) read() ([]string, error) {
	rec, err := r.csv.Read()
	if err != nil {
		return nil, err
	}
	r.line, _ = r.csv.FieldPos(0)
	return rec, nil
}

func equalFold(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(strings.TrimSpace(a[i]), b[i]) {
			return false
		}
	}
	return true
}
