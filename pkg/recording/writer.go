package recording

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/taigrr/vergence/pkg/math3d"
	"github.com/taigrr/vergence/pkg/tracker"
)

// ResultHeader lists the columns written by Writer, in order.
var ResultHeader = []string{
	"time",
	"ix", "iy", "iz", "it1", "it2", "idist",
	"cx", "cy", "cz", "ct", "cs", "cgap", "cdist",
	"distance", "mx", "my", "mz", "held", "hits",
}

// Writer writes vergence estimates as CSV.
type Writer struct {
	csv    *csv.Writer
	header bool
	rec    []string
}

// NewWriter creates a Writer. The header is written before the first row.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		csv: csv.NewWriter(w),
		rec: make([]string, 0, len(ResultHeader)),
	}
}

func (w *Writer) writeHeader() error {
	if w.header {
		return nil
	}
	if err := w.csv.Write(ResultHeader); err != nil {
		return err
	}
	w.header = true
	return nil
}

// Write writes one estimate and the names of the targets its marker hits.
func (w *Writer) Write(est tracker.Estimate, hits []string) error {
	if err := w.writeHeader(); err != nil {
		return err
	}

	in, cp := est.Intersection, est.Closest
	rec := w.rec[:0]
	rec = append(rec, formatFloat(est.Frame.Time))
	rec = appendVec(rec, in.Point)
	rec = append(rec, formatFloat(in.T1), formatFloat(in.T2), formatFloat(est.IntersectionDistance))
	rec = appendVec(rec, cp.Point)
	rec = append(rec, formatFloat(cp.T), formatFloat(cp.S), formatFloat(cp.Gap()), formatFloat(est.ClosestDistance))
	rec = append(rec, formatFloat(est.Distance))
	rec = appendVec(rec, est.Marker)
	rec = append(rec, strconv.FormatBool(est.Held), strings.Join(hits, ";"))
	w.rec = rec

	return w.csv.Write(rec)
}

// Flush writes buffered rows and reports any write error. The header is
// written even when no rows were.
func (w *Writer) Flush() error {
	if err := w.writeHeader(); err != nil {
		return err
	}
	w.csv.Flush()
	return w.csv.Error()
}

func appendVec(rec []string, v math3d.Vec3) []string {
	return append(rec, formatFloat(v.X), formatFloat(v.Y), formatFloat(v.Z))
}

// formatFloat writes five decimals; NaN is written as "NaN".
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 5, 64)
}
