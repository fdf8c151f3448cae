package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"compare-backend/internal/matrix"
)

// CreatedDateLayout renders object creation times in tabular exports (UTC).
const CreatedDateLayout = "2006-01-02 15:04:05"

var fixedColumns = []string{"Object Name", "Brand", "Image URL", "Created Date"}

// ToTabular flattens the matrix into a header row followed by one row per object.
// Field columns follow the fixed columns in display order; missing values are empty.
func ToTabular(m matrix.Matrix) [][]string {
	header := make([]string, 0, len(fixedColumns)+len(m.Fields))
	header = append(header, fixedColumns...)
	for _, f := range m.Fields {
		header = append(header, f.Name)
	}

	out := make([][]string, 0, len(m.Objects)+1)
	out = append(out, header)
	for _, row := range m.Rows() {
		record := make([]string, 0, len(header))
		record = append(record,
			row.Object.Name,
			row.Object.Brand,
			row.Object.ImageURL,
			formatCreated(row.Object.CreatedAt),
		)
		record = append(record, row.Cells...)
		out = append(out, record)
	}
	return out
}

// WriteCSV writes the tabular form with standard CSV quoting.
func WriteCSV(w io.Writer, m matrix.Matrix) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(ToTabular(m)); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func formatCreated(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(CreatedDateLayout)
}
