package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"compare-backend/internal/matrix"
)

// Document is the structured export of one analysis.
type Document struct {
	Analysis AnalysisDoc `json:"analysis" yaml:"analysis"`
	Fields   []FieldDoc  `json:"fields" yaml:"fields"`
	Objects  []ObjectDoc `json:"objects" yaml:"objects"`
}

type AnalysisDoc struct {
	ID          int64     `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	Category    string    `json:"category" yaml:"category"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
}

type FieldDoc struct {
	ID       int64  `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"`
	Unit     string `json:"unit" yaml:"unit"`
	Required bool   `json:"required" yaml:"required"`
	Order    int    `json:"order" yaml:"order"`
}

// ObjectDoc carries every field of the analysis in FieldValues, keyed by field name.
type ObjectDoc struct {
	ID          int64             `json:"id" yaml:"id"`
	Name        string            `json:"name" yaml:"name"`
	Brand       string            `json:"brand" yaml:"brand"`
	ImageURL    string            `json:"image_url" yaml:"image_url"`
	CreatedAt   time.Time         `json:"created_at" yaml:"created_at"`
	FieldValues map[string]string `json:"field_values" yaml:"field_values"`
}

// ToStructured converts the matrix into a Document. Objects and fields keep matrix
// order. When two fields share a name the later one in display order wins.
func ToStructured(m matrix.Matrix) Document {
	doc := Document{
		Analysis: AnalysisDoc{
			ID:          m.Analysis.ID,
			Name:        m.Analysis.Name,
			Description: m.Analysis.Description,
			Category:    m.Analysis.Category,
			CreatedAt:   m.Analysis.CreatedAt.UTC(),
			UpdatedAt:   m.Analysis.UpdatedAt.UTC(),
		},
		Fields:  make([]FieldDoc, 0, len(m.Fields)),
		Objects: make([]ObjectDoc, 0, len(m.Objects)),
	}
	for _, f := range m.Fields {
		doc.Fields = append(doc.Fields, FieldDoc{
			ID:       f.ID,
			Name:     f.Name,
			Type:     string(f.Type),
			Unit:     f.Unit,
			Required: f.Required,
			Order:    f.DisplayOrder,
		})
	}
	for _, row := range m.Rows() {
		values := make(map[string]string, len(m.Fields))
		for i, f := range m.Fields {
			values[f.Name] = row.Cells[i]
		}
		doc.Objects = append(doc.Objects, ObjectDoc{
			ID:          row.Object.ID,
			Name:        row.Object.Name,
			Brand:       row.Object.Brand,
			ImageURL:    row.Object.ImageURL,
			CreatedAt:   row.Object.CreatedAt.UTC(),
			FieldValues: values,
		})
	}
	return doc
}

// WriteJSON writes the structured document as indented JSON.
func WriteJSON(w io.Writer, m matrix.Matrix) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ToStructured(m)); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

// WriteYAML writes the structured document as YAML.
func WriteYAML(w io.Writer, m matrix.Matrix) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(ToStructured(m)); err != nil {
		return fmt.Errorf("write yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("write yaml: %w", err)
	}
	return nil
}

// Write renders the matrix in the given format.
func Write(w io.Writer, m matrix.Matrix, f Format) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, m)
	case FormatYAML:
		return WriteYAML(w, m)
	case FormatCSV:
		return WriteCSV(w, m)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}
