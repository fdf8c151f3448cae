package matrix

import (
	"context"
	"sort"

	"compare-backend/internal/analyses"
)

// Matrix is the dense objects-by-fields view of one analysis.
type Matrix struct {
	Analysis analyses.Analysis          `json:"analysis"`
	Fields   []analyses.Field           `json:"fields"`
	Objects  []analyses.Object          `json:"objects"`
	Cells    map[int64]map[int64]string `json:"cells"`

	stored map[int64]map[int64]bool
}

// Row is one object with its cells in field display order.
type Row struct {
	Object analyses.Object
	Cells  []string
}

// Assemble builds a matrix from already loaded records. Fields are ordered by
// display_order then id, objects newest first. Every object gets an entry for every
// field; a field without a stored value reads as "". Values pointing at an object or
// field outside the analysis are ignored.
func Assemble(a analyses.Analysis, fields []analyses.Field, objects []analyses.Object, values []analyses.Value) Matrix {
	m := Matrix{
		Analysis: a,
		Fields:   append([]analyses.Field(nil), fields...),
		Objects:  append([]analyses.Object(nil), objects...),
		Cells:    make(map[int64]map[int64]string, len(objects)),
		stored:   make(map[int64]map[int64]bool, len(objects)),
	}
	sort.SliceStable(m.Fields, func(i, j int) bool {
		if m.Fields[i].DisplayOrder != m.Fields[j].DisplayOrder {
			return m.Fields[i].DisplayOrder < m.Fields[j].DisplayOrder
		}
		return m.Fields[i].ID < m.Fields[j].ID
	})
	sort.SliceStable(m.Objects, func(i, j int) bool {
		if !m.Objects[i].CreatedAt.Equal(m.Objects[j].CreatedAt) {
			return m.Objects[i].CreatedAt.After(m.Objects[j].CreatedAt)
		}
		return m.Objects[i].ID > m.Objects[j].ID
	})

	for _, o := range m.Objects {
		row := make(map[int64]string, len(m.Fields))
		for _, f := range m.Fields {
			row[f.ID] = ""
		}
		m.Cells[o.ID] = row
		m.stored[o.ID] = make(map[int64]bool)
	}
	for _, v := range values {
		row, ok := m.Cells[v.ObjectID]
		if !ok {
			continue
		}
		if _, ok := row[v.FieldID]; !ok {
			continue
		}
		row[v.FieldID] = v.Value
		m.stored[v.ObjectID][v.FieldID] = true
	}
	return m
}

// Cell returns the value at (objectID, fieldID), or "" when absent.
func (m Matrix) Cell(objectID, fieldID int64) string {
	return m.Cells[objectID][fieldID]
}

// Stored reports whether the cell is backed by a stored value row, even an empty one.
func (m Matrix) Stored(objectID, fieldID int64) bool {
	return m.stored[objectID][fieldID]
}

// Rows returns the objects in matrix order with cells aligned to Fields.
func (m Matrix) Rows() []Row {
	rows := make([]Row, 0, len(m.Objects))
	for _, o := range m.Objects {
		cells := make([]string, len(m.Fields))
		for i, f := range m.Fields {
			cells[i] = m.Cell(o.ID, f.ID)
		}
		rows = append(rows, Row{Object: o, Cells: cells})
	}
	return rows
}

// Builder loads matrices from storage.
type Builder struct {
	Repo analyses.Repo
}

// NewBuilder constructs a Builder.
func NewBuilder(repo analyses.Repo) *Builder {
	return &Builder{Repo: repo}
}

// Build reads the analysis, its fields, objects and values in one atomic read and
// assembles the matrix. It returns analyses.ErrNotFound when the analysis is missing.
func (b *Builder) Build(ctx context.Context, analysisID int64) (Matrix, error) {
	var m Matrix
	err := b.Repo.Atomic(ctx, func(ctx context.Context, st analyses.Store) error {
		a, err := st.GetAnalysis(ctx, analysisID)
		if err != nil {
			return err
		}
		fields, err := st.ListFields(ctx, analysisID)
		if err != nil {
			return err
		}
		objects, err := st.ListObjects(ctx, analysisID)
		if err != nil {
			return err
		}
		values, err := st.ListValuesByAnalysis(ctx, analysisID)
		if err != nil {
			return err
		}
		m = Assemble(a, fields, objects, values)
		return nil
	})
	if err != nil {
		return Matrix{}, analyses.WrapStorage("build matrix", err)
	}
	return m, nil
}
