package analyses

import (
	"context"
	"strings"
	"time"

	"compare-backend/internal/shared/metrics"
	"compare-backend/internal/shared/telemetry"
)

const (
	searchLimit      = 10
	dashboardRecent  = 6
	duplicateSuffix  = " (Copy)"
	defaultFieldType = FieldTypeText
)

// AnalysisInput carries the mutable attributes of an analysis.
type AnalysisInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// FieldInput describes a field to add to an analysis.
type FieldInput struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Unit     string    `json:"unit"`
	Required bool      `json:"required"`
}

// ObjectInput carries an object's attributes and its submitted values keyed by field id.
type ObjectInput struct {
	Name     string           `json:"name"`
	Brand    string           `json:"brand"`
	ImageURL string           `json:"imageUrl"`
	Values   map[int64]string `json:"values"`
}

// Service contains the business rules for analyses, their schema and their objects.
type Service struct {
	Repo  Repo
	Types TypeSet
	Now   func() time.Time
}

// NewService constructs a Service recognizing the given field types.
func NewService(repo Repo, types TypeSet) *Service {
	return &Service{Repo: repo, Types: types}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// FieldTypes lists the field types this service accepts.
func (s *Service) FieldTypes() []FieldTypeOption {
	return s.Types.Options()
}

// CreateAnalysis stores a new analysis.
func (s *Service) CreateAnalysis(ctx context.Context, in AnalysisInput) (Analysis, error) {
	in = in.normalized()
	if in.Name == "" {
		return Analysis{}, invalid("name", "analysis name is required")
	}
	now := s.now()
	a := Analysis{
		Name:        in.Name,
		Description: in.Description,
		Category:    in.Category,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Repo.InsertAnalysis(ctx, &a); err != nil {
		return Analysis{}, WrapStorage("create analysis", err)
	}
	return a, nil
}

// GetAnalysis returns one analysis.
func (s *Service) GetAnalysis(ctx context.Context, id int64) (Analysis, error) {
	a, err := s.Repo.GetAnalysis(ctx, id)
	if err != nil {
		return Analysis{}, WrapStorage("get analysis", err)
	}
	return a, nil
}

// ListAnalyses returns every analysis, newest first, with object counts.
func (s *Service) ListAnalyses(ctx context.Context) ([]AnalysisSummary, error) {
	list, err := s.Repo.ListAnalyses(ctx, 0)
	if err != nil {
		return nil, WrapStorage("list analyses", err)
	}
	return list, nil
}

// UpdateAnalysis overwrites name, description and category.
func (s *Service) UpdateAnalysis(ctx context.Context, id int64, in AnalysisInput) (Analysis, error) {
	in = in.normalized()
	if in.Name == "" {
		return Analysis{}, invalid("name", "analysis name is required")
	}
	var updated Analysis
	err := s.Repo.Atomic(ctx, func(ctx context.Context, st Store) error {
		current, err := st.GetAnalysis(ctx, id)
		if err != nil {
			return err
		}
		current.Name = in.Name
		current.Description = in.Description
		current.Category = in.Category
		current.UpdatedAt = s.now()
		if err := st.UpdateAnalysis(ctx, current); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return Analysis{}, WrapStorage("update analysis", err)
	}
	return updated, nil
}

// DeleteAnalysis removes the analysis with all of its values, objects and fields in one unit.
func (s *Service) DeleteAnalysis(ctx context.Context, id int64) error {
	err := s.Repo.Atomic(ctx, func(ctx context.Context, st Store) error {
		if _, err := st.GetAnalysis(ctx, id); err != nil {
			return err
		}
		if err := st.DeleteValuesByAnalysis(ctx, id); err != nil {
			return err
		}
		if err := st.DeleteObjectsByAnalysis(ctx, id); err != nil {
			return err
		}
		if err := st.DeleteFieldsByAnalysis(ctx, id); err != nil {
			return err
		}
		return st.DeleteAnalysis(ctx, id)
	})
	metrics.IncCascade("delete_analysis", err)
	if err != nil {
		return WrapStorage("delete analysis", err)
	}
	telemetry.Info("analysis.deleted", map[string]any{"analysis_id": id})
	return nil
}

// DuplicateAnalysis deep-copies an analysis. Every field, object and value gets a new
// identity; values are re-pointed through the old-to-new id maps built during the copy.
func (s *Service) DuplicateAnalysis(ctx context.Context, id int64) (Analysis, error) {
	var (
		dup     Analysis
		dropped int
	)
	err := s.Repo.Atomic(ctx, func(ctx context.Context, st Store) error {
		dropped = 0
		src, err := st.GetAnalysis(ctx, id)
		if err != nil {
			return err
		}
		now := s.now()
		dup = Analysis{
			Name:        src.Name + duplicateSuffix,
			Description: src.Description,
			Category:    src.Category,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := st.InsertAnalysis(ctx, &dup); err != nil {
			return err
		}

		fields, err := st.ListFields(ctx, src.ID)
		if err != nil {
			return err
		}
		fieldIDs := make(map[int64]int64, len(fields))
		for _, f := range fields {
			copied := f
			copied.ID = 0
			copied.AnalysisID = dup.ID
			if err := st.InsertField(ctx, &copied); err != nil {
				return err
			}
			fieldIDs[f.ID] = copied.ID
		}

		objects, err := st.ListObjects(ctx, src.ID)
		if err != nil {
			return err
		}
		values, err := st.ListValuesByAnalysis(ctx, src.ID)
		if err != nil {
			return err
		}
		byObject := make(map[int64][]Value, len(objects))
		for _, v := range values {
			byObject[v.ObjectID] = append(byObject[v.ObjectID], v)
		}

		// Oldest first so new ids ascend in the same order as the originals.
		objectIDs := make(map[int64]int64, len(objects))
		for i := len(objects) - 1; i >= 0; i-- {
			o := objects[i]
			copied := o
			copied.ID = 0
			copied.AnalysisID = dup.ID
			copied.UpdatedAt = now
			if err := st.InsertObject(ctx, &copied); err != nil {
				return err
			}
			objectIDs[o.ID] = copied.ID

			var remapped []Value
			for _, v := range byObject[o.ID] {
				newField, ok := fieldIDs[v.FieldID]
				if !ok {
					dropped++
					continue
				}
				remapped = append(remapped, Value{ObjectID: copied.ID, FieldID: newField, Value: v.Value})
			}
			if len(remapped) == 0 {
				continue
			}
			if err := st.ReplaceValues(ctx, copied.ID, remapped); err != nil {
				return err
			}
		}
		for objectID, vals := range byObject {
			if _, ok := objectIDs[objectID]; !ok {
				dropped += len(vals)
			}
		}
		return nil
	})
	metrics.IncCascade("duplicate_analysis", err)
	if err != nil {
		return Analysis{}, WrapStorage("duplicate analysis", err)
	}
	fields := map[string]any{"analysis_id": id, "copy_id": dup.ID}
	if dropped > 0 {
		fields["dropped_values"] = dropped
		telemetry.Warn("analysis.duplicated", fields)
	} else {
		telemetry.Info("analysis.duplicated", fields)
	}
	return dup, nil
}

// AddField appends a field after the current last column.
func (s *Service) AddField(ctx context.Context, analysisID int64, in FieldInput) (Field, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Field{}, invalid("name", "field name is required")
	}
	fieldType := FieldType(strings.ToLower(strings.TrimSpace(string(in.Type))))
	if fieldType == "" {
		fieldType = defaultFieldType
	}
	if !s.Types.Contains(fieldType) {
		return Field{}, invalid("type", "invalid field type")
	}

	field := Field{
		AnalysisID: analysisID,
		Name:       name,
		Type:       fieldType,
		Unit:       strings.TrimSpace(in.Unit),
		Required:   in.Required,
	}
	err := s.Repo.Atomic(ctx, func(ctx context.Context, st Store) error {
		if _, err := st.GetAnalysis(ctx, analysisID); err != nil {
			return err
		}
		highest, ok, err := st.MaxFieldOrder(ctx, analysisID)
		if err != nil {
			return err
		}
		field.DisplayOrder = 0
		if ok {
			field.DisplayOrder = highest + 1
		}
		return st.InsertField(ctx, &field)
	})
	if err != nil {
		return Field{}, WrapStorage("add field", err)
	}
	return field, nil
}

// DeleteField removes a field and its values. A field that does not exist in the
// analysis is ignored.
func (s *Service) DeleteField(ctx context.Context, analysisID, fieldID int64) error {
	err := s.Repo.Atomic(ctx, func(ctx context.Context, st Store) error {
		fields, err := st.ListFields(ctx, analysisID)
		if err != nil {
			return err
		}
		if !containsField(fields, fieldID) {
			return nil
		}
		if err := st.DeleteValuesByField(ctx, fieldID); err != nil {
			return err
		}
		_, err = st.DeleteField(ctx, analysisID, fieldID)
		return err
	})
	metrics.IncCascade("delete_field", err)
	if err != nil {
		return WrapStorage("delete field", err)
	}
	return nil
}

// ReorderFields assigns display_order by position in orderedIDs. Ids from other
// analyses are ignored and repeated ids keep their first position. Fields left out of
// orderedIDs follow the listed ones in their previous relative order, so the analysis
// always ends up numbered 0..N-1.
func (s *Service) ReorderFields(ctx context.Context, analysisID int64, orderedIDs []int64) ([]Field, error) {
	var out []Field
	err := s.Repo.Atomic(ctx, func(ctx context.Context, st Store) error {
		if _, err := st.GetAnalysis(ctx, analysisID); err != nil {
			return err
		}
		fields, err := st.ListFields(ctx, analysisID)
		if err != nil {
			return err
		}
		for i, fieldID := range reorderedIDs(fields, orderedIDs) {
			if err := st.SetFieldOrder(ctx, analysisID, fieldID, i); err != nil {
				return err
			}
		}
		out, err = st.ListFields(ctx, analysisID)
		return err
	})
	if err != nil {
		return nil, WrapStorage("reorder fields", err)
	}
	return out, nil
}

func reorderedIDs(fields []Field, orderedIDs []int64) []int64 {
	known := make(map[int64]struct{}, len(fields))
	for _, f := range fields {
		known[f.ID] = struct{}{}
	}
	placed := make(map[int64]struct{}, len(fields))
	out := make([]int64, 0, len(fields))
	for _, id := range orderedIDs {
		if _, ok := known[id]; !ok {
			continue
		}
		if _, dup := placed[id]; dup {
			continue
		}
		placed[id] = struct{}{}
		out = append(out, id)
	}
	for _, f := range fields {
		if _, ok := placed[f.ID]; !ok {
			out = append(out, f.ID)
		}
	}
	return out
}

// ListFields returns the analysis columns in display order.
func (s *Service) ListFields(ctx context.Context, analysisID int64) ([]Field, error) {
	var out []Field
	err := s.Repo.Atomic(ctx, func(ctx context.Context, st Store) error {
		if _, err := st.GetAnalysis(ctx, analysisID); err != nil {
			return err
		}
		var err error
		out, err = st.ListFields(ctx, analysisID)
		return err
	})
	if err != nil {
		return nil, WrapStorage("list fields", err)
	}
	return out, nil
}

// CreateObject stores a new object with its values. Optional fields left blank get no
// value row; required fields always get one, even when blank.
func (s *Service) CreateObject(ctx context.Context, analysisID int64, in ObjectInput) (Object, error) {
	in = in.normalized()
	if in.Name == "" {
		return Object{}, invalid("name", "object name is required")
	}
	now := s.now()
	obj := Object{
		AnalysisID: analysisID,
		Name:       in.Name,
		Brand:      in.Brand,
		ImageURL:   in.ImageURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := s.Repo.Atomic(ctx, func(ctx context.Context, st Store) error {
		if _, err := st.GetAnalysis(ctx, analysisID); err != nil {
			return err
		}
		fields, err := st.ListFields(ctx, analysisID)
		if err != nil {
			return err
		}
		if err := st.InsertObject(ctx, &obj); err != nil {
			return err
		}
		var values []Value
		for _, f := range fields {
			v := in.Values[f.ID]
			if v != "" || f.Required {
				values = append(values, Value{ObjectID: obj.ID, FieldID: f.ID, Value: v})
			}
		}
		if len(values) == 0 {
			return nil
		}
		return st.ReplaceValues(ctx, obj.ID, values)
	})
	if err != nil {
		return Object{}, WrapStorage("create object", err)
	}
	return obj, nil
}

// UpdateObject overwrites the object's attributes and replaces its value set with the
// non-empty submitted values. Unlike CreateObject, blank required fields get no row.
func (s *Service) UpdateObject(ctx context.Context, analysisID, objectID int64, in ObjectInput) (Object, error) {
	in = in.normalized()
	if in.Name == "" {
		return Object{}, invalid("name", "object name is required")
	}
	var updated Object
	err := s.Repo.Atomic(ctx, func(ctx context.Context, st Store) error {
		current, err := st.GetObject(ctx, analysisID, objectID)
		if err != nil {
			return err
		}
		current.Name = in.Name
		current.Brand = in.Brand
		current.ImageURL = in.ImageURL
		current.UpdatedAt = s.now()
		if err := st.UpdateObject(ctx, current); err != nil {
			return err
		}
		fields, err := st.ListFields(ctx, analysisID)
		if err != nil {
			return err
		}
		var values []Value
		for _, f := range fields {
			if v := in.Values[f.ID]; v != "" {
				values = append(values, Value{ObjectID: objectID, FieldID: f.ID, Value: v})
			}
		}
		if err := st.ReplaceValues(ctx, objectID, values); err != nil {
			return err
		}
		updated = current
		return nil
	})
	metrics.IncCascade("update_object", err)
	if err != nil {
		return Object{}, WrapStorage("update object", err)
	}
	return updated, nil
}

// GetObject returns an object of the analysis with its stored values.
func (s *Service) GetObject(ctx context.Context, analysisID, objectID int64) (ObjectWithValues, error) {
	var out ObjectWithValues
	err := s.Repo.Atomic(ctx, func(ctx context.Context, st Store) error {
		obj, err := st.GetObject(ctx, analysisID, objectID)
		if err != nil {
			return err
		}
		values, err := st.ListValuesByObject(ctx, objectID)
		if err != nil {
			return err
		}
		out = ObjectWithValues{Object: obj, Values: make(map[int64]string, len(values))}
		for _, v := range values {
			out.Values[v.FieldID] = v.Value
		}
		return nil
	})
	if err != nil {
		return ObjectWithValues{}, WrapStorage("get object", err)
	}
	return out, nil
}

// DeleteObject removes the object and its values.
func (s *Service) DeleteObject(ctx context.Context, analysisID, objectID int64) error {
	err := s.Repo.Atomic(ctx, func(ctx context.Context, st Store) error {
		if _, err := st.GetObject(ctx, analysisID, objectID); err != nil {
			return err
		}
		if err := st.DeleteValuesByObject(ctx, objectID); err != nil {
			return err
		}
		return st.DeleteObject(ctx, analysisID, objectID)
	})
	metrics.IncCascade("delete_object", err)
	if err != nil {
		return WrapStorage("delete object", err)
	}
	return nil
}

// Search matches analyses by name, description or category and objects by name or brand.
// A blank query matches nothing.
func (s *Service) Search(ctx context.Context, query string) (SearchResult, error) {
	query = strings.TrimSpace(query)
	result := SearchResult{Analyses: []Analysis{}, Objects: []Object{}}
	if query == "" {
		return result, nil
	}
	var err error
	if result.Analyses, err = s.Repo.SearchAnalyses(ctx, query, searchLimit); err != nil {
		return SearchResult{}, WrapStorage("search analyses", err)
	}
	if result.Objects, err = s.Repo.SearchObjects(ctx, query, searchLimit); err != nil {
		return SearchResult{}, WrapStorage("search objects", err)
	}
	return result, nil
}

// Dashboard returns totals, the category distribution and the most recent analyses.
func (s *Service) Dashboard(ctx context.Context) (Stats, error) {
	stats, err := s.Repo.Stats(ctx, dashboardRecent)
	if err != nil {
		return Stats{}, WrapStorage("dashboard stats", err)
	}
	return stats, nil
}

func (in AnalysisInput) normalized() AnalysisInput {
	return AnalysisInput{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
	}
}

func (in ObjectInput) normalized() ObjectInput {
	out := ObjectInput{
		Name:     strings.TrimSpace(in.Name),
		Brand:    strings.TrimSpace(in.Brand),
		ImageURL: strings.TrimSpace(in.ImageURL),
		Values:   make(map[int64]string, len(in.Values)),
	}
	for id, v := range in.Values {
		out.Values[id] = strings.TrimSpace(v)
	}
	return out
}

func containsField(fields []Field, id int64) bool {
	for _, f := range fields {
		if f.ID == id {
			return true
		}
	}
	return false
}
