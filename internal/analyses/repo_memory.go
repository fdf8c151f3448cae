package analyses

import (
	"context"
	"sort"
	"strings"
	"sync"
)

type valueKey struct {
	objectID int64
	fieldID  int64
}

type memTables struct {
	analyses map[int64]Analysis
	fields   map[int64]Field
	objects  map[int64]Object
	values   map[valueKey]Value

	lastAnalysisID int64
	lastFieldID    int64
	lastObjectID   int64
	lastValueID    int64
}

func newMemTables() *memTables {
	return &memTables{
		analyses: make(map[int64]Analysis),
		fields:   make(map[int64]Field),
		objects:  make(map[int64]Object),
		values:   make(map[valueKey]Value),
	}
}

func (t *memTables) clone() *memTables {
	c := &memTables{
		analyses:       make(map[int64]Analysis, len(t.analyses)),
		fields:         make(map[int64]Field, len(t.fields)),
		objects:        make(map[int64]Object, len(t.objects)),
		values:         make(map[valueKey]Value, len(t.values)),
		lastAnalysisID: t.lastAnalysisID,
		lastFieldID:    t.lastFieldID,
		lastObjectID:   t.lastObjectID,
		lastValueID:    t.lastValueID,
	}
	for k, v := range t.analyses {
		c.analyses[k] = v
	}
	for k, v := range t.fields {
		c.fields[k] = v
	}
	for k, v := range t.objects {
		c.objects[k] = v
	}
	for k, v := range t.values {
		c.values[k] = v
	}
	return c
}

// MemoryRepo keeps everything in process memory and is safe for concurrent use.
// Deletes cascade the same way the Postgres foreign keys do.
type MemoryRepo struct {
	mu sync.RWMutex
	t  *memTables
}

// NewMemoryRepo constructs an empty MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{t: newMemTables()}
}

// Atomic runs fn against a private copy of the tables and publishes the copy only if fn succeeds.
// fn must use the Store it is given, not the MemoryRepo itself.
func (r *MemoryRepo) Atomic(ctx context.Context, fn func(ctx context.Context, s Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	draft := r.t.clone()
	if err := fn(ctx, &memStore{t: draft}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.t = draft
	return nil
}

func (r *MemoryRepo) read(ctx context.Context, fn func(s *memStore) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return fn(&memStore{t: r.t})
}

func (r *MemoryRepo) write(ctx context.Context, fn func(s *memStore) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(&memStore{t: r.t})
}

func (r *MemoryRepo) InsertAnalysis(ctx context.Context, a *Analysis) error {
	return r.write(ctx, func(s *memStore) error { return s.InsertAnalysis(ctx, a) })
}

func (r *MemoryRepo) GetAnalysis(ctx context.Context, id int64) (Analysis, error) {
	var out Analysis
	err := r.read(ctx, func(s *memStore) (err error) {
		out, err = s.GetAnalysis(ctx, id)
		return err
	})
	return out, err
}

func (r *MemoryRepo) UpdateAnalysis(ctx context.Context, a Analysis) error {
	return r.write(ctx, func(s *memStore) error { return s.UpdateAnalysis(ctx, a) })
}

func (r *MemoryRepo) DeleteAnalysis(ctx context.Context, id int64) error {
	return r.write(ctx, func(s *memStore) error { return s.DeleteAnalysis(ctx, id) })
}

func (r *MemoryRepo) ListAnalyses(ctx context.Context, limit int) ([]AnalysisSummary, error) {
	var out []AnalysisSummary
	err := r.read(ctx, func(s *memStore) (err error) {
		out, err = s.ListAnalyses(ctx, limit)
		return err
	})
	return out, err
}

func (r *MemoryRepo) SearchAnalyses(ctx context.Context, query string, limit int) ([]Analysis, error) {
	var out []Analysis
	err := r.read(ctx, func(s *memStore) (err error) {
		out, err = s.SearchAnalyses(ctx, query, limit)
		return err
	})
	return out, err
}

func (r *MemoryRepo) Stats(ctx context.Context, recent int) (Stats, error) {
	var out Stats
	err := r.read(ctx, func(s *memStore) (err error) {
		out, err = s.Stats(ctx, recent)
		return err
	})
	return out, err
}

func (r *MemoryRepo) InsertField(ctx context.Context, f *Field) error {
	return r.write(ctx, func(s *memStore) error { return s.InsertField(ctx, f) })
}

func (r *MemoryRepo) ListFields(ctx context.Context, analysisID int64) ([]Field, error) {
	var out []Field
	err := r.read(ctx, func(s *memStore) (err error) {
		out, err = s.ListFields(ctx, analysisID)
		return err
	})
	return out, err
}

func (r *MemoryRepo) MaxFieldOrder(ctx context.Context, analysisID int64) (int, bool, error) {
	var (
		order int
		ok    bool
	)
	err := r.read(ctx, func(s *memStore) (err error) {
		order, ok, err = s.MaxFieldOrder(ctx, analysisID)
		return err
	})
	return order, ok, err
}

func (r *MemoryRepo) SetFieldOrder(ctx context.Context, analysisID, fieldID int64, order int) error {
	return r.write(ctx, func(s *memStore) error { return s.SetFieldOrder(ctx, analysisID, fieldID, order) })
}

func (r *MemoryRepo) DeleteField(ctx context.Context, analysisID, fieldID int64) (bool, error) {
	var deleted bool
	err := r.write(ctx, func(s *memStore) (err error) {
		deleted, err = s.DeleteField(ctx, analysisID, fieldID)
		return err
	})
	return deleted, err
}

func (r *MemoryRepo) DeleteFieldsByAnalysis(ctx context.Context, analysisID int64) error {
	return r.write(ctx, func(s *memStore) error { return s.DeleteFieldsByAnalysis(ctx, analysisID) })
}

func (r *MemoryRepo) InsertObject(ctx context.Context, o *Object) error {
	return r.write(ctx, func(s *memStore) error { return s.InsertObject(ctx, o) })
}

func (r *MemoryRepo) GetObject(ctx context.Context, analysisID, objectID int64) (Object, error) {
	var out Object
	err := r.read(ctx, func(s *memStore) (err error) {
		out, err = s.GetObject(ctx, analysisID, objectID)
		return err
	})
	return out, err
}

func (r *MemoryRepo) UpdateObject(ctx context.Context, o Object) error {
	return r.write(ctx, func(s *memStore) error { return s.UpdateObject(ctx, o) })
}

func (r *MemoryRepo) ListObjects(ctx context.Context, analysisID int64) ([]Object, error) {
	var out []Object
	err := r.read(ctx, func(s *memStore) (err error) {
		out, err = s.ListObjects(ctx, analysisID)
		return err
	})
	return out, err
}

func (r *MemoryRepo) SearchObjects(ctx context.Context, query string, limit int) ([]Object, error) {
	var out []Object
	err := r.read(ctx, func(s *memStore) (err error) {
		out, err = s.SearchObjects(ctx, query, limit)
		return err
	})
	return out, err
}

func (r *MemoryRepo) DeleteObject(ctx context.Context, analysisID, objectID int64) error {
	return r.write(ctx, func(s *memStore) error { return s.DeleteObject(ctx, analysisID, objectID) })
}

func (r *MemoryRepo) DeleteObjectsByAnalysis(ctx context.Context, analysisID int64) error {
	return r.write(ctx, func(s *memStore) error { return s.DeleteObjectsByAnalysis(ctx, analysisID) })
}

func (r *MemoryRepo) ReplaceValues(ctx context.Context, objectID int64, values []Value) error {
	return r.write(ctx, func(s *memStore) error { return s.ReplaceValues(ctx, objectID, values) })
}

func (r *MemoryRepo) ListValuesByObject(ctx context.Context, objectID int64) ([]Value, error) {
	var out []Value
	err := r.read(ctx, func(s *memStore) (err error) {
		out, err = s.ListValuesByObject(ctx, objectID)
		return err
	})
	return out, err
}

func (r *MemoryRepo) ListValuesByAnalysis(ctx context.Context, analysisID int64) ([]Value, error) {
	var out []Value
	err := r.read(ctx, func(s *memStore) (err error) {
		out, err = s.ListValuesByAnalysis(ctx, analysisID)
		return err
	})
	return out, err
}

func (r *MemoryRepo) DeleteValuesByField(ctx context.Context, fieldID int64) error {
	return r.write(ctx, func(s *memStore) error { return s.DeleteValuesByField(ctx, fieldID) })
}

func (r *MemoryRepo) DeleteValuesByObject(ctx context.Context, objectID int64) error {
	return r.write(ctx, func(s *memStore) error { return s.DeleteValuesByObject(ctx, objectID) })
}

func (r *MemoryRepo) DeleteValuesByAnalysis(ctx context.Context, analysisID int64) error {
	return r.write(ctx, func(s *memStore) error { return s.DeleteValuesByAnalysis(ctx, analysisID) })
}

// memStore implements Store directly on a set of tables. Callers hold the lock.
type memStore struct {
	t *memTables
}

func (s *memStore) InsertAnalysis(_ context.Context, a *Analysis) error {
	s.t.lastAnalysisID++
	a.ID = s.t.lastAnalysisID
	s.t.analyses[a.ID] = *a
	return nil
}

func (s *memStore) GetAnalysis(_ context.Context, id int64) (Analysis, error) {
	a, ok := s.t.analyses[id]
	if !ok {
		return Analysis{}, ErrNotFound
	}
	return a, nil
}

func (s *memStore) UpdateAnalysis(_ context.Context, a Analysis) error {
	existing, ok := s.t.analyses[a.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Name = a.Name
	existing.Description = a.Description
	existing.Category = a.Category
	existing.UpdatedAt = a.UpdatedAt
	s.t.analyses[a.ID] = existing
	return nil
}

func (s *memStore) DeleteAnalysis(ctx context.Context, id int64) error {
	if _, ok := s.t.analyses[id]; !ok {
		return ErrNotFound
	}
	_ = s.DeleteValuesByAnalysis(ctx, id)
	_ = s.DeleteObjectsByAnalysis(ctx, id)
	_ = s.DeleteFieldsByAnalysis(ctx, id)
	delete(s.t.analyses, id)
	return nil
}

func (s *memStore) ListAnalyses(_ context.Context, limit int) ([]AnalysisSummary, error) {
	counts := make(map[int64]int, len(s.t.analyses))
	for _, o := range s.t.objects {
		counts[o.AnalysisID]++
	}
	list := make([]Analysis, 0, len(s.t.analyses))
	for _, a := range s.t.analyses {
		list = append(list, a)
	}
	sortAnalysesNewestFirst(list)
	list = truncate(list, limit)

	out := make([]AnalysisSummary, 0, len(list))
	for _, a := range list {
		out = append(out, AnalysisSummary{Analysis: a, ObjectCount: counts[a.ID]})
	}
	return out, nil
}

func (s *memStore) SearchAnalyses(_ context.Context, query string, limit int) ([]Analysis, error) {
	q := strings.ToLower(query)
	var out []Analysis
	for _, a := range s.t.analyses {
		if containsFold(a.Name, q) || containsFold(a.Description, q) || containsFold(a.Category, q) {
			out = append(out, a)
		}
	}
	sortAnalysesNewestFirst(out)
	return truncate(out, limit), nil
}

func (s *memStore) Stats(ctx context.Context, recent int) (Stats, error) {
	byCategory := make(map[string]int)
	for _, a := range s.t.analyses {
		if a.Category != "" {
			byCategory[a.Category]++
		}
	}
	categories := make([]CategoryCount, 0, len(byCategory))
	for c, n := range byCategory {
		categories = append(categories, CategoryCount{Category: c, Count: n})
	}
	sort.Slice(categories, func(i, j int) bool {
		if categories[i].Count != categories[j].Count {
			return categories[i].Count > categories[j].Count
		}
		return categories[i].Category < categories[j].Category
	})

	recentList, err := s.ListAnalyses(ctx, recent)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		TotalAnalyses: len(s.t.analyses),
		TotalObjects:  len(s.t.objects),
		Categories:    categories,
		Recent:        recentList,
	}, nil
}

func (s *memStore) InsertField(_ context.Context, f *Field) error {
	if _, ok := s.t.analyses[f.AnalysisID]; !ok {
		return ErrNotFound
	}
	s.t.lastFieldID++
	f.ID = s.t.lastFieldID
	s.t.fields[f.ID] = *f
	return nil
}

func (s *memStore) ListFields(_ context.Context, analysisID int64) ([]Field, error) {
	out := []Field{}
	for _, f := range s.t.fields {
		if f.AnalysisID == analysisID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *memStore) MaxFieldOrder(_ context.Context, analysisID int64) (int, bool, error) {
	highest, found := 0, false
	for _, f := range s.t.fields {
		if f.AnalysisID != analysisID {
			continue
		}
		if !found || f.DisplayOrder > highest {
			highest = f.DisplayOrder
			found = true
		}
	}
	return highest, found, nil
}

func (s *memStore) SetFieldOrder(_ context.Context, analysisID, fieldID int64, order int) error {
	f, ok := s.t.fields[fieldID]
	if !ok || f.AnalysisID != analysisID {
		return nil
	}
	f.DisplayOrder = order
	s.t.fields[fieldID] = f
	return nil
}

func (s *memStore) DeleteField(ctx context.Context, analysisID, fieldID int64) (bool, error) {
	f, ok := s.t.fields[fieldID]
	if !ok || f.AnalysisID != analysisID {
		return false, nil
	}
	_ = s.DeleteValuesByField(ctx, fieldID)
	delete(s.t.fields, fieldID)
	return true, nil
}

func (s *memStore) DeleteFieldsByAnalysis(ctx context.Context, analysisID int64) error {
	for id, f := range s.t.fields {
		if f.AnalysisID == analysisID {
			_ = s.DeleteValuesByField(ctx, id)
			delete(s.t.fields, id)
		}
	}
	return nil
}

func (s *memStore) InsertObject(_ context.Context, o *Object) error {
	if _, ok := s.t.analyses[o.AnalysisID]; !ok {
		return ErrNotFound
	}
	s.t.lastObjectID++
	o.ID = s.t.lastObjectID
	s.t.objects[o.ID] = *o
	return nil
}

func (s *memStore) GetObject(_ context.Context, analysisID, objectID int64) (Object, error) {
	o, ok := s.t.objects[objectID]
	if !ok || o.AnalysisID != analysisID {
		return Object{}, ErrNotFound
	}
	return o, nil
}

func (s *memStore) UpdateObject(_ context.Context, o Object) error {
	existing, ok := s.t.objects[o.ID]
	if !ok || existing.AnalysisID != o.AnalysisID {
		return ErrNotFound
	}
	existing.Name = o.Name
	existing.Brand = o.Brand
	existing.ImageURL = o.ImageURL
	existing.UpdatedAt = o.UpdatedAt
	s.t.objects[o.ID] = existing
	return nil
}

func (s *memStore) ListObjects(_ context.Context, analysisID int64) ([]Object, error) {
	out := []Object{}
	for _, o := range s.t.objects {
		if o.AnalysisID == analysisID {
			out = append(out, o)
		}
	}
	sortObjectsNewestFirst(out)
	return out, nil
}

func (s *memStore) SearchObjects(_ context.Context, query string, limit int) ([]Object, error) {
	q := strings.ToLower(query)
	var out []Object
	for _, o := range s.t.objects {
		if containsFold(o.Name, q) || containsFold(o.Brand, q) {
			out = append(out, o)
		}
	}
	sortObjectsNewestFirst(out)
	return truncate(out, limit), nil
}

func (s *memStore) DeleteObject(ctx context.Context, analysisID, objectID int64) error {
	o, ok := s.t.objects[objectID]
	if !ok || o.AnalysisID != analysisID {
		return ErrNotFound
	}
	_ = s.DeleteValuesByObject(ctx, objectID)
	delete(s.t.objects, objectID)
	return nil
}

func (s *memStore) DeleteObjectsByAnalysis(ctx context.Context, analysisID int64) error {
	for id, o := range s.t.objects {
		if o.AnalysisID == analysisID {
			_ = s.DeleteValuesByObject(ctx, id)
			delete(s.t.objects, id)
		}
	}
	return nil
}

func (s *memStore) ReplaceValues(_ context.Context, objectID int64, values []Value) error {
	obj, ok := s.t.objects[objectID]
	if !ok {
		return ErrNotFound
	}
	keep := make(map[int64]struct{}, len(values))
	for _, v := range values {
		f, ok := s.t.fields[v.FieldID]
		if !ok || f.AnalysisID != obj.AnalysisID {
			continue
		}
		keep[v.FieldID] = struct{}{}
		key := valueKey{objectID: objectID, fieldID: v.FieldID}
		existing, found := s.t.values[key]
		if !found {
			s.t.lastValueID++
			existing = Value{ID: s.t.lastValueID, ObjectID: objectID, FieldID: v.FieldID}
		}
		existing.Value = v.Value
		s.t.values[key] = existing
	}
	for key := range s.t.values {
		if key.objectID != objectID {
			continue
		}
		if _, ok := keep[key.fieldID]; !ok {
			delete(s.t.values, key)
		}
	}
	return nil
}

func (s *memStore) ListValuesByObject(_ context.Context, objectID int64) ([]Value, error) {
	out := []Value{}
	for key, v := range s.t.values {
		if key.objectID == objectID {
			out = append(out, v)
		}
	}
	sortValues(out)
	return out, nil
}

func (s *memStore) ListValuesByAnalysis(_ context.Context, analysisID int64) ([]Value, error) {
	out := []Value{}
	for key, v := range s.t.values {
		if o, ok := s.t.objects[key.objectID]; ok && o.AnalysisID == analysisID {
			out = append(out, v)
		}
	}
	sortValues(out)
	return out, nil
}

func (s *memStore) DeleteValuesByField(_ context.Context, fieldID int64) error {
	for key := range s.t.values {
		if key.fieldID == fieldID {
			delete(s.t.values, key)
		}
	}
	return nil
}

func (s *memStore) DeleteValuesByObject(_ context.Context, objectID int64) error {
	for key := range s.t.values {
		if key.objectID == objectID {
			delete(s.t.values, key)
		}
	}
	return nil
}

func (s *memStore) DeleteValuesByAnalysis(_ context.Context, analysisID int64) error {
	for key := range s.t.values {
		if o, ok := s.t.objects[key.objectID]; ok && o.AnalysisID == analysisID {
			delete(s.t.values, key)
		}
	}
	return nil
}

func sortAnalysesNewestFirst(list []Analysis) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
}

func sortObjectsNewestFirst(list []Object) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
}

func sortValues(list []Value) {
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
}

func containsFold(s, lowerQuery string) bool {
	return strings.Contains(strings.ToLower(s), lowerQuery)
}

func truncate[T any](list []T, limit int) []T {
	if limit > 0 && len(list) > limit {
		return list[:limit]
	}
	return list
}

var (
	_ Repo  = (*MemoryRepo)(nil)
	_ Store = (*memStore)(nil)
)
