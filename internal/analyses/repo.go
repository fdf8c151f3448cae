package analyses

import "context"

// Store is the set of primitive reads and writes over analyses, fields, objects and values.
// Implementations return ErrNotFound for point lookups that miss.
type Store interface {
	InsertAnalysis(ctx context.Context, a *Analysis) error
	GetAnalysis(ctx context.Context, id int64) (Analysis, error)
	UpdateAnalysis(ctx context.Context, a Analysis) error
	DeleteAnalysis(ctx context.Context, id int64) error
	ListAnalyses(ctx context.Context, limit int) ([]AnalysisSummary, error)
	SearchAnalyses(ctx context.Context, query string, limit int) ([]Analysis, error)
	Stats(ctx context.Context, recent int) (Stats, error)

	InsertField(ctx context.Context, f *Field) error
	ListFields(ctx context.Context, analysisID int64) ([]Field, error)
	MaxFieldOrder(ctx context.Context, analysisID int64) (order int, ok bool, err error)
	SetFieldOrder(ctx context.Context, analysisID, fieldID int64, order int) error
	DeleteField(ctx context.Context, analysisID, fieldID int64) (bool, error)
	DeleteFieldsByAnalysis(ctx context.Context, analysisID int64) error

	InsertObject(ctx context.Context, o *Object) error
	GetObject(ctx context.Context, analysisID, objectID int64) (Object, error)
	UpdateObject(ctx context.Context, o Object) error
	ListObjects(ctx context.Context, analysisID int64) ([]Object, error)
	SearchObjects(ctx context.Context, query string, limit int) ([]Object, error)
	DeleteObject(ctx context.Context, analysisID, objectID int64) error
	DeleteObjectsByAnalysis(ctx context.Context, analysisID int64) error

	// ReplaceValues makes values the exact stored set for the object, upserting by
	// (object_id, field_id) and removing rows for fields not present in values.
	ReplaceValues(ctx context.Context, objectID int64, values []Value) error
	ListValuesByObject(ctx context.Context, objectID int64) ([]Value, error)
	ListValuesByAnalysis(ctx context.Context, analysisID int64) ([]Value, error)
	DeleteValuesByField(ctx context.Context, fieldID int64) error
	DeleteValuesByObject(ctx context.Context, objectID int64) error
	DeleteValuesByAnalysis(ctx context.Context, analysisID int64) error
}

// Repo is a Store that can run a sequence of operations as one atomic unit.
// If fn returns an error nothing it wrote becomes visible.
type Repo interface {
	Store
	Atomic(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}
