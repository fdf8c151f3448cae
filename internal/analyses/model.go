package analyses

import "time"

// Analysis is a named comparison: the root that owns fields and objects.
type Analysis struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// AnalysisSummary is an analysis with the number of objects it holds.
type AnalysisSummary struct {
	Analysis
	ObjectCount int `json:"objectCount"`
}

// Field is a typed column of an analysis.
type Field struct {
	ID           int64     `json:"id"`
	AnalysisID   int64     `json:"analysisId"`
	Name         string    `json:"name"`
	Type         FieldType `json:"type"`
	Unit         string    `json:"unit"`
	Required     bool      `json:"required"`
	DisplayOrder int       `json:"displayOrder"`
}

// Object is an item being compared inside an analysis.
type Object struct {
	ID         int64     `json:"id"`
	AnalysisID int64     `json:"analysisId"`
	Name       string    `json:"name"`
	Brand      string    `json:"brand"`
	ImageURL   string    `json:"imageUrl"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Value is the stored content of one field for one object.
// At most one Value exists per (ObjectID, FieldID).
type Value struct {
	ID       int64  `json:"id"`
	ObjectID int64  `json:"objectId"`
	FieldID  int64  `json:"fieldId"`
	Value    string `json:"value"`
}

// ObjectWithValues is an object together with its stored values keyed by field id.
type ObjectWithValues struct {
	Object
	Values map[int64]string `json:"values"`
}

// CategoryCount is the number of analyses sharing a category.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Stats summarises the whole store for the dashboard.
type Stats struct {
	TotalAnalyses int               `json:"totalAnalyses"`
	TotalObjects  int               `json:"totalObjects"`
	Categories    []CategoryCount   `json:"categories"`
	Recent        []AnalysisSummary `json:"recent"`
}

// SearchResult holds the analyses and objects matching a free-text query.
type SearchResult struct {
	Analyses []Analysis `json:"analyses"`
	Objects  []Object   `json:"objects"`
}
