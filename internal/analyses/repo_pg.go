package analyses

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
)

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	*pgStore
	DB *sql.DB
}

// NewPGRepo constructs a PGRepo over an open database handle.
func NewPGRepo(db *sql.DB) *PGRepo {
	return &PGRepo{pgStore: &pgStore{q: db}, DB: db}
}

// Atomic runs fn inside a single transaction and commits only if fn succeeds.
func (r *PGRepo) Atomic(ctx context.Context, fn func(ctx context.Context, s Store) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(ctx, &pgStore{q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

type pgStore struct {
	q queryer
}

func (s *pgStore) InsertAnalysis(ctx context.Context, a *Analysis) error {
	const query = `
INSERT INTO analyses (name, description, category, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`
	return s.q.QueryRowContext(ctx, query, a.Name, a.Description, a.Category, a.CreatedAt, a.UpdatedAt).Scan(&a.ID)
}

func (s *pgStore) GetAnalysis(ctx context.Context, id int64) (Analysis, error) {
	const query = `
SELECT id, name, description, category, created_at, updated_at
FROM analyses
WHERE id = $1
LIMIT 1`
	var a Analysis
	err := s.q.QueryRowContext(ctx, query, id).Scan(&a.ID, &a.Name, &a.Description, &a.Category, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, err
	}
	return a, nil
}

func (s *pgStore) UpdateAnalysis(ctx context.Context, a Analysis) error {
	const query = `
UPDATE analyses
SET name = $1, description = $2, category = $3, updated_at = $4
WHERE id = $5`
	res, err := s.q.ExecContext(ctx, query, a.Name, a.Description, a.Category, a.UpdatedAt, a.ID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *pgStore) DeleteAnalysis(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM analyses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *pgStore) ListAnalyses(ctx context.Context, limit int) ([]AnalysisSummary, error) {
	const query = `
SELECT a.id, a.name, a.description, a.category, a.created_at, a.updated_at, COUNT(o.id)
FROM analyses a
LEFT JOIN objects o ON o.analysis_id = a.id
GROUP BY a.id
ORDER BY a.created_at DESC, a.id DESC
LIMIT $1`
	rows, err := s.q.QueryContext(ctx, query, limitArg(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []AnalysisSummary{}
	for rows.Next() {
		var item AnalysisSummary
		if err := rows.Scan(
			&item.ID,
			&item.Name,
			&item.Description,
			&item.Category,
			&item.CreatedAt,
			&item.UpdatedAt,
			&item.ObjectCount,
		); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *pgStore) SearchAnalyses(ctx context.Context, query string, limit int) ([]Analysis, error) {
	const q = `
SELECT id, name, description, category, created_at, updated_at
FROM analyses
WHERE name ILIKE $1 OR description ILIKE $1 OR category ILIKE $1
ORDER BY created_at DESC, id DESC
LIMIT $2`
	rows, err := s.q.QueryContext(ctx, q, likePattern(query), limitArg(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Analysis{}
	for rows.Next() {
		var a Analysis
		if err := rows.Scan(&a.ID, &a.Name, &a.Description, &a.Category, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *pgStore) Stats(ctx context.Context, recent int) (Stats, error) {
	var st Stats
	if err := s.q.QueryRowContext(ctx, `
SELECT (SELECT COUNT(*) FROM analyses), (SELECT COUNT(*) FROM objects)`).Scan(&st.TotalAnalyses, &st.TotalObjects); err != nil {
		return Stats{}, err
	}

	rows, err := s.q.QueryContext(ctx, `
SELECT category, COUNT(*)
FROM analyses
WHERE category <> ''
GROUP BY category
ORDER BY COUNT(*) DESC, category ASC`)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()
	st.Categories = []CategoryCount{}
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return Stats{}, err
		}
		st.Categories = append(st.Categories, c)
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	st.Recent, err = s.ListAnalyses(ctx, recent)
	if err != nil {
		return Stats{}, err
	}
	return st, nil
}

func (s *pgStore) InsertField(ctx context.Context, f *Field) error {
	const query = `
INSERT INTO fields (analysis_id, field_name, field_type, field_unit, is_required, display_order)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`
	return s.q.QueryRowContext(ctx, query,
		f.AnalysisID,
		f.Name,
		string(f.Type),
		f.Unit,
		f.Required,
		f.DisplayOrder,
	).Scan(&f.ID)
}

func (s *pgStore) ListFields(ctx context.Context, analysisID int64) ([]Field, error) {
	const query = `
SELECT id, analysis_id, field_name, field_type, field_unit, is_required, display_order
FROM fields
WHERE analysis_id = $1
ORDER BY display_order ASC, id ASC`
	rows, err := s.q.QueryContext(ctx, query, analysisID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Field{}
	for rows.Next() {
		var f Field
		var fieldType string
		if err := rows.Scan(&f.ID, &f.AnalysisID, &f.Name, &fieldType, &f.Unit, &f.Required, &f.DisplayOrder); err != nil {
			return nil, err
		}
		f.Type = FieldType(fieldType)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *pgStore) MaxFieldOrder(ctx context.Context, analysisID int64) (int, bool, error) {
	var highest sql.NullInt64
	if err := s.q.QueryRowContext(ctx, `SELECT MAX(display_order) FROM fields WHERE analysis_id = $1`, analysisID).Scan(&highest); err != nil {
		return 0, false, err
	}
	if !highest.Valid {
		return 0, false, nil
	}
	return int(highest.Int64), true, nil
}

func (s *pgStore) SetFieldOrder(ctx context.Context, analysisID, fieldID int64, order int) error {
	_, err := s.q.ExecContext(ctx, `UPDATE fields SET display_order = $1 WHERE id = $2 AND analysis_id = $3`, order, fieldID, analysisID)
	return err
}

func (s *pgStore) DeleteField(ctx context.Context, analysisID, fieldID int64) (bool, error) {
	res, err := s.q.ExecContext(ctx, `DELETE FROM fields WHERE id = $1 AND analysis_id = $2`, fieldID, analysisID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *pgStore) DeleteFieldsByAnalysis(ctx context.Context, analysisID int64) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM fields WHERE analysis_id = $1`, analysisID)
	return err
}

func (s *pgStore) InsertObject(ctx context.Context, o *Object) error {
	const query = `
INSERT INTO objects (analysis_id, object_name, brand, image_url, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`
	return s.q.QueryRowContext(ctx, query, o.AnalysisID, o.Name, o.Brand, o.ImageURL, o.CreatedAt, o.UpdatedAt).Scan(&o.ID)
}

func (s *pgStore) GetObject(ctx context.Context, analysisID, objectID int64) (Object, error) {
	const query = `
SELECT id, analysis_id, object_name, brand, image_url, created_at, updated_at
FROM objects
WHERE id = $1 AND analysis_id = $2
LIMIT 1`
	var o Object
	err := s.q.QueryRowContext(ctx, query, objectID, analysisID).Scan(
		&o.ID,
		&o.AnalysisID,
		&o.Name,
		&o.Brand,
		&o.ImageURL,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Object{}, ErrNotFound
		}
		return Object{}, err
	}
	return o, nil
}

func (s *pgStore) UpdateObject(ctx context.Context, o Object) error {
	const query = `
UPDATE objects
SET object_name = $1, brand = $2, image_url = $3, updated_at = $4
WHERE id = $5 AND analysis_id = $6`
	res, err := s.q.ExecContext(ctx, query, o.Name, o.Brand, o.ImageURL, o.UpdatedAt, o.ID, o.AnalysisID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *pgStore) ListObjects(ctx context.Context, analysisID int64) ([]Object, error) {
	const query = `
SELECT id, analysis_id, object_name, brand, image_url, created_at, updated_at
FROM objects
WHERE analysis_id = $1
ORDER BY created_at DESC, id DESC`
	return s.queryObjects(ctx, query, analysisID)
}

func (s *pgStore) SearchObjects(ctx context.Context, query string, limit int) ([]Object, error) {
	const q = `
SELECT id, analysis_id, object_name, brand, image_url, created_at, updated_at
FROM objects
WHERE object_name ILIKE $1 OR brand ILIKE $1
ORDER BY created_at DESC, id DESC
LIMIT $2`
	return s.queryObjects(ctx, q, likePattern(query), limitArg(limit))
}

func (s *pgStore) queryObjects(ctx context.Context, query string, args ...any) ([]Object, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Object{}
	for rows.Next() {
		var o Object
		if err := rows.Scan(&o.ID, &o.AnalysisID, &o.Name, &o.Brand, &o.ImageURL, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *pgStore) DeleteObject(ctx context.Context, analysisID, objectID int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM objects WHERE id = $1 AND analysis_id = $2`, objectID, analysisID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *pgStore) DeleteObjectsByAnalysis(ctx context.Context, analysisID int64) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM objects WHERE analysis_id = $1`, analysisID)
	return err
}

func (s *pgStore) ReplaceValues(ctx context.Context, objectID int64, values []Value) error {
	var exists int
	if err := s.q.QueryRowContext(ctx, `SELECT 1 FROM objects WHERE id = $1`, objectID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	if len(values) == 0 {
		_, err := s.q.ExecContext(ctx, `DELETE FROM object_values WHERE object_id = $1`, objectID)
		return err
	}

	args := make([]any, 0, len(values)+1)
	args = append(args, objectID)
	placeholders := make([]string, 0, len(values))
	for i, v := range values {
		args = append(args, v.FieldID)
		placeholders = append(placeholders, "$"+strconv.Itoa(i+2))
	}
	deleteQuery := `DELETE FROM object_values WHERE object_id = $1 AND field_id NOT IN (` + strings.Join(placeholders, ", ") + `)`
	if _, err := s.q.ExecContext(ctx, deleteQuery, args...); err != nil {
		return err
	}

	// Fields from another analysis produce no row and are skipped.
	const upsert = `
INSERT INTO object_values (object_id, field_id, field_value)
SELECT o.id, f.id, $3
FROM objects o
JOIN fields f ON f.analysis_id = o.analysis_id
WHERE o.id = $1 AND f.id = $2
ON CONFLICT (object_id, field_id) DO UPDATE SET field_value = EXCLUDED.field_value`
	for _, v := range values {
		if _, err := s.q.ExecContext(ctx, upsert, objectID, v.FieldID, v.Value); err != nil {
			return err
		}
	}
	return nil
}

func (s *pgStore) ListValuesByObject(ctx context.Context, objectID int64) ([]Value, error) {
	const query = `
SELECT id, object_id, field_id, field_value
FROM object_values
WHERE object_id = $1
ORDER BY id ASC`
	return s.queryValues(ctx, query, objectID)
}

func (s *pgStore) ListValuesByAnalysis(ctx context.Context, analysisID int64) ([]Value, error) {
	const query = `
SELECT v.id, v.object_id, v.field_id, v.field_value
FROM object_values v
JOIN objects o ON o.id = v.object_id
WHERE o.analysis_id = $1
ORDER BY v.id ASC`
	return s.queryValues(ctx, query, analysisID)
}

func (s *pgStore) queryValues(ctx context.Context, query string, args ...any) ([]Value, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Value{}
	for rows.Next() {
		var v Value
		var raw sql.NullString
		if err := rows.Scan(&v.ID, &v.ObjectID, &v.FieldID, &raw); err != nil {
			return nil, err
		}
		if raw.Valid {
			v.Value = raw.String
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *pgStore) DeleteValuesByField(ctx context.Context, fieldID int64) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM object_values WHERE field_id = $1`, fieldID)
	return err
}

func (s *pgStore) DeleteValuesByObject(ctx context.Context, objectID int64) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM object_values WHERE object_id = $1`, objectID)
	return err
}

func (s *pgStore) DeleteValuesByAnalysis(ctx context.Context, analysisID int64) error {
	_, err := s.q.ExecContext(ctx, `
DELETE FROM object_values
WHERE object_id IN (SELECT id FROM objects WHERE analysis_id = $1)`, analysisID)
	return err
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// limitArg maps a non-positive limit to NULL, which Postgres treats as no limit.
func limitArg(limit int) sql.NullInt64 {
	if limit <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(limit), Valid: true}
}

func likePattern(query string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(query)
	return "%" + escaped + "%"
}

var _ Repo = (*PGRepo)(nil)
