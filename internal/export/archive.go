package export

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"compare-backend/internal/matrix"
	"compare-backend/internal/shared/storage/object"
)

// Snapshot describes an export stored in the object store.
type Snapshot struct {
	Key         string    `json:"key"`
	Format      Format    `json:"format"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Archiver renders exports and saves them under analyses/<id>/<uuid>.<ext>.
type Archiver struct {
	Store object.ObjectStore
	NewID func() string
	Now   func() time.Time
}

// NewArchiver constructs an Archiver writing to store.
func NewArchiver(store object.ObjectStore) *Archiver {
	return &Archiver{Store: store}
}

// Save renders m in format f and writes it to the store.
func (a *Archiver) Save(ctx context.Context, m matrix.Matrix, f Format) (Snapshot, error) {
	var buf bytes.Buffer
	if err := Write(&buf, m, f); err != nil {
		return Snapshot{}, err
	}
	key := SnapshotKey(m.Analysis.ID, a.newID(), f)
	n, err := a.Store.Put(ctx, key, f.ContentType(), &buf)
	if err != nil {
		return Snapshot{}, fmt.Errorf("store snapshot %s: %w", key, err)
	}
	return Snapshot{
		Key:         key,
		Format:      f,
		ContentType: f.ContentType(),
		SizeBytes:   n,
		CreatedAt:   a.now(),
	}, nil
}

// SnapshotKey is the storage key of one export snapshot.
func SnapshotKey(analysisID int64, id string, f Format) string {
	return fmt.Sprintf("analyses/%d/%s.%s", analysisID, id, f.Extension())
}

// FormatFromKey infers the format of a stored snapshot from its extension.
func FormatFromKey(key string) (Format, bool) {
	dot := strings.LastIndex(key, ".")
	if dot < 0 {
		return "", false
	}
	f, err := ParseFormat(key[dot+1:])
	if err != nil || key[dot+1:] == "" {
		return "", false
	}
	return f, true
}

func (a *Archiver) newID() string {
	if a.NewID != nil {
		return a.NewID()
	}
	return uuid.NewString()
}

func (a *Archiver) now() time.Time {
	if a.Now != nil {
		return a.Now().UTC()
	}
	return time.Now().UTC()
}
