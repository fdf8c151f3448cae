package export

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"compare-backend/internal/analyses"
	"compare-backend/internal/matrix"
	"compare-backend/internal/shared/metrics"
	"compare-backend/internal/shared/server/respond"
	"compare-backend/internal/shared/storage/object"
	"compare-backend/internal/shared/telemetry"
	"compare-backend/internal/shared/util"
)

// Handler serves matrix views, export downloads and stored export snapshots.
type Handler struct {
	Builder  *matrix.Builder
	Archiver *Archiver
}

// NewHandler constructs a Handler.
func NewHandler(builder *matrix.Builder, archiver *Archiver) *Handler {
	return &Handler{Builder: builder, Archiver: archiver}
}

// RegisterRoutes attaches export routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/analyses/:id/matrix", h.getMatrix)
	rg.GET("/analyses/:id/export", h.download)
	rg.POST("/analyses/:id/exports", h.createSnapshot)
	rg.GET("/exports/*key", h.getSnapshot)
}

func (h *Handler) getMatrix(c *gin.Context) {
	id, ok := analyses.ParamID(c, "id")
	if !ok {
		return
	}
	m, err := h.Builder.Build(c.Request.Context(), id)
	if err != nil {
		analyses.WriteError(c, err, "failed to build matrix")
		return
	}
	respond.OK(c, m)
}

func (h *Handler) download(c *gin.Context) {
	id, ok := analyses.ParamID(c, "id")
	if !ok {
		return
	}
	format, ok := parseFormat(c)
	if !ok {
		return
	}
	m, err := h.Builder.Build(c.Request.Context(), id)
	if err != nil {
		analyses.WriteError(c, err, "failed to export analysis")
		return
	}

	var buf bytes.Buffer
	if err := Write(&buf, m, format); err != nil {
		telemetry.Error("export.render_failed", map[string]any{"analysis_id": id, "format": format, "err": err})
		respond.Error(c, http.StatusInternalServerError, analyses.ErrorCodeInternal, "failed to export analysis", nil)
		return
	}
	metrics.IncExport(string(format), "download")

	name := util.DownloadName(m.Analysis.Name, "analysis", format.Extension())
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Header("ETag", `"`+util.ContentHash(buf.Bytes())+`"`)
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

func (h *Handler) createSnapshot(c *gin.Context) {
	id, ok := analyses.ParamID(c, "id")
	if !ok {
		return
	}
	format, ok := parseFormat(c)
	if !ok {
		return
	}
	m, err := h.Builder.Build(c.Request.Context(), id)
	if err != nil {
		analyses.WriteError(c, err, "failed to export analysis")
		return
	}
	snap, err := h.Archiver.Save(c.Request.Context(), m, format)
	if err != nil {
		telemetry.Error("export.snapshot_failed", map[string]any{"analysis_id": id, "format": format, "err": err})
		respond.Error(c, http.StatusInternalServerError, analyses.ErrorCodeStorage, "failed to store export", nil)
		return
	}
	metrics.IncExport(string(format), "snapshot")
	telemetry.Info("export.snapshot_saved", map[string]any{
		"analysis_id": id,
		"key":         snap.Key,
		"size_bytes":  snap.SizeBytes,
	})
	respond.Created(c, snap)
}

func (h *Handler) getSnapshot(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	rc, err := h.Archiver.Store.Open(c.Request.Context(), key)
	if err != nil {
		switch {
		case errors.Is(err, object.ErrInvalidKey):
			respond.Error(c, http.StatusBadRequest, analyses.ErrorCodeValidation, "invalid export key", nil)
		case errors.Is(err, object.ErrNotFound):
			respond.Error(c, http.StatusNotFound, analyses.ErrorCodeNotFound, "export not found", nil)
		default:
			telemetry.Error("export.open_failed", map[string]any{"key": key, "err": err})
			respond.Error(c, http.StatusInternalServerError, analyses.ErrorCodeStorage, "failed to read export", nil)
		}
		return
	}
	defer rc.Close()

	contentType := "application/octet-stream"
	if f, ok := FormatFromKey(key); ok {
		contentType = f.ContentType()
	}
	name := key[strings.LastIndex(key, "/")+1:]
	c.DataFromReader(http.StatusOK, -1, contentType, rc, map[string]string{
		"Content-Disposition": `attachment; filename="` + name + `"`,
	})
}

func parseFormat(c *gin.Context) (Format, bool) {
	format, err := ParseFormat(c.Query("format"))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, analyses.ErrorCodeValidation, err.Error(), []map[string]string{
			{"field": "format", "issue": "must be one of csv, json, yaml"},
		})
		return "", false
	}
	return format, true
}
