package analyses

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"compare-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches analysis, field and object routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/dashboard", h.dashboard)
	rg.GET("/search", h.search)

	rg.GET("/analyses", h.listAnalyses)
	rg.POST("/analyses", h.createAnalysis)
	rg.GET("/analyses/:id", h.getAnalysis)
	rg.PUT("/analyses/:id", h.updateAnalysis)
	rg.DELETE("/analyses/:id", h.deleteAnalysis)
	rg.POST("/analyses/:id/duplicate", h.duplicateAnalysis)

	rg.GET("/analyses/:id/field-types", h.fieldTypes)
	rg.GET("/analyses/:id/fields", h.listFields)
	rg.POST("/analyses/:id/fields", h.addField)
	rg.POST("/analyses/:id/fields/reorder", h.reorderFields)
	rg.DELETE("/analyses/:id/fields/:fieldId", h.deleteField)

	rg.POST("/analyses/:id/objects", h.createObject)
	rg.GET("/analyses/:id/objects/:objectId", h.getObject)
	rg.PUT("/analyses/:id/objects/:objectId", h.updateObject)
	rg.DELETE("/analyses/:id/objects/:objectId", h.deleteObject)
}

// WriteError maps service errors onto the standard error envelope.
func WriteError(c *gin.Context, err error, fallback string) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		var details []map[string]string
		if verr.Field != "" {
			details = []map[string]string{{"field": verr.Field, "issue": verr.Message}}
		}
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, verr.Message, details)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, ErrorCodeNotFound, "resource not found", nil)
	case errors.Is(err, ErrStorage):
		respond.Error(c, http.StatusInternalServerError, ErrorCodeStorage, fallback, nil)
	default:
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, fallback, nil)
	}
}

// ParamID reads a positive integer path parameter, writing a 400 when it is malformed.
func ParamID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, name+" must be a positive integer", nil)
		return 0, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "invalid request body", []map[string]string{
			{"field": "body", "issue": err.Error()},
		})
		return false
	}
	return true
}

func (h *Handler) dashboard(c *gin.Context) {
	stats, err := h.Svc.Dashboard(c.Request.Context())
	if err != nil {
		WriteError(c, err, "failed to load dashboard")
		return
	}
	respond.OK(c, stats)
}

func (h *Handler) search(c *gin.Context) {
	result, err := h.Svc.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		WriteError(c, err, "search failed")
		return
	}
	respond.OK(c, result)
}

func (h *Handler) listAnalyses(c *gin.Context) {
	list, err := h.Svc.ListAnalyses(c.Request.Context())
	if err != nil {
		WriteError(c, err, "failed to list analyses")
		return
	}
	if list == nil {
		list = []AnalysisSummary{}
	}
	respond.OK(c, list)
}

func (h *Handler) createAnalysis(c *gin.Context) {
	var in AnalysisInput
	if !bindJSON(c, &in) {
		return
	}
	a, err := h.Svc.CreateAnalysis(c.Request.Context(), in)
	if err != nil {
		WriteError(c, err, "failed to create analysis")
		return
	}
	respond.Created(c, a)
}

func (h *Handler) getAnalysis(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	a, err := h.Svc.GetAnalysis(c.Request.Context(), id)
	if err != nil {
		WriteError(c, err, "failed to fetch analysis")
		return
	}
	respond.OK(c, a)
}

func (h *Handler) updateAnalysis(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	var in AnalysisInput
	if !bindJSON(c, &in) {
		return
	}
	a, err := h.Svc.UpdateAnalysis(c.Request.Context(), id, in)
	if err != nil {
		WriteError(c, err, "failed to update analysis")
		return
	}
	respond.OK(c, a)
}

func (h *Handler) deleteAnalysis(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.Svc.DeleteAnalysis(c.Request.Context(), id); err != nil {
		WriteError(c, err, "failed to delete analysis")
		return
	}
	respond.NoContent(c)
}

func (h *Handler) duplicateAnalysis(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	a, err := h.Svc.DuplicateAnalysis(c.Request.Context(), id)
	if err != nil {
		WriteError(c, err, "failed to duplicate analysis")
		return
	}
	respond.Created(c, a)
}

func (h *Handler) fieldTypes(c *gin.Context) {
	respond.OK(c, h.Svc.FieldTypes())
}

func (h *Handler) listFields(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	fields, err := h.Svc.ListFields(c.Request.Context(), id)
	if err != nil {
		WriteError(c, err, "failed to list fields")
		return
	}
	if fields == nil {
		fields = []Field{}
	}
	respond.OK(c, fields)
}

func (h *Handler) addField(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	var in FieldInput
	if !bindJSON(c, &in) {
		return
	}
	f, err := h.Svc.AddField(c.Request.Context(), id, in)
	if err != nil {
		WriteError(c, err, "failed to add field")
		return
	}
	respond.Created(c, f)
}

func (h *Handler) reorderFields(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	var body struct {
		FieldIDs []int64 `json:"fieldIds"`
	}
	if !bindJSON(c, &body) {
		return
	}
	fields, err := h.Svc.ReorderFields(c.Request.Context(), id, body.FieldIDs)
	if err != nil {
		WriteError(c, err, "failed to reorder fields")
		return
	}
	respond.OK(c, fields)
}

func (h *Handler) deleteField(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	fieldID, ok := ParamID(c, "fieldId")
	if !ok {
		return
	}
	if err := h.Svc.DeleteField(c.Request.Context(), id, fieldID); err != nil {
		WriteError(c, err, "failed to delete field")
		return
	}
	respond.NoContent(c)
}

func (h *Handler) createObject(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	var in ObjectInput
	if !bindJSON(c, &in) {
		return
	}
	obj, err := h.Svc.CreateObject(c.Request.Context(), id, in)
	if err != nil {
		WriteError(c, err, "failed to create object")
		return
	}
	respond.Created(c, obj)
}

func (h *Handler) getObject(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	objectID, ok := ParamID(c, "objectId")
	if !ok {
		return
	}
	obj, err := h.Svc.GetObject(c.Request.Context(), id, objectID)
	if err != nil {
		WriteError(c, err, "failed to fetch object")
		return
	}
	respond.OK(c, obj)
}

func (h *Handler) updateObject(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	objectID, ok := ParamID(c, "objectId")
	if !ok {
		return
	}
	var in ObjectInput
	if !bindJSON(c, &in) {
		return
	}
	obj, err := h.Svc.UpdateObject(c.Request.Context(), id, objectID, in)
	if err != nil {
		WriteError(c, err, "failed to update object")
		return
	}
	respond.OK(c, obj)
}

func (h *Handler) deleteObject(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	objectID, ok := ParamID(c, "objectId")
	if !ok {
		return
	}
	if err := h.Svc.DeleteObject(c.Request.Context(), id, objectID); err != nil {
		WriteError(c, err, "failed to delete object")
		return
	}
	respond.NoContent(c)
}
