package export

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"compare-backend/internal/analyses"
	"compare-backend/internal/matrix"
	local "compare-backend/internal/shared/storage/object/local"
)

type exportFixture struct {
	router   *gin.Engine
	analysis analyses.Analysis
	price    analyses.Field
	object   analyses.Object
}

func setupExportRouter(t *testing.T) exportFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx := context.Background()
	repo := analyses.NewMemoryRepo()
	svc := analyses.NewService(repo, analyses.DefaultTypeSet())

	a, err := svc.CreateAnalysis(ctx, analyses.AnalysisInput{Name: "Coffee Grinders", Category: "Kitchen"})
	if err != nil {
		t.Fatalf("create analysis: %v", err)
	}
	price, err := svc.AddField(ctx, a.ID, analyses.FieldInput{Name: "Price", Type: analyses.FieldTypePrice})
	if err != nil {
		t.Fatalf("add field: %v", err)
	}
	obj, err := svc.CreateObject(ctx, a.ID, analyses.ObjectInput{
		Name:   "Burr One",
		Brand:  "Grindco",
		Values: map[int64]string{price.ID: "129"},
	})
	if err != nil {
		t.Fatalf("create object: %v", err)
	}

	h := NewHandler(matrix.NewBuilder(repo), NewArchiver(local.New(t.TempDir())))
	r := gin.New()
	h.RegisterRoutes(r.Group("/api/v1"))
	return exportFixture{router: r, analysis: a, price: price, object: obj}
}

func TestDownloadCSV(t *testing.T) {
	fx := setupExportRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses/1/export?format=csv", nil)
	resp := httptest.NewRecorder()
	fx.router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if ct := resp.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := resp.Header().Get("Content-Disposition"); cd != `attachment; filename="Coffee_Grinders.csv"` {
		t.Fatalf("unexpected content disposition %q", cd)
	}
	if resp.Header().Get("ETag") == "" {
		t.Fatalf("expected ETag header")
	}
	lines := strings.Split(strings.TrimSpace(resp.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %q", resp.Body.String())
	}
	if !strings.HasPrefix(lines[1], "Burr One,Grindco,,") || !strings.HasSuffix(lines[1], ",129") {
		t.Fatalf("unexpected data row %q", lines[1])
	}
}

func TestDownloadRejectsUnknownFormat(t *testing.T) {
	fx := setupExportRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses/1/export?format=xlsx", nil)
	resp := httptest.NewRecorder()
	fx.router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestDownloadMissingAnalysis(t *testing.T) {
	fx := setupExportRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses/99/export?format=json", nil)
	resp := httptest.NewRecorder()
	fx.router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Error.Code != "not_found" {
		t.Fatalf("expected not_found code, got %q", body.Error.Code)
	}
}

func TestMatrixEndpoint(t *testing.T) {
	fx := setupExportRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses/1/matrix", nil)
	resp := httptest.NewRecorder()
	fx.router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var body struct {
		Fields []analyses.Field             `json:"fields"`
		Cells  map[string]map[string]string `json:"cells"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Fields) != 1 || body.Fields[0].Name != "Price" {
		t.Fatalf("unexpected fields %+v", body.Fields)
	}
	if body.Cells["1"]["1"] != "129" {
		t.Fatalf("unexpected cells %v", body.Cells)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	fx := setupExportRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses/1/exports?format=yaml", nil)
	resp := httptest.NewRecorder()
	fx.router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.HasPrefix(snap.Key, "analyses/1/") || !strings.HasSuffix(snap.Key, ".yaml") {
		t.Fatalf("unexpected snapshot key %q", snap.Key)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/exports/"+snap.Key, nil)
	resp = httptest.NewRecorder()
	fx.router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/yaml" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(resp.Body.String(), "name: Coffee Grinders") {
		t.Fatalf("unexpected snapshot body %q", resp.Body.String())
	}
}

func TestSnapshotMissingKey(t *testing.T) {
	fx := setupExportRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/exports/analyses/1/nope.csv", nil)
	resp := httptest.NewRecorder()
	fx.router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}
