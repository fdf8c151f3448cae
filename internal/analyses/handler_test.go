package analyses

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func setupAnalysisRouter(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc, _ := newTestService()
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r, svc
}

func doJSON(t *testing.T, r http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return body.Error.Code
}

func TestCreateAnalysisEndpoint(t *testing.T) {
	router, _ := setupAnalysisRouter(t)

	resp := doJSON(t, router, http.MethodPost, "/api/v1/analyses", map[string]string{
		"name":     "Smart Watches",
		"category": "Wearables",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created Analysis
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.ID == 0 || created.Name != "Smart Watches" {
		t.Fatalf("unexpected analysis %+v", created)
	}

	resp = doJSON(t, router, http.MethodGet, "/api/v1/analyses", nil)
	var list []AnalysisSummary
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].ObjectCount != 0 {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestCreateAnalysisValidationEnvelope(t *testing.T) {
	router, _ := setupAnalysisRouter(t)

	resp := doJSON(t, router, http.MethodPost, "/api/v1/analyses", map[string]string{"name": "  "})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
	if code := decodeError(t, resp); code != ErrorCodeValidation {
		t.Fatalf("expected validation_error, got %q", code)
	}
}

func TestGetAnalysisNotFoundAndBadID(t *testing.T) {
	router, _ := setupAnalysisRouter(t)

	resp := doJSON(t, router, http.MethodGet, "/api/v1/analyses/77", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
	if code := decodeError(t, resp); code != ErrorCodeNotFound {
		t.Fatalf("expected not_found, got %q", code)
	}

	resp = doJSON(t, router, http.MethodGet, "/api/v1/analyses/abc", nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for malformed id, got %d", resp.Code)
	}
}

func TestFieldAndObjectLifecycle(t *testing.T) {
	router, svc := setupAnalysisRouter(t)
	a := mustAnalysis(t, svc, "Vacuums")
	base := fmt.Sprintf("/api/v1/analyses/%d", a.ID)

	resp := doJSON(t, router, http.MethodPost, base+"/fields", map[string]any{"name": "Suction", "type": "number", "unit": "Pa", "required": true})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var suction Field
	_ = json.NewDecoder(resp.Body).Decode(&suction)

	resp = doJSON(t, router, http.MethodPost, base+"/fields", map[string]any{"name": "Bin", "type": "hologram"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for invalid type, got %d", resp.Code)
	}

	resp = doJSON(t, router, http.MethodPost, base+"/objects", map[string]any{
		"name":   "V8",
		"brand":  "Dyson",
		"values": map[string]string{fmt.Sprint(suction.ID): "150"},
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var obj Object
	_ = json.NewDecoder(resp.Body).Decode(&obj)

	objPath := fmt.Sprintf("%s/objects/%d", base, obj.ID)
	resp = doJSON(t, router, http.MethodGet, objPath, nil)
	var withValues ObjectWithValues
	if err := json.NewDecoder(resp.Body).Decode(&withValues); err != nil {
		t.Fatalf("decode object: %v", err)
	}
	if withValues.Values[suction.ID] != "150" {
		t.Fatalf("unexpected values %v", withValues.Values)
	}

	resp = doJSON(t, router, http.MethodPut, objPath, map[string]any{"name": "V8 Abs", "values": map[string]string{}})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	resp = doJSON(t, router, http.MethodDelete, fmt.Sprintf("%s/fields/%d", base, suction.ID), nil)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", resp.Code)
	}

	resp = doJSON(t, router, http.MethodDelete, objPath, nil)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", resp.Code)
	}
	resp = doJSON(t, router, http.MethodDelete, objPath, nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 on second delete, got %d", resp.Code)
	}
}

func TestReorderEndpoint(t *testing.T) {
	router, svc := setupAnalysisRouter(t)
	a := mustAnalysis(t, svc, "Boards")
	f1 := mustField(t, svc, a.ID, FieldInput{Name: "Length"})
	f2 := mustField(t, svc, a.ID, FieldInput{Name: "Width"})

	resp := doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/analyses/%d/fields/reorder", a.ID), map[string]any{
		"fieldIds": []int64{f2.ID, f1.ID},
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var fields []Field
	if err := json.NewDecoder(resp.Body).Decode(&fields); err != nil {
		t.Fatalf("decode fields: %v", err)
	}
	if fields[0].ID != f2.ID || fields[0].DisplayOrder != 0 || fields[1].DisplayOrder != 1 {
		t.Fatalf("unexpected order %+v", fields)
	}
}

func TestDuplicateAndDeleteEndpoints(t *testing.T) {
	router, svc := setupAnalysisRouter(t)
	a := mustAnalysis(t, svc, "Mattresses")

	resp := doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/analyses/%d/duplicate", a.ID), nil)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", resp.Code)
	}
	var dup Analysis
	_ = json.NewDecoder(resp.Body).Decode(&dup)
	if dup.Name != "Mattresses (Copy)" {
		t.Fatalf("unexpected duplicate name %q", dup.Name)
	}

	resp = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/v1/analyses/%d", a.ID), nil)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", resp.Code)
	}
	resp = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/v1/analyses/%d", dup.ID), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected duplicate to survive source deletion, got %d", resp.Code)
	}
}

func TestSearchDashboardAndFieldTypes(t *testing.T) {
	router, svc := setupAnalysisRouter(t)
	mustAnalysis(t, svc, "Robot Mowers")

	resp := doJSON(t, router, http.MethodGet, "/api/v1/search?q=mower", nil)
	var result SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode search: %v", err)
	}
	if len(result.Analyses) != 1 || result.Objects == nil {
		t.Fatalf("unexpected search result %+v", result)
	}

	resp = doJSON(t, router, http.MethodGet, "/api/v1/dashboard", nil)
	var stats Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if stats.TotalAnalyses != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	resp = doJSON(t, router, http.MethodGet, "/api/v1/analyses/1/field-types", nil)
	var types []FieldTypeOption
	if err := json.NewDecoder(resp.Body).Decode(&types); err != nil {
		t.Fatalf("decode field types: %v", err)
	}
	if len(types) != 8 || types[3].Label != "Yes/No" {
		t.Fatalf("unexpected field types %+v", types)
	}
}
