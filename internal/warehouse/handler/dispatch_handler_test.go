package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/clicsoporte/Tools-despachos-sub002/internal/erp"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/entity"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/repository"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/service"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/testutil"
	"go.uber.org/zap"
)

type stubSource struct {
	invoices map[string]*erp.Invoice
}

func (s *stubSource) SearchDocuments(ctx context.Context, term string) ([]erp.DocumentRef, error) {
	refs := make([]erp.DocumentRef, 0)
	for id, inv := range s.invoices {
		refs = append(refs, erp.DocumentRef{
			ID:         id,
			Type:       inv.Header.DocumentType,
			ClientID:   inv.Header.ClientID,
			ClientName: inv.Header.ClientName,
		})
	}
	return refs, nil
}

func (s *stubSource) GetInvoiceData(ctx context.Context, documentID string) (*erp.Invoice, error) {
	inv, ok := s.invoices[documentID]
	if !ok {
		return nil, erp.ErrDocumentNotFound
	}
	return inv, nil
}

func setupDispatchTest(t *testing.T) *testutil.TestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	router := testutil.SetupRouter()

	source := &stubSource{invoices: map[string]*erp.Invoice{
		"FAC-500": {
			Header: erp.InvoiceHeader{
				DocumentID:   "FAC-500",
				DocumentType: "FAC",
				ClientID:     "C-9",
				ClientName:   "Ferretería El Tornillo",
			},
			Lines: []erp.InvoiceLine{
				{LineID: "1", ItemCode: "P-100", Description: "Tornillo 1/4", Barcode: "7441001", Quantity: 3, Unit: "UND"},
			},
		},
	}}

	repos := repository.NewRepositories(db)
	opts := service.Options{StrictScanMode: true, PathSeparator: " / "}
	svc := service.NewDispatchService(repos, source, nil, nil, nil, opts, zap.NewNop())
	h := NewDispatchHandler(svc)

	api := testutil.AuthGroup(router, "/api/v1")
	dispatch := api.Group("/dispatch")
	dispatch.GET("/documents", h.SearchDocuments)
	dispatch.POST("/session", h.StartSession)
	dispatch.GET("/session", h.GetSession)
	dispatch.DELETE("/session", h.AbandonSession)
	dispatch.POST("/session/scan", h.Scan)
	dispatch.POST("/session/quantity", h.SetQuantity)
	dispatch.POST("/session/finalize", h.Finalize)
	dispatch.POST("/containers", h.CreateContainer)
	dispatch.GET("/containers/:id/progress", h.ContainerProgress)

	return &testutil.TestEnv{DB: db, Router: router, T: t}
}

func TestDispatchSessionFlow(t *testing.T) {
	env := setupDispatchTest(t)
	token := testutil.DefaultTestToken()

	// no session yet
	w := testutil.DoRequest(env.Router, "GET", "/api/v1/dispatch/session", nil, token)
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404 before starting, got %d", w.Code)
	}

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/dispatch/session",
		map[string]interface{}{"document_id": "FAC-500"}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["state"] != "verifying" {
		t.Errorf("Expected state verifying, got %v", data["state"])
	}
	if data["client_name"] != "Ferretería El Tornillo" {
		t.Errorf("Unexpected client name: %v", data["client_name"])
	}

	// finalize with nothing verified needs an explicit choice
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/dispatch/session/finalize",
		map[string]interface{}{}, token)
	if w.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d", w.Code)
	}
	resp := testutil.ParseResponse(w)
	if resp["code"].(float64) != 40901 {
		t.Errorf("Expected business code 40901, got %v", resp["code"])
	}

	// three strict scans complete the line
	for i := 0; i < 3; i++ {
		w = testutil.DoRequest(env.Router, "POST", "/api/v1/dispatch/session/scan",
			map[string]interface{}{"code": "7441001"}, token)
		if w.Code != http.StatusOK {
			t.Fatalf("Scan %d: expected 200, got %d: %s", i+1, w.Code, w.Body.String())
		}
	}
	scan := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if scan["outcome"] != "quantity_complete" {
		t.Errorf("Expected quantity_complete on last scan, got %v", scan["outcome"])
	}

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/dispatch/session/finalize",
		map[string]interface{}{"vehicle_plate": "CL-123456"}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	result := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if result["status"] != string(entity.AssignmentStatusCompleted) {
		t.Errorf("Expected completed, got %v", result["status"])
	}

	var count int64
	env.DB.Model(&entity.DispatchLog{}).Where("document_id = ?", "FAC-500").Count(&count)
	if count != 1 {
		t.Errorf("Expected one log row, got %d", count)
	}
}

func TestDispatchStartUnknownDocument(t *testing.T) {
	env := setupDispatchTest(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/dispatch/session",
		map[string]interface{}{"document_id": "FAC-999"}, token)
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestDispatchQuantityValidationOverHTTP(t *testing.T) {
	env := setupDispatchTest(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/dispatch/session",
		map[string]interface{}{"document_id": "FAC-500"}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("start: %d", w.Code)
	}

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/dispatch/session/quantity",
		map[string]interface{}{"line_id": "1", "quantity": "abc"}, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for garbage quantity, got %d", w.Code)
	}

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/dispatch/session/quantity",
		map[string]interface{}{"line_id": "1", "quantity": "2,5"}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	item := data["item"].(map[string]interface{})
	if item["verified_quantity"].(float64) != 2.5 {
		t.Errorf("Expected 2.5, got %v", item["verified_quantity"])
	}
}

func TestContainerProgressOverHTTP(t *testing.T) {
	env := setupDispatchTest(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/dispatch/containers",
		map[string]interface{}{"name": "Ruta Norte"}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	containerID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	testutil.SeedAssignment(t, env.DB, "a1", containerID, "FAC-500", entity.AssignmentStatusPending, 1)
	testutil.SeedAssignment(t, env.DB, "a2", containerID, "FAC-501", entity.AssignmentStatusCompleted, 2)

	w = testutil.DoRequest(env.Router, "GET", "/api/v1/dispatch/containers/"+containerID+"/progress", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["total"].(float64) != 2 || data["completed"].(float64) != 1 {
		t.Errorf("Unexpected progress: %v", data)
	}
}
