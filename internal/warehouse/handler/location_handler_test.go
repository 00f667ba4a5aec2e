package handler

import (
	"net/http"
	"testing"

	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/entity"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/repository"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/service"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/testutil"
	"go.uber.org/zap"
)

func setupLocationTest(t *testing.T) *testutil.TestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	router := testutil.SetupRouter()

	repos := repository.NewRepositories(db)
	locationSvc := service.NewLocationService(repos, service.Options{PathSeparator: " / "}, zap.NewNop())
	inventorySvc := service.NewInventoryService(repos, nil, locationSvc, nil, zap.NewNop())
	h := NewLocationHandler(locationSvc, inventorySvc)

	api := testutil.AuthGroup(router, "/api/v1")
	api.GET("/locations", h.List)
	api.POST("/locations", h.Create)
	api.POST("/locations/racks", h.CreateRack)
	api.POST("/locations/lock", h.Lock)
	api.POST("/locations/release", h.Release)
	api.GET("/locations/:id", h.Get)
	api.GET("/locations/:id/path", h.Path)
	api.DELETE("/locations/:id", h.Delete)

	return &testutil.TestEnv{DB: db, Router: router, T: t}
}

func TestLocationCreateAndGet(t *testing.T) {
	env := setupLocationTest(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/locations",
		map[string]interface{}{"name": "Bodega Central", "code": "bod-01", "type": "building"}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["code"] != "BOD-01" {
		t.Errorf("Expected normalized code BOD-01, got %v", data["code"])
	}
	id := data["id"].(string)

	w = testutil.DoRequest(env.Router, "GET", "/api/v1/locations/"+id, nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	// duplicate code is a conflict
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/locations",
		map[string]interface{}{"name": "Otra", "code": "BOD-01", "type": "building"}, token)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409, got %d", w.Code)
	}

	// invalid type is a bad request
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/locations",
		map[string]interface{}{"name": "X", "code": "X-1", "type": "gaveta"}, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestLocationRequiresAuth(t *testing.T) {
	env := setupLocationTest(t)

	w := testutil.DoRequest(env.Router, "GET", "/api/v1/locations", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 without token, got %d", w.Code)
	}
}

func TestLocationRackAndPath(t *testing.T) {
	env := setupLocationTest(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/locations/racks",
		map[string]interface{}{"name": "Rack 1", "prefix": "R1", "levels": 2, "positions": 2, "depth": 1}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["count"].(float64) != 11 { // 1 + 2 + 4 + 4
		t.Errorf("Expected 11 nodes, got %v", data["count"])
	}

	// resolve on the database to find a leaf and ask for its path
	var leaf entity.Location
	if err := env.DB.Where("code = ?", "R1-B-2-F").First(&leaf).Error; err != nil {
		t.Fatalf("Expected generated leaf R1-B-2-F: %v", err)
	}
	w = testutil.DoRequest(env.Router, "GET", "/api/v1/locations/"+leaf.ID+"/path", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	resp = testutil.ParseResponse(w)
	path := resp["data"].(map[string]interface{})["path"].(string)
	if path == "" {
		t.Error("Expected a non-empty path")
	}

	// invalid template parameters
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/locations/racks",
		map[string]interface{}{"name": "Rack X", "prefix": "RX", "levels": 30, "positions": 2}, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid template, got %d", w.Code)
	}
}

func TestLocationLockConflict(t *testing.T) {
	env := setupLocationTest(t)
	tokenA := testutil.GenerateTestToken("user-a", "Ana", "ana@test.com", nil, []string{"*"})
	tokenB := testutil.GenerateTestToken("user-b", "Beto", "beto@test.com", nil, []string{"*"})

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/locations",
		map[string]interface{}{"name": "Bodega", "code": "BOD-01", "type": "building"}, tokenA)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", w.Code)
	}
	id := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/locations/lock",
		map[string]interface{}{"ids": []string{id}}, tokenA)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/locations/lock",
		map[string]interface{}{"ids": []string{id}}, tokenB)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for foreign lock, got %d", w.Code)
	}

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/locations/release",
		map[string]interface{}{"ids": []string{id}}, tokenB)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for foreign release, got %d", w.Code)
	}

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/locations/release",
		map[string]interface{}{"ids": []string{id}}, tokenA)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for owner release, got %d", w.Code)
	}
}

func TestLocationDeleteInUse(t *testing.T) {
	env := setupLocationTest(t)
	token := testutil.DefaultTestToken()

	location := testutil.SeedLocation(t, env.DB, "n1", "R1-A-1", "Posición 1", entity.LocationTypeBin, nil)
	locID := location.ID
	unit := &entity.InventoryUnit{ID: "u1", UnitCode: "CLIC00001", ProductID: "P-1", LocationID: &locID, Quantity: 1}
	if err := env.DB.Create(unit).Error; err != nil {
		t.Fatalf("seed unit: %v", err)
	}

	w := testutil.DoRequest(env.Router, "DELETE", "/api/v1/locations/"+location.ID, nil, token)
	if w.Code != http.StatusConflict {
		t.Fatalf("Expected 409 for occupied location, got %d: %s", w.Code, w.Body.String())
	}

	env.DB.Delete(&entity.InventoryUnit{}, "id = ?", "u1")
	w = testutil.DoRequest(env.Router, "DELETE", "/api/v1/locations/"+location.ID, nil, token)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 after freeing location, got %d", w.Code)
	}
}
