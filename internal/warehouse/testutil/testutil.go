package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clicsoporte/Tools-despachos-sub002/internal/middleware"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/entity"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const JWTSecret = "despachos-test-secret"

// TestEnv holds test environment resources
type TestEnv struct {
	DB     *gorm.DB
	Router *gin.Engine
	T      *testing.T
}

// SetupTestDB opens an isolated in-memory database with the full schema.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// shared cache keeps the in-memory database alive across pooled
	// connections within one test
	dsn := fmt.Sprintf("file:test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	// one writer connection, same as production: serializes transactions
	// instead of surfacing SQLITE_BUSY
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	err = db.AutoMigrate(
		&entity.Location{},
		&entity.ItemLocation{},
		&entity.InventoryUnit{},
		&entity.Movement{},
		&entity.ConfigEntry{},
		&entity.DispatchLog{},
		&entity.DispatchContainer{},
		&entity.DispatchAssignment{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	})

	return db
}

// SetupRouter creates a gin test router.
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup creates an API group with JWT auth middleware for testing.
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// GenerateTestToken creates a valid JWT token for testing.
func GenerateTestToken(userID, name, email string, roles, permissions []string) string {
	if roles == nil {
		roles = []string{}
	}
	if permissions == nil {
		permissions = []string{}
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"uid":   userID,
		"name":  name,
		"email": email,
		"roles": roles,
		"perms": permissions,
		"iss":   "tools-despachos",
		"iat":   now.Unix(),
		"exp":   now.Add(24 * time.Hour).Unix(),
		"jti":   fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// DefaultTestToken returns a token for a default admin test user.
func DefaultTestToken() string {
	return GenerateTestToken(
		"test-user-001",
		"Usuario Prueba",
		"pruebas@clicsoporte.com",
		[]string{"warehouse_admin"},
		[]string{"*"},
	)
}

// DoRequest executes an HTTP request against the test router.
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body into a map.
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// SeedLocation creates a location row.
func SeedLocation(t *testing.T, db *gorm.DB, id, code, name string, locType entity.LocationType, parentID *string) *entity.Location {
	t.Helper()
	location := &entity.Location{
		ID:        id,
		Name:      name,
		Code:      code,
		Type:      locType,
		ParentID:  parentID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.Create(location).Error; err != nil {
		t.Fatalf("Failed to seed location: %v", err)
	}
	return location
}

// SeedUnitCounter seeds the unit code prefix and counter.
func SeedUnitCounter(t *testing.T, db *gorm.DB, prefix string, counter int) {
	t.Helper()
	rows := []entity.ConfigEntry{
		{Key: entity.ConfigKeyUnitPrefix, Value: prefix, UpdatedAt: time.Now()},
		{Key: entity.ConfigKeyUnitCounter, Value: fmt.Sprintf("%d", counter), UpdatedAt: time.Now()},
	}
	for _, row := range rows {
		if err := db.Create(&row).Error; err != nil {
			t.Fatalf("Failed to seed config: %v", err)
		}
	}
}

// SeedContainer creates a dispatch container.
func SeedContainer(t *testing.T, db *gorm.DB, id, name string) *entity.DispatchContainer {
	t.Helper()
	container := &entity.DispatchContainer{
		ID:        id,
		Name:      name,
		CreatedBy: "Usuario Prueba",
		CreatedAt: time.Now(),
	}
	if err := db.Create(container).Error; err != nil {
		t.Fatalf("Failed to seed container: %v", err)
	}
	return container
}

// SeedAssignment binds a document to a container.
func SeedAssignment(t *testing.T, db *gorm.DB, id, containerID, documentID string, status entity.AssignmentStatus, sortOrder int) *entity.DispatchAssignment {
	t.Helper()
	assignment := &entity.DispatchAssignment{
		ID:          id,
		ContainerID: containerID,
		DocumentID:  documentID,
		Status:      status,
		SortOrder:   sortOrder,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := db.Create(assignment).Error; err != nil {
		t.Fatalf("Failed to seed assignment: %v", err)
	}
	return assignment
}
