package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/entity"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/testutil"
	"gorm.io/gorm"
)

func newLocation(id, code string, locType entity.LocationType, parentID *string) *entity.Location {
	return &entity.Location{
		ID:        id,
		Name:      "Ubicación " + code,
		Code:      code,
		Type:      locType,
		ParentID:  parentID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func seedTree(t *testing.T, db *gorm.DB) *LocationRepository {
	t.Helper()
	repo := NewLocationRepository(db)
	ctx := context.Background()

	// building > zone > rack > shelf > bin
	must := func(loc *entity.Location) {
		if err := repo.Create(ctx, loc); err != nil {
			t.Fatalf("seed %s: %v", loc.Code, err)
		}
	}
	must(newLocation("b1", "BOD-01", entity.LocationTypeBuilding, nil))
	must(newLocation("z1", "BOD-01-Z1", entity.LocationTypeZone, ptr("b1")))
	must(newLocation("r1", "R1", entity.LocationTypeRack, ptr("z1")))
	must(newLocation("s1", "R1-A", entity.LocationTypeShelf, ptr("r1")))
	must(newLocation("n1", "R1-A-1", entity.LocationTypeBin, ptr("s1")))
	return repo
}

func ptr(s string) *string { return &s }

func TestLocationDuplicateCode(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := seedTree(t, db)
	ctx := context.Background()

	err := repo.Create(ctx, newLocation("dup", "R1-A-1", entity.LocationTypeBin, ptr("s1")))
	if !errors.Is(err, ErrDuplicateCode) {
		t.Fatalf("Expected ErrDuplicateCode, got %v", err)
	}
}

func TestLocationSubtreeAndPath(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := seedTree(t, db)
	ctx := context.Background()

	subtree, err := repo.Subtree(ctx, "z1")
	if err != nil {
		t.Fatalf("Subtree: %v", err)
	}
	if len(subtree) != 4 {
		t.Errorf("Expected 4 nodes under zone, got %d", len(subtree))
	}

	path, err := repo.Path(ctx, "n1", " / ")
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	want := "Ubicación BOD-01 / Ubicación BOD-01-Z1 / Ubicación R1 / Ubicación R1-A / Ubicación R1-A-1"
	if path != want {
		t.Errorf("Path mismatch:\n got %q\nwant %q", path, want)
	}
}

func TestLocationPathToleratesDanglingParent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewLocationRepository(db)
	ctx := context.Background()

	orphan := newLocation("o1", "HUERFANO", entity.LocationTypeBin, ptr("missing-parent"))
	if err := repo.Create(ctx, orphan); err != nil {
		t.Fatalf("Create: %v", err)
	}

	path, err := repo.Path(ctx, "o1", " / ")
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	if path != "Ubicación HUERFANO" {
		t.Errorf("Expected orphan-only path, got %q", path)
	}
}

func TestLocationPathCycleGuard(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := seedTree(t, db)
	ctx := context.Background()

	// corrupt the tree: building points at its own descendant
	db.Model(&entity.Location{}).Where("id = ?", "b1").Update("parent_id", "n1")

	path, err := repo.Path(ctx, "n1", " / ")
	if err != nil {
		t.Fatalf("Path on cyclic tree: %v", err)
	}
	if path == "" {
		t.Error("Expected a truncated path, got empty string")
	}
}

func TestLocationDeleteCascadesSubtree(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := seedTree(t, db)
	ctx := context.Background()

	if err := repo.Delete(ctx, "r1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := repo.FindByID(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected shelf deleted, got %v", err)
	}
	if _, err := repo.FindByID(ctx, "n1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected bin deleted, got %v", err)
	}
	if _, err := repo.FindByID(ctx, "z1"); err != nil {
		t.Errorf("Zone should survive, got %v", err)
	}
}

func TestLocationDeleteBlockedByUnits(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := seedTree(t, db)
	ctx := context.Background()

	unit := &entity.InventoryUnit{
		ID:         "u1",
		UnitCode:   "CLIC00001",
		ProductID:  "PROD-1",
		LocationID: ptr("n1"),
		Quantity:   1,
		CreatedAt:  time.Now(),
	}
	if err := db.Create(unit).Error; err != nil {
		t.Fatalf("seed unit: %v", err)
	}

	// deleting any ancestor of the occupied bin must fail
	if err := repo.Delete(ctx, "r1"); !errors.Is(err, ErrLocationInUse) {
		t.Fatalf("Expected ErrLocationInUse, got %v", err)
	}
	if _, err := repo.FindByID(ctx, "n1"); err != nil {
		t.Errorf("Bin should survive failed delete, got %v", err)
	}
}

func TestLocationDeleteBlockedByAssignments(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := seedTree(t, db)
	ctx := context.Background()

	assignment := &entity.ItemLocation{
		ID:         "a1",
		ItemID:     "PROD-1",
		LocationID: "n1",
		UpdatedBy:  "tester",
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := db.Create(assignment).Error; err != nil {
		t.Fatalf("seed assignment: %v", err)
	}

	if err := repo.Delete(ctx, "n1"); !errors.Is(err, ErrLocationInUse) {
		t.Fatalf("Expected ErrLocationInUse, got %v", err)
	}
}

func TestLocationLockRelease(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := seedTree(t, db)
	ctx := context.Background()

	if err := repo.Lock(ctx, []string{"r1", "s1"}, "user-a", "Ana"); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	// second user cannot take an already held lock
	if err := repo.Lock(ctx, []string{"s1"}, "user-b", "Beto"); !errors.Is(err, ErrLocked) {
		t.Fatalf("Expected ErrLocked, got %v", err)
	}

	// only the holder can release
	if err := repo.Release(ctx, []string{"r1"}, "user-b"); !errors.Is(err, ErrNotLockOwner) {
		t.Fatalf("Expected ErrNotLockOwner, got %v", err)
	}
	if err := repo.Release(ctx, []string{"r1", "s1"}, "user-a"); err != nil {
		t.Fatalf("Release: %v", err)
	}

	loc, err := repo.FindByID(ctx, "s1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if loc.IsLocked {
		t.Error("Expected lock cleared after release")
	}
}

func TestLocationForceRelease(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := seedTree(t, db)
	ctx := context.Background()

	if err := repo.Lock(ctx, []string{"n1"}, "user-a", "Ana"); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if err := repo.ForceRelease(ctx, "n1"); err != nil {
		t.Fatalf("ForceRelease: %v", err)
	}

	loc, _ := repo.FindByID(ctx, "n1")
	if loc.IsLocked || loc.LockedByUserID != "" {
		t.Error("Expected lock evicted by force release")
	}
}

func TestLocationFindAllFilters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := seedTree(t, db)
	ctx := context.Background()

	racks, err := repo.FindAll(ctx, map[string]string{"type": "rack"})
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if len(racks) != 1 || racks[0].ID != "r1" {
		t.Errorf("Expected one rack r1, got %+v", racks)
	}

	children, err := repo.FindAll(ctx, map[string]string{"parent_id": "r1"})
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if len(children) != 1 || children[0].ID != "s1" {
		t.Errorf("Expected shelf s1, got %+v", children)
	}
}
