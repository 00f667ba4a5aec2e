package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/entity"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/testutil"
)

func TestUnitCodeSequence(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedUnitCounter(t, db, "CLIC", 1)
	repo := NewInventoryUnitRepository(db)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		unit := &entity.InventoryUnit{
			ProductID: "PROD-1",
			Quantity:  1,
			CreatedAt: time.Now(),
		}
		if err := repo.Create(ctx, unit); err != nil {
			t.Fatalf("Create #%d: %v", i, err)
		}
		want := fmt.Sprintf("CLIC%05d", i)
		if unit.UnitCode != want {
			t.Errorf("Expected code %s, got %s", want, unit.UnitCode)
		}
	}
}

func TestUnitCodeWithoutPrefix(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewInventoryUnitRepository(db)
	ctx := context.Background()

	unit := &entity.InventoryUnit{ProductID: "PROD-1", Quantity: 1}
	if err := repo.Create(ctx, unit); err == nil {
		t.Fatal("Expected error when unit code prefix is not configured")
	}
}

func TestUnitCodeConcurrentUniqueness(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedUnitCounter(t, db, "CLIC", 1)
	repo := NewInventoryUnitRepository(db)
	ctx := context.Background()

	const workers = 10
	codes := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unit := &entity.InventoryUnit{ProductID: "PROD-1", Quantity: 1, CreatedAt: time.Now()}
			if err := repo.Create(ctx, unit); err != nil {
				t.Errorf("concurrent Create: %v", err)
				codes <- ""
				return
			}
			codes <- unit.UnitCode
		}()
	}
	wg.Wait()
	close(codes)

	seen := make(map[string]bool)
	for code := range codes {
		if code == "" {
			continue
		}
		if seen[code] {
			t.Fatalf("Duplicate unit code issued: %s", code)
		}
		seen[code] = true
	}
	if len(seen) != workers {
		t.Errorf("Expected %d distinct codes, got %d", workers, len(seen))
	}
}

func TestUnitLookupExpandsBareNumber(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedUnitCounter(t, db, "CLIC", 42)
	repo := NewInventoryUnitRepository(db)
	ctx := context.Background()

	unit := &entity.InventoryUnit{ProductID: "PROD-1", Quantity: 1, CreatedAt: time.Now()}
	if err := repo.Create(ctx, unit); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// full code, lowercase full code and bare sequence number all resolve
	for _, query := range []string{"CLIC00042", "clic00042", "42"} {
		found, err := repo.FindByCode(ctx, query)
		if err != nil {
			t.Errorf("FindByCode(%q): %v", query, err)
			continue
		}
		if found.ID != unit.ID {
			t.Errorf("FindByCode(%q): wrong unit %s", query, found.ID)
		}
	}

	if _, err := repo.FindByCode(ctx, "99"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown number, got %v", err)
	}
}

func TestUnitMoveRecordsMovement(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedUnitCounter(t, db, "CLIC", 1)
	testutil.SeedLocation(t, db, "n1", "R1-A-1", "Posición 1", entity.LocationTypeBin, nil)
	testutil.SeedLocation(t, db, "n2", "R1-A-2", "Posición 2", entity.LocationTypeBin, nil)
	repo := NewInventoryUnitRepository(db)
	ctx := context.Background()

	from := "n1"
	unit := &entity.InventoryUnit{ProductID: "PROD-1", LocationID: &from, Quantity: 1, CreatedAt: time.Now()}
	if err := repo.Create(ctx, unit); err != nil {
		t.Fatalf("Create: %v", err)
	}

	to := "n2"
	if err := repo.Move(ctx, unit.ID, &to, "Ana", "reacomodo"); err != nil {
		t.Fatalf("Move: %v", err)
	}

	moved, err := repo.FindByID(ctx, unit.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if moved.LocationID == nil || *moved.LocationID != "n2" {
		t.Errorf("Expected unit at n2, got %v", moved.LocationID)
	}

	var movements []entity.Movement
	if err := db.Where("unit_id = ?", unit.ID).Find(&movements).Error; err != nil {
		t.Fatalf("query movements: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("Expected 1 movement, got %d", len(movements))
	}
	m := movements[0]
	if m.FromLocationID == nil || *m.FromLocationID != "n1" || m.ToLocationID == nil || *m.ToLocationID != "n2" {
		t.Errorf("Movement endpoints wrong: %+v", m)
	}
	if m.MovedBy != "Ana" {
		t.Errorf("Expected MovedBy Ana, got %s", m.MovedBy)
	}
}

func TestItemLocationUpsert(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedLocation(t, db, "n1", "R1-A-1", "Posición 1", entity.LocationTypeBin, nil)
	testutil.SeedLocation(t, db, "n2", "R1-A-2", "Posición 2", entity.LocationTypeBin, nil)
	repo := NewItemLocationRepository(db)
	ctx := context.Background()

	first, err := repo.Upsert(ctx, "PROD-1", "n1", nil, "Ana")
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	// same item+client updates in place instead of duplicating
	second, err := repo.Upsert(ctx, "PROD-1", "n2", nil, "Beto")
	if err != nil {
		t.Fatalf("Upsert update: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("Expected update of existing row, got new id %s", second.ID)
	}
	if second.LocationID != "n2" || second.UpdatedBy != "Beto" {
		t.Errorf("Upsert did not apply changes: %+v", second)
	}

	// a client-specific default is a separate row
	client := "CLI-7"
	third, err := repo.Upsert(ctx, "PROD-1", "n1", &client, "Ana")
	if err != nil {
		t.Fatalf("Upsert client: %v", err)
	}
	if third.ID == first.ID {
		t.Error("Client-specific default must not overwrite the general one")
	}

	all, err := repo.FindByItem(ctx, "PROD-1", nil)
	if err != nil {
		t.Fatalf("FindByItem: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 assignments, got %d", len(all))
	}
}
