package service

import (
	"context"
	"errors"
	"testing"

	"github.com/clicsoporte/Tools-despachos-sub002/internal/erp"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/entity"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/repository"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeCatalog struct {
	products map[string]*erp.Product
}

func (f *fakeCatalog) GetProduct(ctx context.Context, id string) (*erp.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, errors.New("product not found")
	}
	return p, nil
}

func newReceivingService(t *testing.T) (*ReceivingService, *InventoryService, *recordingNotifier, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	testutil.SeedUnitCounter(t, db, "CLIC", 1)
	testutil.SeedLocation(t, db, "n1", "R1-A-1", "Posición 1", entity.LocationTypeBin, nil)
	testutil.SeedLocation(t, db, "n2", "R1-A-2", "Posición 2", entity.LocationTypeBin, nil)

	repos := repository.NewRepositories(db)
	catalog := &fakeCatalog{products: map[string]*erp.Product{
		"PROD-1": {ID: "PROD-1", Description: "Tornillo 3mm", Barcode: "7441001"},
	}}
	notifier := &recordingNotifier{}
	location := NewLocationService(repos, Options{PathSeparator: " / "}, zap.NewNop())
	inventory := NewInventoryService(repos, catalog, location, notifier, zap.NewNop())
	receiving := NewReceivingService(repos, catalog, location, inventory, notifier, zap.NewNop())
	return receiving, inventory, notifier, db
}

func TestWizardDefaultToggleWithoutSuggestions(t *testing.T) {
	svc, _, _, _ := newReceivingService(t)
	ctx := context.Background()

	state := svc.StartWizard("user-a")
	assert.Equal(t, StepSelectProduct, state.Step)

	state, err := svc.SelectProduct(ctx, "user-a", "PROD-1", nil)
	require.NoError(t, err)
	assert.Equal(t, StepSelectLocation, state.Step)
	assert.Empty(t, state.Suggestions)
	// no stored default: the toggle starts on
	assert.True(t, state.SaveAsDefault)

	state, err = svc.ChooseNew(ctx, "user-a", "n1")
	require.NoError(t, err)
	assert.Equal(t, StepConfirmNew, state.Step)
	assert.True(t, state.SaveAsDefault)
	assert.Equal(t, "Posición 1", state.LocationPath)
}

func TestWizardSuggestedChoiceForcesToggleOff(t *testing.T) {
	svc, inventory, _, _ := newReceivingService(t)
	ctx := context.Background()

	_, err := inventory.AssignItem(ctx, "PROD-1", "n1", nil, "Ana")
	require.NoError(t, err)

	svc.StartWizard("user-a")
	state, err := svc.SelectProduct(ctx, "user-a", "PROD-1", nil)
	require.NoError(t, err)
	require.Len(t, state.Suggestions, 1)
	// a stored default exists: the toggle starts off
	assert.False(t, state.SaveAsDefault)

	state, err = svc.ChooseSuggested(ctx, "user-a", "n1")
	require.NoError(t, err)
	assert.Equal(t, StepConfirmSuggested, state.Step)
	assert.False(t, state.SaveAsDefault)

	// picking a location outside the suggestion list is rejected here
	svc.StartWizard("user-b")
	_, err = svc.SelectProduct(ctx, "user-b", "PROD-1", nil)
	require.NoError(t, err)
	_, err = svc.ChooseSuggested(ctx, "user-b", "n2")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestWizardConfirmCreatesUnitAndDefault(t *testing.T) {
	svc, _, notifier, db := newReceivingService(t)
	ctx := context.Background()

	svc.StartWizard("user-a")
	_, err := svc.SelectProduct(ctx, "user-a", "PROD-1", nil)
	require.NoError(t, err)
	_, err = svc.ChooseNew(ctx, "user-a", "n1")
	require.NoError(t, err)

	state, err := svc.Confirm(ctx, "user-a", "Ana", &ConfirmRequest{Quantity: "12,5", DocumentID: "OC-55"})
	require.NoError(t, err)
	assert.Equal(t, StepFinished, state.Step)
	require.NotNil(t, state.Unit)
	assert.Equal(t, "CLIC00001", state.Unit.UnitCode)
	assert.Equal(t, 12.5, state.Unit.Quantity)
	require.Len(t, notifier.units, 1)

	// the toggle was on, so the location became the product default
	var assignments []entity.ItemLocation
	require.NoError(t, db.Where("item_id = ?", "PROD-1").Find(&assignments).Error)
	require.Len(t, assignments, 1)
	assert.Equal(t, "n1", assignments[0].LocationID)
}

func TestWizardConfirmWithToggleOffSkipsDefault(t *testing.T) {
	svc, _, _, db := newReceivingService(t)
	ctx := context.Background()

	svc.StartWizard("user-a")
	_, err := svc.SelectProduct(ctx, "user-a", "PROD-1", nil)
	require.NoError(t, err)
	_, err = svc.ChooseNew(ctx, "user-a", "n2")
	require.NoError(t, err)
	_, err = svc.SetSaveAsDefault("user-a", false)
	require.NoError(t, err)

	_, err = svc.Confirm(ctx, "user-a", "Ana", &ConfirmRequest{Quantity: "1"})
	require.NoError(t, err)

	var count int64
	db.Model(&entity.ItemLocation{}).Where("item_id = ?", "PROD-1").Count(&count)
	assert.Zero(t, count)
}

func TestWizardGoBackRecomputesToggle(t *testing.T) {
	svc, _, _, _ := newReceivingService(t)
	ctx := context.Background()

	svc.StartWizard("user-a")
	_, err := svc.SelectProduct(ctx, "user-a", "PROD-1", nil)
	require.NoError(t, err)
	_, err = svc.ChooseNew(ctx, "user-a", "n1")
	require.NoError(t, err)
	_, err = svc.SetSaveAsDefault("user-a", false)
	require.NoError(t, err)

	// going back discards the location and restores the computed default
	state, err := svc.GoBack("user-a")
	require.NoError(t, err)
	assert.Equal(t, StepSelectLocation, state.Step)
	assert.Empty(t, state.LocationID)
	assert.True(t, state.SaveAsDefault)

	state, err = svc.GoBack("user-a")
	require.NoError(t, err)
	assert.Equal(t, StepSelectProduct, state.Step)
	assert.Empty(t, state.ProductID)

	_, err = svc.GoBack("user-a")
	assert.ErrorIs(t, err, ErrCannotGoBack)
}

func TestWizardStepGuards(t *testing.T) {
	svc, _, _, _ := newReceivingService(t)
	ctx := context.Background()

	_, err := svc.State("user-a")
	assert.ErrorIs(t, err, ErrNoWizard)

	svc.StartWizard("user-a")
	_, err = svc.ChooseNew(ctx, "user-a", "n1")
	assert.ErrorIs(t, err, ErrWrongStep)
	_, err = svc.Confirm(ctx, "user-a", "Ana", &ConfirmRequest{Quantity: "1"})
	assert.ErrorIs(t, err, ErrWrongStep)

	_, err = svc.SelectProduct(ctx, "user-a", "PROD-404", nil)
	assert.ErrorIs(t, err, ErrNoSuchProduct)

	svc.Cancel("user-a")
	_, err = svc.State("user-a")
	assert.ErrorIs(t, err, ErrNoWizard)
}
