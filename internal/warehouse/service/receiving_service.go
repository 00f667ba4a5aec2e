package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/clicsoporte/Tools-despachos-sub002/internal/erp"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/entity"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/repository"
	"go.uber.org/zap"
)

// ReceivingStep is a step of the guided receiving wizard.
type ReceivingStep string

const (
	StepSelectProduct    ReceivingStep = "select_product"
	StepSelectLocation   ReceivingStep = "select_location"
	StepConfirmSuggested ReceivingStep = "confirm_suggested"
	StepConfirmNew       ReceivingStep = "confirm_new"
	StepFinished         ReceivingStep = "finished"
)

var (
	ErrNoWizard      = errors.New("no active receiving wizard")
	ErrWrongStep     = errors.New("operation not valid at current wizard step")
	ErrCannotGoBack  = errors.New("cannot go back from the first step")
	ErrNoSuchProduct = errors.New("product not found in catalog")
)

// WizardState is the snapshot returned after every wizard interaction.
type WizardState struct {
	Step        ReceivingStep      `json:"step"`
	ProductID   string             `json:"product_id,omitempty"`
	ProductName string             `json:"product_name,omitempty"`
	ClientID    *string            `json:"client_id,omitempty"`
	Suggestions []SuggestionResult `json:"suggestions,omitempty"`
	// LocationID and LocationPath are set once a location has been chosen.
	LocationID   string `json:"location_id,omitempty"`
	LocationPath string `json:"location_path,omitempty"`
	// SaveAsDefault defaults to on only when the item had no suggestions.
	SaveAsDefault bool `json:"save_as_default"`
	// Unit is populated at the finished step.
	Unit *entity.InventoryUnit `json:"unit,omitempty"`
}

type wizardSession struct {
	step          ReceivingStep
	productID     string
	productName   string
	clientID      *string
	suggestions   []SuggestionResult
	locationID    string
	locationPath  string
	fromSuggested bool
	saveAsDefault bool
	unit          *entity.InventoryUnit
	startedAt     time.Time
}

// ReceivingService drives the step-by-step receiving wizard. Like dispatch
// sessions, wizards are per operator and in-memory until the final confirm.
type ReceivingService struct {
	repos     *repository.Repositories
	catalog   erp.ProductCatalog
	location  *LocationService
	inventory *InventoryService
	notifier  Notifier
	logger    *zap.Logger

	mu      sync.Mutex
	wizards map[string]*wizardSession
}

func NewReceivingService(
	repos *repository.Repositories,
	catalog erp.ProductCatalog,
	location *LocationService,
	inventory *InventoryService,
	notifier Notifier,
	logger *zap.Logger,
) *ReceivingService {
	return &ReceivingService{
		repos:     repos,
		catalog:   catalog,
		location:  location,
		inventory: inventory,
		notifier:  notifier,
		logger:    logger,
		wizards:   make(map[string]*wizardSession),
	}
}

// StartWizard opens a wizard at the product selection step.
func (s *ReceivingService) StartWizard(userID string) *WizardState {
	s.mu.Lock()
	defer s.mu.Unlock()
	wizard := &wizardSession{step: StepSelectProduct, startedAt: time.Now()}
	s.wizards[userID] = wizard
	return stateOf(wizard)
}

// State returns the current wizard snapshot.
func (s *ReceivingService) State(userID string) (*WizardState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wizard, ok := s.wizards[userID]
	if !ok {
		return nil, ErrNoWizard
	}
	return stateOf(wizard), nil
}

// Cancel drops the wizard without persisting anything.
func (s *ReceivingService) Cancel(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.wizards, userID)
}

// SelectProduct resolves the product, loads the location suggestions and
// advances to location selection. The save-as-default toggle starts on only
// when the product has no stored suggestions.
func (s *ReceivingService) SelectProduct(ctx context.Context, userID, productID string, clientID *string) (*WizardState, error) {
	s.mu.Lock()
	wizard, ok := s.wizards[userID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNoWizard
	}
	if wizard.step != StepSelectProduct {
		s.mu.Unlock()
		return nil, ErrWrongStep
	}
	s.mu.Unlock()

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, ErrNoSuchProduct
	}

	suggestions, err := s.inventory.Suggestions(ctx, productID, clientID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	wizard.productID = product.ID
	wizard.productName = product.Description
	wizard.clientID = clientID
	wizard.suggestions = suggestions
	wizard.saveAsDefault = len(suggestions) == 0
	wizard.step = StepSelectLocation
	return stateOf(wizard), nil
}

// ChooseSuggested picks one of the stored suggestions. Saving it again as a
// default would be redundant, so the toggle is forced off.
func (s *ReceivingService) ChooseSuggested(ctx context.Context, userID, locationID string) (*WizardState, error) {
	s.mu.Lock()
	wizard, ok := s.wizards[userID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNoWizard
	}
	if wizard.step != StepSelectLocation {
		s.mu.Unlock()
		return nil, ErrWrongStep
	}
	found := false
	for _, sug := range wizard.suggestions {
		if sug.Assignment.LocationID == locationID {
			found = true
			break
		}
	}
	s.mu.Unlock()
	if !found {
		return nil, repository.ErrNotFound
	}

	path, err := s.location.Path(ctx, locationID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	wizard.locationID = locationID
	wizard.locationPath = path
	wizard.fromSuggested = true
	wizard.saveAsDefault = false
	wizard.step = StepConfirmSuggested
	return stateOf(wizard), nil
}

// ChooseNew picks a location outside the suggestion list.
func (s *ReceivingService) ChooseNew(ctx context.Context, userID, locationID string) (*WizardState, error) {
	s.mu.Lock()
	wizard, ok := s.wizards[userID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNoWizard
	}
	if wizard.step != StepSelectLocation {
		s.mu.Unlock()
		return nil, ErrWrongStep
	}
	s.mu.Unlock()

	if _, err := s.location.Get(ctx, locationID); err != nil {
		return nil, err
	}
	path, err := s.location.Path(ctx, locationID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	wizard.locationID = locationID
	wizard.locationPath = path
	wizard.fromSuggested = false
	wizard.step = StepConfirmNew
	return stateOf(wizard), nil
}

// SetSaveAsDefault flips the toggle at a confirm step.
func (s *ReceivingService) SetSaveAsDefault(userID string, save bool) (*WizardState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wizard, ok := s.wizards[userID]
	if !ok {
		return nil, ErrNoWizard
	}
	if wizard.step != StepConfirmSuggested && wizard.step != StepConfirmNew {
		return nil, ErrWrongStep
	}
	wizard.saveAsDefault = save
	return stateOf(wizard), nil
}

// ConfirmRequest finishes the wizard.
type ConfirmRequest struct {
	Quantity        string `json:"quantity"`
	HumanReadableID string `json:"human_readable_id"`
	DocumentID      string `json:"document_id"`
	Notes           string `json:"notes"`
}

// Confirm registers the inventory unit and, when requested, stores the
// chosen location as the product's default.
func (s *ReceivingService) Confirm(ctx context.Context, userID, userName string, req *ConfirmRequest) (*WizardState, error) {
	s.mu.Lock()
	wizard, ok := s.wizards[userID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNoWizard
	}
	if wizard.step != StepConfirmSuggested && wizard.step != StepConfirmNew {
		s.mu.Unlock()
		return nil, ErrWrongStep
	}
	productID := wizard.productID
	clientID := wizard.clientID
	locationID := wizard.locationID
	saveDefault := wizard.saveAsDefault
	s.mu.Unlock()

	unit, err := s.inventory.CreateUnit(ctx, userName, &CreateUnitRequest{
		ProductID:       productID,
		HumanReadableID: req.HumanReadableID,
		DocumentID:      req.DocumentID,
		LocationID:      &locationID,
		Quantity:        req.Quantity,
		Notes:           req.Notes,
	})
	if err != nil {
		return nil, err
	}

	if saveDefault {
		if _, err := s.inventory.AssignItem(ctx, productID, locationID, clientID, userName); err != nil {
			// the unit exists; the missing default is recoverable by hand
			s.logger.Warn("saving default location failed",
				zap.String("product_id", productID),
				zap.String("location_id", locationID),
				zap.Error(err),
			)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	wizard.unit = unit
	wizard.step = StepFinished
	s.logger.Info("receiving wizard finished",
		zap.String("unit_code", unit.UnitCode),
		zap.String("product_id", productID),
		zap.String("user_id", userID),
	)
	return stateOf(wizard), nil
}

// GoBack rewinds the wizard one step. Selections made at the abandoned step
// are discarded and the save-as-default toggle is recomputed from the
// original suggestion set.
func (s *ReceivingService) GoBack(userID string) (*WizardState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wizard, ok := s.wizards[userID]
	if !ok {
		return nil, ErrNoWizard
	}

	switch wizard.step {
	case StepSelectProduct, StepFinished:
		return nil, ErrCannotGoBack
	case StepSelectLocation:
		wizard.productID = ""
		wizard.productName = ""
		wizard.clientID = nil
		wizard.suggestions = nil
		wizard.saveAsDefault = false
		wizard.step = StepSelectProduct
	case StepConfirmSuggested, StepConfirmNew:
		wizard.locationID = ""
		wizard.locationPath = ""
		wizard.fromSuggested = false
		wizard.saveAsDefault = len(wizard.suggestions) == 0
		wizard.step = StepSelectLocation
	}
	return stateOf(wizard), nil
}

// Label renders the printable label for the wizard's registered unit.
func (s *ReceivingService) Label(ctx context.Context, userID string) ([]byte, error) {
	s.mu.Lock()
	wizard, ok := s.wizards[userID]
	if !ok || wizard.step != StepFinished || wizard.unit == nil {
		s.mu.Unlock()
		if !ok {
			return nil, ErrNoWizard
		}
		return nil, ErrWrongStep
	}
	unitID := wizard.unit.ID
	s.mu.Unlock()

	return s.inventory.RenderUnitLabel(ctx, unitID)
}

func stateOf(wizard *wizardSession) *WizardState {
	state := &WizardState{
		Step:          wizard.step,
		ProductID:     wizard.productID,
		ProductName:   wizard.productName,
		ClientID:      wizard.clientID,
		LocationID:    wizard.locationID,
		LocationPath:  wizard.locationPath,
		SaveAsDefault: wizard.saveAsDefault,
		Unit:          wizard.unit,
	}
	if len(wizard.suggestions) > 0 {
		state.Suggestions = make([]SuggestionResult, len(wizard.suggestions))
		copy(state.Suggestions, wizard.suggestions)
	}
	return state
}
