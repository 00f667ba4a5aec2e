package service

import (
	"github.com/clicsoporte/Tools-despachos-sub002/internal/erp"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/shared/mailer"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/shared/storage"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/repository"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/sse"
	"go.uber.org/zap"
)

// Notifier broadcasts warehouse events to connected clients. Injected so the
// workflows can run headless in tests.
type Notifier interface {
	DispatchCompleted(documentID, containerID, status string)
	ContainerUpdate(containerID, action string)
	UnitReceived(unitCode, productID, locationID string)
}

// SSENotifier publishes through the global SSE hub.
type SSENotifier struct{}

func (SSENotifier) DispatchCompleted(documentID, containerID, status string) {
	sse.PublishDispatchCompleted(documentID, containerID, status)
}

func (SSENotifier) ContainerUpdate(containerID, action string) {
	sse.PublishContainerUpdate(containerID, action)
}

func (SSENotifier) UnitReceived(unitCode, productID, locationID string) {
	sse.PublishUnitReceived(unitCode, productID, locationID)
}

// Options carries the module-level settings the services need.
type Options struct {
	PathSeparator  string
	UnitCodePrefix string
	StrictScanMode bool
}

// Services is the warehouse service collection.
type Services struct {
	Location  *LocationService
	Inventory *InventoryService
	Dispatch  *DispatchService
	Receiving *ReceivingService
}

// NewServices wires the warehouse services. mail and docs may be nil
// (disabled); notifier may be nil (no broadcasts).
func NewServices(
	repos *repository.Repositories,
	source erp.DocumentSource,
	catalog erp.ProductCatalog,
	mail mailer.Sender,
	docs *storage.DocumentStore,
	notifier Notifier,
	opts Options,
	logger *zap.Logger,
) *Services {
	if opts.PathSeparator == "" {
		opts.PathSeparator = " / "
	}

	location := NewLocationService(repos, opts, logger)
	inventory := NewInventoryService(repos, catalog, location, notifier, logger)
	dispatch := NewDispatchService(repos, source, mail, docs, notifier, opts, logger)
	receiving := NewReceivingService(repos, catalog, location, inventory, notifier, logger)

	return &Services{
		Location:  location,
		Inventory: inventory,
		Dispatch:  dispatch,
		Receiving: receiving,
	}
}
