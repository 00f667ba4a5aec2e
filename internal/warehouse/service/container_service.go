package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clicsoporte/Tools-despachos-sub002/internal/erp"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/shared/export"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/entity"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Container and routing operations. These live on DispatchService because
// they share the assignment lifecycle with the verification workflow.

// CreateContainer opens a new dispatch container.
func (s *DispatchService) CreateContainer(ctx context.Context, name, userName string) (*entity.DispatchContainer, error) {
	container := &entity.DispatchContainer{
		ID:        uuid.New().String()[:32],
		Name:      name,
		CreatedBy: userName,
		CreatedAt: time.Now(),
	}
	if err := s.repos.Dispatch.CreateContainer(ctx, container); err != nil {
		return nil, err
	}
	s.logger.Info("container created", zap.String("container_id", container.ID), zap.String("name", name))
	return container, nil
}

// GetContainer returns a container with its assignments in route order.
func (s *DispatchService) GetContainer(ctx context.Context, id string) (*entity.DispatchContainer, error) {
	return s.repos.Dispatch.FindContainerByID(ctx, id)
}

// ListContainers returns all containers, newest first.
func (s *DispatchService) ListContainers(ctx context.Context) ([]entity.DispatchContainer, error) {
	return s.repos.Dispatch.ListContainers(ctx)
}

// DeleteContainer removes an empty container.
func (s *DispatchService) DeleteContainer(ctx context.Context, id string) error {
	return s.repos.Dispatch.DeleteContainer(ctx, id)
}

// LockContainer takes the cooperative lock for the user.
func (s *DispatchService) LockContainer(ctx context.Context, id, userID, userName string) error {
	if err := s.repos.Dispatch.LockContainer(ctx, id, userID, userName); err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.ContainerUpdate(id, "locked")
	}
	return nil
}

// UnlockContainer releases the lock. With force any holder is evicted.
func (s *DispatchService) UnlockContainer(ctx context.Context, id, userID string, force bool) error {
	if err := s.repos.Dispatch.UnlockContainer(ctx, id, userID, force); err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.ContainerUpdate(id, "unlocked")
	}
	return nil
}

// AddDocument assigns an ERP document to a container, pulling the client
// identity from the document header.
func (s *DispatchService) AddDocument(ctx context.Context, containerID, documentID string) (*entity.DispatchAssignment, error) {
	if _, err := s.repos.Dispatch.FindContainerByID(ctx, containerID); err != nil {
		return nil, err
	}

	invoice, err := s.source.GetInvoiceData(ctx, documentID)
	if err != nil {
		if errors.Is(err, erp.ErrDocumentNotFound) {
			return nil, fmt.Errorf("document %s: %w", documentID, err)
		}
		return nil, fmt.Errorf("loading document %s: %w", documentID, err)
	}

	assignment := &entity.DispatchAssignment{
		ID:           uuid.New().String()[:32],
		ContainerID:  containerID,
		DocumentID:   documentID,
		DocumentType: invoice.Header.DocumentType,
		ClientID:     invoice.Header.ClientID,
		ClientName:   invoice.Header.ClientName,
		Status:       entity.AssignmentStatusPending,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := s.repos.Dispatch.CreateAssignment(ctx, assignment); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.ContainerUpdate(containerID, "document_added")
	}
	return assignment, nil
}

// ContainerProgress summarizes a container's route.
type ContainerProgress struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Flagged   int `json:"flagged"`
}

// Progress counts assignment states for a container.
func (s *DispatchService) Progress(ctx context.Context, containerID string) (*ContainerProgress, error) {
	assignments, err := s.repos.Dispatch.FindAssignmentsByContainer(ctx, containerID)
	if err != nil {
		return nil, err
	}

	progress := &ContainerProgress{Total: len(assignments)}
	for _, a := range assignments {
		switch a.Status {
		case entity.AssignmentStatusCompleted:
			progress.Completed++
		case entity.AssignmentStatusDiscrepancy, entity.AssignmentStatusPartial:
			progress.Flagged++
		default:
			progress.Pending++
		}
	}
	return progress, nil
}

// DocumentHistory returns the audit trail for one document, newest first.
func (s *DispatchService) DocumentHistory(ctx context.Context, documentID string) ([]entity.DispatchLog, error) {
	return s.repos.Dispatch.FindLogsByDocument(ctx, documentID)
}

// ListLogs pages through the dispatch audit log.
func (s *DispatchService) ListLogs(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.DispatchLog, int64, error) {
	return s.repos.Dispatch.ListLogs(ctx, page, pageSize, filters)
}

// ExportLogs renders the filtered audit log as a spreadsheet.
func (s *DispatchService) ExportLogs(ctx context.Context, filters map[string]string) ([]byte, error) {
	logs, _, err := s.repos.Dispatch.ListLogs(ctx, 1, 10000, filters)
	if err != nil {
		return nil, err
	}
	return export.DispatchLogs(logs)
}
