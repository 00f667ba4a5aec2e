package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/clicsoporte/Tools-despachos-sub002/internal/erp"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/shared/labels"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/shared/mailer"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/shared/storage"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/entity"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionState is the step of a dispatch verification session.
type SessionState string

const (
	StateInitial   SessionState = "initial"
	StateLoading   SessionState = "loading"
	StateVerifying SessionState = "verifying"
	StateFinished  SessionState = "finished"
)

// ScanOutcome classifies the result of scanning a code.
type ScanOutcome string

const (
	// ScanAccepted counted the scan (strict mode) or applied the confirm.
	ScanAccepted ScanOutcome = "accepted"
	// ScanIncorrectItem means the code matches no line. Non-blocking.
	ScanIncorrectItem ScanOutcome = "incorrect_item"
	// ScanQuantityComplete means the line already meets its requirement.
	ScanQuantityComplete ScanOutcome = "quantity_complete"
	// ScanConfirmAll asks the operator whether all required units are present
	// (non-strict mode only).
	ScanConfirmAll ScanOutcome = "confirm_all"
)

// Workflow errors. The handler layer translates them into user messages.
var (
	ErrNoActiveSession  = errors.New("no active dispatch session")
	ErrWrongState       = errors.New("operation not valid in current session state")
	ErrLineNotFound     = errors.New("line not found in session")
	ErrInvalidQuantity  = errors.New("invalid quantity value")
	ErrQuantityDecrease = errors.New("verified quantity cannot decrease")
	ErrFinalizeInFlight = errors.New("finalize already in progress")
	// ErrChoiceRequired blocks a finalize with untouched lines: the operator
	// must choose between moving the document and accepting the discrepancy.
	ErrChoiceRequired = errors.New("document has untouched lines, move it or finalize with discrepancies")
	// ErrConfirmRequired blocks a finalize with partial or surplus lines
	// until the operator confirms.
	ErrConfirmRequired   = errors.New("document has discrepancies, confirmation required")
	ErrInvalidTransition = errors.New("assignment status transition not allowed")
)

// ScanResult is returned for every scan.
type ScanResult struct {
	Outcome ScanOutcome              `json:"outcome"`
	Message string                   `json:"message"`
	Item    *entity.VerificationItem `json:"item,omitempty"`
}

// QuantityResult is returned for manual quantity entry.
type QuantityResult struct {
	Exceeded bool                     `json:"exceeded"`
	Message  string                   `json:"message,omitempty"`
	Item     *entity.VerificationItem `json:"item"`
}

// Session is the externally visible snapshot of a dispatch session.
type Session struct {
	State          SessionState              `json:"state"`
	DocumentID     string                    `json:"document_id"`
	DocumentType   string                    `json:"document_type"`
	ClientName     string                    `json:"client_name"`
	ContainerID    string                    `json:"container_id,omitempty"`
	NextDocumentID string                    `json:"next_document_id,omitempty"`
	StrictMode     bool                      `json:"strict_mode"`
	Items          []entity.VerificationItem `json:"items"`
	StartedAt      time.Time                 `json:"started_at"`
}

// IsVerificationComplete reports whether every line meets its required
// quantity.
func (s *Session) IsVerificationComplete() bool {
	for _, item := range s.Items {
		if item.VerifiedQuantity < item.RequiredQuantity {
			return false
		}
	}
	return true
}

type dispatchSession struct {
	state          SessionState
	documentID     string
	documentType   string
	clientName     string
	clientEmail    string
	containerID    string
	assignmentID   string
	sortOrder      int
	nextDocumentID string
	strictMode     bool
	items          []entity.VerificationItem
	startedAt      time.Time
	finalizing     bool
}

// DispatchService runs the dispatch verification workflow. Sessions are
// in-memory and per operator; nothing touches durable storage until finalize.
type DispatchService struct {
	repos    *repository.Repositories
	source   erp.DocumentSource
	mail     mailer.Sender
	docs     *storage.DocumentStore
	notifier Notifier
	opts     Options
	logger   *zap.Logger

	mu       sync.Mutex
	sessions map[string]*dispatchSession
}

func NewDispatchService(
	repos *repository.Repositories,
	source erp.DocumentSource,
	mail mailer.Sender,
	docs *storage.DocumentStore,
	notifier Notifier,
	opts Options,
	logger *zap.Logger,
) *DispatchService {
	return &DispatchService{
		repos:    repos,
		source:   source,
		mail:     mail,
		docs:     docs,
		notifier: notifier,
		opts:     opts,
		logger:   logger,
		sessions: make(map[string]*dispatchSession),
	}
}

// SearchDocuments proxies the ERP search for the operator's document picker.
func (s *DispatchService) SearchDocuments(ctx context.Context, term string) ([]erp.DocumentRef, error) {
	return s.source.SearchDocuments(ctx, term)
}

// StartRequest begins a verification session.
type StartRequest struct {
	DocumentID  string `json:"document_id" binding:"required"`
	ContainerID string `json:"container_id"`
	Strict      *bool  `json:"strict"`
}

// Start loads a document and opens the verification session for the user.
// On fetch failure the session reverts to initial (no session remains).
func (s *DispatchService) Start(ctx context.Context, userID string, req *StartRequest) (*Session, error) {
	strict := s.opts.StrictScanMode
	if req.Strict != nil {
		strict = *req.Strict
	}

	session := &dispatchSession{
		state:       StateLoading,
		documentID:  req.DocumentID,
		containerID: req.ContainerID,
		strictMode:  strict,
		startedAt:   time.Now(),
	}
	s.mu.Lock()
	s.sessions[userID] = session
	s.mu.Unlock()

	invoice, err := s.source.GetInvoiceData(ctx, req.DocumentID)
	if err != nil {
		s.mu.Lock()
		delete(s.sessions, userID)
		s.mu.Unlock()
		return nil, fmt.Errorf("loading document %s: %w", req.DocumentID, err)
	}

	items := make([]entity.VerificationItem, 0, len(invoice.Lines))
	for _, line := range invoice.Lines {
		items = append(items, entity.VerificationItem{
			LineID:           line.LineID,
			ItemCode:         line.ItemCode,
			Description:      line.Description,
			Barcode:          line.Barcode,
			RequiredQuantity: line.Quantity,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session.documentType = invoice.Header.DocumentType
	session.clientName = invoice.Header.ClientName
	session.clientEmail = invoice.Header.ClientEmail
	session.items = items
	session.state = StateVerifying

	// when the document belongs to a container, precompute the next pending
	// document for "proceed to next" navigation
	if assignment, err := s.repos.Dispatch.FindAssignmentByDocument(ctx, req.DocumentID); err == nil {
		session.assignmentID = assignment.ID
		session.sortOrder = assignment.SortOrder
		if session.containerID == "" {
			session.containerID = assignment.ContainerID
		}
		if next, err := s.repos.Dispatch.NextPending(ctx, assignment.ContainerID, assignment.SortOrder); err == nil {
			session.nextDocumentID = next.DocumentID
		}
	}

	return snapshotOf(session), nil
}

// Snapshot returns the current session state for re-rendering.
func (s *DispatchService) Snapshot(userID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[userID]
	if !ok {
		return nil, ErrNoActiveSession
	}
	return snapshotOf(session), nil
}

// Abandon drops the in-memory session. Nothing was persisted.
func (s *DispatchService) Abandon(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

// Scan processes one scanned code (barcode or item code).
func (s *DispatchService) Scan(userID, code string) (*ScanResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[userID]
	if !ok {
		return nil, ErrNoActiveSession
	}
	if session.state != StateVerifying {
		return nil, ErrWrongState
	}

	code = strings.TrimSpace(code)
	item := findItem(session.items, code)
	if item == nil {
		return &ScanResult{Outcome: ScanIncorrectItem, Message: "Artículo Incorrecto"}, nil
	}

	if item.VerifiedQuantity >= item.RequiredQuantity {
		copied := *item
		return &ScanResult{Outcome: ScanQuantityComplete, Message: "Cantidad Completa", Item: &copied}, nil
	}

	if session.strictMode {
		// one scan, one unit
		item.VerifiedQuantity++
		item.DisplayVerifiedQuantity = strconv.FormatFloat(item.VerifiedQuantity, 'f', -1, 64)
		copied := *item
		return &ScanResult{Outcome: ScanAccepted, Item: &copied}, nil
	}

	copied := *item
	return &ScanResult{
		Outcome: ScanConfirmAll,
		Message: fmt.Sprintf("¿Están presentes las %g unidades de %s?", item.RequiredQuantity, item.ItemCode),
		Item:    &copied,
	}, nil
}

// ConfirmAll resolves the non-strict confirmation prompt. Accepting sets the
// line to its required quantity and flags the manual override; declining
// leaves the line for manual entry.
func (s *DispatchService) ConfirmAll(userID, lineID string, accept bool) (*entity.VerificationItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[userID]
	if !ok {
		return nil, ErrNoActiveSession
	}
	if session.state != StateVerifying {
		return nil, ErrWrongState
	}

	item := findItemByLine(session.items, lineID)
	if item == nil {
		return nil, ErrLineNotFound
	}

	// a line already at or above requirement keeps its count
	if accept && item.VerifiedQuantity < item.RequiredQuantity {
		item.VerifiedQuantity = item.RequiredQuantity
		item.DisplayVerifiedQuantity = strconv.FormatFloat(item.VerifiedQuantity, 'f', -1, 64)
		item.IsManualOverride = true
	}
	copied := *item
	return &copied, nil
}

// SetQuantity applies a manual quantity entry. Surplus is accepted but
// flagged; a decrease is rejected.
func (s *DispatchService) SetQuantity(userID, lineID, raw string) (*QuantityResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[userID]
	if !ok {
		return nil, ErrNoActiveSession
	}
	if session.state != StateVerifying {
		return nil, ErrWrongState
	}

	item := findItemByLine(session.items, lineID)
	if item == nil {
		return nil, ErrLineNotFound
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(raw, ",", ".")), 64)
	if err != nil || value < 0 {
		return nil, ErrInvalidQuantity
	}
	if value < item.VerifiedQuantity {
		return nil, ErrQuantityDecrease
	}

	item.VerifiedQuantity = value
	item.DisplayVerifiedQuantity = raw
	item.IsManualOverride = true

	copied := *item
	result := &QuantityResult{Item: &copied}
	if value > item.RequiredQuantity {
		result.Exceeded = true
		result.Message = "Cantidad Excedida"
	}
	return result, nil
}

// FinalizeRequest closes a verification session.
type FinalizeRequest struct {
	Notes        string `json:"notes"`
	VehiclePlate string `json:"vehicle_plate"`
	DriverName   string `json:"driver_name"`
	// AcceptDiscrepancies acknowledges the confirmation dialog.
	AcceptDiscrepancies bool     `json:"accept_discrepancies"`
	RenderPDF           bool     `json:"render_pdf"`
	SendEmailTo         []string `json:"send_email_to"`
}

// FinalizeResult reports what the finalize produced.
type FinalizeResult struct {
	Log            *entity.DispatchLog     `json:"log"`
	Status         entity.AssignmentStatus `json:"status"`
	ReceiptObject  string                  `json:"receipt_object,omitempty"`
	NextDocumentID string                  `json:"next_document_id,omitempty"`
	Warnings       []string                `json:"warnings,omitempty"`
}

// Finalize writes the audit record and persists the assignment status.
// Guards, in order: untouched lines force a move-or-accept choice, then any
// other mismatch requires confirmation. Side effects (PDF, email) run after
// the log is durably written; their failures are reported, not fatal.
func (s *DispatchService) Finalize(ctx context.Context, userID, userName string, req *FinalizeRequest) (*FinalizeResult, error) {
	s.mu.Lock()
	session, ok := s.sessions[userID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNoActiveSession
	}
	if session.state != StateVerifying {
		s.mu.Unlock()
		return nil, ErrWrongState
	}
	if session.finalizing {
		s.mu.Unlock()
		return nil, ErrFinalizeInFlight
	}

	hasZeroLine := false
	hasDiscrepancy := false
	for _, item := range session.items {
		if item.VerifiedQuantity == 0 && item.RequiredQuantity > 0 {
			hasZeroLine = true
		}
		if item.HasDiscrepancy() {
			hasDiscrepancy = true
		}
	}

	if hasZeroLine && !req.AcceptDiscrepancies {
		s.mu.Unlock()
		return nil, ErrChoiceRequired
	}
	if hasDiscrepancy && !req.AcceptDiscrepancies {
		s.mu.Unlock()
		return nil, ErrConfirmRequired
	}

	session.finalizing = true
	items := make([]entity.VerificationItem, len(session.items))
	copy(items, session.items)
	snapshot := *session
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		session.finalizing = false
		s.mu.Unlock()
	}()

	status := entity.AssignmentStatusCompleted
	if hasDiscrepancy {
		status = entity.AssignmentStatusDiscrepancy
	}

	// validate the transition before anything is written
	var assignment *entity.DispatchAssignment
	if snapshot.assignmentID != "" {
		if a, err := s.repos.Dispatch.FindAssignmentByDocument(ctx, snapshot.documentID); err == nil {
			if !a.Status.CanTransitionTo(status) {
				return nil, ErrInvalidTransition
			}
			assignment = a
		}
	}

	log := &entity.DispatchLog{
		ID:                 uuid.New().String()[:32],
		DocumentID:         snapshot.documentID,
		DocumentType:       snapshot.documentType,
		VerifiedAt:         time.Now(),
		VerifiedByUserID:   userID,
		VerifiedByUserName: userName,
		Items:              items,
		Notes:              req.Notes,
		VehiclePlate:       req.VehiclePlate,
		DriverName:         req.DriverName,
		CreatedAt:          time.Now(),
	}
	if err := s.repos.Dispatch.CreateLog(ctx, log); err != nil {
		return nil, fmt.Errorf("writing dispatch log: %w", err)
	}

	if assignment != nil {
		if err := s.repos.Dispatch.UpdateAssignmentStatus(ctx, assignment.ID, status); err != nil {
			return nil, fmt.Errorf("updating assignment status: %w", err)
		}
	}

	result := &FinalizeResult{
		Log:            log,
		Status:         status,
		NextDocumentID: snapshot.nextDocumentID,
	}

	if s.notifier != nil {
		s.notifier.DispatchCompleted(snapshot.documentID, snapshot.containerID, string(status))
	}

	if req.RenderPDF {
		if name, err := s.archiveReceipt(ctx, &snapshot, log); err != nil {
			result.Warnings = append(result.Warnings, "PDF: "+err.Error())
		} else {
			result.ReceiptObject = name
		}
	}

	if len(req.SendEmailTo) > 0 {
		if err := s.emailSummary(&snapshot, log, req.SendEmailTo); err != nil {
			result.Warnings = append(result.Warnings, "email: "+err.Error())
		}
	}

	s.mu.Lock()
	session.state = StateFinished
	s.mu.Unlock()

	s.logger.Info("dispatch finalized",
		zap.String("document_id", snapshot.documentID),
		zap.String("status", string(status)),
		zap.String("user_id", userID),
	)
	return result, nil
}

// MoveToContainer reassigns the in-progress document to another container,
// marks it partial, logs the partial dispatch and closes the session.
func (s *DispatchService) MoveToContainer(ctx context.Context, userID, userName, toContainerID string) error {
	s.mu.Lock()
	session, ok := s.sessions[userID]
	if !ok {
		s.mu.Unlock()
		return ErrNoActiveSession
	}
	if session.state != StateVerifying {
		s.mu.Unlock()
		return ErrWrongState
	}
	items := make([]entity.VerificationItem, len(session.items))
	copy(items, session.items)
	documentID := session.documentID
	documentType := session.documentType
	fromContainer := session.containerID
	s.mu.Unlock()

	assignment, err := s.repos.Dispatch.MoveAssignment(ctx, documentID, toContainerID)
	if err != nil {
		return fmt.Errorf("moving document %s: %w", documentID, err)
	}

	if assignment.Status.CanTransitionTo(entity.AssignmentStatusPartial) {
		if err := s.repos.Dispatch.UpdateAssignmentStatus(ctx, assignment.ID, entity.AssignmentStatusPartial); err != nil {
			return fmt.Errorf("updating assignment status: %w", err)
		}
	}

	log := &entity.DispatchLog{
		ID:                 uuid.New().String()[:32],
		DocumentID:         documentID,
		DocumentType:       documentType,
		VerifiedAt:         time.Now(),
		VerifiedByUserID:   userID,
		VerifiedByUserName: userName,
		Items:              items,
		Notes:              fmt.Sprintf("Despacho parcial: documento movido al contenedor %s", toContainerID),
		IsPartial:          true,
		CreatedAt:          time.Now(),
	}
	if err := s.repos.Dispatch.CreateLog(ctx, log); err != nil {
		return fmt.Errorf("writing partial dispatch log: %w", err)
	}

	if s.notifier != nil {
		s.notifier.ContainerUpdate(fromContainer, "document_moved")
		s.notifier.ContainerUpdate(toContainerID, "document_received")
	}

	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
	return nil
}

func (s *DispatchService) archiveReceipt(ctx context.Context, session *dispatchSession, log *entity.DispatchLog) (string, error) {
	lines := make([]labels.ReceiptLine, 0, len(log.Items))
	for _, item := range log.Items {
		lines = append(lines, labels.ReceiptLine{
			ItemCode:    item.ItemCode,
			Description: item.Description,
			Required:    item.RequiredQuantity,
			Verified:    item.VerifiedQuantity,
		})
	}

	pdf, err := labels.RenderDispatchReceipt(labels.Receipt{
		DocumentID:   log.DocumentID,
		ClientName:   session.clientName,
		VerifiedBy:   log.VerifiedByUserName,
		VerifiedAt:   log.VerifiedAt.Format("2006-01-02 15:04"),
		VehiclePlate: log.VehiclePlate,
		DriverName:   log.DriverName,
		Notes:        log.Notes,
		Lines:        lines,
	})
	if err != nil {
		return "", err
	}

	if s.docs == nil {
		return "", errors.New("document store not configured")
	}
	name := fmt.Sprintf("despacho-%s-%s.pdf", log.DocumentID, log.ID[:8])
	return s.docs.Put(ctx, "receipts", name, pdf, "application/pdf")
}

func (s *DispatchService) emailSummary(session *dispatchSession, log *entity.DispatchLog, to []string) error {
	if s.mail == nil {
		return errors.New("mailer not configured")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<h2>Despacho %s</h2>", log.DocumentID)
	fmt.Fprintf(&b, "<p>Cliente: %s<br>Verificado por: %s (%s)</p>", session.clientName, log.VerifiedByUserName, log.VerifiedAt.Format("2006-01-02 15:04"))
	b.WriteString(`<table border="1" cellpadding="4" cellspacing="0"><tr><th>Código</th><th>Descripción</th><th>Requerido</th><th>Verificado</th></tr>`)
	for _, item := range log.Items {
		color := "#ccf0cc" // green: exact
		switch {
		case item.VerifiedQuantity == 0 || item.VerifiedQuantity > item.RequiredQuantity:
			color = "#f5cccc" // red: zero or over
		case item.VerifiedQuantity < item.RequiredQuantity:
			color = "#faebbe" // amber: short
		}
		fmt.Fprintf(&b, `<tr style="background:%s"><td>%s</td><td>%s</td><td align="right">%g</td><td align="right">%g</td></tr>`,
			color, item.ItemCode, item.Description, item.RequiredQuantity, item.VerifiedQuantity)
	}
	b.WriteString("</table>")
	if log.Notes != "" {
		fmt.Fprintf(&b, "<p><i>%s</i></p>", log.Notes)
	}

	return s.mail.Send(mailer.Message{
		To:      to,
		Subject: fmt.Sprintf("Despacho %s verificado", log.DocumentID),
		HTML:    b.String(),
	})
}

func snapshotOf(session *dispatchSession) *Session {
	items := make([]entity.VerificationItem, len(session.items))
	copy(items, session.items)
	return &Session{
		State:          session.state,
		DocumentID:     session.documentID,
		DocumentType:   session.documentType,
		ClientName:     session.clientName,
		ContainerID:    session.containerID,
		NextDocumentID: session.nextDocumentID,
		StrictMode:     session.strictMode,
		Items:          items,
		StartedAt:      session.startedAt,
	}
}

func findItem(items []entity.VerificationItem, code string) *entity.VerificationItem {
	for i := range items {
		if items[i].Barcode != "" && strings.EqualFold(items[i].Barcode, code) {
			return &items[i]
		}
		if strings.EqualFold(items[i].ItemCode, code) {
			return &items[i]
		}
	}
	return nil
}

func findItemByLine(items []entity.VerificationItem, lineID string) *entity.VerificationItem {
	for i := range items {
		if items[i].LineID == lineID {
			return &items[i]
		}
	}
	return nil
}
