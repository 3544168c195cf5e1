package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/deskforge/api/internal/domain"
	"github.com/deskforge/api/internal/repositories"
)

const (
	ticketIDPrefix = "tck_"
	ticketEntity   = "ticket"
)

var (
	// ErrTicketInvalidInput signals the caller provided invalid data.
	ErrTicketInvalidInput = errors.New("ticket: invalid input")
	// ErrTicketNotFound indicates the ticket could not be located.
	ErrTicketNotFound = errors.New("ticket: not found")
	// ErrTicketConflict indicates conflicting writes.
	ErrTicketConflict = errors.New("ticket: conflict")
	// ErrTicketUnavailable indicates the backing store rejected the request transiently.
	ErrTicketUnavailable = errors.New("ticket: storage unavailable")
)

var validTicketStatuses = map[domain.TicketStatus]struct{}{
	domain.TicketStatusOpen:     {},
	domain.TicketStatusPending:  {},
	domain.TicketStatusResolved: {},
	domain.TicketStatusClosed:   {},
}

var validTicketPriorities = map[domain.TicketPriority]struct{}{
	domain.TicketPriorityLow:    {},
	domain.TicketPriorityNormal: {},
	domain.TicketPriorityHigh:   {},
	domain.TicketPriorityUrgent: {},
}

// TicketServiceDeps bundles collaborators required to construct the ticket service.
type TicketServiceDeps struct {
	Tickets     repositories.TicketRepository
	Events      EventPublisher
	Audit       AuditLogService
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type ticketService struct {
	tickets   repositories.TicketRepository
	events    EventPublisher
	audit     AuditLogService
	sanitizer *bluemonday.Policy
	clock     func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
}

// NewTicketService wires dependencies into a concrete TicketService implementation.
// Ticket bodies arrive from end users, so they pass through an HTML sanitizer
// before storage.
func NewTicketService(deps TicketServiceDeps) (TicketService, error) {
	if deps.Tickets == nil {
		return nil, errors.New("ticket service: ticket repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &ticketService{
		tickets:   deps.Tickets,
		events:    deps.Events,
		audit:     deps.Audit,
		sanitizer: bluemonday.UGCPolicy(),
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *ticketService) Create(ctx context.Context, cmd CreateTicketCommand) (Ticket, error) {
	subject := strings.TrimSpace(cmd.Subject)
	if subject == "" {
		return Ticket{}, fmt.Errorf("%w: subject is required", ErrTicketInvalidInput)
	}
	requester := strings.TrimSpace(cmd.RequesterID)
	if requester == "" {
		return Ticket{}, fmt.Errorf("%w: requester id is required", ErrTicketInvalidInput)
	}

	priority := cmd.Priority
	if priority == "" {
		priority = domain.TicketPriorityNormal
	}
	if _, ok := validTicketPriorities[priority]; !ok {
		return Ticket{}, fmt.Errorf("%w: unknown priority %q", ErrTicketInvalidInput, priority)
	}

	now := s.now()
	ticket := Ticket{
		ID:          ticketIDPrefix + s.newID(),
		Subject:     subject,
		Body:        s.sanitizer.Sanitize(cmd.Body),
		Status:      domain.TicketStatusOpen,
		Priority:    priority,
		RequesterID: requester,
		AssigneeID:  cloneTrimmedPtr(cmd.AssigneeID),
		Labels:      normalizeLabels(cmd.Labels),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.tickets.Insert(ctx, ticket); err != nil {
		return Ticket{}, s.mapErr(err)
	}

	created, err := s.Get(ctx, ticket.ID)
	if err != nil {
		return Ticket{}, err
	}

	s.publishEvent(ctx, Event{
		Type:       "ticket.created",
		Subject:    created.ID,
		OccurredAt: now,
		Data: map[string]any{
			"priority":  string(created.Priority),
			"requester": created.RequesterID,
		},
	})
	return created, nil
}

func (s *ticketService) Get(ctx context.Context, ticketID string) (Ticket, error) {
	id := strings.TrimSpace(ticketID)
	if id == "" {
		return Ticket{}, fmt.Errorf("%w: ticket id is required", ErrTicketInvalidInput)
	}
	ticket, err := s.tickets.FindByID(ctx, id)
	if err != nil {
		return Ticket{}, s.mapErr(err)
	}
	return ticket, nil
}

func (s *ticketService) List(ctx context.Context, filter TicketListFilter) (domain.CursorPage[Ticket], error) {
	page, err := s.tickets.List(ctx, repositories.TicketListFilter{
		Status:     filter.Status,
		Priority:   filter.Priority,
		AssigneeID: strings.TrimSpace(filter.AssigneeID),
		Pagination: filter.Pagination,
		Order:      filter.Order,
	})
	if err != nil {
		return domain.CursorPage[Ticket]{}, s.mapErr(err)
	}
	return page, nil
}

func (s *ticketService) Update(ctx context.Context, cmd UpdateTicketCommand) (Ticket, error) {
	id := strings.TrimSpace(cmd.TicketID)
	if id == "" {
		return Ticket{}, fmt.Errorf("%w: ticket id is required", ErrTicketInvalidInput)
	}

	ticket, err := s.tickets.FindByID(ctx, id)
	if err != nil {
		return Ticket{}, s.mapErr(err)
	}

	merged, err := s.mergeTicketPatch(ticket, cmd.Patch)
	if err != nil {
		return Ticket{}, err
	}
	merged.UpdatedAt = s.now()

	if err := s.tickets.Update(ctx, merged); err != nil {
		return Ticket{}, s.mapErr(err)
	}
	return s.Get(ctx, id)
}

func (s *ticketService) Delete(ctx context.Context, ticketID string) error {
	id := strings.TrimSpace(ticketID)
	if id == "" {
		return fmt.Errorf("%w: ticket id is required", ErrTicketInvalidInput)
	}
	if err := s.tickets.Delete(ctx, id); err != nil {
		return s.mapErr(err)
	}
	return nil
}

func (s *ticketService) BulkUpdate(ctx context.Context, ids []string, patch TicketPatch) (BulkResult, error) {
	result, err := BulkApply(ctx, ids, ticketEntity,
		s.tickets.FindByIDs,
		func(ticket Ticket) string { return ticket.ID },
		func(opCtx context.Context, record Ticket) error {
			_, err := s.Update(opCtx, UpdateTicketCommand{TicketID: record.ID, Patch: patch})
			return s.bulkReason(err)
		},
	)
	if err != nil {
		return BulkResult{}, s.mapErr(err)
	}
	return result, nil
}

func (s *ticketService) BulkDelete(ctx context.Context, ids []string) (BulkResult, error) {
	result, err := BulkApply(ctx, ids, ticketEntity,
		s.tickets.FindByIDs,
		func(ticket Ticket) string { return ticket.ID },
		func(opCtx context.Context, record Ticket) error {
			return s.bulkReason(s.Delete(opCtx, record.ID))
		},
	)
	if err != nil {
		return BulkResult{}, s.mapErr(err)
	}
	return result, nil
}

func (s *ticketService) mergeTicketPatch(ticket Ticket, patch TicketPatch) (Ticket, error) {
	if patch.Subject != nil {
		subject := strings.TrimSpace(*patch.Subject)
		if subject == "" {
			return Ticket{}, fmt.Errorf("%w: subject cannot be cleared", ErrTicketInvalidInput)
		}
		ticket.Subject = subject
	}
	if patch.Body != nil {
		ticket.Body = s.sanitizer.Sanitize(*patch.Body)
	}
	if patch.Status != nil {
		if _, ok := validTicketStatuses[*patch.Status]; !ok {
			return Ticket{}, fmt.Errorf("%w: unknown status %q", ErrTicketInvalidInput, *patch.Status)
		}
		ticket.Status = *patch.Status
	}
	if patch.Priority != nil {
		if _, ok := validTicketPriorities[*patch.Priority]; !ok {
			return Ticket{}, fmt.Errorf("%w: unknown priority %q", ErrTicketInvalidInput, *patch.Priority)
		}
		ticket.Priority = *patch.Priority
	}
	if patch.AssigneeID != nil {
		ticket.AssigneeID = optionalString(strings.TrimSpace(*patch.AssigneeID))
	}
	if patch.Labels != nil {
		ticket.Labels = normalizeLabels(*patch.Labels)
	}
	return ticket, nil
}

func normalizeLabels(labels []string) []string {
	if len(labels) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(labels))
	normalized := make([]string, 0, len(labels))
	for _, label := range labels {
		label = strings.ToLower(strings.TrimSpace(label))
		if label == "" {
			continue
		}
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		normalized = append(normalized, label)
	}
	if len(normalized) == 0 {
		return nil
	}
	return normalized
}

func (s *ticketService) bulkReason(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrTicketNotFound):
		return errors.New(ticketEntity + " not found")
	default:
		return err
	}
}

func (s *ticketService) mapErr(err error) error {
	return mapRepositoryError(err, ErrTicketNotFound, ErrTicketConflict, ErrTicketUnavailable)
}

func (s *ticketService) now() time.Time {
	return s.clock()
}

func (s *ticketService) publishEvent(ctx context.Context, event Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger(ctx, "ticket.event.publish.failed", map[string]any{
			"type":    event.Type,
			"subject": event.Subject,
			"error":   err.Error(),
		})
	}
}
