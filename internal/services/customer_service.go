package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	domain "github.com/deskforge/api/internal/domain"
	"github.com/deskforge/api/internal/repositories"
)

const (
	customerIDPrefix = "cus_"
	customerEntity   = "customer"
)

var (
	// ErrCustomerInvalidInput signals the caller provided invalid data.
	ErrCustomerInvalidInput = errors.New("customer: invalid input")
	// ErrCustomerNotFound indicates the customer could not be located.
	ErrCustomerNotFound = errors.New("customer: not found")
	// ErrCustomerConflict indicates the customer code is already taken.
	ErrCustomerConflict = errors.New("customer: conflict")
	// ErrCustomerUnavailable indicates the backing store rejected the request transiently.
	ErrCustomerUnavailable = errors.New("customer: storage unavailable")
)

// CustomerServiceDeps bundles collaborators required to construct the customer service.
type CustomerServiceDeps struct {
	Customers   repositories.CustomerRepository
	Events      EventPublisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type customerService struct {
	customers repositories.CustomerRepository
	events    EventPublisher
	folder    cases.Caser
	clock     func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
}

// NewCustomerService wires dependencies into a concrete CustomerService implementation.
func NewCustomerService(deps CustomerServiceDeps) (CustomerService, error) {
	if deps.Customers == nil {
		return nil, errors.New("customer service: customer repository is required")
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

	return &customerService{
		customers: deps.Customers,
		events:    deps.Events,
		folder:    cases.Fold(),
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *customerService) Create(ctx context.Context, cmd CreateCustomerCommand) (Customer, error) {
	code := strings.TrimSpace(cmd.Code)
	if code == "" {
		return Customer{}, fmt.Errorf("%w: code is required", ErrCustomerInvalidInput)
	}
	name := strings.TrimSpace(cmd.DisplayName)
	if name == "" {
		return Customer{}, fmt.Errorf("%w: display name is required", ErrCustomerInvalidInput)
	}

	now := s.now()
	customer := Customer{
		ID:             customerIDPrefix + s.newID(),
		Code:           code,
		DisplayName:    name,
		NormalizedName: s.normalizeName(name),
		Email:          strings.TrimSpace(cmd.Email),
		Phone:          strings.TrimSpace(cmd.Phone),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.customers.Insert(ctx, customer); err != nil {
		return Customer{}, s.mapErr(err)
	}

	created, err := s.Get(ctx, customer.ID)
	if err != nil {
		return Customer{}, err
	}

	s.publishEvent(ctx, Event{
		Type:       "customer.created",
		Subject:    created.ID,
		OccurredAt: now,
		Data:       map[string]any{"code": created.Code},
	})
	return created, nil
}

func (s *customerService) Get(ctx context.Context, customerID string) (Customer, error) {
	id := strings.TrimSpace(customerID)
	if id == "" {
		return Customer{}, fmt.Errorf("%w: customer id is required", ErrCustomerInvalidInput)
	}
	customer, err := s.customers.FindByID(ctx, id)
	if err != nil {
		return Customer{}, s.mapErr(err)
	}
	return customer, nil
}

func (s *customerService) List(ctx context.Context, filter CustomerListFilter) (domain.CursorPage[Customer], error) {
	page, err := s.customers.List(ctx, repositories.CustomerListFilter{
		Search:     s.normalizeName(filter.Search),
		Pagination: filter.Pagination,
		Order:      filter.Order,
	})
	if err != nil {
		return domain.CursorPage[Customer]{}, s.mapErr(err)
	}
	return page, nil
}

func (s *customerService) Update(ctx context.Context, cmd UpdateCustomerCommand) (Customer, error) {
	id := strings.TrimSpace(cmd.CustomerID)
	if id == "" {
		return Customer{}, fmt.Errorf("%w: customer id is required", ErrCustomerInvalidInput)
	}

	customer, err := s.customers.FindByID(ctx, id)
	if err != nil {
		return Customer{}, s.mapErr(err)
	}

	merged, err := s.mergeCustomerPatch(customer, cmd.Patch)
	if err != nil {
		return Customer{}, err
	}
	merged.UpdatedAt = s.now()

	if err := s.customers.Update(ctx, merged); err != nil {
		return Customer{}, s.mapErr(err)
	}
	return s.Get(ctx, id)
}

func (s *customerService) Delete(ctx context.Context, customerID string) error {
	id := strings.TrimSpace(customerID)
	if id == "" {
		return fmt.Errorf("%w: customer id is required", ErrCustomerInvalidInput)
	}
	if err := s.customers.Delete(ctx, id); err != nil {
		return s.mapErr(err)
	}
	return nil
}

func (s *customerService) BulkUpdate(ctx context.Context, ids []string, patch CustomerPatch) (BulkResult, error) {
	result, err := BulkApply(ctx, ids, customerEntity,
		s.customers.FindByIDs,
		func(customer Customer) string { return customer.ID },
		func(opCtx context.Context, record Customer) error {
			_, err := s.Update(opCtx, UpdateCustomerCommand{CustomerID: record.ID, Patch: patch})
			return s.bulkReason(err)
		},
	)
	if err != nil {
		return BulkResult{}, s.mapErr(err)
	}
	return result, nil
}

func (s *customerService) BulkDelete(ctx context.Context, ids []string) (BulkResult, error) {
	result, err := BulkApply(ctx, ids, customerEntity,
		s.customers.FindByIDs,
		func(customer Customer) string { return customer.ID },
		func(opCtx context.Context, record Customer) error {
			return s.bulkReason(s.Delete(opCtx, record.ID))
		},
	)
	if err != nil {
		return BulkResult{}, s.mapErr(err)
	}
	return result, nil
}

func (s *customerService) mergeCustomerPatch(customer Customer, patch CustomerPatch) (Customer, error) {
	if patch.Code != nil {
		code := strings.TrimSpace(*patch.Code)
		if code == "" {
			return Customer{}, fmt.Errorf("%w: code cannot be cleared", ErrCustomerInvalidInput)
		}
		customer.Code = code
	}
	if patch.DisplayName != nil {
		name := strings.TrimSpace(*patch.DisplayName)
		if name == "" {
			return Customer{}, fmt.Errorf("%w: display name cannot be cleared", ErrCustomerInvalidInput)
		}
		customer.DisplayName = name
		customer.NormalizedName = s.normalizeName(name)
	}
	if patch.Email != nil {
		customer.Email = strings.TrimSpace(*patch.Email)
	}
	if patch.Phone != nil {
		customer.Phone = strings.TrimSpace(*patch.Phone)
	}
	return customer, nil
}

// normalizeName folds case and applies NFKC so lookups match regardless of
// width variants or casing in the stored display name.
func (s *customerService) normalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return s.folder.String(norm.NFKC.String(name))
}

func (s *customerService) bulkReason(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrCustomerNotFound):
		return errors.New(customerEntity + " not found")
	case errors.Is(err, ErrCustomerConflict):
		return errors.New("customer code already in use")
	default:
		return err
	}
}

func (s *customerService) mapErr(err error) error {
	return mapRepositoryError(err, ErrCustomerNotFound, ErrCustomerConflict, ErrCustomerUnavailable)
}

func (s *customerService) now() time.Time {
	return s.clock()
}

func (s *customerService) publishEvent(ctx context.Context, event Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger(ctx, "customer.event.publish.failed", map[string]any{
			"type":    event.Type,
			"subject": event.Subject,
			"error":   err.Error(),
		})
	}
}
