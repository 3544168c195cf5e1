package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/deskforge/api/internal/domain"
	"github.com/deskforge/api/internal/repositories"
)

func newCustomerFixture(t *testing.T, deps CustomerServiceDeps) CustomerService {
	t.Helper()
	if deps.Customers == nil {
		deps.Customers = &stubCustomerRepo{}
	}
	if deps.Clock == nil {
		deps.Clock = fixedTime
	}
	svc, err := NewCustomerService(deps)
	if err != nil {
		t.Fatalf("NewCustomerService: %v", err)
	}
	return svc
}

func TestCustomerCreateNormalizesDisplayName(t *testing.T) {
	var inserted domain.Customer
	customers := &stubCustomerRepo{
		insertFn: func(_ context.Context, customer domain.Customer) error {
			inserted = customer
			return nil
		},
		findFn: func(_ context.Context, _ string) (domain.Customer, error) { return inserted, nil },
	}
	svc := newCustomerFixture(t, CustomerServiceDeps{Customers: customers})

	created, err := svc.Create(context.Background(), CreateCustomerCommand{
		Code:        "ACME",
		DisplayName: "ＡＣＭＥ Ｃｏｒｐ",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// NFKC folds fullwidth forms, case folding lowercases.
	if created.NormalizedName != "acme corp" {
		t.Fatalf("normalized name = %q, want %q", created.NormalizedName, "acme corp")
	}
	if created.DisplayName != "ＡＣＭＥ Ｃｏｒｐ" {
		t.Fatalf("display name altered: %q", created.DisplayName)
	}
}

func TestCustomerCreateSurfacesCodeConflict(t *testing.T) {
	customers := &stubCustomerRepo{
		insertFn: func(_ context.Context, _ domain.Customer) error {
			return stubRepoError{conflict: true}
		},
	}
	svc := newCustomerFixture(t, CustomerServiceDeps{Customers: customers})

	_, err := svc.Create(context.Background(), CreateCustomerCommand{Code: "ACME", DisplayName: "Acme"})
	if !errors.Is(err, ErrCustomerConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCustomerUpdateRecomputesNormalizedName(t *testing.T) {
	stored := domain.Customer{ID: "cus_1", Code: "ACME", DisplayName: "Acme", NormalizedName: "acme"}
	customers := &stubCustomerRepo{
		findFn: func(_ context.Context, _ string) (domain.Customer, error) { return stored, nil },
		updateFn: func(_ context.Context, customer domain.Customer) error {
			stored = customer
			return nil
		},
	}
	svc := newCustomerFixture(t, CustomerServiceDeps{Customers: customers})

	updated, err := svc.Update(context.Background(), UpdateCustomerCommand{
		CustomerID: "cus_1",
		Patch:      CustomerPatch{DisplayName: valuePtr("Globex GmbH")},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.NormalizedName != "globex gmbh" {
		t.Fatalf("normalized name = %q", updated.NormalizedName)
	}
}

func TestCustomerListNormalizesSearchTerm(t *testing.T) {
	var captured repositories.CustomerListFilter
	customers := &stubCustomerRepo{
		listFn: func(_ context.Context, filter repositories.CustomerListFilter) (domain.CursorPage[domain.Customer], error) {
			captured = filter
			return domain.CursorPage[domain.Customer]{}, nil
		},
	}
	svc := newCustomerFixture(t, CustomerServiceDeps{Customers: customers})

	if _, err := svc.List(context.Background(), CustomerListFilter{Search: "  GLObex "}); err != nil {
		t.Fatalf("List: %v", err)
	}
	if captured.Search != "globex" {
		t.Fatalf("search = %q, want folded term", captured.Search)
	}
}

func TestCustomerBulkUpdateConflictReason(t *testing.T) {
	customers := &stubCustomerRepo{
		findByIDsFn: func(_ context.Context, ids []string) ([]domain.Customer, error) {
			return []domain.Customer{{ID: "cus_1", Code: "A", DisplayName: "A"}}, nil
		},
		findFn: func(_ context.Context, _ string) (domain.Customer, error) {
			return domain.Customer{ID: "cus_1", Code: "A", DisplayName: "A"}, nil
		},
		updateFn: func(_ context.Context, _ domain.Customer) error {
			return stubRepoError{conflict: true}
		},
	}
	svc := newCustomerFixture(t, CustomerServiceDeps{Customers: customers})

	result, err := svc.BulkUpdate(context.Background(), []string{"cus_1"}, CustomerPatch{Code: valuePtr("B")})
	if err != nil {
		t.Fatalf("BulkUpdate: %v", err)
	}
	if result.Failed() != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Failures[0].Reason != "customer code already in use" {
		t.Fatalf("reason = %q", result.Failures[0].Reason)
	}
}
