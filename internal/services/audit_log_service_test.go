package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	domain "github.com/deskforge/api/internal/domain"
)

func newAuditFixture(t *testing.T, repo *stubAuditLogRepo) AuditLogService {
	t.Helper()
	if repo == nil {
		repo = &stubAuditLogRepo{}
	}
	svc, err := NewAuditLogService(AuditLogServiceDeps{Repository: repo, Clock: fixedTime})
	if err != nil {
		t.Fatalf("NewAuditLogService: %v", err)
	}
	return svc
}

func TestAuditRecordAppendsEntry(t *testing.T) {
	var appended domain.AuditLogEntry
	repo := &stubAuditLogRepo{
		appendFn: func(_ context.Context, entry domain.AuditLogEntry) error {
			appended = entry
			return nil
		},
	}
	svc := newAuditFixture(t, repo)

	err := svc.Record(context.Background(), "usr_admin", "delete", "work_order", "wo_1", map[string]any{"number": "WO-2026-000001"})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !strings.HasPrefix(appended.ID, "aud_") {
		t.Fatalf("entry id = %q, want aud_ prefix", appended.ID)
	}
	if appended.Actor != "usr_admin" || appended.Action != "delete" {
		t.Fatalf("unexpected entry %+v", appended)
	}
	if appended.CreatedAt != fixedTime() {
		t.Fatalf("created at = %v", appended.CreatedAt)
	}
	if appended.Metadata["number"] != "WO-2026-000001" {
		t.Fatalf("metadata = %v", appended.Metadata)
	}
}

func TestAuditRecordDefaultsSystemActor(t *testing.T) {
	var appended domain.AuditLogEntry
	repo := &stubAuditLogRepo{
		appendFn: func(_ context.Context, entry domain.AuditLogEntry) error {
			appended = entry
			return nil
		},
	}
	svc := newAuditFixture(t, repo)

	if err := svc.Record(context.Background(), "  ", "expire", "estimate", "est_1", nil); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if appended.Actor != "system" {
		t.Fatalf("actor = %q, want system", appended.Actor)
	}
}

func TestAuditRecordValidation(t *testing.T) {
	svc := newAuditFixture(t, nil)

	if err := svc.Record(context.Background(), "usr_1", "", "work_order", "wo_1", nil); !errors.Is(err, ErrAuditInvalidInput) {
		t.Fatalf("missing action: got %v", err)
	}
	if err := svc.Record(context.Background(), "usr_1", "delete", "", "wo_1", nil); !errors.Is(err, ErrAuditInvalidInput) {
		t.Fatalf("missing target type: got %v", err)
	}
}

func TestAuditListByTargetRequiresTarget(t *testing.T) {
	svc := newAuditFixture(t, nil)

	if _, err := svc.ListByTarget(context.Background(), "work_order", "", Pagination{}); !errors.Is(err, ErrAuditInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestAuditRecordMapsRepositoryErrors(t *testing.T) {
	repo := &stubAuditLogRepo{
		appendFn: func(_ context.Context, _ domain.AuditLogEntry) error {
			return stubRepoError{unavailable: true}
		},
	}
	svc := newAuditFixture(t, repo)

	err := svc.Record(context.Background(), "usr_1", "delete", "work_order", "wo_1", nil)
	if !errors.Is(err, ErrAuditUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}
