package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/deskforge/api/internal/domain"
	"github.com/deskforge/api/internal/repositories"
)

const (
	auditLogIDPrefix = "aud_"
	auditSystemActor = "system"
)

var (
	// ErrAuditInvalidInput indicates a required audit field was missing.
	ErrAuditInvalidInput = errors.New("audit: invalid input")
	// ErrAuditUnavailable indicates the audit store rejected the write.
	ErrAuditUnavailable = errors.New("audit: storage unavailable")
)

// AuditLogServiceDeps bundles constructor inputs for the audit writer service.
type AuditLogServiceDeps struct {
	Repository  repositories.AuditLogRepository
	Clock       func() time.Time
	IDGenerator func() string
}

type auditLogService struct {
	repo  repositories.AuditLogRepository
	clock func() time.Time
	newID func() string
}

// NewAuditLogService creates an audit log writer backed by the supplied repository.
func NewAuditLogService(deps AuditLogServiceDeps) (AuditLogService, error) {
	if deps.Repository == nil {
		return nil, errors.New("audit log service: repository is required")
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

	return &auditLogService{
		repo: deps.Repository,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: idGen,
	}, nil
}

func (s *auditLogService) Record(ctx context.Context, actor, action, targetType, targetID string, metadata map[string]any) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return fmt.Errorf("%w: action is required", ErrAuditInvalidInput)
	}
	targetType = strings.TrimSpace(targetType)
	if targetType == "" {
		return fmt.Errorf("%w: target type is required", ErrAuditInvalidInput)
	}

	actor = strings.TrimSpace(actor)
	if actor == "" {
		actor = auditSystemActor
	}

	entry := domain.AuditLogEntry{
		ID:         auditLogIDPrefix + s.newID(),
		Actor:      actor,
		Action:     action,
		TargetType: targetType,
		TargetID:   strings.TrimSpace(targetID),
		Metadata:   cloneMap(metadata),
		CreatedAt:  s.clock(),
	}

	if err := s.repo.Append(ctx, entry); err != nil {
		return mapRepositoryError(err, ErrAuditUnavailable, ErrAuditUnavailable, ErrAuditUnavailable)
	}
	return nil
}

func (s *auditLogService) ListByTarget(ctx context.Context, targetType, targetID string, pager Pagination) (domain.CursorPage[AuditLogEntry], error) {
	targetType = strings.TrimSpace(targetType)
	targetID = strings.TrimSpace(targetID)
	if targetType == "" || targetID == "" {
		return domain.CursorPage[AuditLogEntry]{}, fmt.Errorf("%w: target type and id are required", ErrAuditInvalidInput)
	}

	page, err := s.repo.ListByTarget(ctx, targetType, targetID, pager)
	if err != nil {
		return domain.CursorPage[AuditLogEntry]{}, mapRepositoryError(err, ErrAuditUnavailable, ErrAuditUnavailable, ErrAuditUnavailable)
	}
	return page, nil
}
