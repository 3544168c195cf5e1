package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/deskforge/api/internal/repositories"
)

// Document number formats keyed by counter kind. The year segment keeps
// numbers readable and resets nothing; the underlying sequence is global
// per kind.
var counterFormats = map[string]string{
	"work_order": "WO-%04d-%06d",
	"estimate":   "EST-%04d-%06d",
	"invoice":    "INV-%04d-%06d",
}

var (
	// ErrCounterInvalidInput indicates an unknown counter kind was requested.
	ErrCounterInvalidInput = errors.New("counter: invalid input")
	// ErrCounterUnavailable indicates the backing store rejected the increment.
	ErrCounterUnavailable = errors.New("counter: storage unavailable")
)

// CounterServiceDeps bundles collaborators required to construct a counter service.
type CounterServiceDeps struct {
	Repository repositories.CounterRepository
	Clock      func() time.Time
}

type counterService struct {
	repo  repositories.CounterRepository
	clock func() time.Time
}

// NewCounterService constructs a service issuing formatted document numbers
// on top of a transactional counter repository.
func NewCounterService(deps CounterServiceDeps) (CounterService, error) {
	if deps.Repository == nil {
		return nil, errors.New("counter service: repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &counterService{
		repo: deps.Repository,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

func (s *counterService) NextNumber(ctx context.Context, kind string) (string, error) {
	kind = strings.TrimSpace(kind)
	format, ok := counterFormats[kind]
	if !ok {
		return "", fmt.Errorf("%w: unknown counter kind %q", ErrCounterInvalidInput, kind)
	}

	seq, err := s.repo.Next(ctx, kind)
	if err != nil {
		return "", mapRepositoryError(err, ErrCounterUnavailable, ErrCounterUnavailable, ErrCounterUnavailable)
	}

	return fmt.Sprintf(format, s.clock().Year(), seq), nil
}
