package store

import (
	"context"
	"hash/fnv"
	"slices"
	"sync"

	"portal/internal/applications/models"
	id "portal/pkg/domain"
	dErrors "portal/pkg/domain-errors"
	"portal/pkg/platform/sentinel"
)

const memoryShardCount = 128

// InMemory is the dev/test application store. Execute serializes writers per
// application with a sharded mutex; the map itself is guarded by mu.
type InMemory struct {
	mu           sync.RWMutex
	applications map[id.ApplicationID]*models.Application
	shards       [memoryShardCount]sync.Mutex
}

func NewInMemory() *InMemory {
	return &InMemory{applications: make(map[id.ApplicationID]*models.Application)}
}

// Create stores a new application. Returns sentinel.ErrConflict when the
// applicant already holds an active application for the same service.
func (s *InMemory) Create(_ context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.applications[app.ID]; exists {
		return sentinel.ErrConflict
	}
	if app.Status.IsActive() && s.activeHolderLocked(app.ApplicantID, app.ServiceName, app.ID) != nil {
		return sentinel.ErrConflict
	}
	s.applications[app.ID] = app.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, applicationID id.ApplicationID) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.applications[applicationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return app.Clone(), nil
}

// FindActive returns the applicant's active application for service.
func (s *InMemory) FindActive(_ context.Context, applicantID id.AccountID, service models.ServiceName) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if app := s.activeHolderLocked(applicantID, service, id.ApplicationID{}); app != nil {
		return app.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

// FindActiveByServiceField returns any active application of service whose
// form field matches value once both are canonicalized.
func (s *InMemory) FindActiveByServiceField(_ context.Context, service models.ServiceName, field, value string) (*models.Application, error) {
	value = models.CanonicalValue(value)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, app := range s.applications {
		if app.ServiceName != service || !app.Status.IsActive() {
			continue
		}
		if v, ok := app.ServiceData[field].(string); ok && models.CanonicalValue(v) == value {
			return app.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// ListByApplicant returns the applicant's applications, newest first.
func (s *InMemory) ListByApplicant(ctx context.Context, applicantID id.AccountID) ([]*models.Application, error) {
	apps, err := s.List(ctx, models.Filter{ApplicantID: applicantID})
	slices.Reverse(apps)
	return apps, err
}

// List returns applications matching filter, oldest first.
func (s *InMemory) List(_ context.Context, filter models.Filter) ([]*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Application, 0)
	for _, app := range s.applications {
		if filter.Matches(app) {
			out = append(out, app.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *models.Application) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return compareIDs(a.ID, b.ID)
	})
	return out, nil
}

func (s *InMemory) ReferenceExists(_ context.Context, reference string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.referenceHolderLocked(reference, id.ApplicationID{}) != nil, nil
}

// Execute loads the application, runs validate then mutate while holding the
// application's shard lock, and stores the result if the version still
// matches. Validation errors are returned unchanged and nothing is written.
func (s *InMemory) Execute(ctx context.Context, applicationID id.ApplicationID, validate func(*models.Application) error, mutate func(context.Context, *models.Application) error) (*models.Application, error) {
	if err := ctx.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "application update cancelled")
	}
	shard := &s.shards[shardIndex(applicationID)]
	shard.Lock()
	defer shard.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "application update cancelled")
	}

	current, err := s.FindByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	expectedStatus, expectedVersion := current.Status, current.Version
	if err := validate(current); err != nil {
		return nil, err
	}
	if err := mutate(ctx, current); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.applications[applicationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if stored.Status != expectedStatus || stored.Version != expectedVersion {
		return nil, sentinel.ErrStaleVersion
	}
	if current.Status.IsActive() && !stored.Status.IsActive() &&
		s.activeHolderLocked(current.ApplicantID, current.ServiceName, current.ID) != nil {
		return nil, sentinel.ErrConflict
	}
	if current.ReferenceNumber != "" && s.referenceHolderLocked(current.ReferenceNumber, current.ID) != nil {
		return nil, ErrReferenceTaken
	}
	current.Version = expectedVersion + 1
	s.applications[applicationID] = current.Clone()
	return current, nil
}

func (s *InMemory) Delete(_ context.Context, applicationID id.ApplicationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.applications[applicationID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.applications, applicationID)
	return nil
}

func (s *InMemory) activeHolderLocked(applicantID id.AccountID, service models.ServiceName, except id.ApplicationID) *models.Application {
	for _, app := range s.applications {
		if app.ID != except && app.ApplicantID == applicantID && app.ServiceName == service && app.Status.IsActive() {
			return app
		}
	}
	return nil
}

func (s *InMemory) referenceHolderLocked(reference string, except id.ApplicationID) *models.Application {
	for _, app := range s.applications {
		if app.ID != except && app.ReferenceNumber == reference {
			return app
		}
	}
	return nil
}

// shardIndex uses FNV-1a over the id bytes.
func shardIndex(applicationID id.ApplicationID) int {
	h := fnv.New32a()
	_, _ = h.Write(applicationID[:])
	return int(h.Sum32() % memoryShardCount)
}

func compareIDs(a, b id.ApplicationID) int {
	return slices.Compare(a[:], b[:])
}
