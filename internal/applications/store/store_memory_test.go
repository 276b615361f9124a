package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"portal/internal/applications/models"
	id "portal/pkg/domain"
	dErrors "portal/pkg/domain-errors"
	"portal/pkg/platform/sentinel"
)

type ApplicationStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestApplicationStoreSuite(t *testing.T) {
	suite.Run(t, new(ApplicationStoreSuite))
}

func (s *ApplicationStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *ApplicationStoreSuite) newApplication(applicant id.AccountID, service models.ServiceName, form map[string]any) *models.Application {
	entry, err := models.LookupService(string(service))
	s.Require().NoError(err)
	app, err := models.NewApplication(id.NewApplicationID(), applicant, entry, form, time.Now())
	s.Require().NoError(err)
	return app
}

func noValidate(*models.Application) error { return nil }

func (s *ApplicationStoreSuite) TestCreationAndLookups() {
	applicant := id.NewAccountID()
	app := s.newApplication(applicant, models.ServiceCityPass, map[string]any{"district": "north"})
	s.Require().NoError(s.store.Create(s.ctx, app))

	s.Run("by id", func() {
		found, err := s.store.FindByID(s.ctx, app.ID)
		s.Require().NoError(err)
		s.Equal(app.ServiceName, found.ServiceName)
		s.Equal("north", found.ServiceData["district"])
	})

	s.Run("active for applicant and service", func() {
		found, err := s.store.FindActive(s.ctx, applicant, models.ServiceCityPass)
		s.Require().NoError(err)
		s.Equal(app.ID, found.ID)

		_, err = s.store.FindActive(s.ctx, applicant, models.ServiceEventPermit)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("unknown id", func() {
		_, err := s.store.FindByID(s.ctx, id.NewApplicationID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returned copies do not alias the store", func() {
		found, err := s.store.FindByID(s.ctx, app.ID)
		s.Require().NoError(err)
		found.ServiceData["district"] = "mutated"
		again, err := s.store.FindByID(s.ctx, app.ID)
		s.Require().NoError(err)
		s.Equal("north", again.ServiceData["district"])
	})
}

func (s *ApplicationStoreSuite) TestOneActivePerService() {
	applicant := id.NewAccountID()
	first := s.newApplication(applicant, models.ServiceCityPass, nil)
	s.Require().NoError(s.store.Create(s.ctx, first))

	s.Run("second active application conflicts", func() {
		err := s.store.Create(s.ctx, s.newApplication(applicant, models.ServiceCityPass, nil))
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("other service is independent", func() {
		s.NoError(s.store.Create(s.ctx, s.newApplication(applicant, models.ServiceResidencePermit, nil)))
	})

	s.Run("rejected applications do not block", func() {
		_, err := s.store.Execute(s.ctx, first.ID, noValidate, func(_ context.Context, a *models.Application) error {
			a.Status = models.StatusRejected
			return nil
		})
		s.Require().NoError(err)
		s.NoError(s.store.Create(s.ctx, s.newApplication(applicant, models.ServiceCityPass, nil)))
	})

	s.Run("reactivating a rejected application conflicts with the newer one", func() {
		_, err := s.store.Execute(s.ctx, first.ID, noValidate, func(_ context.Context, a *models.Application) error {
			a.Status = models.StatusPending
			return nil
		})
		s.ErrorIs(err, sentinel.ErrConflict)
	})
}

func (s *ApplicationStoreSuite) TestFindActiveByServiceField() {
	held := s.newApplication(id.NewAccountID(), models.ServicePublicServantPass, map[string]any{"employeeId": "E-100"})
	s.Require().NoError(s.store.Create(s.ctx, held))

	found, err := s.store.FindActiveByServiceField(s.ctx, models.ServicePublicServantPass, "employeeId", "E-100")
	s.Require().NoError(err)
	s.Equal(held.ID, found.ID)

	_, err = s.store.FindActiveByServiceField(s.ctx, models.ServicePublicServantPass, "employeeId", "E-200")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *ApplicationStoreSuite) TestFindActiveByServiceFieldCanonicalizes() {
	held := s.newApplication(id.NewAccountID(), models.ServicePublicServantPass, map[string]any{"employeeId": " e-300 "})
	s.Equal("E-300", held.ServiceData["employeeId"])
	s.Require().NoError(s.store.Create(s.ctx, held))

	legacy := s.newApplication(id.NewAccountID(), models.ServicePublicServantPass, map[string]any{"employeeId": "E-400"})
	legacy.ServiceData["employeeId"] = "e-400 "
	s.Require().NoError(s.store.Create(s.ctx, legacy))

	for value, want := range map[string]id.ApplicationID{
		"E-300":   held.ID,
		"e-300":   held.ID,
		" E-400 ": legacy.ID,
		"e-400":   legacy.ID,
	} {
		found, err := s.store.FindActiveByServiceField(s.ctx, models.ServicePublicServantPass, "employeeId", value)
		s.Require().NoError(err, value)
		s.Equal(want, found.ID, value)
	}
}

func (s *ApplicationStoreSuite) TestListing() {
	alice, bob := id.NewAccountID(), id.NewAccountID()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	services := []models.ServiceName{models.ServiceCityPass, models.ServiceEventPermit, models.ServiceResidencePermit}
	for i, svc := range services {
		app := s.newApplication(alice, svc, nil)
		app.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		s.Require().NoError(s.store.Create(s.ctx, app))
	}
	other := s.newApplication(bob, models.ServiceCityPass, nil)
	other.CreatedAt = base.Add(-time.Hour)
	s.Require().NoError(s.store.Create(s.ctx, other))

	s.Run("applicant list is newest first", func() {
		apps, err := s.store.ListByApplicant(s.ctx, alice)
		s.Require().NoError(err)
		s.Require().Len(apps, 3)
		s.Equal(models.ServiceResidencePermit, apps[0].ServiceName)
		s.Equal(models.ServiceCityPass, apps[2].ServiceName)
	})

	s.Run("filtered queue is oldest first", func() {
		apps, err := s.store.List(s.ctx, models.Filter{Status: models.StatusPending, Service: models.ServiceCityPass})
		s.Require().NoError(err)
		s.Require().Len(apps, 2)
		s.Equal(other.ID, apps[0].ID)
	})

	s.Run("empty filter returns everything", func() {
		apps, err := s.store.List(s.ctx, models.Filter{})
		s.Require().NoError(err)
		s.Len(apps, 4)
	})
}

func (s *ApplicationStoreSuite) TestExecute() {
	s.Run("validation error leaves the record untouched", func() {
		app := s.newApplication(id.NewAccountID(), models.ServiceCityPass, nil)
		s.Require().NoError(s.store.Create(s.ctx, app))

		refused := dErrors.New(dErrors.CodeInvalidTransition, "no")
		_, err := s.store.Execute(s.ctx, app.ID, func(*models.Application) error { return refused },
			func(context.Context, *models.Application) error {
				s.Fail("mutate must not run")
				return nil
			})
		s.ErrorIs(err, refused)

		found, _ := s.store.FindByID(s.ctx, app.ID)
		s.Equal(int64(1), found.Version)
	})

	s.Run("mutation bumps version", func() {
		app := s.newApplication(id.NewAccountID(), models.ServiceCityPass, nil)
		s.Require().NoError(s.store.Create(s.ctx, app))

		updated, err := s.store.Execute(s.ctx, app.ID, noValidate, func(_ context.Context, a *models.Application) error {
			a.Status = models.StatusInProgress
			return nil
		})
		s.Require().NoError(err)
		s.Equal(int64(2), updated.Version)

		found, _ := s.store.FindByID(s.ctx, app.ID)
		s.Equal(models.StatusInProgress, found.Status)
		s.Equal(int64(2), found.Version)
	})

	s.Run("mutate error aborts the write", func() {
		app := s.newApplication(id.NewAccountID(), models.ServiceCityPass, nil)
		s.Require().NoError(s.store.Create(s.ctx, app))

		boom := errors.New("boom")
		_, err := s.store.Execute(s.ctx, app.ID, noValidate, func(_ context.Context, a *models.Application) error {
			a.Status = models.StatusRejected
			return boom
		})
		s.ErrorIs(err, boom)
		found, _ := s.store.FindByID(s.ctx, app.ID)
		s.Equal(models.StatusPending, found.Status)
	})

	s.Run("duplicate reference is refused", func() {
		holder := s.newApplication(id.NewAccountID(), models.ServiceCityPass, nil)
		holder.Status = models.StatusCompleted
		holder.ReferenceNumber = "CP-202501-AAAA"
		s.Require().NoError(s.store.Create(s.ctx, holder))

		exists, err := s.store.ReferenceExists(s.ctx, "CP-202501-AAAA")
		s.Require().NoError(err)
		s.True(exists)

		app := s.newApplication(id.NewAccountID(), models.ServiceCityPass, nil)
		s.Require().NoError(s.store.Create(s.ctx, app))
		_, err = s.store.Execute(s.ctx, app.ID, noValidate, func(_ context.Context, a *models.Application) error {
			a.Status = models.StatusCompleted
			a.ReferenceNumber = "CP-202501-AAAA"
			return nil
		})
		s.ErrorIs(err, ErrReferenceTaken)
	})

	s.Run("missing application", func() {
		_, err := s.store.Execute(s.ctx, id.NewApplicationID(), noValidate, func(context.Context, *models.Application) error { return nil })
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("cancelled context", func() {
		ctx, cancel := context.WithCancel(s.ctx)
		cancel()
		_, err := s.store.Execute(ctx, id.NewApplicationID(), noValidate, func(context.Context, *models.Application) error { return nil })
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	})
}

// TestConcurrentExecute races writers that each require the status they
// observed; exactly one may win.
func (s *ApplicationStoreSuite) TestConcurrentExecute() {
	app := s.newApplication(id.NewAccountID(), models.ServiceCityPass, nil)
	app.Status = models.StatusInProgress
	s.Require().NoError(s.store.Create(s.ctx, app))

	const goroutines = 50
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		refused   atomic.Int32
	)
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Execute(s.ctx, app.ID,
				func(a *models.Application) error {
					if a.Status != models.StatusInProgress {
						return dErrors.New(dErrors.CodeInvalidTransition, "already decided")
					}
					return nil
				},
				func(_ context.Context, a *models.Application) error {
					a.Status = models.StatusCompleted
					return nil
				})
			switch {
			case err == nil:
				successes.Add(1)
			case dErrors.HasCode(err, dErrors.CodeInvalidTransition):
				refused.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successes.Load())
	s.Equal(int32(goroutines-1), refused.Load())
	found, _ := s.store.FindByID(s.ctx, app.ID)
	s.Equal(int64(2), found.Version)
}

func (s *ApplicationStoreSuite) TestDelete() {
	app := s.newApplication(id.NewAccountID(), models.ServiceCityPass, nil)
	s.Require().NoError(s.store.Create(s.ctx, app))

	s.Require().NoError(s.store.Delete(s.ctx, app.ID))
	_, err := s.store.FindByID(s.ctx, app.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.Delete(s.ctx, app.ID), sentinel.ErrNotFound)
}
