package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	accounts "portal/internal/accounts/models"
	"portal/internal/accounts/resolver"
	"portal/internal/applications/models"
	"portal/internal/audit"
	id "portal/pkg/domain"
	dErrors "portal/pkg/domain-errors"
)

// Detail is an application with its status history.
type Detail struct {
	Application *models.Application `json:"application"`
	History     []audit.Entry       `json:"history"`
}

// ListMine returns the caller's applications, newest first.
func (s *Service) ListMine(ctx context.Context, applicantID id.AccountID) ([]*models.Application, error) {
	if _, err := s.loadActor(ctx, applicantID); err != nil {
		return nil, err
	}
	apps, err := s.store.ListByApplicant(ctx, applicantID)
	if err != nil {
		return nil, translateStoreErr(err, "list applications")
	}
	return apps, nil
}

// Queue lists applications for review. Administrators only.
func (s *Service) Queue(ctx context.Context, actorID id.AccountID, filter models.Filter) ([]*models.Application, error) {
	account, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if _, err := resolver.ResolveAdministrator(account); err != nil {
		return nil, err
	}
	apps, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, translateStoreErr(err, "list applications")
	}
	return apps, nil
}

// Detail loads the application and its history concurrently. Applicants
// other than the owner get NotFound so they cannot probe for ids.
func (s *Service) Detail(ctx context.Context, actorID id.AccountID, applicationID id.ApplicationID) (*Detail, error) {
	var (
		account *accounts.Account
		app     *models.Application
		history []audit.Entry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		account, err = s.loadActor(gctx, actorID)
		return err
	})
	g.Go(func() error {
		var err error
		app, err = s.store.FindByID(gctx, applicationID)
		if err != nil {
			return translateStoreErr(err, "load application")
		}
		return nil
	})
	g.Go(func() error {
		if s.audit == nil {
			history = []audit.Entry{}
			return nil
		}
		var err error
		history, err = s.audit.ListByApplication(gctx, applicationID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if app.ApplicantID != account.ID && !account.IsAdministrator() {
		return nil, dErrors.New(dErrors.CodeNotFound, "application not found")
	}
	return &Detail{Application: app, History: history}, nil
}
