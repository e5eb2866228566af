package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/okian/padcal/internal/adapters/repository"
	"github.com/okian/padcal/internal/domain/model"
	"github.com/okian/padcal/internal/domain/profile"
	"github.com/okian/padcal/pkg/logger"
	"github.com/okian/padcal/pkg/metrics"
)

// ExportProfile returns the live calibration.
func (s *Service) ExportProfile(ctx context.Context) (profile.Profile, error) {
	if err := s.lockAttached(ctx); err != nil {
		return profile.Profile{}, err
	}
	defer s.mu.Unlock()
	return s.pad.Profile(), nil
}

// ImportProfile applies prof all-or-nothing and pushes it to the device.
func (s *Service) ImportProfile(ctx context.Context, prof profile.Profile) error {
	id := uuid.NewString()
	err := s.edit(ctx, func() ([]model.Command, error) {
		return s.pad.ApplyProfile(prof)
	})
	if err != nil {
		s.logger.Warn(ctx, "profile rejected", logger.String("profile_id", id), logger.Error(err))
		return err
	}
	metrics.UpdateReleaseMode(prof.ReleaseMode.String(), releaseNames())
	s.logger.Info(ctx, "profile applied",
		logger.String("profile_id", id),
		logger.String("mode", prof.ReleaseMode.String()),
		logger.Int("sensors", len(prof.Sensors)),
	)
	return nil
}

// SaveProfile stores the live calibration under name.
func (s *Service) SaveProfile(ctx context.Context, name string) error {
	if s.store == nil {
		return ErrNoStore
	}
	prof, err := s.ExportProfile(ctx)
	if err != nil {
		return err
	}
	if err := s.store.Save(ctx, name, prof); err != nil {
		return fmt.Errorf("save profile %s: %w", name, err)
	}
	s.logger.Info(ctx, "profile saved", logger.String("name", name))
	return nil
}

// LoadProfile applies the profile stored under name.
func (s *Service) LoadProfile(ctx context.Context, name string) error {
	if s.store == nil {
		return ErrNoStore
	}
	prof, err := s.store.Load(ctx, name)
	if err != nil {
		return fmt.Errorf("load profile %s: %w", name, err)
	}
	return s.ImportProfile(ctx, prof)
}

// StoredProfile returns the profile stored under name without applying it.
func (s *Service) StoredProfile(ctx context.Context, name string) (profile.Profile, error) {
	if s.store == nil {
		return profile.Profile{}, ErrNoStore
	}
	prof, err := s.store.Read(ctx, name)
	if err != nil {
		return profile.Profile{}, fmt.Errorf("read profile %s: %w", name, err)
	}
	return prof, nil
}

// ListProfiles returns the stored profiles.
func (s *Service) ListProfiles(ctx context.Context) ([]repository.Entry, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.List(ctx)
}

// LastProfile returns the name of the most recently saved or loaded profile.
func (s *Service) LastProfile(ctx context.Context) (string, bool) {
	if s.store == nil {
		return "", false
	}
	return s.store.LastUsed(ctx)
}

// RestoreLastProfile loads the last used profile, if any, once a device is
// available.
func (s *Service) RestoreLastProfile(ctx context.Context) error {
	name, ok := s.LastProfile(ctx)
	if !ok {
		return nil
	}
	if err := s.LoadProfile(ctx, name); err != nil {
		return err
	}
	return nil
}
