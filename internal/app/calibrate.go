package service

import (
	"context"

	"github.com/okian/padcal/internal/domain/model"
	"github.com/okian/padcal/internal/domain/release"
	"github.com/okian/padcal/internal/domain/session"
	"github.com/okian/padcal/internal/domain/types"
	"github.com/okian/padcal/pkg/logger"
	"github.com/okian/padcal/pkg/metrics"
)

func releaseNames() []string {
	return release.Names()
}

// Snapshot returns a consistent copy of the pad taken between ticks.
func (s *Service) Snapshot(withHistory bool) types.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pad.Snapshot(withHistory)
}

// edit runs fn against the pad with a device attached and queues the
// commands it returns before any other edit or tick can touch the pad.
func (s *Service) edit(ctx context.Context, fn func() ([]model.Command, error)) error {
	if err := s.lockAttached(ctx); err != nil {
		return err
	}
	cmds, err := fn()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.dispatch(ctx, cmds)
	s.mu.Unlock()

	s.publishThresholds(ctx, cmds)
	return nil
}

// SetThresholds commits a pair to one sensor under the active policy.
func (s *Service) SetThresholds(ctx context.Context, sensor int, activation, rel float64) error {
	return s.edit(ctx, func() ([]model.Command, error) {
		return s.pad.SetThresholds(sensor, activation, rel)
	})
}

// SetReleaseMode switches the release policy and re-derives all releases.
func (s *Service) SetReleaseMode(ctx context.Context, mode release.Mode, ratio float64) error {
	err := s.edit(ctx, func() ([]model.Command, error) {
		return s.pad.SetReleaseMode(mode, ratio)
	})
	if err == nil {
		metrics.UpdateReleaseMode(mode.String(), releaseNames())
		s.logger.Info(ctx, "release mode changed", logger.String("mode", mode.String()), logger.Float64("ratio", ratio))
	}
	return err
}

// SetButton maps a sensor to a button; 0 unmaps it.
func (s *Service) SetButton(ctx context.Context, sensor, button int) error {
	return s.edit(ctx, func() ([]model.Command, error) {
		return s.pad.SetButton(sensor, button)
	})
}

// BeginDrag starts a threshold drag. It reports false when another drag is
// already active.
func (s *Service) BeginDrag(ctx context.Context, sensor int, edit session.Edit) (bool, error) {
	if err := s.lockAttached(ctx); err != nil {
		return false, err
	}
	defer s.mu.Unlock()
	started, err := s.pad.BeginDrag(sensor, edit)
	if err != nil {
		return false, err
	}
	if !started {
		metrics.RecordSessionConflict()
		return false, nil
	}
	metrics.RecordSessionStarted()
	s.logger.Debug(ctx, "calibration drag started", logger.Int("sensor", sensor), logger.String("edit", edit.String()))
	return true, nil
}

// MoveDrag feeds a pointer position to the active drag.
func (s *Service) MoveDrag(ctx context.Context, y float64, extent session.Extent) (bool, error) {
	if err := s.lockAttached(ctx); err != nil {
		return false, err
	}
	defer s.mu.Unlock()
	return s.pad.MoveDrag(y, extent), nil
}

// EndDrag commits the active drag. It reports false when none was active.
func (s *Service) EndDrag(ctx context.Context) (bool, error) {
	var committed bool
	err := s.edit(ctx, func() ([]model.Command, error) {
		cmds, ok := s.pad.EndDrag()
		committed = ok
		return cmds, nil
	})
	if committed {
		metrics.RecordSessionCommitted()
	}
	return committed, err
}

// CancelDrag abandons the active drag. It works without a device so a lost
// connection never strands a drag.
func (s *Service) CancelDrag(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pad.CancelDrag() {
		return false
	}
	metrics.RecordSessionCancelled("user")
	s.logger.Debug(ctx, "calibration drag cancelled")
	return true
}
