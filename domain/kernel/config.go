package kernel

import (
	"context"

	"github.com/opentcs-go/kernel/internal/kernelerr"
)

// GetConfigurationItems returns a snapshot of every configuration key/value
// pair currently stored.
func (s *Supervisor) GetConfigurationItems() map[string]string {
	return s.config.All()
}

// SetConfigurationItem stores value under key in the configuration store.
func (s *Supervisor) SetConfigurationItem(ctx context.Context, key, value string) error {
	if err := s.checkMode("setConfigurationItem", opAdmin); err != nil {
		return err
	}
	s.config.Set(ctx, key, value)
	return nil
}

// GetSimulationTimeFactor returns the current simulation time factor.
func (s *Supervisor) GetSimulationTimeFactor() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.simTimeFactor
}

// SetSimulationTimeFactor sets the simulation time factor, which must be
// strictly positive.
func (s *Supervisor) SetSimulationTimeFactor(factor float64) error {
	if err := s.checkMode("setSimulationTimeFactor", opAdmin); err != nil {
		return err
	}
	if factor <= 0 {
		return kernelerr.IllegalArgument("simulation time factor must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.simTimeFactor = factor
	return nil
}
