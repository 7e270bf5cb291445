package kernel

import (
	"github.com/opentcs-go/kernel/domain/topology"
	"github.com/opentcs-go/kernel/internal/objectpool"
)

// Do runs fn after gating it under kind for the current kernel mode. Since
// opKind is unexported, only code in this package can call it (httpapi
// handlers go through the typed wrappers); the seed-scenario-critical
// operations below get typed wrappers so their call sites read naturally
// and so tests can assert the gating behaviour directly against a named
// method.
func (s *Supervisor) Do(op string, kind opKind, fn func() error) error {
	if err := s.checkMode(op, kind); err != nil {
		return err
	}
	return fn()
}

// CreatePoint creates a point named name at position. Shape change:
// MODELLING only.
func (s *Supervisor) CreatePoint(name string, position topology.Triple) (*topology.Point, error) {
	var pt *topology.Point
	err := s.Do("createPoint", opTopologyShape, func() error {
		var err error
		pt, err = s.facade.CreatePoint(name, position)
		return err
	})
	return pt, err
}

// SetPointType sets point's type. Property edit: permitted in MODELLING
// and OPERATING.
func (s *Supervisor) SetPointType(point string, t topology.PointType) error {
	return s.Do("setPointType", opTopologyProperty, func() error {
		return s.facade.SetPointType(point, t)
	})
}

// CreatePath creates a path from source to destination. Shape change:
// MODELLING only.
func (s *Supervisor) CreatePath(name, source, destination string, length, routingCost int64) (*topology.Path, error) {
	var p *topology.Path
	err := s.Do("createPath", opTopologyShape, func() error {
		var err error
		p, err = s.facade.CreatePath(name, source, destination, length, routingCost)
		return err
	})
	return p, err
}

// SetPathLength sets path's length. Shape change per spec §4.6 (affects
// routing): MODELLING only.
func (s *Supervisor) SetPathLength(path string, length int64) error {
	return s.Do("setPathLength", opTopologyShape, func() error {
		return s.facade.SetPathLength(path, length)
	})
}

// SetPathRoutingCost sets path's routing cost. Shape change: MODELLING only.
func (s *Supervisor) SetPathRoutingCost(path string, cost int64) error {
	return s.Do("setPathRoutingCost", opTopologyShape, func() error {
		return s.facade.SetPathRoutingCost(path, cost)
	})
}

// SetPathMaxVelocity sets path's forward velocity limit. Shape change:
// MODELLING only.
func (s *Supervisor) SetPathMaxVelocity(path string, v int64) error {
	return s.Do("setPathMaxVelocity", opTopologyShape, func() error {
		return s.facade.SetPathMaxVelocity(path, v)
	})
}

// SetPathMaxReverseVelocity sets path's reverse velocity limit. Shape
// change: MODELLING only.
func (s *Supervisor) SetPathMaxReverseVelocity(path string, v int64) error {
	return s.Do("setPathMaxReverseVelocity", opTopologyShape, func() error {
		return s.facade.SetPathMaxReverseVelocity(path, v)
	})
}

// SetPathLocked locks or unlocks path. Shape change: MODELLING only.
func (s *Supervisor) SetPathLocked(path string, locked bool) error {
	return s.Do("setPathLocked", opTopologyShape, func() error {
		return s.facade.SetPathLocked(path, locked)
	})
}

// RemovePoint removes point and cascades per the facade's rules. Shape
// change: MODELLING only.
func (s *Supervisor) RemovePoint(point string) error {
	return s.Do("removePoint", opTopologyShape, func() error {
		return s.facade.RemovePoint(point)
	})
}

// RemovePath removes path. Shape change: MODELLING only.
func (s *Supervisor) RemovePath(path string) error {
	return s.Do("removePath", opTopologyShape, func() error {
		return s.facade.RemovePath(path)
	})
}

// CreateVehicle creates a vehicle named name with the given length. Shape
// change: MODELLING only.
func (s *Supervisor) CreateVehicle(name string, length int64) (*topology.Vehicle, error) {
	var v *topology.Vehicle
	err := s.Do("createVehicle", opTopologyShape, func() error {
		var err error
		v, err = s.facade.CreateVehicle(name, length)
		return err
	})
	return v, err
}

// SetVehiclePosition sets vehicle's current position. Vehicle runtime
// mutation: permitted in MODELLING and OPERATING.
func (s *Supervisor) SetVehiclePosition(vehicle, point string) error {
	return s.Do("setVehiclePosition", opTopologyProperty, func() error {
		return s.facade.SetVehiclePosition(vehicle, point)
	})
}

// GetTCSObject returns the entity named ref, of any kind. Always permitted.
func (s *Supervisor) GetTCSObject(ref string) (objectpool.Entity, error) {
	return s.facade.GetObject(ref)
}

// GetTCSObjects returns every entity of kind, optionally filtered by a
// regular expression over names. Always permitted.
func (s *Supervisor) GetTCSObjects(kind, nameRegex string) ([]objectpool.Entity, error) {
	if nameRegex == "" {
		return s.facade.GetObjectsByKind(kind), nil
	}
	return s.facade.GetObjectsByKindRegex(kind, nameRegex)
}

// RenameTCSObject renames ref to newName. Property edit: permitted in
// MODELLING and OPERATING.
func (s *Supervisor) RenameTCSObject(ref, newName string) error {
	return s.Do("renameTCSObject", opTopologyProperty, func() error {
		return s.facade.RenameObject(ref, newName)
	})
}

// SetTCSObjectProperty sets a property on ref to value, or clears it if
// value is nil. Property edit: permitted in MODELLING and OPERATING.
func (s *Supervisor) SetTCSObjectProperty(ref, key string, value *string) error {
	return s.Do("setTCSObjectProperty", opTopologyProperty, func() error {
		return s.facade.SetObjectProperty(ref, key, value)
	})
}

// ClearTCSObjectProperties clears every property on ref. Property edit:
// permitted in MODELLING and OPERATING.
func (s *Supervisor) ClearTCSObjectProperties(ref string) error {
	return s.Do("clearTCSObjectProperties", opTopologyProperty, func() error {
		return s.facade.ClearObjectProperties(ref)
	})
}

// RemoveTCSObject removes ref, of any kind, cascading per its kind's rules.
// Shape change: MODELLING only.
func (s *Supervisor) RemoveTCSObject(ref string) error {
	return s.Do("removeTCSObject", opTopologyShape, func() error {
		return s.facade.RemoveObject(ref)
	})
}
