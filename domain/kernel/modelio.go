package kernel

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opentcs-go/kernel/domain/orders"
	"github.com/opentcs-go/kernel/domain/topology"
	"github.com/opentcs-go/kernel/internal/identity"
	"github.com/opentcs-go/kernel/internal/kernelerr"
	"github.com/opentcs-go/kernel/internal/objectpool"
)

// entityEnvelope tags a serialized entity with the kind needed to pick its
// concrete Go type back apart on load.
type entityEnvelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// snapshotPool serializes every entity currently in pool, tagged by kind,
// producing the opaque blob the model store persists.
func snapshotPool(pool *objectpool.Pool) ([]byte, error) {
	all := pool.All()
	envelopes := make([]entityEnvelope, 0, len(all))
	for _, e := range all {
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal %s %q: %w", e.Kind(), e.ObjectName(), err)
		}
		envelopes = append(envelopes, entityEnvelope{Kind: e.Kind(), Data: data})
	}
	return json.Marshal(envelopes)
}

// restorePool replaces pool's contents with the entities encoded in data,
// resetting ids to reserve every restored (id, name) pair.
func restorePool(pool *objectpool.Pool, ids *identity.Service, data []byte) error {
	var envelopes []entityEnvelope
	if len(data) > 0 {
		if err := json.Unmarshal(data, &envelopes); err != nil {
			return kernelerr.IO("restore_model", err)
		}
	}

	pool.Clear()
	ids.Reset()

	for _, env := range envelopes {
		entity, err := decodeEntity(env)
		if err != nil {
			return kernelerr.IO("restore_model", err)
		}
		ids.ReserveID(entity.ObjectID())
		ids.ReserveName(entity.ObjectName())
		if err := pool.Add(entity); err != nil {
			return kernelerr.IO("restore_model", err)
		}
	}
	return nil
}

func decodeEntity(env entityEnvelope) (objectpool.Entity, error) {
	var entity objectpool.Entity
	switch env.Kind {
	case "Point":
		var v topology.Point
		entity = &v
	case "Path":
		var v topology.Path
		entity = &v
	case "LocationType":
		var v topology.LocationType
		entity = &v
	case "Location":
		var v topology.Location
		entity = &v
	case "Vehicle":
		var v topology.Vehicle
		entity = &v
	case "Block":
		var v topology.Block
		entity = &v
	case "Group":
		var v topology.Group
		entity = &v
	case "StaticRoute":
		var v topology.StaticRoute
		entity = &v
	case "VisualLayout":
		var v topology.VisualLayout
		entity = &v
	case "TransportOrder":
		var v orders.TransportOrder
		entity = &v
	case "OrderSequence":
		var v orders.OrderSequence
		entity = &v
	case "Message":
		var v orders.Message
		entity = &v
	default:
		return nil, fmt.Errorf("unknown entity kind %q in stored model", env.Kind)
	}
	if err := json.Unmarshal(env.Data, entity); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", env.Kind, err)
	}
	return entity, nil
}

// GetModelNames returns the names of every model snapshot in the store.
func (s *Supervisor) GetModelNames(ctx context.Context) ([]string, error) {
	return s.models.ListModels(ctx)
}

// GetCurrentModelName returns the name of the model currently loaded into
// the live object pool, or "" if none has been loaded or created yet.
func (s *Supervisor) GetCurrentModelName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentModel
}

// CreateModel creates a new, empty model snapshot named name and switches
// the live pool to it.
func (s *Supervisor) CreateModel(ctx context.Context, name string) error {
	if err := s.checkMode("createModel", opAdmin); err != nil {
		return err
	}
	if err := s.models.CreateModel(ctx, name); err != nil {
		return err
	}
	s.pool.Clear()
	s.mu.Lock()
	s.currentModel = name
	s.mu.Unlock()
	return nil
}

// LoadModel replaces the live object pool with the snapshot stored under
// name.
func (s *Supervisor) LoadModel(ctx context.Context, name string) error {
	if err := s.checkMode("loadModel", opAdmin); err != nil {
		return err
	}
	data, err := s.models.LoadModel(ctx, name)
	if err != nil {
		return err
	}

	if err := restorePool(s.pool, s.ids, data); err != nil {
		return err
	}
	s.mu.Lock()
	s.currentModel = name
	s.mu.Unlock()
	return nil
}

// SaveModel persists the live object pool as the snapshot named name.
// overwrite must be true to replace an existing snapshot of that exact
// name; a case-sensitive name mismatch with the current model, combined
// with overwrite=false, is not itself an error — save always targets name.
func (s *Supervisor) SaveModel(ctx context.Context, name string, overwrite bool) error {
	if err := s.checkMode("saveModel", opAdmin); err != nil {
		return err
	}
	if !overwrite {
		if _, err := s.models.LoadModel(ctx, name); err == nil {
			return kernelerr.ObjectExists(name)
		}
	}
	data, err := snapshotPool(s.pool)
	if err != nil {
		return kernelerr.IO("save_model", err)
	}
	if err := s.models.SaveModel(ctx, name, data); err != nil {
		return err
	}
	s.mu.Lock()
	s.currentModel = name
	s.mu.Unlock()
	return nil
}

// RemoveModel deletes the model snapshot named name from the store.
func (s *Supervisor) RemoveModel(ctx context.Context, name string) error {
	if err := s.checkMode("removeModel", opAdmin); err != nil {
		return err
	}
	return s.models.RemoveModel(ctx, name)
}
