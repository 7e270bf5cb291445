// Package kernel implements the kernel state-machine supervisor: kernel
// mode gating, user accounts, the simulation time factor, and the
// configuration key/value store that sit above the topology/orders/routing
// domain packages, per spec §4.6.
package kernel

import (
	"context"
	"fmt"
	"sync"

	"github.com/opentcs-go/kernel/domain/orders"
	"github.com/opentcs-go/kernel/domain/routing"
	"github.com/opentcs-go/kernel/domain/topology"
	"github.com/opentcs-go/kernel/internal/identity"
	"github.com/opentcs-go/kernel/internal/kernelerr"
	"github.com/opentcs-go/kernel/internal/kernellog"
	"github.com/opentcs-go/kernel/internal/kvstore"
	"github.com/opentcs-go/kernel/internal/metrics"
	"github.com/opentcs-go/kernel/internal/modelstore"
	"github.com/opentcs-go/kernel/internal/objectpool"
)

// Mode is one of the kernel's three operating modes.
type Mode string

const (
	Modelling Mode = "MODELLING"
	Operating Mode = "OPERATING"
	Shutdown  Mode = "SHUTDOWN"
)

// opKind classifies an operation for mode-gating purposes.
type opKind int

const (
	opTopologyShape opKind = iota
	opTopologyProperty
	opOrderLifecycle
	opDispatch
	opAdmin
)

// Supervisor is the kernel's single state-machine entry point: every
// topology/order/routing mutation a caller makes passes through one of its
// methods, which gate on Mode before delegating to the domain packages.
// They do not check the caller's permission set; RequirePermission is a
// separate call that no gated method makes.
type Supervisor struct {
	mu   sync.RWMutex
	mode Mode

	pool    *objectpool.Pool
	ids     *identity.Service
	facade  *topology.Facade
	orders  *orders.Manager
	routing *routing.Engine
	models  *modelstore.Store
	config  *kvstore.Store
	metrics *metrics.Metrics
	log     *kernellog.Logger

	users           map[string]*User
	jwtSecret       []byte
	simTimeFactor   float64
	currentModel    string
	dispatchCancel  context.CancelFunc
}

// NewSupervisor returns a Supervisor in MODELLING mode with no users
// configured. Callers normally follow construction with at least one
// CreateUser call before accepting external requests.
func NewSupervisor(
	pool *objectpool.Pool,
	ids *identity.Service,
	facade *topology.Facade,
	mgr *orders.Manager,
	engine *routing.Engine,
	models *modelstore.Store,
	config *kvstore.Store,
	m *metrics.Metrics,
	log *kernellog.Logger,
	jwtSecret string,
) *Supervisor {
	return &Supervisor{
		mode:          Modelling,
		pool:          pool,
		ids:           ids,
		facade:        facade,
		orders:        mgr,
		routing:       engine,
		models:        models,
		config:        config,
		metrics:       m,
		log:           log,
		users:         make(map[string]*User),
		jwtSecret:     []byte(jwtSecret),
		simTimeFactor: 1.0,
	}
}

// GetState returns the kernel's current mode.
func (s *Supervisor) GetState() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// SetState transitions the kernel to mode. MODELLING and OPERATING are
// mutually reachable; either may transition to SHUTDOWN, which is
// terminal. Any other requested transition fails IllegalState.
func (s *Supervisor) SetState(mode Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode == mode {
		return nil
	}
	if s.mode == Shutdown {
		return kernelerr.IllegalState("kernel is shut down")
	}
	switch mode {
	case Modelling, Operating:
		if s.mode != Modelling && s.mode != Operating {
			return kernelerr.IllegalState(fmt.Sprintf("cannot transition from %s to %s", s.mode, mode))
		}
	case Shutdown:
		// always reachable from a non-terminal mode
	default:
		return kernelerr.IllegalArgument(fmt.Sprintf("unknown kernel mode %q", mode))
	}

	s.log.WithField("from", s.mode).WithField("to", mode).Info("kernel mode transition")
	s.mode = mode
	if mode == Shutdown && s.dispatchCancel != nil {
		s.dispatchCancel()
	}
	return nil
}

// checkMode gates op under the kernel's current mode, per spec §4.6.
func (s *Supervisor) checkMode(op string, kind opKind) error {
	s.mu.RLock()
	mode := s.mode
	s.mu.RUnlock()

	switch mode {
	case Shutdown:
		return kernelerr.UnsupportedKernelOp(op)
	case Modelling:
		switch kind {
		case opTopologyShape, opTopologyProperty, opAdmin:
			return nil
		default:
			return kernelerr.UnsupportedKernelOp(op)
		}
	case Operating:
		switch kind {
		case opTopologyShape:
			return kernelerr.UnsupportedKernelOp(op)
		case opTopologyProperty, opOrderLifecycle, opDispatch, opAdmin:
			return nil
		}
	}
	return kernelerr.UnsupportedKernelOp(op)
}

// Pool exposes the underlying object pool for read-only introspection
// (getTCSObject/getTCSObjects), which is always permitted.
func (s *Supervisor) Pool() *objectpool.Pool { return s.pool }

// Facade exposes the model facade for operations this package does not
// wrap directly.
func (s *Supervisor) Facade() *topology.Facade { return s.facade }

// OrdersManager exposes the order-lifecycle manager.
func (s *Supervisor) OrdersManager() *orders.Manager { return s.orders }

// RoutingEngine exposes the routing engine.
func (s *Supervisor) RoutingEngine() *routing.Engine { return s.routing }
