package topology

import (
	"math"

	"github.com/opentcs-go/kernel/internal/objectpool"
)

// PointType is one of the three kinds a Point may serve as.
type PointType string

const (
	PointHalt   PointType = "HALT_POSITION"
	PointReport PointType = "REPORT_POSITION"
	PointPark   PointType = "PARK_POSITION"
)

// Triple is a (x, y, z) position in millimetres.
type Triple struct{ X, Y, Z int64 }

// Point is a discrete position in the topology.
type Point struct {
	ID         int
	Name       string
	Properties map[string]string

	Position                Triple
	Type                    PointType
	VehicleOrientationAngle float64 // degrees in [-360,360], or NaN

	Incoming      []Ref // Path refs ending at this point
	Outgoing      []Ref // Path refs starting at this point
	AttachedLinks []Ref // Location refs linked to this point

	OccupyingVehicle *Ref
}

func (p *Point) ObjectID() int     { return p.ID }
func (p *Point) ObjectName() string { return p.Name }
func (p *Point) Kind() string      { return "Point" }

func (p *Point) Clone() objectpool.Entity {
	cp := *p
	cp.Properties = cloneProps(p.Properties)
	cp.Incoming = cloneRefs(p.Incoming)
	cp.Outgoing = cloneRefs(p.Outgoing)
	cp.AttachedLinks = cloneRefs(p.AttachedLinks)
	if p.OccupyingVehicle != nil {
		v := *p.OccupyingVehicle
		cp.OccupyingVehicle = &v
	}
	return &cp
}

func (p *Point) WithName(name string) objectpool.Entity {
	clone := p.Clone().(*Point)
	clone.Name = name
	return clone
}

// IsHaltingPosition reports whether a vehicle is permitted to stop here.
// REPORT_POSITION points are position checkpoints only.
func (p *Point) IsHaltingPosition() bool {
	return p.Type == PointHalt || p.Type == PointPark
}

// ValidOrientationAngle reports whether angle is NaN (unset) or in [-360,360].
func ValidOrientationAngle(angle float64) bool {
	return math.IsNaN(angle) || (angle >= -360 && angle <= 360)
}

// PathOrientationProperty is the well-known Properties key carrying a
// path's travel-orientation tag (an arbitrary user-defined value; routing
// cares only whether it differs between consecutive hops, not its value).
const PathOrientationProperty = "tcs:travelOrientation"

// Path is a directed connection between two points.
type Path struct {
	ID         int
	Name       string
	Properties map[string]string

	Source, Destination Ref
	Length               int64 // mm, > 0
	RoutingCost          int64 // > 0
	MaxVelocity          int64 // mm/s, >= 0
	MaxReverseVelocity   int64 // mm/s, >= 0
	Locked               bool
}

func (p *Path) ObjectID() int      { return p.ID }
func (p *Path) ObjectName() string { return p.Name }
func (p *Path) Kind() string       { return "Path" }

func (p *Path) Clone() objectpool.Entity {
	cp := *p
	cp.Properties = cloneProps(p.Properties)
	return &cp
}

func (p *Path) WithName(name string) objectpool.Entity {
	clone := p.Clone().(*Path)
	clone.Name = name
	return clone
}

// NavigableForward reports whether the path may be traversed source->dest.
func (p *Path) NavigableForward() bool {
	return !p.Locked && p.MaxVelocity > 0
}

// NavigableReverse reports whether the path may be traversed dest->source.
func (p *Path) NavigableReverse() bool {
	return !p.Locked && p.MaxReverseVelocity > 0
}

// LocationType declares the set of operations a Location of this type allows.
type LocationType struct {
	ID         int
	Name       string
	Properties map[string]string

	AllowedOperations []string
}

func (l *LocationType) ObjectID() int      { return l.ID }
func (l *LocationType) ObjectName() string { return l.Name }
func (l *LocationType) Kind() string       { return "LocationType" }

func (l *LocationType) Clone() objectpool.Entity {
	cp := *l
	cp.Properties = cloneProps(l.Properties)
	cp.AllowedOperations = append([]string(nil), l.AllowedOperations...)
	return &cp
}

func (l *LocationType) WithName(name string) objectpool.Entity {
	clone := l.Clone().(*LocationType)
	clone.Name = name
	return clone
}

func (l *LocationType) AllowsOperation(op string) bool {
	for _, o := range l.AllowedOperations {
		if o == op {
			return true
		}
	}
	return false
}

// Link attaches a Location to a Point with a per-link allowed-operation set.
type Link struct {
	Point             Ref
	AllowedOperations []string
}

func (l Link) clone() Link {
	return Link{Point: l.Point, AllowedOperations: append([]string(nil), l.AllowedOperations...)}
}

// Location is a named station linked to one or more points.
type Location struct {
	ID         int
	Name       string
	Properties map[string]string

	Type     Ref
	Position Triple
	Links    []Link
}

func (l *Location) ObjectID() int      { return l.ID }
func (l *Location) ObjectName() string { return l.Name }
func (l *Location) Kind() string       { return "Location" }

func (l *Location) Clone() objectpool.Entity {
	cp := *l
	cp.Properties = cloneProps(l.Properties)
	cp.Links = make([]Link, len(l.Links))
	for i, link := range l.Links {
		cp.Links[i] = link.clone()
	}
	return &cp
}

func (l *Location) WithName(name string) objectpool.Entity {
	clone := l.Clone().(*Location)
	clone.Name = name
	return clone
}

func (l *Location) LinkTo(pointName string) (*Link, int) {
	for i := range l.Links {
		if l.Links[i].Point.Name == pointName {
			return &l.Links[i], i
		}
	}
	return nil, -1
}

// VehicleState is the vehicle's high-level operating state.
type VehicleState string

const (
	VehicleUnknown   VehicleState = "UNKNOWN"
	VehicleErr       VehicleState = "ERROR"
	VehicleIdle      VehicleState = "IDLE"
	VehicleExecuting VehicleState = "EXECUTING"
	VehicleCharging  VehicleState = "CHARGING"
)

// VehicleProcState describes whether a vehicle is available for dispatch.
type VehicleProcState string

const (
	ProcIdle        VehicleProcState = "IDLE"
	ProcAwaitingOrder VehicleProcState = "AWAITING_ORDER"
	ProcProcessing  VehicleProcState = "PROCESSING_ORDER"
	ProcUnavailable VehicleProcState = "UNAVAILABLE"
)

// CommAdapterState describes the comm-adapter connection.
type CommAdapterState string

const (
	CommUnknown CommAdapterState = "UNKNOWN"
	CommDisabled CommAdapterState = "DISABLED"
	CommEnabled CommAdapterState = "ENABLED"
)

// LoadHandlingDevice is a named device on a vehicle that may be full/empty.
type LoadHandlingDevice struct {
	Label string
	Full  bool
}

// Vehicle is a mobile unit in the fleet.
type Vehicle struct {
	ID         int
	Name       string
	Properties map[string]string

	Length int64

	EnergyLevelCritical int // 0..100
	EnergyLevelGood     int // 0..100, >= critical
	EnergyLevel         int // 0..100

	State       VehicleState
	ProcState   VehicleProcState
	AdapterState CommAdapterState

	CurrentPosition *Ref
	NextPosition    *Ref
	PrecisePosition *Triple
	Orientation     float64

	TransportOrder *Ref
	OrderSequence  *Ref
	RouteProgress  int // index into the current drive order's route steps, -1 if none

	MaxVelocity        int64
	MaxReverseVelocity int64
	RechargeOperation  string

	LoadHandlingDevices []LoadHandlingDevice
}

func (v *Vehicle) ObjectID() int      { return v.ID }
func (v *Vehicle) ObjectName() string { return v.Name }
func (v *Vehicle) Kind() string       { return "Vehicle" }

func (v *Vehicle) Clone() objectpool.Entity {
	cp := *v
	cp.Properties = cloneProps(v.Properties)
	if v.CurrentPosition != nil {
		r := *v.CurrentPosition
		cp.CurrentPosition = &r
	}
	if v.NextPosition != nil {
		r := *v.NextPosition
		cp.NextPosition = &r
	}
	if v.PrecisePosition != nil {
		t := *v.PrecisePosition
		cp.PrecisePosition = &t
	}
	if v.TransportOrder != nil {
		r := *v.TransportOrder
		cp.TransportOrder = &r
	}
	if v.OrderSequence != nil {
		r := *v.OrderSequence
		cp.OrderSequence = &r
	}
	cp.LoadHandlingDevices = append([]LoadHandlingDevice(nil), v.LoadHandlingDevices...)
	return &cp
}

func (v *Vehicle) WithName(name string) objectpool.Entity {
	clone := v.Clone().(*Vehicle)
	clone.Name = name
	return clone
}

// Block groups resources (points/paths) treated as a unit.
type Block struct {
	ID         int
	Name       string
	Properties map[string]string

	Members []Ref
}

func (b *Block) ObjectID() int      { return b.ID }
func (b *Block) ObjectName() string { return b.Name }
func (b *Block) Kind() string       { return "Block" }

func (b *Block) Clone() objectpool.Entity {
	cp := *b
	cp.Properties = cloneProps(b.Properties)
	cp.Members = cloneRefs(b.Members)
	return &cp
}

func (b *Block) WithName(name string) objectpool.Entity {
	clone := b.Clone().(*Block)
	clone.Name = name
	return clone
}

// Group is an arbitrary grouping of objects of any type.
type Group struct {
	ID         int
	Name       string
	Properties map[string]string

	Members []Ref
}

func (g *Group) ObjectID() int      { return g.ID }
func (g *Group) ObjectName() string { return g.Name }
func (g *Group) Kind() string       { return "Group" }

func (g *Group) Clone() objectpool.Entity {
	cp := *g
	cp.Properties = cloneProps(g.Properties)
	cp.Members = cloneRefs(g.Members)
	return &cp
}

func (g *Group) WithName(name string) objectpool.Entity {
	clone := g.Clone().(*Group)
	clone.Name = name
	return clone
}

// StaticRoute is a pre-specified ordered hop list preferred over computed
// routes between its endpoints.
type StaticRoute struct {
	ID         int
	Name       string
	Properties map[string]string

	Hops []Ref // ordered Point refs
}

func (s *StaticRoute) ObjectID() int      { return s.ID }
func (s *StaticRoute) ObjectName() string { return s.Name }
func (s *StaticRoute) Kind() string       { return "StaticRoute" }

func (s *StaticRoute) Clone() objectpool.Entity {
	cp := *s
	cp.Properties = cloneProps(s.Properties)
	cp.Hops = cloneRefs(s.Hops)
	return &cp
}

func (s *StaticRoute) WithName(name string) objectpool.Entity {
	clone := s.Clone().(*StaticRoute)
	clone.Name = name
	return clone
}

// VisualLayout stores opaque presentation data verbatim.
type VisualLayout struct {
	ID         int
	Name       string
	Properties map[string]string

	ScaleX, ScaleY float64
	Colors         map[string]string
	Elements       []byte // opaque, caller-defined encoding
	ViewBookmarks  []byte
}

func (v *VisualLayout) ObjectID() int      { return v.ID }
func (v *VisualLayout) ObjectName() string { return v.Name }
func (v *VisualLayout) Kind() string       { return "VisualLayout" }

func (v *VisualLayout) Clone() objectpool.Entity {
	cp := *v
	cp.Properties = cloneProps(v.Properties)
	cp.Colors = cloneProps(v.Colors)
	cp.Elements = append([]byte(nil), v.Elements...)
	cp.ViewBookmarks = append([]byte(nil), v.ViewBookmarks...)
	return &cp
}

func (v *VisualLayout) WithName(name string) objectpool.Entity {
	clone := v.Clone().(*VisualLayout)
	clone.Name = name
	return clone
}
