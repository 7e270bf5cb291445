package kernel

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/PaesslerAG/jsonpath"

	"github.com/opentcs-go/kernel/internal/kernelerr"
)

// Query answers one of the kernel's named introspection queries, or a
// jsonpath projection over the object pool when queryClass has the form
// "jsonpath:<expr>". It returns nil (no error) if queryClass is not
// supported in the kernel's current mode, per spec §6.
func (s *Supervisor) Query(queryClass string) (interface{}, error) {
	if s.GetState() == Shutdown {
		return nil, nil
	}

	switch {
	case queryClass == "vehicleNames":
		return namesOfKind(s, "Vehicle"), nil
	case queryClass == "pointNames":
		return namesOfKind(s, "Point"), nil
	case queryClass == "transportOrderNames":
		return namesOfKind(s, "TransportOrder"), nil
	case strings.HasPrefix(queryClass, "jsonpath:"):
		return s.queryJSONPath(strings.TrimPrefix(queryClass, "jsonpath:"))
	case strings.HasPrefix(queryClass, "modelField:"):
		return s.queryModelField(strings.TrimPrefix(queryClass, "modelField:"))
	default:
		return nil, nil
	}
}

// queryModelField answers "modelField:<model>:<gjsonPath>" by reading a
// single field out of a stored model snapshot without loading it into the
// live object pool. Returns nil if no model store is configured.
func (s *Supervisor) queryModelField(rest string) (interface{}, error) {
	if s.models == nil {
		return nil, nil
	}
	name, path, ok := strings.Cut(rest, ":")
	if !ok {
		return nil, kernelerr.IllegalArgument("modelField query requires <model>:<path>")
	}
	return s.models.QueryField(context.Background(), name, path)
}

func namesOfKind(s *Supervisor, kind string) []string {
	entities := s.pool.ByKind(kind)
	names := make([]string, len(entities))
	for i, e := range entities {
		names[i] = e.ObjectName()
	}
	return names
}

// queryJSONPath evaluates expr against a JSON projection of the current
// object pool (one array entry per entity, tagged by kind), per the
// jsonpath.Get contract documented by the PaesslerAG/jsonpath package.
func (s *Supervisor) queryJSONPath(expr string) (interface{}, error) {
	blob, err := snapshotPool(s.pool)
	if err != nil {
		return nil, kernelerr.IO("query", err)
	}
	var projection interface{}
	if err := json.Unmarshal(blob, &projection); err != nil {
		return nil, kernelerr.IO("query", err)
	}
	result, err := jsonpath.Get(expr, projection)
	if err != nil {
		return nil, kernelerr.IllegalArgument("invalid jsonpath expression: " + err.Error())
	}
	return result, nil
}
