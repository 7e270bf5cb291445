// Package httpapi exposes the kernel's Go API as a convenience HTTP
// transport: a plain net/http.ServeMux carrying JSON request/response
// bodies. It is not a wire-format specification — every handler is a thin
// adapter onto domain/kernel.Supervisor, which remains the tested contract.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/opentcs-go/kernel/domain/kernel"
	"github.com/opentcs-go/kernel/domain/orders"
	"github.com/opentcs-go/kernel/domain/topology"
	"github.com/opentcs-go/kernel/internal/kernelerr"
	"github.com/opentcs-go/kernel/internal/kernellog"
	"github.com/opentcs-go/kernel/internal/metrics"
)

var errMissingToken = errors.New("missing or malformed bearer token")

type ctxKey int

const usernameKey ctxKey = iota

func withUsername(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, usernameKey, name)
}

// handler bundles HTTP endpoints for the kernel supervisor.
type handler struct {
	supervisor *kernel.Supervisor
	metrics    *metrics.Metrics
	log        *kernellog.Logger
}

// New builds an http.Handler exposing the kernel's operations.
func New(supervisor *kernel.Supervisor, m *metrics.Metrics, log *kernellog.Logger) http.Handler {
	h := &handler{supervisor: supervisor, metrics: m, log: log}
	mux := http.NewServeMux()

	mountRoutes(mux,
		route{pattern: "/kernel/state", method: http.MethodGet, handler: h.withMetrics("/kernel/state", h.getState)},
		route{pattern: "/kernel/state", method: http.MethodPut, handler: h.withMetrics("/kernel/state", h.withAuth(h.setState))},
		route{pattern: "/kernel/simulation-time-factor", method: http.MethodGet, handler: h.withMetrics("/kernel/simulation-time-factor", h.getSimTimeFactor)},
		route{pattern: "/kernel/simulation-time-factor", method: http.MethodPut, handler: h.withMetrics("/kernel/simulation-time-factor", h.withAuth(h.setSimTimeFactor))},

		route{pattern: "/auth/login", method: http.MethodPost, handler: h.withMetrics("/auth/login", h.login)},

		route{pattern: "/users", method: http.MethodPost, handler: h.withMetrics("/users", h.withAuth(h.createUser))},
		route{pattern: "/users/", handler: h.withMetrics("/users/", h.withAuth(h.userByName))},

		route{pattern: "/models", method: http.MethodGet, handler: h.withMetrics("/models", h.withAuth(h.getModelNames))},
		route{pattern: "/models", method: http.MethodPost, handler: h.withMetrics("/models", h.withAuth(h.createModel))},
		route{pattern: "/models/current", method: http.MethodGet, handler: h.withMetrics("/models/current", h.withAuth(h.getCurrentModelName))},
		route{pattern: "/models/", handler: h.withMetrics("/models/", h.withAuth(h.modelByName))},

		route{pattern: "/objects/", handler: h.withMetrics("/objects/", h.withAuth(h.objectByRef))},

		route{pattern: "/points", method: http.MethodPost, handler: h.withMetrics("/points", h.withAuth(h.createPoint))},
		route{pattern: "/paths", method: http.MethodPost, handler: h.withMetrics("/paths", h.withAuth(h.createPath))},
		route{pattern: "/paths/", handler: h.withMetrics("/paths/", h.withAuth(h.pathByName))},
		route{pattern: "/vehicles", method: http.MethodPost, handler: h.withMetrics("/vehicles", h.withAuth(h.createVehicle))},
		route{pattern: "/vehicles/", handler: h.withMetrics("/vehicles/", h.withAuth(h.vehicleByName))},

		route{pattern: "/transport-orders", method: http.MethodPost, handler: h.withMetrics("/transport-orders", h.withAuth(h.createTransportOrder))},
		route{pattern: "/transport-orders/", handler: h.withMetrics("/transport-orders/", h.withAuth(h.transportOrderByName))},
		route{pattern: "/transport-orders-from-script", method: http.MethodPost, handler: h.withMetrics("/transport-orders-from-script", h.withAuth(h.createTransportOrdersFromScript))},
		route{pattern: "/dispatch", method: http.MethodPost, handler: h.withMetrics("/dispatch", h.withAuth(h.dispatchVehicle))},

		route{pattern: "/query", method: http.MethodGet, handler: h.withMetrics("/query", h.withAuth(h.query))},
		route{pattern: "/config", method: http.MethodGet, handler: h.withMetrics("/config", h.withAuth(h.getConfig))},
		route{pattern: "/config", method: http.MethodPut, handler: h.withMetrics("/config", h.withAuth(h.setConfig))},
	)
	return mux
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error body, logs it tagged with the request's
// trace ID (see withMetrics, which stamps the context with kernellog.TraceIDKey),
// so a user-reported X-Request-Id header can be grepped straight out of the
// kernel's logs, and records it against opentcs_errors_total by taxonomy
// code and request path.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, fallbackStatus int, err error) {
	status := kernelerr.HTTPStatus(err)
	if status == http.StatusInternalServerError && fallbackStatus != 0 {
		status = fallbackStatus
	}
	if h.log != nil {
		h.log.WithContext(r.Context()).WithField("status", status).Warn("httpapi: request failed: " + err.Error())
	}
	if h.metrics != nil {
		h.metrics.RecordError(string(kernelerr.CodeOf(err)), r.URL.Path)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func lastPathSegment(r *http.Request, prefix string) string {
	return strings.TrimPrefix(r.URL.Path, prefix)
}

// --- kernel state ---

func (h *handler) getState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"state": string(h.supervisor.GetState())})
}

func (h *handler) setState(w http.ResponseWriter, r *http.Request) {
	var body struct{ State kernel.Mode }
	if err := decodeJSON(r.Body, &body); err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := h.supervisor.SetState(body.State); err != nil {
		h.writeError(w, r, 0, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(body.State)})
}

func (h *handler) getSimTimeFactor(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]float64{"factor": h.supervisor.GetSimulationTimeFactor()})
}

func (h *handler) setSimTimeFactor(w http.ResponseWriter, r *http.Request) {
	var body struct{ Factor float64 }
	if err := decodeJSON(r.Body, &body); err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := h.supervisor.SetSimulationTimeFactor(body.Factor); err != nil {
		h.writeError(w, r, 0, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"factor": body.Factor})
}

// --- auth & users ---

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var body struct{ Username, Password string }
	if err := decodeJSON(r.Body, &body); err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	token, err := h.supervisor.Authenticate(body.Username, body.Password, 24*time.Hour)
	if err != nil {
		h.writeError(w, r, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *handler) createUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string
		Password    string
		Permissions []string
	}
	if err := decodeJSON(r.Body, &body); err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := h.supervisor.CreateUser(body.Name, body.Password, body.Permissions); err != nil {
		h.writeError(w, r, 0, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"name": body.Name})
}

func (h *handler) userByName(w http.ResponseWriter, r *http.Request) {
	name := lastPathSegment(r, "/users/")
	switch r.Method {
	case http.MethodGet:
		perms, err := h.supervisor.GetUserPermissions(name)
		if err != nil {
			h.writeError(w, r, 0, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"name": name, "permissions": perms})
	case http.MethodDelete:
		if err := h.supervisor.RemoveUser(name); err != nil {
			h.writeError(w, r, 0, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodDelete)
	}
}

// --- model lifecycle ---

func (h *handler) getModelNames(w http.ResponseWriter, r *http.Request) {
	names, err := h.supervisor.GetModelNames(r.Context())
	if err != nil {
		h.writeError(w, r, 0, err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

func (h *handler) getCurrentModelName(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"name": h.supervisor.GetCurrentModelName()})
}

func (h *handler) createModel(w http.ResponseWriter, r *http.Request) {
	var body struct{ Name string }
	if err := decodeJSON(r.Body, &body); err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := h.supervisor.CreateModel(r.Context(), body.Name); err != nil {
		h.writeError(w, r, 0, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"name": body.Name})
}

func (h *handler) modelByName(w http.ResponseWriter, r *http.Request) {
	name := lastPathSegment(r, "/models/")
	switch r.Method {
	case http.MethodPost:
		if err := h.supervisor.LoadModel(r.Context(), name); err != nil {
			h.writeError(w, r, 0, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"name": name})
	case http.MethodPut:
		overwrite := r.URL.Query().Get("overwrite") == "true"
		if err := h.supervisor.SaveModel(r.Context(), name, overwrite); err != nil {
			h.writeError(w, r, 0, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"name": name})
	case http.MethodDelete:
		if err := h.supervisor.RemoveModel(r.Context(), name); err != nil {
			h.writeError(w, r, 0, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, http.MethodPost, http.MethodPut, http.MethodDelete)
	}
}

// --- generic object access ---

func (h *handler) objectByRef(w http.ResponseWriter, r *http.Request) {
	ref := lastPathSegment(r, "/objects/")
	switch r.Method {
	case http.MethodGet:
		if kind := r.URL.Query().Get("kind"); kind != "" {
			objs, err := h.supervisor.GetTCSObjects(kind, r.URL.Query().Get("regex"))
			if err != nil {
				h.writeError(w, r, http.StatusBadRequest, err)
				return
			}
			writeJSON(w, http.StatusOK, objs)
			return
		}
		obj, err := h.supervisor.GetTCSObject(ref)
		if err != nil {
			h.writeError(w, r, 0, err)
			return
		}
		writeJSON(w, http.StatusOK, obj)
	case http.MethodPatch:
		var body struct {
			Property *string
			Value    *string
			Rename   *string
		}
		if err := decodeJSON(r.Body, &body); err != nil {
			h.writeError(w, r, http.StatusBadRequest, err)
			return
		}
		if body.Rename != nil {
			if err := h.supervisor.RenameTCSObject(ref, *body.Rename); err != nil {
				h.writeError(w, r, 0, err)
				return
			}
		}
		if body.Property != nil {
			if err := h.supervisor.SetTCSObjectProperty(ref, *body.Property, body.Value); err != nil {
				h.writeError(w, r, 0, err)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"ref": ref})
	case http.MethodDelete:
		if err := h.supervisor.RemoveTCSObject(ref); err != nil {
			h.writeError(w, r, 0, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

// --- topology editing ---

func (h *handler) createPoint(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string
		Position topology.Triple
	}
	if err := decodeJSON(r.Body, &body); err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	pt, err := h.supervisor.CreatePoint(body.Name, body.Position)
	if err != nil {
		h.writeError(w, r, 0, err)
		return
	}
	writeJSON(w, http.StatusCreated, pt)
}

func (h *handler) createPath(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name, Source, Destination string
		Length, RoutingCost       int64
	}
	if err := decodeJSON(r.Body, &body); err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	p, err := h.supervisor.CreatePath(body.Name, body.Source, body.Destination, body.Length, body.RoutingCost)
	if err != nil {
		h.writeError(w, r, 0, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *handler) pathByName(w http.ResponseWriter, r *http.Request) {
	name := lastPathSegment(r, "/paths/")
	switch r.Method {
	case http.MethodPatch:
		var body struct {
			Length, RoutingCost, MaxVelocity, MaxReverseVelocity *int64
			Locked                                               *bool
		}
		if err := decodeJSON(r.Body, &body); err != nil {
			h.writeError(w, r, http.StatusBadRequest, err)
			return
		}
		if body.Length != nil {
			if err := h.supervisor.SetPathLength(name, *body.Length); err != nil {
				h.writeError(w, r, 0, err)
				return
			}
		}
		if body.RoutingCost != nil {
			if err := h.supervisor.SetPathRoutingCost(name, *body.RoutingCost); err != nil {
				h.writeError(w, r, 0, err)
				return
			}
		}
		if body.MaxVelocity != nil {
			if err := h.supervisor.SetPathMaxVelocity(name, *body.MaxVelocity); err != nil {
				h.writeError(w, r, 0, err)
				return
			}
		}
		if body.MaxReverseVelocity != nil {
			if err := h.supervisor.SetPathMaxReverseVelocity(name, *body.MaxReverseVelocity); err != nil {
				h.writeError(w, r, 0, err)
				return
			}
		}
		if body.Locked != nil {
			if err := h.supervisor.SetPathLocked(name, *body.Locked); err != nil {
				h.writeError(w, r, 0, err)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"name": name})
	case http.MethodDelete:
		if err := h.supervisor.RemovePath(name); err != nil {
			h.writeError(w, r, 0, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, http.MethodPatch, http.MethodDelete)
	}
}

func (h *handler) createVehicle(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name   string
		Length int64
	}
	if err := decodeJSON(r.Body, &body); err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	v, err := h.supervisor.CreateVehicle(body.Name, body.Length)
	if err != nil {
		h.writeError(w, r, 0, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *handler) vehicleByName(w http.ResponseWriter, r *http.Request) {
	name := lastPathSegment(r, "/vehicles/")
	switch r.Method {
	case http.MethodPatch:
		var body struct{ Position *string }
		if err := decodeJSON(r.Body, &body); err != nil {
			h.writeError(w, r, http.StatusBadRequest, err)
			return
		}
		if body.Position != nil {
			if err := h.supervisor.SetVehiclePosition(name, *body.Position); err != nil {
				h.writeError(w, r, 0, err)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"name": name})
	default:
		methodNotAllowed(w, http.MethodPatch)
	}
}

// --- orders ---

func (h *handler) createTransportOrder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name         string
		Destinations []orders.Destination
		Deadline     int64
	}
	if err := decodeJSON(r.Body, &body); err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	order, err := h.supervisor.CreateTransportOrder(body.Name, body.Destinations, body.Deadline, time.Now().UnixMilli())
	if err != nil {
		h.writeError(w, r, 0, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *handler) transportOrderByName(w http.ResponseWriter, r *http.Request) {
	name := lastPathSegment(r, "/transport-orders/")
	switch r.Method {
	case http.MethodGet:
		obj, err := h.supervisor.GetTCSObject(name)
		if err != nil {
			h.writeError(w, r, 0, err)
			return
		}
		writeJSON(w, http.StatusOK, obj)
	case http.MethodDelete:
		disable := r.URL.Query().Get("disableVehicle") == "true"
		if err := h.supervisor.WithdrawTransportOrder(name, disable, time.Now().UnixMilli()); err != nil {
			h.writeError(w, r, 0, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodDelete)
	}
}

func (h *handler) createTransportOrdersFromScript(w http.ResponseWriter, r *http.Request) {
	var body struct{ Script, EntryPoint string }
	if err := decodeJSON(r.Body, &body); err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	created, err := h.supervisor.CreateTransportOrdersFromScript(body.Script, body.EntryPoint, time.Now().UnixMilli())
	if err != nil {
		h.writeError(w, r, 0, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) dispatchVehicle(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Vehicle             string
		SetIdleIfUnavailable bool
	}
	if err := decodeJSON(r.Body, &body); err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	order, err := h.supervisor.DispatchVehicle(body.Vehicle, body.SetIdleIfUnavailable, time.Now().UnixMilli())
	if err != nil {
		h.writeError(w, r, 0, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// --- queries & config ---

func (h *handler) query(w http.ResponseWriter, r *http.Request) {
	result, err := h.supervisor.Query(r.URL.Query().Get("class"))
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"result": result})
}

func (h *handler) getConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.supervisor.GetConfigurationItems())
}

func (h *handler) setConfig(w http.ResponseWriter, r *http.Request) {
	var body struct{ Key, Value string }
	if err := decodeJSON(r.Body, &body); err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := h.supervisor.SetConfigurationItem(r.Context(), body.Key, body.Value); err != nil {
		h.writeError(w, r, 0, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": body.Key})
}

