package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/tenantic/flowcore/internal/log"
	"github.com/tenantic/flowcore/pkg/service"
	"github.com/tenantic/flowcore/pkg/storage"
)

// Handler builds the HTTP surface over the workflow services. The
// routes are an admin/integration convenience for collaborator modules;
// tenancy is explicit via the tenant_id parameter on every call.
func Handler(store storage.Store) http.Handler {
	logger := log.GetLogger()
	defs := service.NewDefinitionService(store, logger)
	instances := service.NewInstanceService(store, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/definitions", definitionsHandler(defs))
	mux.HandleFunc("/definitions/", definitionHandler(defs))
	mux.HandleFunc("/instances", instancesHandler(instances))
	mux.HandleFunc("/instances/", instanceHandler(instances))
	return mux
}

func StartServer(port string, store storage.Store) error {
	log.GetLogger().Infof("Starting flowcore server on :%s", port)
	return http.ListenAndServe(":"+port, Handler(store))
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "flowcore server is running")
}

type createDefinitionRequest struct {
	TenantID string `json:"tenant_id"`
	service.CreateDefinitionInput
}

type updateDefinitionRequest struct {
	TenantID string `json:"tenant_id"`
	service.UpdateDefinitionInput
}

func definitionsHandler(svc *service.DefinitionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			tenantID := r.URL.Query().Get("tenant_id")
			if tenantID == "" {
				http.Error(w, "Missing 'tenant_id' parameter", http.StatusBadRequest)
				return
			}
			defs, err := svc.ListDefinitions(tenantID)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, defs)
		case http.MethodPost:
			var req createDefinitionRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
				return
			}
			def, err := svc.CreateDefinition(req.TenantID, req.CreateDefinitionInput)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, def)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func definitionHandler(svc *service.DefinitionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, strings.TrimPrefix(r.URL.Path, "/definitions/"))
		if !ok {
			return
		}
		switch r.Method {
		case http.MethodGet:
			tenantID := r.URL.Query().Get("tenant_id")
			def, err := svc.GetDefinition(id, tenantID)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, def)
		case http.MethodPatch:
			var req updateDefinitionRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
				return
			}
			def, err := svc.UpdateDefinition(id, req.TenantID, req.UpdateDefinitionInput)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, def)
		case http.MethodDelete:
			tenantID := r.URL.Query().Get("tenant_id")
			def, err := svc.ArchiveDefinition(id, tenantID)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, def)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

type startInstanceRequest struct {
	TenantID        string `json:"tenant_id"`
	DefinitionID    int64  `json:"definition_id"`
	EntityType      string `json:"entity_type"`
	EntityID        string `json:"entity_id"`
	StartedByUserID string `json:"started_by_user_id,omitempty"`
}

func instancesHandler(svc *service.InstanceService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			q := r.URL.Query()
			in, err := svc.GetInstance(q.Get("entity_type"), q.Get("entity_id"), q.Get("tenant_id"))
			if err != nil {
				writeError(w, err)
				return
			}
			if in == nil {
				http.Error(w, "No instance for entity", http.StatusNotFound)
				return
			}
			writeJSON(w, http.StatusOK, in)
		case http.MethodPost:
			var req startInstanceRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
				return
			}
			in, err := svc.StartInstance(req.TenantID, req.DefinitionID, req.EntityType, req.EntityID, req.StartedByUserID)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, in)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

type advanceRequest struct {
	TenantID     string `json:"tenant_id"`
	TransitionID int64  `json:"transition_id"`
	ActorUserID  string `json:"actor_user_id,omitempty"`
	Comment      string `json:"comment,omitempty"`
}

type cancelRequest struct {
	TenantID    string `json:"tenant_id"`
	ActorUserID string `json:"actor_user_id,omitempty"`
	Comment     string `json:"comment,omitempty"`
}

func instanceHandler(svc *service.InstanceService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/instances/")
		parts := strings.SplitN(rest, "/", 2)
		id, ok := parseID(w, parts[0])
		if !ok {
			return
		}
		action := ""
		if len(parts) == 2 {
			action = parts[1]
		}

		switch {
		case action == "" && r.Method == http.MethodGet:
			in, err := svc.GetInstanceByID(id, r.URL.Query().Get("tenant_id"))
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, in)
		case action == "" && r.Method == http.MethodDelete:
			if err := svc.DeleteInstance(id, r.URL.Query().Get("tenant_id")); err != nil {
				writeError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		case action == "advance" && r.Method == http.MethodPost:
			var req advanceRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
				return
			}
			in, err := svc.Advance(req.TenantID, id, req.TransitionID, req.ActorUserID, req.Comment)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, in)
		case action == "cancel" && r.Method == http.MethodPost:
			var req cancelRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
				return
			}
			in, err := svc.Cancel(req.TenantID, id, req.ActorUserID, req.Comment)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, in)
		case action == "history" && r.Method == http.MethodGet:
			history, err := svc.ListHistory(id, r.URL.Query().Get("tenant_id"))
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, history)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func parseID(w http.ResponseWriter, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid id '%s'", raw), http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.GetLogger().Errorf("Failed to encode response: %v", err)
	}
}

// writeError maps the service error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidDefinition):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrInvalidState), errors.Is(err, service.ErrIllegalTransition), errors.Is(err, service.ErrConcurrency):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		log.GetLogger().Errorf("Request failed: %v", err)
	}
	http.Error(w, err.Error(), status)
}
