package serv

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/treeql/treeql/core"
)

// restHandler dispatches one batch request. The method in the path
// picks the operation:
//
//	get     tree-shaped read
//	post    insert
//	put     update
//	delete  delete
//	head    count
func (s *Service) restHandler(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeBody(w, r)
	if !ok {
		return
	}

	switch chi.URLParam(r, "method") {
	case "get":
		result, err := s.gw.Query(r.Context(), body)
		if err != nil {
			renderError(w, err)
			return
		}
		renderJSON(w, http.StatusOK, result)

	case "post":
		result, failed := s.gw.Insert(r.Context(), body)
		renderWrite(w, result, failed)

	case "put":
		result, failed := s.gw.Update(r.Context(), body)
		renderWrite(w, result, failed)

	case "delete":
		result, failed := s.gw.Delete(r.Context(), body)
		renderWrite(w, result, failed)

	case "head":
		result, failed := s.gw.CountRows(r.Context(), body)
		renderWrite(w, result, failed)

	default:
		renderJSON(w, http.StatusBadRequest, errEnvelope("method not supported"))
	}
}

// tablesHandler lists one schema's tables with their comments.
func (s *Service) tablesHandler(w http.ResponseWriter, r *http.Request) {
	schema := chi.URLParam(r, "schema")
	renderJSON(w, http.StatusOK, s.gw.Schema().ListTables(schema))
}

// tableMetaHandler returns one table's column metadata.
func (s *Service) tableMetaHandler(w http.ResponseWriter, r *http.Request) {
	schema := chi.URLParam(r, "schema")
	table := chi.URLParam(r, "table")

	t, ok := s.gw.Schema().GetTable(schema, table)
	if !ok {
		renderJSON(w, http.StatusBadRequest, errEnvelope("table: "+schema+"."+table+" not exists"))
		return
	}
	renderJSON(w, http.StatusOK, t)
}

func decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		renderJSON(w, http.StatusBadRequest, errEnvelope("invalid json body"))
		return nil, false
	}
	return body, true
}

// renderWrite sends the per-key payload; any failed key makes the
// whole response a 400 while keeping the successful entries visible.
func renderWrite(w http.ResponseWriter, result map[string]any, failed bool) {
	status := http.StatusOK
	if failed {
		status = http.StatusBadRequest
	}
	renderJSON(w, status, result)
}

// renderError maps gateway errors to the envelope: client mistakes to
// 400, everything else to 500.
func renderError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if core.IsBadRequest(err) {
		status = http.StatusBadRequest
	}
	renderJSON(w, status, errEnvelope(err.Error()))
}

func errEnvelope(msg string) map[string]string {
	return map[string]string{"err_msg": msg}
}

func renderJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
