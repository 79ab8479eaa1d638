package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/crmtools/customer-import/internal/customer"
)

// listResponse is the paginated customer listing shape.
type listResponse struct {
	Total int                 `json:"total"`
	Page  int                 `json:"page"`
	Data  []customer.Customer `json:"data"`
}

func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 10)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	customers, total, err := s.customers.List(r.Context(), limit, (page-1)*limit)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "Error fetching customers", err)
		return
	}

	respondJSON(w, http.StatusOK, listResponse{Total: total, Page: page, Data: customers})
}

func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := customerID(w, r)
	if !ok {
		return
	}

	c, err := s.customers.Get(r.Context(), id)
	if err != nil {
		respondCustomerError(w, r, err, "Error fetching customer")
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// handleUpdateCustomer replaces a customer, holding the body to the same
// full validation as an imported row.
func (s *Server) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := customerID(w, r)
	if !ok {
		return
	}

	fields, err := decodeFields(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	rec, violations := customer.Validate(fields)
	if len(violations) > 0 {
		respondViolations(w, http.StatusBadRequest, violations)
		return
	}

	c, err := s.customers.Update(r.Context(), id, rec)
	if err != nil {
		respondCustomerError(w, r, err, "Error updating customer")
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// handlePatchCustomer applies a partial update under partial-mode
// validation: at least one known field, unknown fields rejected.
func (s *Server) handlePatchCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := customerID(w, r)
	if !ok {
		return
	}

	fields, err := decodeFields(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	patch, violations := customer.ValidatePartial(fields)
	if len(violations) > 0 {
		respondViolations(w, http.StatusBadRequest, violations)
		return
	}

	c, err := s.customers.Patch(r.Context(), id, patch)
	if err != nil {
		respondCustomerError(w, r, err, "Error updating customer")
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := customerID(w, r)
	if !ok {
		return
	}

	if err := s.customers.Delete(r.Context(), id); err != nil {
		respondCustomerError(w, r, err, "Error deleting customer")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Customer deleted successfully"})
}

// customerID parses the {id} route param, responding 404 on garbage.
func customerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, http.StatusNotFound, "Customer not found", nil)
		return uuid.Nil, false
	}
	return id, true
}

// decodeFields reads a flat JSON object into the raw field map the
// validator consumes. Non-string values are rendered to their JSON text so
// unknown-field and format checks still apply to them.
func decodeFields(r *http.Request) (map[string]string, error) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, err
	}

	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			fields[k] = val
		case nil:
			fields[k] = ""
		default:
			fields[k] = fmt.Sprintf("%v", val)
		}
	}
	return fields, nil
}

// respondCustomerError maps store errors to the API's status codes.
func respondCustomerError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, customer.ErrNotFound):
		respondError(w, r, http.StatusNotFound, "Customer not found", nil)
	case errors.Is(err, customer.ErrDuplicateEmail):
		respondViolations(w, http.StatusConflict, []string{"Email already exists"})
	default:
		respondError(w, r, http.StatusInternalServerError, fallback, err)
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
