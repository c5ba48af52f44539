package web

import (
	"net/http"

	"invoicing-service/internal/core"
)

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	result, err := h.svc.ListCustomers(r.Context(), p)
	if err != nil {
		h.fail(w, r, "listCustomers", err)
		return
	}
	writeJSON(w, result.Customers)
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in core.CustomerInput
	if !decodeJSON(w, r, &in) {
		return
	}
	c, err := h.svc.CreateCustomer(r.Context(), p, in)
	if err != nil {
		h.fail(w, r, "createCustomer", err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, c)
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	c, err := h.svc.GetCustomer(r.Context(), p, id)
	if err != nil {
		h.fail(w, r, "getCustomer", err)
		return
	}
	writeJSON(w, c)
}

// updateCustomer serves both PUT and PATCH: fields absent from the body are kept.
func (h *Handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var patch core.CustomerPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	c, err := h.svc.UpdateCustomer(r.Context(), p, id, patch)
	if err != nil {
		h.fail(w, r, "updateCustomer", err)
		return
	}
	writeJSON(w, c)
}

func (h *Handler) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteCustomer(r.Context(), p, id); err != nil {
		h.fail(w, r, "deleteCustomer", err)
		return
	}
	writeJSON(w, map[string]string{"message": "customer deleted"})
}
