package web

import (
	"net/http"

	"invoicing-service/internal/core"
)

func (h *Handler) listInvoiceLines(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	result, err := h.svc.ListInvoiceLines(r.Context(), p, id)
	if err != nil {
		h.fail(w, r, "listInvoiceLines", err)
		return
	}
	writeJSON(w, result.Lines)
}

func (h *Handler) addInvoiceLine(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var in core.LineInput
	if !decodeJSON(w, r, &in) {
		return
	}
	result, err := h.svc.AddInvoiceLine(r.Context(), p, id, in)
	if err != nil {
		h.fail(w, r, "addInvoiceLine", err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result.Line)
}

func (h *Handler) getInvoiceLine(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	result, err := h.svc.GetInvoiceLine(r.Context(), p, id)
	if err != nil {
		h.fail(w, r, "getInvoiceLine", err)
		return
	}
	writeJSON(w, result.Line)
}

func (h *Handler) updateInvoiceLine(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var patch core.LinePatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	result, err := h.svc.UpdateInvoiceLine(r.Context(), p, id, patch)
	if err != nil {
		h.fail(w, r, "updateInvoiceLine", err)
		return
	}
	writeJSON(w, result.Line)
}

func (h *Handler) deleteInvoiceLine(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteInvoiceLine(r.Context(), p, id); err != nil {
		h.fail(w, r, "deleteInvoiceLine", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
