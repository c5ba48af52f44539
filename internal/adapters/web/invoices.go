package web

import (
	"fmt"
	"net/http"
	"strconv"

	"invoicing-service/internal/core"
)

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	result, err := h.svc.ListInvoices(r.Context(), p)
	if err != nil {
		h.fail(w, r, "listInvoices", err)
		return
	}
	writeJSON(w, result.Invoices)
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in core.InvoiceInput
	if !decodeJSON(w, r, &in) {
		return
	}
	result, err := h.svc.CreateInvoice(r.Context(), p, in)
	if err != nil {
		h.fail(w, r, "createInvoice", err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result.Invoice)
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	result, err := h.svc.GetInvoice(r.Context(), p, id)
	if err != nil {
		h.fail(w, r, "getInvoice", err)
		return
	}
	writeJSON(w, result.Invoice)
}

// updateInvoice serves PUT and PATCH. An "items" key replaces the whole ledger.
func (h *Handler) updateInvoice(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var patch core.InvoicePatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	result, err := h.svc.UpdateInvoice(r.Context(), p, id, patch)
	if err != nil {
		h.fail(w, r, "updateInvoice", err)
		return
	}
	writeJSON(w, result.Invoice)
}

func (h *Handler) deleteInvoice(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteInvoice(r.Context(), p, id); err != nil {
		h.fail(w, r, "deleteInvoice", err)
		return
	}
	writeJSON(w, map[string]string{"message": "invoice deleted"})
}

// exportInvoice streams a rendered document. PDFs open inline, workbooks download.
func (h *Handler) exportInvoice(format string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		doc, err := h.svc.ExportInvoice(r.Context(), p, id, format)
		if err != nil {
			h.fail(w, r, "exportInvoice", err)
			return
		}
		disposition := "attachment"
		if format == "pdf" {
			disposition = "inline"
		}
		w.Header().Set("Content-Type", doc.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, doc.Filename))
		w.Header().Set("Content-Length", strconv.Itoa(len(doc.Data)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(doc.Data)
	}
}
