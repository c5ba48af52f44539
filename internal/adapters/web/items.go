package web

import (
	"net/http"

	"invoicing-service/internal/core"
)

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	result, err := h.svc.ListItems(r.Context(), p)
	if err != nil {
		h.fail(w, r, "listItems", err)
		return
	}
	views := make([]core.CatalogItemView, 0, len(result.Items))
	for _, it := range result.Items {
		views = append(views, core.ToItemView(it))
	}
	writeJSON(w, views)
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in core.CatalogItemInput
	if !decodeJSON(w, r, &in) {
		return
	}
	it, err := h.svc.CreateItem(r.Context(), p, in)
	if err != nil {
		h.fail(w, r, "createItem", err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, core.ToItemView(*it))
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	it, err := h.svc.GetItem(r.Context(), p, id)
	if err != nil {
		h.fail(w, r, "getItem", err)
		return
	}
	writeJSON(w, core.ToItemView(*it))
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var patch core.CatalogItemPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	it, err := h.svc.UpdateItem(r.Context(), p, id, patch)
	if err != nil {
		h.fail(w, r, "updateItem", err)
		return
	}
	writeJSON(w, core.ToItemView(*it))
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteItem(r.Context(), p, id); err != nil {
		h.fail(w, r, "deleteItem", err)
		return
	}
	writeJSON(w, map[string]string{"message": "item deleted"})
}
