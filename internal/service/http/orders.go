package httpsvc

import (
	"net/http"
	"strings"

	"github.com/vladislavdragonenkov/orderapp/internal/domain"
)

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	lines, err := req.lines()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	created, err := h.orders.CreateOrder(r.Context(), req.CustomerID, lines)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(created))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrders(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	o, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) listCustomerOrders(w http.ResponseWriter, r *http.Request) {
	customerID, err := pathID(r, "customerId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	orders, err := h.orders.ListOrdersByCustomer(r.Context(), customerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

// updateOrderStatus берёт статус из query-параметра status, а при его отсутствии из тела {"status": ...}.
func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	raw := r.URL.Query().Get("status")
	if strings.TrimSpace(raw) == "" && r.ContentLength != 0 {
		var req updateStatusRequest
		if err := decodeJSON(w, r, &req); err != nil {
			h.writeError(w, r, err)
			return
		}
		raw = req.Status
	}
	status, err := domain.ParseOrderStatus(raw)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	updated, err := h.orders.UpdateOrderStatus(r.Context(), id, status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(updated))
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.orders.DeleteOrder(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) orderTimeline(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	events, err := h.orders.OrderTimeline(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]timelineEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, timelineEventResponse{Type: e.Type, Reason: e.Reason, Occurred: e.Occurred})
	}
	writeJSON(w, http.StatusOK, out)
}
