package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ndviet/market-gate/internal/core/domain"
	"github.com/ndviet/market-gate/internal/core/service"
)

type HTTPHandler struct {
	market *service.Market
}

func NewHTTPHandler(market *service.Market) *HTTPHandler {
	return &HTTPHandler{market: market}
}

// Register wires all routes onto the mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("GET /api/items/{id}", h.GetItem)
	mux.HandleFunc("POST /api/items/{id}/refresh", h.RefreshItem)
	mux.HandleFunc("POST /api/purchase", h.Purchase)
	mux.HandleFunc("GET /api/purchases", h.ListPurchases)
}

type snapshotResponse struct {
	ItemID    string    `json:"item_id"`
	Price     string    `json:"price"`
	Inventory int64     `json:"inventory"`
	Version   uint64    `json:"version"`
	SyncedAt  time.Time `json:"synced_at"`
}

type purchaseHTTPRequest struct {
	RequestID string `json:"request_id"`
	ItemID    string `json:"item_id"`
	Quantity  int64  `json:"quantity"`
}

type purchaseHTTPResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	TxRef     string `json:"tx_ref,omitempty"`
}

func toSnapshotResponse(s domain.Snapshot) snapshotResponse {
	return snapshotResponse{
		ItemID:    s.ItemID,
		Price:     s.Price.String(),
		Inventory: s.Inventory,
		Version:   s.Version,
		SyncedAt:  s.SyncedAt,
	}
}

// GetItem returns the last-known snapshot without touching the ledger.
func (h *HTTPHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	snap, err := h.market.GetSnapshot(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "item not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotResponse(snap))
}

// RefreshItem forces a read-through refresh and returns the result.
func (h *HTTPHandler) RefreshItem(w http.ResponseWriter, r *http.Request) {
	snap, err := h.market.EnsureFresh(r.Context(), r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "ledger read failed"})
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotResponse(snap))
}

func (h *HTTPHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, purchaseHTTPResponse{
			Success: false,
			Message: "invalid request body",
		})
		return
	}
	if req.ItemID == "" || req.Quantity <= 0 {
		writeJSON(w, http.StatusBadRequest, purchaseHTTPResponse{
			Success: false,
			Message: "missing required fields",
		})
		return
	}

	conf, err := h.market.Buy(r.Context(), req.ItemID, req.Quantity, req.RequestID)
	if err != nil {
		status := http.StatusInternalServerError
		message := "internal error"

		switch {
		case errors.Is(err, service.ErrDuplicateRequest):
			status = http.StatusConflict
			message = "duplicate request"
		case errors.Is(err, service.ErrAlreadyPending):
			status = http.StatusConflict
			message = "purchase already pending for item"
		case errors.Is(err, domain.ErrLedgerRejected):
			status = http.StatusUnprocessableEntity
			message = err.Error()
		case errors.Is(err, service.ErrTimeout):
			status = http.StatusGatewayTimeout
			message = "ledger timed out"
		case errors.Is(err, service.ErrInvalidQuantity):
			status = http.StatusBadRequest
			message = "invalid quantity"
		}

		writeJSON(w, status, purchaseHTTPResponse{
			Success: false,
			Message: message,
		})
		return
	}

	writeJSON(w, http.StatusOK, purchaseHTTPResponse{
		Success:   true,
		Message:   "purchase confirmed",
		RequestID: conf.RequestID,
		TxRef:     conf.TxRef,
	})
}

func (h *HTTPHandler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	itemID := r.URL.Query().Get("item")
	if itemID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "item parameter required"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	purchases, err := h.market.Purchases(r.Context(), itemID, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, purchases)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
