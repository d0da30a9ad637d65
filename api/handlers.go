/*
handlers.go - HTTP API handlers for the stock ledger

PURPOSE:
  Exposes the ledger service and a read/seed view of the product catalog
  via REST. Handles HTTP request/response and JSON, and delegates to
  ledger.Service.

ENDPOINTS:
  Accounts:
    GET    /api/accounts           List records, newest transaction first
    POST   /api/accounts           Create record (sale when income + sold_sizes)
    GET    /api/accounts/{id}      Get record
    PUT    /api/accounts/{id}      Edit record (sale when income + sold_sizes)
    DELETE /api/accounts/{id}      Delete record (unknown id succeeds)

  Products:
    GET    /api/products           List catalog
    GET    /api/products/{id}      Get product
    PUT    /api/products/{id}      Upsert product (seeding)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Record or product not found
  - 409: Insufficient stock, unknown size
  - 503: Transaction aborted after retries
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/warp/stock-ledger/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service  *ledger.Service
	Products ledger.ProductCatalog
	log      zerolog.Logger
}

// NewHandler creates a handler over a document store.
func NewHandler(store ledger.DocumentStore, log zerolog.Logger) *Handler {
	return &Handler{
		Service:  ledger.NewService(store, ledger.WithLogger(log)),
		Products: store,
		log:      log,
	}
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	records, err := h.Service.List(r.Context())
	if err != nil {
		h.writeError(w, r, "Failed to list accounts", err)
		return
	}

	dtos := make([]AccountDTO, len(records))
	for i, rec := range records {
		dtos[i] = toAccountDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id := ledger.RecordID(chi.URLParam(r, "id"))

	rec, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "Failed to get account", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(rec))
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	draft, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}

	id, err := h.Service.Save(r.Context(), draft, "")
	if err != nil {
		h.writeError(w, r, "Failed to save account", err)
		return
	}
	writeJSON(w, http.StatusCreated, SaveAccountResponse{ID: string(id)})
}

func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id := ledger.RecordID(chi.URLParam(r, "id"))
	draft, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}

	saved, err := h.Service.Save(r.Context(), draft, id)
	if err != nil {
		h.writeError(w, r, "Failed to save account", err)
		return
	}
	writeJSON(w, http.StatusOK, SaveAccountResponse{ID: string(saved)})
}

func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id := ledger.RecordID(chi.URLParam(r, "id"))

	if err := h.Service.Remove(r.Context(), id); err != nil {
		h.writeError(w, r, "Failed to delete account", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": string(id)})
}

// decodeDraft parses and validates a SaveAccountRequest. It writes the
// error response itself and returns false when the request is invalid.
func (h *Handler) decodeDraft(w http.ResponseWriter, r *http.Request) (ledger.Draft, bool) {
	var req SaveAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "Invalid request body", "invalid_request", err)
		return ledger.Draft{}, false
	}

	kind, err := ledger.ParseKind(req.Kind)
	if err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "Invalid kind", "invalid_kind", err)
		return ledger.Draft{}, false
	}
	draft := req.toDraft(kind)

	if kind == ledger.KindIncome && len(draft.SoldSizes) > 0 {
		if draft.ProductID == "" {
			writeErrorStatus(w, http.StatusBadRequest, "product_id is required for a sale", "invalid_request", nil)
			return ledger.Draft{}, false
		}
		for i, item := range draft.SoldSizes {
			if item.Size == "" || item.Quantity <= 0 {
				writeErrorStatus(w, http.StatusBadRequest,
					fmt.Sprintf("sold_sizes[%d] needs a size and a positive quantity", i), "invalid_request", nil)
				return ledger.Draft{}, false
			}
			if item.UnitPrice.IsNegative() {
				writeErrorStatus(w, http.StatusBadRequest,
					fmt.Sprintf("sold_sizes[%d] has a negative unit price", i), "invalid_request", nil)
				return ledger.Draft{}, false
			}
		}
	}
	return draft, true
}

// =============================================================================
// PRODUCT HANDLERS
// =============================================================================

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Products.ListProducts(r.Context())
	if err != nil {
		h.writeError(w, r, "Failed to list products", err)
		return
	}

	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = toProductDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := ledger.ProductID(chi.URLParam(r, "id"))

	p, err := h.Products.GetProduct(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "Failed to get product", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(p))
}

// PutProduct upserts a product. When stock is omitted it is derived the
// same way a sale derives it.
func (h *Handler) PutProduct(w http.ResponseWriter, r *http.Request) {
	var dto ProductDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "Invalid request body", "invalid_request", err)
		return
	}
	dto.ID = chi.URLParam(r, "id")

	p := dto.toProduct()
	if p.ClothingType != ledger.ClothingTop && p.ClothingType != ledger.ClothingBottom {
		writeErrorStatus(w, http.StatusBadRequest, "clothing_type must be top or bottom", "invalid_request", nil)
		return
	}
	if p.Stock == 0 {
		sale, err := ledger.ApplySale(p, nil)
		if err != nil {
			h.writeError(w, r, "Failed to compute stock", err)
			return
		}
		p = sale.Product
	}

	if err := h.Products.PutProduct(r.Context(), p); err != nil {
		h.writeError(w, r, "Failed to save product", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(p))
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeErrorStatus(w http.ResponseWriter, status int, message, code string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeError maps ledger errors to a status. Server-side failures are logged
// with the request id; their details are not sent to the client.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg(message)
		if status == http.StatusInternalServerError {
			writeErrorStatus(w, status, message, code, nil)
			return
		}
	}
	writeErrorStatus(w, status, message, code, err)
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ledger.ErrInvalidDate):
		return http.StatusBadRequest, "invalid_date"
	case errors.Is(err, ledger.ErrInvalidKind):
		return http.StatusBadRequest, "invalid_kind"
	case errors.Is(err, ledger.ErrProductNotFound):
		return http.StatusNotFound, "product_not_found"
	case errors.Is(err, ledger.ErrRecordNotFound):
		return http.StatusNotFound, "record_not_found"
	case errors.Is(err, ledger.ErrInsufficientStock):
		return http.StatusConflict, "insufficient_stock"
	case errors.Is(err, ledger.ErrSizeNotFound):
		return http.StatusConflict, "size_not_found"
	case errors.Is(err, ledger.ErrTransactionAborted):
		return http.StatusServiceUnavailable, "transaction_aborted"
	}
	return http.StatusInternalServerError, "internal"
}
