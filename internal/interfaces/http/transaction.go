package http

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"finsync/internal/domain/transaction"
)

// TransactionService is the part of transaction.Service the API needs.
type TransactionService interface {
	Create(ctx context.Context, params transaction.CreateParams) (*transaction.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*transaction.Transaction, error)
	ListByAccount(ctx context.Context, accountID string) ([]*transaction.Transaction, error)
	Update(ctx context.Context, id string, params transaction.UpdateParams) (*transaction.Transaction, error)
	Delete(ctx context.Context, id string) error
}

type TransactionHandler struct {
	service TransactionService
}

func NewTransactionHandler(service TransactionService) *TransactionHandler {
	return &TransactionHandler{service: service}
}

// CreateTransactionRequest is the body of POST /api/transactions/.
// Amounts may be JSON numbers or strings. Dates are YYYY-MM-DD or RFC3339.
type CreateTransactionRequest struct {
	ID           string                    `json:"id"`
	AccountID    string                    `json:"accountId"`
	Amount       decimal.Decimal           `json:"amount"`
	Posted       string                    `json:"posted"`
	TransactedAt string                    `json:"transactedAt"`
	Payee        string                    `json:"payee"`
	Description  string                    `json:"description"`
	Memo         string                    `json:"memo"`
	Pending      bool                      `json:"pending"`
	Splits       []transaction.SplitParams `json:"splits"`
}

// UpdateTransactionRequest is the body of PUT /api/transactions/{id}.
// Omitted fields are unchanged; a splits array replaces all splits.
type UpdateTransactionRequest struct {
	Amount       *decimal.Decimal          `json:"amount"`
	Posted       *string                   `json:"posted"`
	TransactedAt *string                   `json:"transactedAt"`
	Payee        *string                   `json:"payee"`
	Description  *string                   `json:"description"`
	Memo         *string                   `json:"memo"`
	Splits       []transaction.SplitParams `json:"splits"`
}

// HandleTransactions handles GET (list by ?accountId=) and POST (create).
func (h *TransactionHandler) HandleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleList(w, r)
	case http.MethodPost:
		h.handleCreate(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// HandleTransactionByID handles GET, PUT and DELETE on one transaction.
func (h *TransactionHandler) HandleTransactionByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Transaction ID is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		txn, err := h.service.GetTransaction(r.Context(), id)
		if err != nil {
			writeTransactionError(w, "get transaction", err)
			return
		}
		writeJSON(w, http.StatusOK, txn)
	case http.MethodPut:
		h.handleUpdate(w, r, id)
	case http.MethodDelete:
		if err := h.service.Delete(r.Context(), id); err != nil {
			writeTransactionError(w, "delete transaction", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *TransactionHandler) handleList(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("accountId")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "accountId is required")
		return
	}

	txns, err := h.service.ListByAccount(r.Context(), accountID)
	if err != nil {
		writeTransactionError(w, "list transactions", err)
		return
	}
	if txns == nil {
		txns = []*transaction.Transaction{}
	}
	writeJSON(w, http.StatusOK, txns)
}

func (h *TransactionHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		log.Printf("Error decoding create transaction request: %v", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.AccountID == "" || req.Posted == "" {
		writeError(w, http.StatusBadRequest, "accountId and posted are required")
		return
	}

	posted, err := parseDate(req.Posted)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid posted date (use YYYY-MM-DD or RFC3339)")
		return
	}
	params := transaction.CreateParams{
		ID:          req.ID,
		AccountID:   req.AccountID,
		Amount:      req.Amount,
		Posted:      posted,
		Payee:       req.Payee,
		Description: req.Description,
		Memo:        req.Memo,
		Pending:     req.Pending,
		Splits:      req.Splits,
	}
	if req.TransactedAt != "" {
		ts, err := parseDate(req.TransactedAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid transactedAt date (use YYYY-MM-DD or RFC3339)")
			return
		}
		params.TransactedAt = &ts
	}

	txn, err := h.service.Create(r.Context(), params)
	if err != nil {
		writeTransactionError(w, "create transaction", err)
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}

func (h *TransactionHandler) handleUpdate(w http.ResponseWriter, r *http.Request, id string) {
	var req UpdateTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	params := transaction.UpdateParams{
		Amount:      req.Amount,
		Payee:       req.Payee,
		Description: req.Description,
		Memo:        req.Memo,
		Splits:      req.Splits,
	}
	var err error
	if params.Posted, err = optionalDate(req.Posted); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid posted date (use YYYY-MM-DD or RFC3339)")
		return
	}
	if params.TransactedAt, err = optionalDate(req.TransactedAt); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid transactedAt date (use YYYY-MM-DD or RFC3339)")
		return
	}

	txn, err := h.service.Update(r.Context(), id, params)
	if err != nil {
		writeTransactionError(w, "update transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

func optionalDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := parseDate(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func writeTransactionError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, transaction.ErrTransactionNotFound):
		writeError(w, http.StatusNotFound, "Transaction not found")
	case errors.Is(err, transaction.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("Failed to %s: %v", action, err)
		writeError(w, http.StatusInternalServerError, "Failed to "+action)
	}
}
