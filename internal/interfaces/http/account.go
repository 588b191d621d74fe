package http

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"finsync/internal/domain/account"
	"finsync/internal/domain/reconcile"
)

// AccountService is the part of account.Service the API needs.
type AccountService interface {
	GetAccount(ctx context.Context, id string) (*account.Account, error)
	ListAccounts(ctx context.Context, includeHidden bool) ([]*account.Details, error)
	Update(ctx context.Context, id string, params account.UpdateParams) (*account.Account, error)
	DeleteAccount(ctx context.Context, id string) error
	ClassifyUnset(ctx context.Context) (int, error)
}

// DuplicateFinder lists groups of accounts that look like the same real account.
type DuplicateFinder interface {
	FindDuplicates(ctx context.Context) ([]reconcile.DuplicateGroup, error)
}

// AccountMerger folds one account into another.
type AccountMerger interface {
	Merge(ctx context.Context, req reconcile.MergeRequest) (*reconcile.MergeStats, error)
}

type AccountHandler struct {
	accounts   AccountService
	duplicates DuplicateFinder
	merger     AccountMerger
}

func NewAccountHandler(accounts AccountService, duplicates DuplicateFinder, merger AccountMerger) *AccountHandler {
	return &AccountHandler{accounts: accounts, duplicates: duplicates, merger: merger}
}

// UpdateAccountRequest is the body of PATCH /api/accounts/{id}. Omitted fields are unchanged.
type UpdateAccountRequest struct {
	Name        *string `json:"name"`
	AltName     *string `json:"altName"`
	Currency    *string `json:"currency"`
	IsHidden    *bool   `json:"isHidden"`
	AccountType *string `json:"accountType"`
}

type ClassifyResponse struct {
	Classified int `json:"classified"`
}

// HandleListAccounts returns accounts with their latest balance.
// Hidden accounts are included with ?includeHidden=true.
func (h *AccountHandler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	includeHidden := false
	if s := r.URL.Query().Get("includeHidden"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid includeHidden")
			return
		}
		includeHidden = v
	}

	accounts, err := h.accounts.ListAccounts(r.Context(), includeHidden)
	if err != nil {
		log.Printf("Error listing accounts: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list accounts")
		return
	}
	if accounts == nil {
		accounts = []*account.Details{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

// HandleAccountByID handles GET, PATCH and DELETE on a specific account.
func (h *AccountHandler) HandleAccountByID(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("id")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "Account ID is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		acct, err := h.accounts.GetAccount(r.Context(), accountID)
		if err != nil {
			writeAccountError(w, "get account", err)
			return
		}
		writeJSON(w, http.StatusOK, acct)
	case http.MethodPatch:
		h.handleUpdate(w, r, accountID)
	case http.MethodDelete:
		if err := h.accounts.DeleteAccount(r.Context(), accountID); err != nil {
			writeAccountError(w, "delete account", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *AccountHandler) handleUpdate(w http.ResponseWriter, r *http.Request, accountID string) {
	var req UpdateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	params := account.UpdateParams{
		Name:     req.Name,
		AltName:  req.AltName,
		Currency: req.Currency,
		IsHidden: req.IsHidden,
	}
	if req.AccountType != nil {
		t, err := account.ParseType(*req.AccountType)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		params.Type = &t
	}

	acct, err := h.accounts.Update(r.Context(), accountID, params)
	if err != nil {
		writeAccountError(w, "update account", err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

// HandleDuplicates lists duplicate account groups.
func (h *AccountHandler) HandleDuplicates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	groups, err := h.duplicates.FindDuplicates(r.Context())
	if err != nil {
		log.Printf("Error finding duplicate accounts: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to find duplicate accounts")
		return
	}
	if groups == nil {
		groups = []reconcile.DuplicateGroup{}
	}
	writeJSON(w, http.StatusOK, groups)
}

// HandleMerge merges the source account into the target.
func (h *AccountHandler) HandleMerge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	// Categorization is preserved unless the body turns it off.
	req := reconcile.MergeRequest{PreserveCategorization: true}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.SourceID == "" || req.TargetID == "" {
		writeError(w, http.StatusBadRequest, "sourceAccountId and targetAccountId are required")
		return
	}

	stats, err := h.merger.Merge(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, reconcile.ErrSameAccount), errors.Is(err, reconcile.ErrMergeMismatch):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeAccountError(w, "merge accounts", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleClassify assigns a type to every account that has none yet.
func (h *AccountHandler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	n, err := h.accounts.ClassifyUnset(r.Context())
	if err != nil {
		log.Printf("Error classifying accounts: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to classify accounts")
		return
	}
	writeJSON(w, http.StatusOK, ClassifyResponse{Classified: n})
}

func writeAccountError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, account.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "Account not found")
	case errors.Is(err, account.ErrInvalidInput), errors.Is(err, account.ErrInvalidAccountType):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("Failed to %s: %v", action, err)
		writeError(w, http.StatusInternalServerError, "Failed to "+action)
	}
}
