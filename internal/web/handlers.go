package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/omarelbidi/bankcore/internal/core"
)

// birthDayLayout is the wire format for customer birth dates.
const birthDayLayout = "2006-01-02"

type registerCustomerRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	BirthDay  string `json:"birthDay"`
}

type updateCustomerRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	BirthDay  string `json:"birthDay"`
}

type registerPersonalAccountRequest struct {
	CustomerID string `json:"customerId"`
}

type registerCorporateAccountRequest struct {
	CustomerIDs []string `json:"customerIds"`
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type transferRequest struct {
	FromID string          `json:"fromId"`
	ToID   string          `json:"toId"`
	Amount decimal.Decimal `json:"amount"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func parseBirthDay(w http.ResponseWriter, r *http.Request, s string) (time.Time, bool) {
	day, err := time.Parse(birthDayLayout, s)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "birthDay must be formatted as "+birthDayLayout)
		return time.Time{}, false
	}
	return day, true
}

func (s *Server) handleRegisterCustomer(w http.ResponseWriter, r *http.Request) {
	var req registerCustomerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.FirstName == "" || req.LastName == "" {
		writeError(w, r, http.StatusBadRequest, "firstName and lastName are required")
		return
	}
	day, ok := parseBirthDay(w, r, req.BirthDay)
	if !ok {
		return
	}

	id, err := s.bank.RegisterCustomer(r.Context(), req.FirstName, req.LastName, day)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleGetCustomers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	first, last := q.Get("firstName"), q.Get("lastName")
	if first == "" || last == "" || q.Get("birthDay") == "" {
		writeError(w, r, http.StatusBadRequest, "firstName, lastName, and birthDay are required")
		return
	}
	day, ok := parseBirthDay(w, r, q.Get("birthDay"))
	if !ok {
		return
	}

	ids, err := s.bank.GetCustomers(r.Context(), first, last, day)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, r, http.StatusOK, map[string][]string{"ids": ids})
}

func (s *Server) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var req updateCustomerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	day, ok := parseBirthDay(w, r, req.BirthDay)
	if !ok {
		return
	}

	found, err := s.bank.UpdateCustomer(r.Context(), core.Customer{
		ID:        chi.URLParam(r, "customerID"),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		BirthDay:  day,
	})
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	if !found {
		writeError(w, r, http.StatusNotFound, "customer not found")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"updated": true})
}

func (s *Server) handleGetAccounts(w http.ResponseWriter, r *http.Request) {
	ids, found, err := s.bank.GetAccounts(r.Context(), chi.URLParam(r, "customerID"))
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	if !found {
		writeError(w, r, http.StatusNotFound, "customer not found")
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, r, http.StatusOK, map[string][]string{"accountIds": ids})
}

func (s *Server) handleGetTotalBalance(w http.ResponseWriter, r *http.Request) {
	total, found, err := s.bank.GetTotalBalance(r.Context(), chi.URLParam(r, "customerID"))
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	if !found {
		writeError(w, r, http.StatusNotFound, "customer not found")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]decimal.Decimal{"totalBalance": total})
}

func (s *Server) handleRegisterPersonalAccount(w http.ResponseWriter, r *http.Request) {
	var req registerPersonalAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id, ok, err := s.bank.RegisterPersonalAccount(r.Context(), req.CustomerID)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	if !ok {
		writeError(w, r, http.StatusNotFound, "customer not found")
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleRegisterCorporateAccount(w http.ResponseWriter, r *http.Request) {
	var req registerCorporateAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.CustomerIDs) == 0 {
		writeError(w, r, http.StatusBadRequest, "customerIds must not be empty")
		return
	}

	id, ok, err := s.bank.RegisterCorporateAccount(r.Context(), req.CustomerIDs)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	if !ok {
		writeError(w, r, http.StatusNotFound, "one or more customers not found")
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleRemoveAccount(w http.ResponseWriter, r *http.Request) {
	removed, err := s.bank.RemoveAccount(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	if !removed {
		writeError(w, r, http.StatusNotFound, "account not found")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"removed": true})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	balance, found, err := s.bank.GetBalance(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	if !found {
		writeError(w, r, http.StatusNotFound, "account not found")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]decimal.Decimal{"balance": balance})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.Amount.IsPositive() {
		writeError(w, r, http.StatusBadRequest, "amount must be positive")
		return
	}

	ok, err := s.bank.Deposit(r.Context(), chi.URLParam(r, "accountID"), req.Amount)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	if !ok {
		writeError(w, r, http.StatusUnprocessableEntity, "deposit rejected")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.Amount.IsPositive() {
		writeError(w, r, http.StatusBadRequest, "amount must be positive")
		return
	}

	ok, err := s.bank.Withdraw(r.Context(), chi.URLParam(r, "accountID"), req.Amount)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	if !ok {
		writeError(w, r, http.StatusUnprocessableEntity, "withdrawal rejected")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.FromID == "" || req.ToID == "" {
		writeError(w, r, http.StatusBadRequest, "fromId and toId are required")
		return
	}
	if !req.Amount.IsPositive() {
		writeError(w, r, http.StatusBadRequest, "amount must be positive")
		return
	}

	ok, err := s.bank.Transfer(r.Context(), req.FromID, req.ToID, req.Amount)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	if !ok {
		writeError(w, r, http.StatusUnprocessableEntity, "transfer rejected")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleTransactionHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.bank.GetTransactionHistory(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	if history == nil {
		history = []core.Transaction{}
	}
	writeJSON(w, r, http.StatusOK, map[string][]core.Transaction{"transactions": history})
}

func (s *Server) handleStatement(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := parseStatementTime(q.Get("start"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "start must be RFC 3339 or "+birthDayLayout)
		return
	}
	end, err := parseStatementTime(q.Get("end"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "end must be RFC 3339 or "+birthDayLayout)
		return
	}

	stmt, err := s.bank.GetAccountStatement(r.Context(), chi.URLParam(r, "accountID"), start, end)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	if stmt == nil {
		writeError(w, r, http.StatusNotFound, "account not found")
		return
	}
	writeJSON(w, r, http.StatusOK, stmt)
}

// parseStatementTime accepts RFC 3339 timestamps or bare dates.
func parseStatementTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(birthDayLayout, s)
}
