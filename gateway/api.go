package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jonanatree/paygate/gateway/models"
	"github.com/jonanatree/paygate/internal/authz"
)

// API is a HTTP API for the payment gateway
type API struct {
	gateway *Service
}

func NewAPI(gateway *Service) *API {
	return &API{
		gateway: gateway,
	}
}

func (a *API) AppendRoutes(r chi.Router) {
	r.Post("/payments", a.pay)
	r.Route("/cards", func(r chi.Router) {
		r.Post("/", a.issueCard)
		r.Post("/validate", a.validateCard)
		r.Get("/search", a.searchCards)
	})
	r.Route("/transactions", func(r chi.Router) {
		r.Get("/", a.listTransactions)
		r.Get("/{transactionID}", a.getTransaction)
	})
	r.Get("/reports/summary", a.summary)
}

type errorResponse struct {
	Success bool     `json:"success"`
	Errors  []string `json:"errors"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErrors(w http.ResponseWriter, status int, msgs ...string) {
	writeJSON(w, status, errorResponse{Errors: msgs})
}

// writeServiceError maps service errors onto status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		writeErrors(w, http.StatusBadRequest, verr.Errors...)
	case errors.Is(err, ErrNotFound):
		writeErrors(w, http.StatusNotFound, err.Error())
	case errors.Is(err, authz.ErrStoreUnavailable):
		writeErrors(w, http.StatusServiceUnavailable, "payment service temporarily unavailable")
	default:
		writeErrors(w, http.StatusInternalServerError, err.Error())
	}
}

func (a *API) pay(w http.ResponseWriter, r *http.Request) {
	req := models.ChargeRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrors(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := a.gateway.Pay(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status := http.StatusOK
	if !result.Authorized {
		status = http.StatusPaymentRequired
	}
	writeJSON(w, status, result)
}

func (a *API) validateCard(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CardNumber string `json:"card_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrors(w, http.StatusBadRequest, "invalid request body")
		return
	}
	writeJSON(w, http.StatusOK, a.gateway.ValidateCard(body.CardNumber))
}

func (a *API) searchCards(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if len(q) < 2 {
		writeJSON(w, http.StatusOK, []*models.Card{})
		return
	}
	cards, err := a.gateway.SearchCards(r.Context(), q, 10)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if cards == nil {
		cards = []*models.Card{}
	}
	writeJSON(w, http.StatusOK, cards)
}

func (a *API) issueCard(w http.ResponseWriter, r *http.Request) {
	req := models.IssueCard{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrors(w, http.StatusBadRequest, "invalid request body")
		return
	}
	card, err := a.gateway.IssueCard(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

func (a *API) listTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := models.TransactionFilter{
		CardID: query.Get("card_id"),
		Status: models.TransactionStatus(query.Get("status")),
	}
	switch filter.Status {
	case "", models.TransactionStatusAuthorized, models.TransactionStatusRejected:
	default:
		writeErrors(w, http.StatusBadRequest, "status must be authorized or rejected")
		return
	}
	if s := query.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit <= 0 {
			writeErrors(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	transactions, err := a.gateway.Transactions(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if transactions == nil {
		transactions = []*models.Transaction{}
	}
	writeJSON(w, http.StatusOK, transactions)
}

func (a *API) getTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := a.gateway.Transaction(r.Context(), chi.URLParam(r, "transactionID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (a *API) summary(w http.ResponseWriter, r *http.Request) {
	window := time.Hour
	if s := r.URL.Query().Get("window"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			writeErrors(w, http.StatusBadRequest, "window must be a positive duration such as 1h or 30m")
			return
		}
		window = d
	}
	summary, err := a.gateway.Summary(r.Context(), window)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
