package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/priyal/paygraph/internal/domain"
	"github.com/priyal/paygraph/internal/ledger"
)

// APIHandlers exposes HTTP handlers for the REST API. The engine owns
// business-rule validation; handlers only decode, delegate, and map
// failures onto status codes.
type APIHandlers struct {
	logger   *slog.Logger
	users    *ledger.UserService
	payments *ledger.PaymentService
}

// NewAPIHandlers constructs an APIHandlers instance.
func NewAPIHandlers(logger *slog.Logger, users *ledger.UserService, payments *ledger.PaymentService) *APIHandlers {
	return &APIHandlers{
		logger:   logger,
		users:    users,
		payments: payments,
	}
}

func (h *APIHandlers) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createUser(w, r)
	case http.MethodGet:
		h.listUsers(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (h *APIHandlers) createUser(w http.ResponseWriter, r *http.Request) {
	var payload createUserRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(payload.Handle) == "" {
		writeError(w, http.StatusBadRequest, "handle is required")
		return
	}

	user, err := h.users.CreateUser(r.Context(), payload.Handle, payload.ProfileRef)
	if err != nil {
		h.writeDomainError(w, err, "failed to create user")
		return
	}
	respondJSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *APIHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListAll(r.Context())
	if err != nil {
		h.writeDomainError(w, err, "failed to list users")
		return
	}
	response := make([]userResponse, 0, len(users))
	for _, user := range users {
		response = append(response, toUserResponse(user))
	}
	respondJSON(w, http.StatusOK, response)
}

func (h *APIHandlers) handleUserByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	userID := pathSuffix(r.URL.Path, "/users/")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user ID is required")
		return
	}

	user, err := h.users.FindByID(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err, "failed to fetch user")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(*user))
}

func (h *APIHandlers) handleUserByHandle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	handle := pathSuffix(r.URL.Path, "/users/by-handle/")
	if handle == "" {
		writeError(w, http.StatusBadRequest, "handle is required")
		return
	}

	user, err := h.users.FindByHandle(r.Context(), handle)
	if err != nil {
		h.writeDomainError(w, err, "failed to fetch user")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(*user))
}

func (h *APIHandlers) handlePayments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var payload transferRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.SenderID == "" || payload.RecipientID == "" {
		writeError(w, http.StatusBadRequest, "senderId and recipientId are required")
		return
	}

	tx, err := h.payments.Transfer(r.Context(), payload.SenderID, payload.RecipientID, payload.Amount, payload.Description)
	if err != nil {
		h.writeDomainError(w, err, "failed to execute transfer")
		return
	}
	respondJSON(w, http.StatusCreated, toTransactionResponse(tx))
}

func (h *APIHandlers) handlePaymentsSent(w http.ResponseWriter, r *http.Request) {
	h.listPayments(w, r, ledger.RoleSender, "/payments/sent/")
}

func (h *APIHandlers) handlePaymentsReceived(w http.ResponseWriter, r *http.Request) {
	h.listPayments(w, r, ledger.RoleRecipient, "/payments/received/")
}

func (h *APIHandlers) listPayments(w http.ResponseWriter, r *http.Request, role ledger.Role, prefix string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	userID := pathSuffix(r.URL.Path, prefix)
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user ID is required")
		return
	}

	records, err := h.payments.PaymentsBy(r.Context(), role, userID)
	if err != nil {
		h.writeDomainError(w, err, "failed to fetch payments")
		return
	}

	response := make([]paymentRecordResponse, 0, len(records))
	for _, record := range records {
		response = append(response, toPaymentRecordResponse(record))
	}
	respondJSON(w, http.StatusOK, response)
}

func (h *APIHandlers) handlePaymentPath(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	query := r.URL.Query()
	start := query.Get("start")
	end := query.Get("end")
	if start == "" || end == "" {
		writeError(w, http.StatusBadRequest, "start and end handles are required")
		return
	}
	maxSteps := parseInt(query.Get("maxSteps"), 5)

	paths, err := h.payments.FindPaymentPath(r.Context(), start, end, maxSteps)
	if err != nil {
		h.writeDomainError(w, err, "failed to find payment path")
		return
	}

	response := paymentPathsResponse{
		Start: start,
		End:   end,
		Paths: make([]paymentPathResponse, 0, len(paths)),
	}
	for _, path := range paths {
		response.Paths = append(response.Paths, toPaymentPathResponse(path))
	}
	respondJSON(w, http.StatusOK, response)
}

func (h *APIHandlers) writeDomainError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrSelfTransfer),
		errors.Is(err, domain.ErrInvalidMaxSteps),
		errors.Is(err, ledger.ErrInvalidRole):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrSenderNotFound), errors.Is(err, domain.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrDuplicateHandle):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrStoreUnavailable):
		h.logger.Error("graph store failure", "error", err)
		writeError(w, http.StatusServiceUnavailable, "graph store unavailable")
	default:
		h.logger.Error(fallback, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

type createUserRequest struct {
	Handle     string `json:"handle"`
	ProfileRef string `json:"profileRef"`
}

type transferRequest struct {
	SenderID    string  `json:"senderId"`
	RecipientID string  `json:"recipientId"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

type userResponse struct {
	UserID     string  `json:"userId"`
	Handle     string  `json:"handle"`
	Balance    float64 `json:"balance"`
	ProfileRef string  `json:"profileRef,omitempty"`
}

type transactionResponse struct {
	TransactionID string  `json:"transactionId"`
	Amount        float64 `json:"amount"`
	Description   string  `json:"description,omitempty"`
	Timestamp     string  `json:"timestamp"`
	Status        string  `json:"status"`
}

type paymentRecordResponse struct {
	TransactionID   string  `json:"transactionId"`
	SenderHandle    string  `json:"senderHandle"`
	RecipientHandle string  `json:"recipientHandle"`
	Amount          float64 `json:"amount"`
	Description     string  `json:"description,omitempty"`
	Timestamp       string  `json:"timestamp"`
	Status          string  `json:"status"`
}

type pathEntryResponse struct {
	Type          string  `json:"type"`
	Handle        string  `json:"handle,omitempty"`
	TransactionID string  `json:"transactionId,omitempty"`
	Amount        float64 `json:"amount,omitempty"`
	Description   string  `json:"description,omitempty"`
	Timestamp     string  `json:"timestamp,omitempty"`
}

type paymentPathResponse struct {
	NumSteps int                 `json:"numSteps"`
	Path     []pathEntryResponse `json:"path"`
}

type paymentPathsResponse struct {
	Start string                `json:"start"`
	End   string                `json:"end"`
	Paths []paymentPathResponse `json:"paths"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toUserResponse(user domain.User) userResponse {
	return userResponse{
		UserID:     user.ID,
		Handle:     user.Handle,
		Balance:    user.Balance,
		ProfileRef: user.ProfileRef,
	}
}

func toTransactionResponse(tx domain.Transaction) transactionResponse {
	return transactionResponse{
		TransactionID: tx.ID,
		Amount:        tx.Amount,
		Description:   tx.Description,
		Timestamp:     formatTimestamp(tx.Timestamp),
		Status:        tx.Status,
	}
}

func toPaymentRecordResponse(record domain.PaymentRecord) paymentRecordResponse {
	return paymentRecordResponse{
		TransactionID:   record.TransactionID,
		SenderHandle:    record.SenderHandle,
		RecipientHandle: record.RecipientHandle,
		Amount:          record.Amount,
		Description:     record.Description,
		Timestamp:       formatTimestamp(record.Timestamp),
		Status:          record.Status,
	}
}

func toPaymentPathResponse(path domain.PaymentPath) paymentPathResponse {
	entries := make([]pathEntryResponse, 0, len(path.Entries))
	for _, entry := range path.Entries {
		entries = append(entries, pathEntryResponse{
			Type:          entry.Type,
			Handle:        entry.Handle,
			TransactionID: entry.TransactionID,
			Amount:        entry.Amount,
			Description:   entry.Description,
			Timestamp:     formatTimestamp(entry.Timestamp),
		})
	}
	return paymentPathResponse{
		NumSteps: path.Steps,
		Path:     entries,
	}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	if parsed, err := strconv.Atoi(value); err == nil {
		return parsed
	}
	return fallback
}

func pathSuffix(path, prefix string) string {
	return strings.Trim(strings.TrimPrefix(path, prefix), "/")
}
