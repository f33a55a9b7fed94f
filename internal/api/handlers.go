package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/qrtopup/internal/domain"
	"github.com/punchamoorthee/qrtopup/internal/models"
	"github.com/punchamoorthee/qrtopup/internal/service"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "topup_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "topup_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

const maxWebhookBody = 64 << 10

// Intents is the intent side of the transaction service.
type Intents interface {
	Create(ctx context.Context, walletID int64, req models.CreateIntentRequest) (*domain.PaymentIntent, error)
	Status(ctx context.Context, id uuid.UUID) (*models.StatusResponse, error)
	StatusByReference(ctx context.Context, ref string) (*models.StatusResponse, error)
	Instrument(ctx context.Context, id uuid.UUID) (*models.Instrument, error)
	Instructions(in *domain.PaymentIntent) *models.Instructions
	Cancel(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error)
	Wallet(ctx context.Context, walletID int64) (*models.Wallet, error)
	Channels() []models.Channel
}

// Settlements applies bank confirmations.
type Settlements interface {
	ProcessBankEvent(ctx context.Context, evt models.BankWebhook, reqHash string) (*models.WebhookResult, *models.BankEventRecord, error)
}

type Handler struct {
	intents     Intents
	settlements Settlements
	secret      []byte
	log         *slog.Logger
}

// NewHandler builds the HTTP handlers. An empty webhook secret disables
// signature checks.
func NewHandler(intents Intents, settlements Settlements, webhookSecret string, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{intents: intents, settlements: settlements, secret: []byte(webhookSecret), log: log}
}

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListChannelsHandler(w http.ResponseWriter, r *http.Request) {
	httpRequestsTotal.WithLabelValues("GET", "/payments/channels", "200").Inc()
	respondWithJSON(w, http.StatusOK, map[string][]models.Channel{"channels": h.intents.Channels()})
}

func (h *Handler) CreateIntentHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/payments/intents"
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", endpoint))
	defer timer.ObserveDuration()

	walletID, err := strconv.ParseInt(r.Header.Get(models.WalletHeader), 10, 64)
	if err != nil || walletID <= 0 {
		h.fail(w, "POST", endpoint, http.StatusUnauthorized, "Missing or invalid "+models.WalletHeader+" header")
		return
	}

	var req models.CreateIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, "POST", endpoint, http.StatusBadRequest, "Malformed JSON body")
		return
	}

	in, err := h.intents.Create(r.Context(), walletID, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidAmount),
			errors.Is(err, service.ErrUnsupportedChannel),
			errors.Is(err, service.ErrInvalidReference):
			h.fail(w, "POST", endpoint, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, service.ErrReferenceConflict):
			h.fail(w, "POST", endpoint, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrWalletNotFound):
			h.fail(w, "POST", endpoint, http.StatusNotFound, "Wallet not found")
		default:
			h.internal(w, "POST", endpoint, err)
		}
		return
	}

	httpRequestsTotal.WithLabelValues("POST", endpoint, "201").Inc()
	w.Header().Set("Location", "/api/v1/payments/intents/"+in.ID.String()+"/status")
	respondWithJSON(w, http.StatusCreated, models.CreateIntentResponse{
		Transaction:  service.ToTransaction(in),
		Instructions: h.intents.Instructions(in),
	})
}

func (h *Handler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/payments/intents/{id}/status"
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("GET", endpoint))
	defer timer.ObserveDuration()

	id, ok := h.intentID(w, r, "GET", endpoint)
	if !ok {
		return
	}
	resp, err := h.intents.Status(r.Context(), id)
	h.status(w, "GET", endpoint, resp, err)
}

func (h *Handler) GetStatusByReferenceHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/payments/status"
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("GET", endpoint))
	defer timer.ObserveDuration()

	ref := strings.TrimSpace(r.URL.Query().Get("referenceCode"))
	if ref == "" {
		h.fail(w, "GET", endpoint, http.StatusBadRequest, "referenceCode query parameter is required")
		return
	}
	resp, err := h.intents.StatusByReference(r.Context(), ref)
	h.status(w, "GET", endpoint, resp, err)
}

func (h *Handler) status(w http.ResponseWriter, method, endpoint string, resp *models.StatusResponse, err error) {
	if err != nil {
		if errors.Is(err, service.ErrIntentNotFound) {
			h.fail(w, method, endpoint, http.StatusNotFound, "Payment intent not found")
			return
		}
		h.internal(w, method, endpoint, err)
		return
	}
	httpRequestsTotal.WithLabelValues(method, endpoint, "200").Inc()
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetInstrumentHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/payments/intents/{id}/instrument"
	id, ok := h.intentID(w, r, "GET", endpoint)
	if !ok {
		return
	}

	inst, err := h.intents.Instrument(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrIntentNotFound):
			h.fail(w, "GET", endpoint, http.StatusNotFound, "Payment intent not found")
		case errors.Is(err, service.ErrIntentNotPending):
			h.fail(w, "GET", endpoint, http.StatusConflict, err.Error())
		default:
			h.internal(w, "GET", endpoint, err)
		}
		return
	}
	httpRequestsTotal.WithLabelValues("GET", endpoint, "200").Inc()
	respondWithJSON(w, http.StatusOK, inst)
}

func (h *Handler) CancelIntentHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/payments/intents/{id}/cancel"
	id, ok := h.intentID(w, r, "POST", endpoint)
	if !ok {
		return
	}

	in, err := h.intents.Cancel(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrIntentNotFound):
			h.fail(w, "POST", endpoint, http.StatusNotFound, "Payment intent not found")
		case errors.Is(err, service.ErrIntentNotPending):
			h.fail(w, "POST", endpoint, http.StatusConflict, err.Error())
		default:
			h.internal(w, "POST", endpoint, err)
		}
		return
	}
	httpRequestsTotal.WithLabelValues("POST", endpoint, "200").Inc()
	respondWithJSON(w, http.StatusOK, models.StatusResponse{Transaction: service.ToTransaction(in)})
}

func (h *Handler) GetWalletHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/wallets/{id}"
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("GET", endpoint))
	defer timer.ObserveDuration()

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.fail(w, "GET", endpoint, http.StatusBadRequest, "Invalid wallet id")
		return
	}

	wallet, err := h.intents.Wallet(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrWalletNotFound) {
			h.fail(w, "GET", endpoint, http.StatusNotFound, "Wallet not found")
			return
		}
		h.internal(w, "GET", endpoint, err)
		return
	}
	httpRequestsTotal.WithLabelValues("GET", endpoint, "200").Inc()
	respondWithJSON(w, http.StatusOK, wallet)
}

func (h *Handler) BankWebhookHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/webhooks/bank"
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", endpoint))
	defer timer.ObserveDuration()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.fail(w, "POST", endpoint, http.StatusInternalServerError, "Stream read error")
		return
	}

	if len(h.secret) > 0 && !VerifySignature(h.secret, body, r.Header.Get(models.SignatureHeader)) {
		h.fail(w, "POST", endpoint, http.StatusUnauthorized, "Invalid signature")
		return
	}

	var evt models.BankWebhook
	if err := json.Unmarshal(body, &evt); err != nil {
		h.fail(w, "POST", endpoint, http.StatusBadRequest, "Malformed JSON body")
		return
	}
	if evt.EventID == "" || evt.ReferenceCode == "" {
		h.fail(w, "POST", endpoint, http.StatusUnprocessableEntity, "eventId and referenceCode are required")
		return
	}
	if evt.Amount <= 0 {
		h.fail(w, "POST", endpoint, http.StatusUnprocessableEntity, "Positive amount required")
		return
	}

	resp, existing, err := h.settlements.ProcessBankEvent(r.Context(), evt, service.HashPayload(body))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEventInProgress):
			h.fail(w, "POST", endpoint, http.StatusConflict, "Event processing in progress")
		case errors.Is(err, service.ErrEventMismatch):
			h.fail(w, "POST", endpoint, http.StatusUnprocessableEntity, "Event id reuse with mismatched payload")
		case errors.Is(err, service.ErrUnknownEventStatus):
			h.fail(w, "POST", endpoint, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, service.ErrIntentNotFound):
			h.fail(w, "POST", endpoint, http.StatusNotFound, "Payment intent not found")
		default:
			h.internal(w, "POST", endpoint, err)
		}
		return
	}

	if existing != nil {
		httpRequestsTotal.WithLabelValues("POST", endpoint, strconv.Itoa(existing.ResponseStatus)).Inc()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.ResponseStatus)
		w.Write(existing.ResponseBody)
		return
	}

	h.log.Info("bank event settled", "event_id", resp.EventID, "intent_id", resp.IntentID, "status", resp.Status, "applied", resp.Applied)
	httpRequestsTotal.WithLabelValues("POST", endpoint, "200").Inc()
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) intentID(w http.ResponseWriter, r *http.Request, method, endpoint string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, method, endpoint, http.StatusBadRequest, "Invalid intent id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, method, endpoint string, code int, message string) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	respondWithError(w, code, message)
}

func (h *Handler) internal(w http.ResponseWriter, method, endpoint string, err error) {
	h.log.Error("request failed", "method", method, "endpoint", endpoint, "error", err)
	h.fail(w, method, endpoint, http.StatusInternalServerError, "Internal Server Error")
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, models.ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
