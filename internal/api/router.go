package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.HealthCheckHandler).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/payments/channels", h.ListChannelsHandler).Methods(http.MethodGet)
	v1.HandleFunc("/payments/intents", h.CreateIntentHandler).Methods(http.MethodPost)
	v1.HandleFunc("/payments/intents/{id}/status", h.GetStatusHandler).Methods(http.MethodGet)
	v1.HandleFunc("/payments/intents/{id}/instrument", h.GetInstrumentHandler).Methods(http.MethodGet)
	v1.HandleFunc("/payments/intents/{id}/cancel", h.CancelIntentHandler).Methods(http.MethodPost)
	v1.HandleFunc("/payments/status", h.GetStatusByReferenceHandler).Methods(http.MethodGet)
	v1.HandleFunc("/wallets/{id}", h.GetWalletHandler).Methods(http.MethodGet)
	v1.HandleFunc("/webhooks/bank", h.BankWebhookHandler).Methods(http.MethodPost)
	return r
}
