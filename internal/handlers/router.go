package handlers

import (
	"net/http"
	"net/netip"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	RateLimit      float64
	RateBurst      int
	TrustedProxies []netip.Prefix
}

func NewRouter(h *Handler, cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()
	r.Use(Instrument(h.log))

	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	if cfg.RateLimit > 0 {
		api.Use(NewRateLimiter(cfg.RateLimit, cfg.RateBurst, cfg.TrustedProxies, h.log).Middleware)
	}

	n := api.PathPrefix("/notifications").Subrouter()
	n.HandleFunc("/vapid-public-key", h.VAPIDPublicKeyHandler).Methods(http.MethodGet)
	n.HandleFunc("/subscribe", h.SubscribeHandler).Methods(http.MethodPost)
	n.HandleFunc("/unsubscribe", h.UnsubscribeHandler).Methods(http.MethodPost)
	n.HandleFunc("/test", h.TestPushHandler).Methods(http.MethodPost)
	n.HandleFunc("/send", h.SendYieldHandler).Methods(http.MethodPost)
	n.HandleFunc("/test-yield", h.PreviewYieldHandler).Methods(http.MethodGet)
	n.HandleFunc("/test-yield", h.TestYieldHandler).Methods(http.MethodPost)
	n.HandleFunc("/daily", h.DailyInfoHandler).Methods(http.MethodGet)
	n.HandleFunc("/daily", h.requireSecret(h.CronSecret, h.RunDailyHandler)).Methods(http.MethodPost)

	e := n.PathPrefix("/email").Subrouter()
	e.HandleFunc("/subscribe", h.EmailSubscribeHandler).Methods(http.MethodPost)
	e.HandleFunc("/unsubscribe", h.EmailUnsubscribeHandler).Methods(http.MethodPost)
	e.HandleFunc("/test", h.EmailTestHandler).Methods(http.MethodPost)
	e.HandleFunc("/test-real", h.EmailTestRealHandler).Methods(http.MethodPost)
	e.HandleFunc("/subscriptions", h.EmailSubscriptionsHandler).Methods(http.MethodGet)
	e.HandleFunc("/preview", h.EmailPreviewHandler).Methods(http.MethodGet)
	e.HandleFunc("/preview-real", h.EmailPreviewRealHandler).Methods(http.MethodGet)
	e.HandleFunc("/check-config", h.EmailCheckConfigHandler).Methods(http.MethodGet)

	db := api.PathPrefix("/database").Subrouter()
	db.HandleFunc("/init", h.DatabaseInfoHandler).Methods(http.MethodGet)
	db.HandleFunc("/init", h.requireSecret(h.AdminSecret, h.InitDatabaseHandler)).Methods(http.MethodPost)
	db.HandleFunc("/cleanup", h.requireSecret(h.AdminSecret, h.CleanupHistoryHandler)).Methods(http.MethodPost)

	api.HandleFunc("/chains", h.ChainsHandler).Methods(http.MethodGet)
	api.HandleFunc("/vaults", h.VaultsHandler).Methods(http.MethodGet)
	api.HandleFunc("/rewards", h.RewardsHandler).Methods(http.MethodGet)
	api.HandleFunc("/yield/history", h.YieldHistoryHandler).Methods(http.MethodGet)

	return r
}
