// Package handlers serves the notification, email and dashboard JSON API.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"yield-monitor-go/internal/dispatch"
	"yield-monitor-go/internal/email"
	"yield-monitor-go/internal/models"
	"yield-monitor-go/internal/store"
	"yield-monitor-go/internal/yield"
)

const maxBodyBytes = 1 << 20

type YieldService interface {
	UserYieldData(ctx context.Context, address string, chainIDs []int) (*models.YieldNotificationData, error)
	ChainData(ctx context.Context, address string, chainID int) (models.ChainVaultData, error)
	History(ctx context.Context, address string, days int) ([]models.YieldSnapshot, error)
}

type RewardService interface {
	Claimable(ctx context.Context, address string, chainID int) ([]models.CombinedReward, error)
}

type PushService interface {
	SendYield(ctx context.Context, address string, data *models.YieldNotificationData) error
	Welcome(ctx context.Context, address string, sub models.PushSubscription) error
	Test(ctx context.Context, address string) error
}

type DailyRunner interface {
	Run(ctx context.Context) (dispatch.Report, error)
}

// CachePurger drops cached upstream responses.
type CachePurger interface {
	Purge(ctx context.Context) error
}

// Deps are the services the handlers call into. Cache is optional.
type Deps struct {
	Store   store.Store
	Yield   YieldService
	Rewards RewardService
	Push    PushService
	Email   *email.Service
	Daily   DailyRunner
	Cache   CachePurger

	VAPIDPublicKey string
	ResendAPIKey   string
	CronSecret     string
	AdminSecret    string
	RetentionDays  int
	RewardsChain   int

	Logger *zap.Logger
}

type Handler struct {
	Deps
	log *zap.Logger
}

func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if d.RetentionDays <= 0 {
		d.RetentionDays = 90
	}
	if d.RewardsChain == 0 {
		d.RewardsChain = 1
	}
	return &Handler{Deps: d, log: logger.Named("http")}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fail logs err and answers {"error": msg, "message": err}. Validation
// failures pass a nil err.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, status int, msg string, err error) {
	body := map[string]string{"error": msg}
	if err != nil {
		body["message"] = err.Error()
		fields := []zap.Field{zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err)}
		if status >= http.StatusInternalServerError {
			h.log.Error(msg, fields...)
		} else {
			h.log.Warn(msg, fields...)
		}
	}
	writeJSON(w, status, body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// yieldError maps errors from yield calculation onto a response.
func (h *Handler) yieldError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidAddress):
		h.fail(w, r, http.StatusBadRequest, "Invalid wallet address", nil)
	case errors.Is(err, yield.ErrNoPositions):
		h.fail(w, r, http.StatusNotFound, "No yield data found for this address", nil)
	default:
		h.fail(w, r, http.StatusInternalServerError, "Internal server error", err)
	}
}

// queryInt reads an integer query parameter, falling back to def when absent.
func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return n, nil
}
