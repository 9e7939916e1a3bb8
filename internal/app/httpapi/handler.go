// Package httpapi exposes the compensation engine over REST.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	app "github.com/podcastofficial/Usdt-miner/internal/app"
	"github.com/podcastofficial/Usdt-miner/internal/app/domain/member"
	"github.com/podcastofficial/Usdt-miner/internal/app/metrics"
	boostersvc "github.com/podcastofficial/Usdt-miner/internal/app/services/booster"
	compensationsvc "github.com/podcastofficial/Usdt-miner/internal/app/services/compensation"
	memberssvc "github.com/podcastofficial/Usdt-miner/internal/app/services/members"
	withdrawalssvc "github.com/podcastofficial/Usdt-miner/internal/app/services/withdrawals"
	"github.com/podcastofficial/Usdt-miner/internal/app/storage"
	"github.com/podcastofficial/Usdt-miner/pkg/logger"
)

// Options tunes the HTTP surface.
type Options struct {
	Auth        AuthConfig
	StorageName string
	RateRPS     float64
	RateBurst   int
}

// Handler bundles the REST endpoints for the application services.
type Handler struct {
	app     *app.Application
	auth    AuthConfig
	storage string
	log     *logger.Logger
}

// NewHandler returns a router exposing the core REST API.
func NewHandler(application *app.Application, opts Options, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &Handler{
		app:     application,
		auth:    opts.Auth,
		storage: opts.StorageName,
		log:     log,
	}

	r := chi.NewRouter()
	r.Use(instrument)
	r.Use(newClientLimiter(opts.RateRPS, opts.RateBurst).middleware)

	r.Get("/api/health", h.health)
	r.Post("/api/register", h.register)
	r.Get("/api/dashboard/{memberID}", h.dashboard)
	r.Post("/api/invest", h.invest)
	r.Post("/api/withdraw", h.withdraw)
	r.Get("/api/binary/{memberID}", h.binaryTree)
	r.Get("/api/referrals/{memberID}", h.referrals)
	r.Post("/api/booster/activate", h.activateBooster)

	r.Post("/api/admin/login", h.adminLogin)
	r.Get("/api/admin/stats", h.requireAdmin(h.adminStats))

	r.Get("/api/cron/daily-roi", h.requireCronSecret(h.runDailyAccrual))
	r.Post("/api/cron/daily-roi", h.requireCronSecret(h.runDailyAccrual))

	r.Handle("/metrics", metrics.Handler())

	return r
}

// instrument records request metrics keyed by the chi route pattern.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.IncInFlight()
		defer metrics.DecInFlight()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}
		metrics.ObserveHTTP(r.Method, pattern, rec.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Endpoints -------------------------------------------------------------------

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	stats, err := h.app.Compensation.PlatformStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"storage":   h.storage,
		"members":   stats.TotalMembers,
	})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		MemberID   string `json:"memberId"`
		Username   string `json:"username"`
		FirstName  string `json:"firstName"`
		LastName   string `json:"lastName"`
		ReferrerID string `json:"referrerId"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.MemberID == "" {
		writeError(w, http.StatusBadRequest, errors.New("memberId is required"))
		return
	}

	m, err := h.app.Members.Register(r.Context(), payload.MemberID, memberssvc.Profile{
		Username:   payload.Username,
		FirstName:  payload.FirstName,
		LastName:   payload.LastName,
		ReferrerID: payload.ReferrerID,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "member": m})
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.app.Compensation.Dashboard(r.Context(), chi.URLParam(r, "memberID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func (h *Handler) invest(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		MemberID string `json:"memberId"`
		Package  string `json:"package"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.MemberID == "" || payload.Package == "" {
		writeError(w, http.StatusBadRequest, errors.New("memberId and package are required"))
		return
	}

	tier, err := h.app.Compensation.Invest(r.Context(), payload.MemberID, payload.Package)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "package": tier})
}

func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		MemberID      string      `json:"memberId"`
		Amount        json.Number `json:"amount"`
		WalletAddress string      `json:"walletAddress"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.MemberID == "" || payload.Amount == "" || payload.WalletAddress == "" {
		writeError(w, http.StatusBadRequest, errors.New("memberId, amount and walletAddress are required"))
		return
	}
	amount, err := decimal.NewFromString(payload.Amount.String())
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("malformed amount"))
		return
	}

	receipt, err := h.app.Withdrawals.Request(r.Context(), payload.MemberID, amount, payload.WalletAddress)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"transactionId": receipt.TransactionID,
		"newBalance":    receipt.NewBalance,
	})
}

func (h *Handler) binaryTree(w http.ResponseWriter, r *http.Request) {
	memberID := chi.URLParam(r, "memberID")

	depth := memberssvc.DefaultTreeDepth
	if raw := r.URL.Query().Get("depth"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, errors.New("malformed depth"))
			return
		}
		depth = parsed
	}

	m, err := h.app.Members.Get(r.Context(), memberID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	leftTeam, err := h.app.Members.Team(r.Context(), memberID, member.SideLeft, depth)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	rightTeam, err := h.app.Members.Team(r.Context(), memberID, member.SideRight, depth)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	matching, income := h.app.Compensation.BinaryIncome(m)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"leftTeam":       leftTeam,
		"rightTeam":      rightTeam,
		"leftVolume":     m.Binary.LeftVolume,
		"rightVolume":    m.Binary.RightVolume,
		"matchingVolume": matching,
		"binaryIncome":   income,
	})
}

func (h *Handler) referrals(w http.ResponseWriter, r *http.Request) {
	data, err := h.app.Members.ReferralData(r.Context(), chi.URLParam(r, "memberID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *Handler) activateBooster(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		MemberID string `json:"memberId"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.MemberID == "" {
		writeError(w, http.StatusBadRequest, errors.New("memberId is required"))
		return
	}

	if err := h.app.Boosters.Activate(r.Context(), payload.MemberID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Booster activated! Daily ROI is now 2x.",
	})
}

func (h *Handler) adminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.app.Compensation.PlatformStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	recent, err := h.recentMembers(r, 10)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats":         stats,
		"recentMembers": recent,
	})
}

func (h *Handler) recentMembers(r *http.Request, limit int) ([]map[string]interface{}, error) {
	all, err := h.app.Members.List(r.Context())
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].JoinedAt.After(all[j].JoinedAt) })
	if len(all) > limit {
		all = all[:limit]
	}

	result := make([]map[string]interface{}, 0, len(all))
	for _, m := range all {
		result = append(result, map[string]interface{}{
			"memberId": m.ID,
			"username": m.Username,
			"package":  m.Package.Name,
			"balance":  m.Earnings.AvailableBalance,
			"joinDate": m.JoinedAt,
		})
	}
	return result, nil
}

func (h *Handler) runDailyAccrual(w http.ResponseWriter, r *http.Request) {
	summary, err := h.app.Compensation.RunDailyAccrual(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"processed": summary.Processed,
		"totalROI":  summary.TotalROI,
		"failures":  summary.Failures,
		"timestamp": summary.StartedAt.Format(time.RFC3339),
	})
}

// Helpers ---------------------------------------------------------------------

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, compensationsvc.ErrInvalidPackage):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, withdrawalssvc.ErrCooldownActive),
		errors.Is(err, withdrawalssvc.ErrLimitExceeded),
		errors.Is(err, withdrawalssvc.ErrInsufficientBalance),
		errors.Is(err, boostersvc.ErrAlreadyActive),
		errors.Is(err, boostersvc.ErrInsufficientReferrals),
		errors.Is(err, boostersvc.ErrWindowExpired):
		writeError(w, http.StatusUnprocessableEntity, err)
	default:
		h.log.WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, err)
	}
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
