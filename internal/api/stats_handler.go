package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/caro-api/internal/api/shared"
	"github.com/phrazzld/caro-api/internal/service/analytics"
	"github.com/phrazzld/caro-api/internal/service/gamification"
)

// GamificationReader is the query side of the gamification subscriber.
type GamificationReader interface {
	GetMemberStats(ctx context.Context, memberID int64) (*gamification.MemberStats, error)
	GetEarnedBadges(ctx context.Context, memberID int64) ([]gamification.BadgeView, error)
}

// AnalyticsReader is the query side of the analytics subscriber.
type AnalyticsReader interface {
	GetDailyStats(ctx context.Context, memberID int64, date time.Time) (*analytics.DailyStats, error)
	GetTodayStats(ctx context.Context, memberID int64) (*analytics.DailyStats, error)
}

// StatsHandler serves the read models kept by the event subscribers.
type StatsHandler struct {
	gamification GamificationReader
	analytics    AnalyticsReader
	logger       *slog.Logger
}

// NewStatsHandler creates a StatsHandler.
func NewStatsHandler(g GamificationReader, a AnalyticsReader, logger *slog.Logger) *StatsHandler {
	if g == nil || a == nil {
		panic("readers cannot be nil for StatsHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsHandler{
		gamification: g,
		analytics:    a,
		logger:       logger.With(slog.String("component", "stats_handler")),
	}
}

// GetMemberStats handles GET /api/gamification/stats/{memberId}.
func (h *StatsHandler) GetMemberStats(w http.ResponseWriter, r *http.Request) {
	memberID, err := pathID(r, "memberId")
	if err != nil {
		respondInvalidRequest(w, r, err.Error(), err)
		return
	}

	stats, err := h.gamification.GetMemberStats(r.Context(), memberID)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithData(w, r, http.StatusOK, stats)
}

// GetEarnedBadges handles GET /api/gamification/badges/{memberId}.
func (h *StatsHandler) GetEarnedBadges(w http.ResponseWriter, r *http.Request) {
	memberID, err := pathID(r, "memberId")
	if err != nil {
		respondInvalidRequest(w, r, err.Error(), err)
		return
	}

	badges, err := h.gamification.GetEarnedBadges(r.Context(), memberID)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	if badges == nil {
		badges = []gamification.BadgeView{}
	}
	shared.RespondWithData(w, r, http.StatusOK, badges)
}

// GetDailyStats handles GET /api/analytics/daily/{memberId}?date=YYYY-MM-DD.
// Without a date it reports today.
func (h *StatsHandler) GetDailyStats(w http.ResponseWriter, r *http.Request) {
	memberID, err := pathID(r, "memberId")
	if err != nil {
		respondInvalidRequest(w, r, err.Error(), err)
		return
	}
	date, ok, err := queryDate(r, "date")
	if err != nil {
		respondInvalidRequest(w, r, err.Error(), err)
		return
	}

	var stats *analytics.DailyStats
	if ok {
		stats, err = h.analytics.GetDailyStats(r.Context(), memberID, date)
	} else {
		stats, err = h.analytics.GetTodayStats(r.Context(), memberID)
	}
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithData(w, r, http.StatusOK, stats)
}
