package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/caro-api/internal/api/shared"
	"github.com/phrazzld/caro-api/internal/platform/logger"
	"github.com/phrazzld/caro-api/internal/redact"
	"github.com/phrazzld/caro-api/internal/service/review"
)

// RecordReviewRequest is the body of POST /api/review. Quality is a pointer
// so a missing value is told apart from a blackout (0).
type RecordReviewRequest struct {
	MemberID     int64 `json:"memberId"     validate:"required,gt=0"`
	CardID       int64 `json:"cardId"       validate:"required,gt=0"`
	DeckID       int64 `json:"deckId"       validate:"required,gt=0"`
	Quality      *int  `json:"quality"      validate:"required,gte=0,lte=5"`
	ReviewTimeMs int64 `json:"reviewTimeMs" validate:"required,gt=0"`
}

// InitializeCardRequest is the body of POST /api/review/initialize.
type InitializeCardRequest struct {
	MemberID int64 `json:"memberId" validate:"required,gt=0"`
	CardID   int64 `json:"cardId"   validate:"required,gt=0"`
}

// ReviewHandler serves the review scheduling endpoints.
type ReviewHandler struct {
	reviews review.Service
	logger  *slog.Logger
}

// NewReviewHandler creates a ReviewHandler.
func NewReviewHandler(reviews review.Service, logger *slog.Logger) *ReviewHandler {
	if reviews == nil {
		panic("reviews cannot be nil for ReviewHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewHandler{
		reviews: reviews,
		logger:  logger.With(slog.String("component", "review_handler")),
	}
}

// GetTodayReviewCardIDs handles GET /api/review/today?memberId=.
func (h *ReviewHandler) GetTodayReviewCardIDs(w http.ResponseWriter, r *http.Request) {
	memberID, err := queryID(r, "memberId")
	if err != nil {
		respondInvalidRequest(w, r, err.Error(), err)
		return
	}

	ids, err := h.reviews.GetTodayReviewCardIDs(r.Context(), memberID)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	shared.RespondWithData(w, r, http.StatusOK, ids)
}

// GetTodayReviews handles GET /api/review/today/details?memberId=.
func (h *ReviewHandler) GetTodayReviews(w http.ResponseWriter, r *http.Request) {
	memberID, err := queryID(r, "memberId")
	if err != nil {
		respondInvalidRequest(w, r, err.Error(), err)
		return
	}

	views, err := h.reviews.GetTodayReviews(r.Context(), memberID)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	if views == nil {
		views = []review.ReviewRecordView{}
	}
	shared.RespondWithData(w, r, http.StatusOK, views)
}

// GetReviewRecord handles GET /api/review/cards/{cardId}?memberId=.
func (h *ReviewHandler) GetReviewRecord(w http.ResponseWriter, r *http.Request) {
	cardID, err := pathID(r, "cardId")
	if err != nil {
		respondInvalidRequest(w, r, err.Error(), err)
		return
	}
	memberID, err := queryID(r, "memberId")
	if err != nil {
		respondInvalidRequest(w, r, err.Error(), err)
		return
	}

	view, err := h.reviews.GetReviewRecord(r.Context(), memberID, cardID)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithData(w, r, http.StatusOK, view)
}

// RecordReview handles POST /api/review.
func (h *ReviewHandler) RecordReview(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req RecordReviewRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		log.Warn("invalid request format", slog.String("error", redact.Error(err)))
		respondInvalidRequest(w, r, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		respondInvalidRequest(w, r, shared.DescribeValidationError(err), err)
		return
	}

	view, err := h.reviews.RecordReview(r.Context(), review.RecordReviewCommand{
		MemberID:     req.MemberID,
		CardID:       req.CardID,
		DeckID:       req.DeckID,
		Quality:      *req.Quality,
		ReviewTimeMs: req.ReviewTimeMs,
	})
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	log.Debug("review recorded",
		slog.Int64("member_id", req.MemberID),
		slog.Int64("card_id", req.CardID))
	shared.RespondWithData(w, r, http.StatusOK, view)
}

// InitializeCard handles POST /api/review/initialize.
func (h *ReviewHandler) InitializeCard(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req InitializeCardRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		log.Warn("invalid request format", slog.String("error", redact.Error(err)))
		respondInvalidRequest(w, r, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		respondInvalidRequest(w, r, shared.DescribeValidationError(err), err)
		return
	}

	view, err := h.reviews.InitializeCardForReview(r.Context(), req.MemberID, req.CardID)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithData(w, r, http.StatusOK, view)
}
