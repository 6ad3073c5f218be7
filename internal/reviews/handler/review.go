package handler

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"locafy/internal/reviews/service"
	"locafy/pkg/auth"
	apperrors "locafy/pkg/errors"
	httputil "locafy/pkg/http"
	"locafy/pkg/logger"
	"locafy/pkg/middleware"
	"locafy/pkg/model"
)

const multipartMemory = 4 << 20

type ReviewHandler struct {
	service service.ReviewService
	tokens  middleware.TokenParser
	log     *logger.Logger
}

func NewReviewHandler(service service.ReviewService, tokens middleware.TokenParser, log *logger.Logger) *ReviewHandler {
	return &ReviewHandler{
		service: service,
		tokens:  tokens,
		log:     log,
	}
}

// Submit accepts multipart/form-data with bookingId, serviceId, providerId,
// rating, reviewText and an optional image.
func (h *ReviewHandler) Submit(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		h.writeError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	if err := httputil.ParseMultipart(r, multipartMemory); err != nil {
		h.writeError(w, err)
		return
	}

	rating, err := httputil.FormFloat(r, "rating")
	if err != nil {
		h.writeError(w, err)
		return
	}

	req := &model.ReviewRequest{
		BookingID:  r.FormValue("bookingId"),
		ServiceID:  r.FormValue("serviceId"),
		ProviderID: r.FormValue("providerId"),
		Rating:     rating,
		ReviewText: r.FormValue("reviewText"),
	}

	image, err := httputil.OptionalFile(r, "image")
	if err != nil {
		h.writeError(w, err)
		return
	}
	if image != nil {
		defer image.Close()
	}

	review, err := h.service.Submit(r.Context(), identity, req, image)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := httputil.WriteCreated(w, "Review submitted successfully", review); err != nil {
		h.log.Error("failed to write created response", "handler", "Submit", "operation", "WriteCreated", "error", err)
	}
}

func (h *ReviewHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/reviews/submit", middleware.RequireAuth(h.tokens)(h.Submit))
}

func (h *ReviewHandler) writeError(w http.ResponseWriter, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", "Submit", "operation", "WriteError", "error", writeErr)
	}
}
