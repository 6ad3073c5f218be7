package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"

	"locafy/internal/services/service"
	"locafy/pkg/auth"
	apperrors "locafy/pkg/errors"
	httputil "locafy/pkg/http"
	"locafy/pkg/logger"
	"locafy/pkg/middleware"
	"locafy/pkg/model"
)

const multipartMemory = 4 << 20

type ServiceHandler struct {
	service service.ServiceService
	tokens  middleware.TokenParser
	log     *logger.Logger
}

func NewServiceHandler(service service.ServiceService, tokens middleware.TokenParser, log *logger.Logger) *ServiceHandler {
	return &ServiceHandler{
		service: service,
		tokens:  tokens,
		log:     log,
	}
}

// Add accepts multipart/form-data with the service fields, coordinates as a
// JSON array [lng, lat] and the image file.
func (h *ServiceHandler) Add(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		h.writeError(w, "Add", apperrors.Unauthorized("Authentication required"))
		return
	}

	if err := httputil.ParseMultipart(r, multipartMemory); err != nil {
		h.writeError(w, "Add", err)
		return
	}

	req, err := serviceRequestFromForm(r)
	if err != nil {
		h.writeError(w, "Add", err)
		return
	}

	image, err := httputil.OptionalFile(r, "image")
	if err != nil {
		h.writeError(w, "Add", err)
		return
	}
	if image != nil {
		defer image.Close()
	}

	svc, err := h.service.Add(r.Context(), identity, req, image)
	if err != nil {
		h.writeError(w, "Add", err)
		return
	}

	if err := httputil.WriteCreated(w, "Service added successfully", svc); err != nil {
		h.log.Error("failed to write created response", "handler", "Add", "operation", "WriteCreated", "error", err)
	}
}

func serviceRequestFromForm(r *http.Request) (*model.ServiceRequest, error) {
	price, err := httputil.FormFloat(r, "price")
	if err != nil {
		return nil, err
	}

	req := &model.ServiceRequest{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Price:       price,
		Category:    r.FormValue("category"),
		Address:     r.FormValue("address"),
	}

	raw := strings.TrimSpace(r.FormValue("coordinates"))
	if raw == "" {
		return nil, apperrors.InvalidInput("coordinates are required")
	}
	var coords []float64
	if err := json.Unmarshal([]byte(raw), &coords); err != nil || len(coords) != 2 {
		return nil, apperrors.InvalidInput("coordinates must be a [lng, lat] array")
	}
	req.Longitude, req.Latitude = coords[0], coords[1]

	return req, nil
}

func (h *ServiceHandler) ListAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	services, err := h.service.ListAll(r.Context())
	if err != nil {
		h.writeError(w, "ListAll", err)
		return
	}
	h.writeSuccess(w, "ListAll", services)
}

func (h *ServiceHandler) ListByProvider(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	services, err := h.service.ListByProvider(r.Context(), ps.ByName("providerId"))
	if err != nil {
		h.writeError(w, "ListByProvider", err)
		return
	}
	h.writeSuccess(w, "ListByProvider", services)
}

func (h *ServiceHandler) Details(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	details, err := h.service.Details(r.Context(), ps.ByName("serviceId"))
	if err != nil {
		h.writeError(w, "Details", err)
		return
	}
	h.writeSuccess(w, "Details", details)
}

func (h *ServiceHandler) ToggleStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		h.writeError(w, "ToggleStatus", apperrors.Unauthorized("Authentication required"))
		return
	}

	var req model.ServiceStatusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "ToggleStatus", err)
		return
	}

	svc, err := h.service.ToggleStatus(r.Context(), identity, &req)
	if err != nil {
		h.writeError(w, "ToggleStatus", err)
		return
	}

	if err := httputil.WriteMessage(w, "Service status updated", svc); err != nil {
		h.log.Error("failed to write success response", "handler", "ToggleStatus", "operation", "WriteMessage", "error", err)
	}
}

func (h *ServiceHandler) Popular(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	services, err := h.service.Popular(r.Context())
	if err != nil {
		h.writeError(w, "Popular", err)
		return
	}
	h.writeSuccess(w, "Popular", services)
}

func (h *ServiceHandler) TopRated(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	services, err := h.service.TopRated(r.Context())
	if err != nil {
		h.writeError(w, "TopRated", err)
		return
	}
	h.writeSuccess(w, "TopRated", services)
}

// Search reads query, category, lng, lat, radius (km) and limit.
func (h *ServiceHandler) Search(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	search, err := searchFromQuery(r)
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}

	services, err := h.service.Search(r.Context(), search)
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}
	h.writeSuccess(w, "Search", services)
}

func searchFromQuery(r *http.Request) (model.ServiceSearch, error) {
	q := r.URL.Query()
	search := model.ServiceSearch{
		Query:    q.Get("query"),
		Category: q.Get("category"),
	}

	optionalFloat := func(name string) (*float64, error) {
		s := strings.TrimSpace(q.Get(name))
		if s == "" {
			return nil, nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, apperrors.InvalidInput("invalid " + name + " parameter: " + s)
		}
		return &v, nil
	}

	var err error
	if search.Lng, err = optionalFloat("lng"); err != nil {
		return search, err
	}
	if search.Lat, err = optionalFloat("lat"); err != nil {
		return search, err
	}
	radius, err := optionalFloat("radius")
	if err != nil {
		return search, err
	}
	if radius != nil {
		search.RadiusKm = *radius
	}
	if s := q.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil {
			return search, apperrors.InvalidInput("invalid limit parameter: " + s)
		}
		search.Limit = limit
	}
	return search, nil
}

func (h *ServiceHandler) RegisterRoutes(router *httprouter.Router) {
	authed := middleware.RequireAuth(h.tokens)
	provider := middleware.RequireAuth(h.tokens, model.RoleProvider)

	router.GET("/api/services", h.ListAll)
	router.POST("/api/services/add", provider(h.Add))
	router.GET("/api/services/provider/:providerId", authed(h.ListByProvider))
	router.GET("/api/services/details/:serviceId", h.Details)
	router.PUT("/api/services/update-status", provider(h.ToggleStatus))
	router.GET("/api/services/popular-services", h.Popular)
	router.GET("/api/services/top-rated-services", h.TopRated)
	router.GET("/api/services/search", h.Search)
}

func (h *ServiceHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *ServiceHandler) writeSuccess(w http.ResponseWriter, handler string, data any) {
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", handler, "operation", "WriteSuccess", "error", err)
	}
}
