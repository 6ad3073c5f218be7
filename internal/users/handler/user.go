package handler

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"locafy/internal/users/service"
	"locafy/pkg/auth"
	apperrors "locafy/pkg/errors"
	httputil "locafy/pkg/http"
	"locafy/pkg/logger"
	"locafy/pkg/middleware"
	"locafy/pkg/model"
)

type UserHandler struct {
	service service.UserService
	tokens  middleware.TokenParser
	log     *logger.Logger
}

func NewUserHandler(service service.UserService, tokens middleware.TokenParser, log *logger.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		tokens:  tokens,
		log:     log,
	}
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Register", err)
		return
	}

	res, err := h.service.Register(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Register", err)
		return
	}

	if err := httputil.WriteCreated(w, "User registered successfully", res); err != nil {
		h.log.Error("failed to write created response", "handler", "Register", "operation", "WriteCreated", "error", err)
	}
}

func (h *UserHandler) SendOTP(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.EmailRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "SendOTP", err)
		return
	}

	if err := h.service.SendOTP(r.Context(), &req); err != nil {
		h.writeError(w, "SendOTP", err)
		return
	}

	h.writeMessage(w, "SendOTP", "OTP sent to your email")
}

func (h *UserHandler) VerifyOTP(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.VerifyOTPRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "VerifyOTP", err)
		return
	}

	if err := h.service.VerifyOTP(r.Context(), &req); err != nil {
		h.writeError(w, "VerifyOTP", err)
		return
	}

	h.writeMessage(w, "VerifyOTP", "Email verified successfully")
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Login", err)
		return
	}

	res, err := h.service.Login(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Login", err)
		return
	}

	if err := httputil.WriteMessage(w, "Login successful", res); err != nil {
		h.log.Error("failed to write success response", "handler", "Login", "operation", "WriteMessage", "error", err)
	}
}

func (h *UserHandler) ForgotPassword(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.EmailRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "ForgotPassword", err)
		return
	}

	if err := h.service.ForgotPassword(r.Context(), &req); err != nil {
		h.writeError(w, "ForgotPassword", err)
		return
	}

	h.writeMessage(w, "ForgotPassword", "Password reset link sent to your email")
}

func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	token := ps.ByName("token")
	if token == "" {
		h.writeError(w, "ResetPassword", apperrors.InvalidInput("Token is required"))
		return
	}

	var req model.ResetPasswordRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "ResetPassword", err)
		return
	}

	if err := h.service.ResetPassword(r.Context(), token, &req); err != nil {
		h.writeError(w, "ResetPassword", err)
		return
	}

	h.writeMessage(w, "ResetPassword", "Password reset successfully")
}

func (h *UserHandler) ContactUs(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		h.writeError(w, "ContactUs", apperrors.Unauthorized("Authentication required"))
		return
	}

	var req model.ContactRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "ContactUs", err)
		return
	}

	if err := h.service.ContactUs(r.Context(), identity, &req); err != nil {
		h.writeError(w, "ContactUs", err)
		return
	}

	h.writeMessage(w, "ContactUs", "Your message has been sent")
}

func (h *UserHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/users/register", h.Register)
	router.POST("/api/users/send-otp", h.SendOTP)
	router.POST("/api/users/verify-otp", h.VerifyOTP)
	router.POST("/api/users/login", h.Login)
	router.POST("/api/users/contact-us", middleware.RequireAuth(h.tokens)(h.ContactUs))

	router.POST("/api/auth/forgot-password", h.ForgotPassword)
	router.POST("/api/auth/reset-password/:token", h.ResetPassword)
}

func (h *UserHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *UserHandler) writeMessage(w http.ResponseWriter, handler, message string) {
	if err := httputil.WriteMessage(w, message, nil); err != nil {
		h.log.Error("failed to write success response", "handler", handler, "operation", "WriteMessage", "error", err)
	}
}
