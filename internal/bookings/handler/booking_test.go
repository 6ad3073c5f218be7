package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"locafy/pkg/auth"
	apperrors "locafy/pkg/errors"
	"locafy/pkg/logger"
	"locafy/pkg/model"
)

type mockBookingService struct {
	bookFunc         func(ctx context.Context, identity auth.Identity, req *model.BookingRequest) (*model.Booking, error)
	updateStatusFunc func(ctx context.Context, identity auth.Identity, req *model.StatusUpdateRequest) (*model.Booking, error)
	dashboardFunc    func(ctx context.Context, identity auth.Identity) (*model.DashboardStats, error)
}

func (m *mockBookingService) Book(ctx context.Context, identity auth.Identity, req *model.BookingRequest) (*model.Booking, error) {
	if m.bookFunc != nil {
		return m.bookFunc(ctx, identity, req)
	}
	return &model.Booking{}, nil
}

func (m *mockBookingService) UserBookings(ctx context.Context, identity auth.Identity) ([]*model.BookingView, error) {
	return []*model.BookingView{}, nil
}

func (m *mockBookingService) ProviderBookings(ctx context.Context, identity auth.Identity) ([]*model.BookingView, error) {
	return []*model.BookingView{}, nil
}

func (m *mockBookingService) TodaysBookings(ctx context.Context, identity auth.Identity) ([]*model.BookingView, error) {
	return []*model.BookingView{}, nil
}

func (m *mockBookingService) DashboardStats(ctx context.Context, identity auth.Identity) (*model.DashboardStats, error) {
	if m.dashboardFunc != nil {
		return m.dashboardFunc(ctx, identity)
	}
	return &model.DashboardStats{}, nil
}

func (m *mockBookingService) UpdateStatus(ctx context.Context, identity auth.Identity, req *model.StatusUpdateRequest) (*model.Booking, error) {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, identity, req)
	}
	return &model.Booking{}, nil
}

// stubTokens accepts "user" and "provider" as tokens.
type stubTokens struct{}

func (stubTokens) Parse(token string) (auth.Identity, error) {
	switch token {
	case "user":
		return auth.Identity{ID: "u1", Role: model.RoleUser}, nil
	case "provider":
		return auth.Identity{ID: "p1", Role: model.RoleProvider}, nil
	}
	return auth.Identity{}, errors.New("bad token")
}

func newRouter(svc *mockBookingService) *httprouter.Router {
	router := httprouter.New()
	NewBookingHandler(svc, stubTokens{}, logger.Discard()).RegisterRoutes(router)
	return router
}

func do(router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUpdateStatus(t *testing.T) {
	bookingID := primitive.NewObjectID()

	tests := []struct {
		name       string
		token      string
		body       string
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{name: "success", token: "provider", body: `{"id":"` + bookingID.Hex() + `","newStatus":"confirmed"}`, wantStatus: http.StatusOK},
		{name: "missing token", body: `{}`, wantStatus: http.StatusUnauthorized, wantCode: apperrors.CodeUnauthorized},
		{name: "bad token", token: "forged", body: `{}`, wantStatus: http.StatusUnauthorized, wantCode: apperrors.CodeUnauthorized},
		{name: "malformed body", token: "user", body: `{"id":`, wantStatus: http.StatusBadRequest, wantCode: apperrors.CodeInvalidInput},
		{name: "terminal", token: "user", body: `{"id":"x","newStatus":"cancelled"}`, serviceErr: apperrors.TerminalState("completed"), wantStatus: http.StatusConflict, wantCode: apperrors.CodeTerminalState},
		{name: "forbidden", token: "user", body: `{"id":"x","newStatus":"confirmed"}`, serviceErr: apperrors.Forbidden("no"), wantStatus: http.StatusForbidden, wantCode: apperrors.CodeForbidden},
		{name: "not found", token: "user", body: `{"id":"x","newStatus":"cancelled"}`, serviceErr: apperrors.NotFound("Booking"), wantStatus: http.StatusNotFound, wantCode: apperrors.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockBookingService{
				updateStatusFunc: func(_ context.Context, identity auth.Identity, req *model.StatusUpdateRequest) (*model.Booking, error) {
					if tt.serviceErr != nil {
						return nil, tt.serviceErr
					}
					return &model.Booking{ID: bookingID, Status: model.BookingStatus(req.NewStatus)}, nil
				},
			}

			w := do(newRouter(svc), http.MethodPatch, "/api/booking/update-booking-status", tt.token, tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}

			if tt.wantCode != "" {
				var resp struct {
					Code string `json:"code"`
				}
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				if resp.Code != tt.wantCode {
					t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
				}
				return
			}

			var resp struct {
				Message string        `json:"message"`
				Data    model.Booking `json:"data"`
			}
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Data.Status != model.StatusConfirmed || resp.Data.ID != bookingID {
				t.Errorf("unexpected booking %+v", resp.Data)
			}
		})
	}
}

func TestProviderRoutesRejectUsers(t *testing.T) {
	router := newRouter(&mockBookingService{})

	for _, path := range []string{
		"/api/booking/provider/get-booking",
		"/api/booking/provider/todays-booking",
		"/api/booking/provider/dashboard-stats",
	} {
		if w := do(router, http.MethodGet, path, "user", ""); w.Code != http.StatusForbidden {
			t.Errorf("%s as user: status = %d, want 403", path, w.Code)
		}
		if w := do(router, http.MethodGet, path, "provider", ""); w.Code != http.StatusOK {
			t.Errorf("%s as provider: status = %d, want 200", path, w.Code)
		}
	}
}

func TestBookPassesIdentity(t *testing.T) {
	var got auth.Identity
	svc := &mockBookingService{
		bookFunc: func(_ context.Context, identity auth.Identity, req *model.BookingRequest) (*model.Booking, error) {
			got = identity
			if req.ContactName != "Meera" {
				t.Errorf("ContactName = %q", req.ContactName)
			}
			return &model.Booking{Status: model.StatusPending}, nil
		},
	}

	w := do(newRouter(svc), http.MethodPost, "/api/booking/book", "user", `{"name":"Meera","mobile":"9876543210"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	if got.ID != "u1" {
		t.Errorf("identity = %+v", got)
	}
}

func TestDashboardStatsResponse(t *testing.T) {
	svc := &mockBookingService{
		dashboardFunc: func(context.Context, auth.Identity) (*model.DashboardStats, error) {
			return &model.DashboardStats{TodaySales: 1200, PendingRequests: 3}, nil
		},
	}

	w := do(newRouter(svc), http.MethodGet, "/api/booking/provider/dashboard-stats", "provider", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Data model.DashboardStats `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Data.TodaySales != 1200 || resp.Data.PendingRequests != 3 {
		t.Errorf("unexpected stats %+v", resp.Data)
	}
}
