package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"

	"locafy/pkg/auth"
	apperrors "locafy/pkg/errors"
	"locafy/pkg/logger"
	"locafy/pkg/model"
)

type mockServiceService struct {
	addFunc    func(ctx context.Context, identity auth.Identity, req *model.ServiceRequest, image io.Reader) (*model.Service, error)
	searchFunc func(ctx context.Context, search model.ServiceSearch) ([]*model.Service, error)
}

func (m *mockServiceService) Add(ctx context.Context, identity auth.Identity, req *model.ServiceRequest, image io.Reader) (*model.Service, error) {
	if m.addFunc != nil {
		return m.addFunc(ctx, identity, req, image)
	}
	return &model.Service{}, nil
}

func (m *mockServiceService) ListAll(ctx context.Context) ([]*model.Service, error) {
	return []*model.Service{}, nil
}

func (m *mockServiceService) ListByProvider(ctx context.Context, providerID string) ([]*model.Service, error) {
	return []*model.Service{}, nil
}

func (m *mockServiceService) ToggleStatus(ctx context.Context, identity auth.Identity, req *model.ServiceStatusRequest) (*model.Service, error) {
	return &model.Service{}, nil
}

func (m *mockServiceService) Details(ctx context.Context, serviceID string) (*model.ServiceDetails, error) {
	return nil, apperrors.NotFoundWithID("Service", serviceID)
}

func (m *mockServiceService) Popular(ctx context.Context) ([]*model.PopularService, error) {
	return []*model.PopularService{}, nil
}

func (m *mockServiceService) TopRated(ctx context.Context) ([]*model.Service, error) {
	return []*model.Service{}, nil
}

func (m *mockServiceService) Search(ctx context.Context, search model.ServiceSearch) ([]*model.Service, error) {
	if m.searchFunc != nil {
		return m.searchFunc(ctx, search)
	}
	return []*model.Service{}, nil
}

type stubTokens struct{}

func (stubTokens) Parse(token string) (auth.Identity, error) {
	switch token {
	case "provider":
		return auth.Identity{ID: "p1", Role: model.RoleProvider}, nil
	case "user":
		return auth.Identity{ID: "u1", Role: model.RoleUser}, nil
	}
	return auth.Identity{}, errors.New("bad token")
}

func newRouter(svc *mockServiceService) *httprouter.Router {
	router := httprouter.New()
	NewServiceHandler(svc, stubTokens{}, logger.Discard()).RegisterRoutes(router)
	return router
}

func multipartBody(t *testing.T, fields map[string]string, withImage bool) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if withImage {
		part, err := mw.CreateFormFile("image", "photo.jpg")
		if err != nil {
			t.Fatal(err)
		}
		part.Write([]byte("jpeg-bytes"))
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestAdd(t *testing.T) {
	var gotReq *model.ServiceRequest
	var gotImage []byte
	svc := &mockServiceService{
		addFunc: func(_ context.Context, identity auth.Identity, req *model.ServiceRequest, image io.Reader) (*model.Service, error) {
			gotReq = req
			if image != nil {
				gotImage, _ = io.ReadAll(image)
			}
			return &model.Service{Name: req.Name}, nil
		},
	}

	body, contentType := multipartBody(t, map[string]string{
		"name":        "Deep Cleaning",
		"description": "Whole home",
		"price":       "1499.50",
		"category":    "cleaning",
		"address":     "Baner, Pune",
		"coordinates": "[73.78, 18.56]",
	}, true)

	req := httptest.NewRequest(http.MethodPost, "/api/services/add", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer provider")
	w := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", w.Code, w.Body.String())
	}
	if gotReq.Price != 1499.50 || gotReq.Longitude != 73.78 || gotReq.Latitude != 18.56 {
		t.Errorf("unexpected request %+v", gotReq)
	}
	if string(gotImage) != "jpeg-bytes" {
		t.Errorf("image = %q", gotImage)
	}
}

func TestAdd_BadForm(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		fields     map[string]string
		wantStatus int
	}{
		{name: "user role", token: "user", fields: map[string]string{"coordinates": "[1,2]"}, wantStatus: http.StatusForbidden},
		{name: "missing coordinates", token: "provider", fields: map[string]string{"price": "10"}, wantStatus: http.StatusBadRequest},
		{name: "malformed coordinates", token: "provider", fields: map[string]string{"coordinates": "[1]"}, wantStatus: http.StatusBadRequest},
		{name: "bad price", token: "provider", fields: map[string]string{"price": "ten", "coordinates": "[1,2]"}, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartBody(t, tt.fields, false)
			req := httptest.NewRequest(http.MethodPost, "/api/services/add", body)
			req.Header.Set("Content-Type", contentType)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			w := httptest.NewRecorder()
			newRouter(&mockServiceService{}).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestSearchQueryParsing(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		check      func(t *testing.T, s model.ServiceSearch)
	}{
		{
			name:       "text and location",
			query:      "?query=plumber&lng=73.8&lat=18.5&radius=3&limit=5",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, s model.ServiceSearch) {
				if s.Query != "plumber" || *s.Lng != 73.8 || *s.Lat != 18.5 || s.RadiusKm != 3 || s.Limit != 5 {
					t.Errorf("unexpected search %+v", s)
				}
			},
		},
		{
			name:       "text only",
			query:      "?query=plumber",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, s model.ServiceSearch) {
				if s.HasLocation() {
					t.Error("no location expected")
				}
			},
		},
		{name: "bad lat", query: "?lng=1&lat=north", wantStatus: http.StatusBadRequest},
		{name: "bad limit", query: "?query=x&limit=many", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got model.ServiceSearch
			svc := &mockServiceService{
				searchFunc: func(_ context.Context, search model.ServiceSearch) ([]*model.Service, error) {
					got = search
					return []*model.Service{}, nil
				},
			}

			req := httptest.NewRequest(http.MethodGet, "/api/services/search"+tt.query, nil)
			w := httptest.NewRecorder()
			newRouter(svc).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.check != nil {
				tt.check(t, got)
			}
		})
	}
}

func TestDetailsNotFound(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/services/details/abc", nil)
	w := httptest.NewRecorder()
	newRouter(&mockServiceService{}).ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
