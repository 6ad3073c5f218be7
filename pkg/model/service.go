package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ServiceStatus string

const (
	ServiceActive   ServiceStatus = "active"
	ServiceInactive ServiceStatus = "inactive"
)

func (s ServiceStatus) Valid() bool {
	return s == ServiceActive || s == ServiceInactive
}

// GeoPoint is a GeoJSON point. Coordinates are [longitude, latitude].
type GeoPoint struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates"`
	Address     string    `json:"address,omitempty" bson:"address,omitempty"`
}

func NewGeoPoint(lng, lat float64, address string) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: []float64{lng, lat}, Address: address}
}

type Service struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ProviderID    primitive.ObjectID `json:"providerId" bson:"provider_id"`
	Name          string             `json:"name" bson:"name"`
	Description   string             `json:"description" bson:"description"`
	Price         float64            `json:"price" bson:"price"`
	Category      string             `json:"category" bson:"category"`
	Image         string             `json:"image,omitempty" bson:"image,omitempty"`
	ImagePublicID string             `json:"-" bson:"image_public_id,omitempty"`
	Location      GeoPoint           `json:"location" bson:"location"`
	Rating        *float64           `json:"rating" bson:"rating"`
	Status        ServiceStatus      `json:"status" bson:"status"`
	CreatedAt     time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt     time.Time          `json:"updatedAt" bson:"updated_at"`
}

type ServiceSummary struct {
	ID       primitive.ObjectID `json:"id" bson:"_id"`
	Name     string             `json:"name" bson:"name"`
	Category string             `json:"category" bson:"category"`
	Price    float64            `json:"price" bson:"price"`
	Image    string             `json:"image,omitempty" bson:"image,omitempty"`
}

// ServiceRequest is the multipart form for adding a service.
type ServiceRequest struct {
	Name        string  `validate:"required,min=2,max=120"`
	Description string  `validate:"required,min=2,max=2000"`
	Price       float64 `validate:"gt=0"`
	Category    string  `validate:"required,min=2,max=60"`
	Address     string  `validate:"required,min=3,max=300"`
	Longitude   float64 `validate:"longitude"`
	Latitude    float64 `validate:"latitude"`
}

type ServiceStatusRequest struct {
	ServiceID string `json:"serviceId" validate:"required,mongodb"`
	Status    string `json:"status" validate:"omitempty,oneof=active inactive"`
}

// ServiceSearch holds the optional text and location filters of a search.
// Lng and Lat are either both set or both nil.
type ServiceSearch struct {
	Query    string
	Category string
	Lng      *float64
	Lat      *float64
	RadiusKm float64
	Limit    int
}

func (s ServiceSearch) HasLocation() bool {
	return s.Lng != nil && s.Lat != nil
}

type ServiceDetails struct {
	Service     *Service      `json:"service"`
	Provider    *UserSummary  `json:"provider,omitempty"`
	Reviews     []*ReviewView `json:"reviews"`
	Recommended []*Service    `json:"recommended"`
}

// PopularService is a service ranked by booking count.
type PopularService struct {
	Service  `bson:",inline"`
	Bookings int64 `json:"bookings" bson:"bookings"`
}
