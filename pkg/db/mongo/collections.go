package mongo

const (
	CollectionUsers    = "Users"
	CollectionOTPs     = "OTPs"
	CollectionServices = "Services"
	CollectionBookings = "Bookings"
	CollectionReviews  = "Reviews"
)
