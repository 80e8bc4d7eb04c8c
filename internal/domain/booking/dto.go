package booking

type CreateBookingRequest struct {
	PropertyID int64  `json:"property_id" validate:"required,gt=0"`
	CheckIn    string `json:"check_in" validate:"required,datetime=2006-01-02"`
	CheckOut   string `json:"check_out" validate:"required,datetime=2006-01-02"`
	Guests     int    `json:"guests" validate:"required,min=1,max=50"`
	Notes      string `json:"notes" validate:"max=1000"`
	// RequestKey makes retries of the same submission idempotent.
	RequestKey string `json:"request_key" validate:"omitempty,max=64"`
}

type DecisionRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type DeclineRequest struct {
	Reason string `json:"reason" validate:"required,min=1,max=500"`
}

// ListFilter scopes a booking listing to one side of the stay.
type ListFilter struct {
	UserID int64
	AsHost bool
	Status Status
	Limit  int
	Offset int
}

type ListResponse struct {
	Bookings []Booking `json:"bookings"`
	Total    int64     `json:"total"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
}
