package booking

// ResultResponseSwagger describes the envelope returned by booking commands.
type ResultResponseSwagger struct {
	Success bool           `json:"success"`
	Data    resultResponse `json:"data"`
}

// BookingDataSwagger describes a booking with the statuses it may move to.
type BookingDataSwagger struct {
	Booking      Booking  `json:"booking"`
	NextStatuses []Status `json:"next_statuses"`
}

type BookingResponseSwagger struct {
	Success bool               `json:"success"`
	Data    BookingDataSwagger `json:"data"`
}

type PaymentSummaryResponseSwagger struct {
	Success bool           `json:"success"`
	Data    PaymentSummary `json:"data"`
}

type HistoryResponseSwagger struct {
	Success bool `json:"success"`
	Data    struct {
		History []StatusHistoryEntry `json:"history"`
	} `json:"data"`
}

type ReceiptsResponseSwagger struct {
	Success bool `json:"success"`
	Data    struct {
		Receipts []Receipt `json:"receipts"`
	} `json:"data"`
}

type QuotesResponseSwagger struct {
	Success bool `json:"success"`
	Data    struct {
		Quotes []Quote `json:"quotes"`
	} `json:"data"`
}

// ErrorDetailsSwagger describes error payload. Details carries
// current_status on conflicts and retryable on lost writes.
type ErrorDetailsSwagger struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ErrorResponseSwagger describes common error response.
type ErrorResponseSwagger struct {
	Success bool                `json:"success"`
	Error   ErrorDetailsSwagger `json:"error"`
}
