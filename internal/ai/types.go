package ai

import "encoding/json"

// Extraction holds the validated receipt fields returned by the model.
type Extraction struct {
	Date            string
	Time            string
	Amount          float64
	Currency        string
	PickupLocation  string
	DropoffLocation string
	TripType        string
}

type extractionPayload struct {
	Date            *string         `json:"date"`
	Time            *string         `json:"time"`
	Amount          json.RawMessage `json:"amount"`
	Currency        *string         `json:"currency"`
	PickupLocation  *string         `json:"pickup_location"`
	DropoffLocation *string         `json:"dropoff_location"`
	TripType        *string         `json:"trip_type"`
}
