package normalize

import "strings"

// carrierAliases resolves marketing/operating carrier and flight number
// fields across the wildly inconsistent upstream shapes different
// per-airline sources use for the same data.
var carrierAliases = map[string][]string{
	"marketing_carrier": {"carrier", "marketing_carrier", "airline", "airline_code", "marketingCarrier.code"},
	"operating_carrier": {"operating_carrier", "operatingCarrier.code", "operated_by", "opCarrier"},
	"flight_number":     {"flight_number", "flightNumber", "flight_no", "number"},
	"aircraft":          {"aircraft", "equipment", "plane_type"},
	"origin":            {"origin", "from", "departure_airport", "departureAirport.code"},
	"destination":       {"destination", "to", "arrival_airport", "arrivalAirport.code"},
}

var cabinAliases = map[string][]string{
	"cabin": {"cabin", "cabin_class", "cabinClass", "fare_class", "booking_class"},
}

var priceAliases = map[string][]string{
	"amount":   {"price", "amount", "total_price", "fare.total", "price.amount"},
	"currency": {"currency", "currency_code", "price.currency"},
}

var bookingAliases = map[string][]string{
	"url":                {"booking_url", "deep_link", "deeplink", "url"},
	"validating_carrier": {"validating_carrier", "validatingCarrier.code", "ticketing_carrier"},
}

var fareDetailAliases = map[string][]string{
	"fare_class":       {"fare_class", "fareClass", "booking_class", "rate_class"},
	"includes_baggage": {"includes_baggage", "baggage_included", "baggageIncluded"},
	"includes_meal":    {"includes_meal", "meal_included", "mealIncluded"},
}

// cabinCode collapses free-form cabin strings to the domain.Cabin enum.
func cabinCode(raw string) string {
	switch strings.ToLower(raw) {
	case "premium_economy", "premiumeconomy", "w", "premium economy":
		return "PREMIUM_ECONOMY"
	case "business", "c", "j":
		return "BUSINESS"
	case "first", "f", "first class":
		return "FIRST"
	default:
		return "ECONOMY"
	}
}
