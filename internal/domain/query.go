package domain

import (
	"errors"
	"fmt"
	"time"
)

// Cabin is the requested cabin class.
type Cabin string

const (
	CabinEconomy         Cabin = "ECONOMY"
	CabinPremiumEconomy  Cabin = "PREMIUM_ECONOMY"
	CabinBusiness        Cabin = "BUSINESS"
	CabinFirst           Cabin = "FIRST"
)

// TripType distinguishes one-way, round-trip, and multi-city searches.
type TripType string

const (
	TripOneWay    TripType = "ONE_WAY"
	TripRoundTrip TripType = "ROUND_TRIP"
	TripMultiCity TripType = "MULTI_CITY"
)

// Passengers holds the passenger-count breakdown of a Query.
type Passengers struct {
	Adults         int
	Children       int
	InfantsInSeat  int
	InfantsOnLap   int
}

func (p Passengers) total() int {
	return p.Adults + p.Children + p.InfantsInSeat + p.InfantsOnLap
}

// Query is the immutable request descriptor driving a search.
type Query struct {
	Origin               string
	Destination          string
	DepartureDate        time.Time
	ReturnDate           *time.Time
	Cabin                Cabin
	Passengers           Passengers
	Currency             string
	TripType             TripType
	AlternativeAirports  bool
}

var (
	ErrInvalidAirport  = errors.New("domain: origin/destination must be a 3-letter IATA code")
	ErrInvalidCabin    = errors.New("domain: unknown cabin class")
	ErrInvalidCurrency = errors.New("domain: currency must be a 3-letter ISO-4217 code")
	ErrInvalidDates    = errors.New("domain: return_date must not precede departure_date")
	ErrPastDeparture   = errors.New("domain: departure_date must not be in the past")
	ErrPassengerCounts = errors.New("domain: passenger counts out of range")
)

// Validate enforces a Query's structural and temporal invariants.
func (q Query) Validate(now time.Time) error {
	if len(q.Origin) != 3 || len(q.Destination) != 3 {
		return ErrInvalidAirport
	}
	switch q.Cabin {
	case CabinEconomy, CabinPremiumEconomy, CabinBusiness, CabinFirst:
	default:
		return ErrInvalidCabin
	}
	if len(q.Currency) != 3 {
		return ErrInvalidCurrency
	}
	if q.DepartureDate.Before(truncateDay(now)) {
		return ErrPastDeparture
	}
	if q.ReturnDate != nil && q.ReturnDate.Before(q.DepartureDate) {
		return ErrInvalidDates
	}
	p := q.Passengers
	if p.Adults < 1 {
		return fmt.Errorf("%w: at least one adult required", ErrPassengerCounts)
	}
	if p.total() > 9 {
		return fmt.Errorf("%w: total passengers exceeds 9", ErrPassengerCounts)
	}
	if p.InfantsOnLap > p.Adults {
		return fmt.Errorf("%w: infants_on_lap exceeds adults", ErrPassengerCounts)
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// QueryKey is the canonical serialization of a Query minus passenger counts,
// used to key the cache since passenger counts only affect the price
// multiplier applied after a cache hit, not which itineraries come back.
func (q Query) QueryKey() string {
	ret := ""
	if q.ReturnDate != nil {
		ret = q.ReturnDate.Format("2006-01-02")
	}
	return fmt.Sprintf("%s:%s:%s:%s:%s:%s",
		q.Origin, q.Destination, q.DepartureDate.Format("2006-01-02"), ret, q.Cabin, q.Currency)
}
