package domain

import (
	"testing"
	"time"
)

func validQuery(now time.Time) Query {
	return Query{
		Origin:        "JFK",
		Destination:   "LHR",
		DepartureDate: now.AddDate(0, 0, 10),
		Cabin:         CabinEconomy,
		Currency:      "USD",
		TripType:      TripOneWay,
		Passengers:    Passengers{Adults: 1},
	}
}

func TestQueryValidate_OK(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q := validQuery(now)
	if err := q.Validate(now); err != nil {
		t.Fatalf("expected valid query, got %v", err)
	}
}

func TestQueryValidate_BadAirport(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q := validQuery(now)
	q.Origin = "NY"
	if err := q.Validate(now); err != ErrInvalidAirport {
		t.Fatalf("expected ErrInvalidAirport, got %v", err)
	}
}

func TestQueryValidate_PastDeparture(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	q := validQuery(now)
	q.DepartureDate = now.AddDate(0, 0, -1)
	if err := q.Validate(now); err != ErrPastDeparture {
		t.Fatalf("expected ErrPastDeparture, got %v", err)
	}
}

func TestQueryValidate_ReturnBeforeDeparture(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q := validQuery(now)
	ret := q.DepartureDate.AddDate(0, 0, -1)
	q.ReturnDate = &ret
	if err := q.Validate(now); err != ErrInvalidDates {
		t.Fatalf("expected ErrInvalidDates, got %v", err)
	}
}

func TestQueryValidate_TooManyPassengers(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q := validQuery(now)
	q.Passengers = Passengers{Adults: 9, Children: 1}
	if err := q.Validate(now); err == nil {
		t.Fatal("expected passenger-count error")
	}
}

func TestQueryValidate_InfantsExceedAdults(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q := validQuery(now)
	q.Passengers = Passengers{Adults: 1, InfantsOnLap: 2}
	if err := q.Validate(now); err == nil {
		t.Fatal("expected passenger-count error for infants exceeding adults")
	}
}

func TestQueryKey_StableAcrossPassengerCounts(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := validQuery(now)
	b := validQuery(now)
	b.Passengers = Passengers{Adults: 3, Children: 2}
	if a.QueryKey() != b.QueryKey() {
		t.Fatalf("expected passenger counts to not affect cache key: %q vs %q", a.QueryKey(), b.QueryKey())
	}
}
