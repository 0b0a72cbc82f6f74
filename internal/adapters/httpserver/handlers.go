// internal/adapters/httpserver/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/flightmesh/flightmesh/internal/app"
	"github.com/flightmesh/flightmesh/internal/domain"
)

type Handlers struct{ S *app.SearchService }

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/v1/search", h.search)
	s.mux.Get("/v1/prediction_data", h.predictionData)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// searchResponse is the downstream search() response shape: the
// cache_state/partial/source_mix fields a caller needs to decide whether
// to re-poll for a still-refreshing background fan-out.
type searchResponse struct {
	Offers      []domain.Offer `json:"offers"`
	CacheState  string         `json:"cache_state"`
	Partial     bool           `json:"partial"`
	SourceMix   map[string]int `json:"source_mix"`
	GeneratedAt time.Time      `json:"generated_at"`
}

func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	cabin := domain.Cabin(q.Get("cabin"))
	if cabin == "" {
		cabin = domain.CabinEconomy
	}
	currency := q.Get("currency")
	if currency == "" {
		currency = "USD"
	}
	adults, _ := strconv.Atoi(q.Get("adults"))
	if adults <= 0 {
		adults = 1
	}
	departureDate, err := time.Parse("2006-01-02", q.Get("departure_date"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Query", "departure_date must be YYYY-MM-DD")
		return
	}

	query := domain.Query{
		Origin:        q.Get("origin"),
		Destination:   q.Get("destination"),
		DepartureDate: departureDate,
		Cabin:         cabin,
		Currency:      currency,
		Passengers:    domain.Passengers{Adults: adults},
		TripType:      domain.TripOneWay,
	}
	if rd := q.Get("return_date"); rd != "" {
		t, err := time.Parse("2006-01-02", rd)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid Query", "return_date must be YYYY-MM-DD")
			return
		}
		query.ReturnDate = &t
		query.TripType = domain.TripRoundTrip
	}

	result, err := h.S.Search(r.Context(), query)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidAirport) || errors.Is(err, domain.ErrInvalidCabin) ||
			errors.Is(err, domain.ErrInvalidCurrency) || errors.Is(err, domain.ErrInvalidDates) ||
			errors.Is(err, domain.ErrPastDeparture) || errors.Is(err, domain.ErrPassengerCounts) {
			writeProblem(w, http.StatusBadRequest, "Invalid Query", err.Error())
			return
		}
		writeProblem(w, http.StatusGatewayTimeout, "All Sources Failed", err.Error())
		return
	}

	resp := searchResponse{
		Offers:      result.Offers,
		CacheState:  string(result.CacheState),
		Partial:     result.Partial,
		SourceMix:   result.SourceMix,
		GeneratedAt: result.GeneratedAt,
	}

	etag, body := calcETagAndBody(resp)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write search response body")
	}
}

func (h *Handlers) predictionData(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	origin, dest := q.Get("origin"), q.Get("destination")
	if len(origin) != 3 || len(dest) != 3 {
		writeProblem(w, http.StatusBadRequest, "Invalid Query", "origin and destination must be 3-letter IATA codes")
		return
	}

	from := time.Now().Add(-30 * 24 * time.Hour)
	to := time.Now()
	if v := q.Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid Query", "from must be YYYY-MM-DD")
			return
		}
		from = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid Query", "to must be YYYY-MM-DD")
			return
		}
		to = t
	}

	rows, err := h.S.PredictionData(r.Context(), origin, dest, from, to)
	if err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Unavailable", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(rows); err != nil {
		log.Error().Err(err).Msg("failed to write prediction_data response body")
	}
}
