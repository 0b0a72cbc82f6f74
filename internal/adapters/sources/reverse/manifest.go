package reverse

// endpoint describes one airline's undocumented reverse-engineered search
// endpoint: where to GET/POST, what channel-code header the upstream
// front-end sends, and whether a warm-up GET is needed before the real
// request (to pick up an anti-bot cookie or session token).
type endpoint struct {
	AirlineID   string
	URL         string
	ChannelCode string
	WarmupURL   string
	HMACKeyEnv  string
}

// manifest is a static table of known undocumented endpoints, hand
// maintained in plain Go rather than behind a rules engine or remote
// config service.
var manifest = map[string]endpoint{
	"reverse_skyline": {
		AirlineID:   "reverse_skyline",
		URL:         "https://www.skylineair.example/api/internal/v3/availability",
		ChannelCode: "WEB-US",
		WarmupURL:   "https://www.skylineair.example/booking/search",
		HMACKeyEnv:  "REVERSE_SKYLINE_HMAC_KEY",
	},
	"reverse_altura": {
		AirlineID:   "reverse_altura",
		URL:         "https://book.alturaair.example/gw/search/v2",
		ChannelCode: "MWEB",
		HMACKeyEnv:  "REVERSE_ALTURA_HMAC_KEY",
	},
}

func lookup(airlineID string) (endpoint, bool) {
	e, ok := manifest[airlineID]
	return e, ok
}

func knownAirlines() []string {
	out := make([]string, 0, len(manifest))
	for id := range manifest {
		out = append(out, id)
	}
	return out
}
