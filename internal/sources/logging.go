package sources

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/edvin/coordinator/internal/relation"
)

const keyLogEndpoint = "endpoint"

// Logging collects Loki push endpoints from the logging endpoint's relation
// data.
type Logging struct {
	logger   zerolog.Logger
	store    relation.Store
	endpoint string
}

// NewLogging creates the log-endpoint source.
func NewLogging(logger zerolog.Logger, store relation.Store, endpoint string) *Logging {
	return &Logging{
		logger:   logger.With().Str("component", "logging-source").Logger(),
		store:    store,
		endpoint: endpoint,
	}
}

// EndpointsByUnit maps each remote unit to its push URL. Units whose
// relation data lacks an endpoint field, or whose endpoint fails to parse,
// are skipped; collection never fails as a whole.
func (l *Logging) EndpointsByUnit() map[string]string {
	endpoints := make(map[string]string)
	for _, rel := range l.store.Relations(l.endpoint) {
		for _, unit := range rel.RemoteUnits() {
			raw, ok := rel.RemoteUnitData(unit)[keyLogEndpoint]
			if !ok {
				continue
			}
			var parsed struct {
				URL string `json:"url"`
			}
			if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
				l.logger.Warn().Err(err).Str("unit", unit).Msg("skipping unparseable log endpoint")
				continue
			}
			endpoints[unit] = parsed.URL
		}
	}
	return endpoints
}
