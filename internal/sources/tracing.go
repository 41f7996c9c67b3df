package sources

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/edvin/coordinator/internal/relation"
)

const keyReceivers = "receivers"

// Tracing reads the announced trace receivers of one tracing endpoint. The
// coordinator holds two of these, one for coordinator-level traces and one
// for workload traces, and they stay independent.
type Tracing struct {
	logger   zerolog.Logger
	store    relation.Store
	endpoint string
}

// NewTracing creates a tracing-receiver source for one endpoint.
func NewTracing(logger zerolog.Logger, store relation.Store, endpoint string) *Tracing {
	return &Tracing{
		logger:   logger.With().Str("component", "tracing-source").Str("endpoint", endpoint).Logger(),
		store:    store,
		endpoint: endpoint,
	}
}

type receiverRecord struct {
	Protocol struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"protocol"`
	URL string `json:"url"`
}

// Receivers maps announced protocol names to their URLs. An absent relation
// or unparseable announcement yields an empty map, never an error.
func (t *Tracing) Receivers() map[string]string {
	receivers := make(map[string]string)
	for _, rel := range t.store.Relations(t.endpoint) {
		raw, ok := rel.RemoteAppData()[keyReceivers]
		if !ok {
			continue
		}
		var records []receiverRecord
		if err := json.Unmarshal([]byte(raw), &records); err != nil {
			t.logger.Warn().Err(err).Msg("skipping unparseable receivers announcement")
			continue
		}
		for _, rec := range records {
			if rec.Protocol.Name == "" || rec.URL == "" {
				continue
			}
			receivers[rec.Protocol.Name] = rec.URL
		}
	}
	return receivers
}
