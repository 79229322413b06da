package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerExposesCollectors(t *testing.T) {
	TextsTotal.WithLabelValues("accessibility").Inc()
	ParseTotal.WithLabelValues("uber_reject", "assessed").Inc()
	DuplicatesTotal.Inc()
	RecommendationsTotal.WithLabelValues("accept").Inc()
	OverlayClients.Set(2)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	for _, want := range []string{
		`copilot_texts_total{source="accessibility"}`,
		`copilot_parse_total{format="uber_reject",outcome="assessed"}`,
		"copilot_duplicates_total",
		`copilot_recommendations_total{level="accept"}`,
		"copilot_overlay_clients 2",
		"copilot_pipeline_seconds_bucket",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}
