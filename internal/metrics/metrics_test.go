package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorsRegistered(t *testing.T) {
	LexiconWords.Set(42)
	if got := testutil.ToFloat64(LexiconWords); got != 42 {
		t.Fatalf("LexiconWords = %v, want 42", got)
	}

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := rec.Body.String()
	for _, name := range []string{
		"whisper_moderation_lexicon_words 42",
		"whisper_moderation_preview_connections",
		"whisper_moderation_mutes_total",
		"whisper_moderation_audit_failures_total",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %q", name)
		}
	}
}

func TestChecksTotalLabels(t *testing.T) {
	before := testutil.ToFloat64(ChecksTotal.WithLabelValues(OutcomeRateLimited))
	ChecksTotal.WithLabelValues(OutcomeRateLimited).Inc()
	if got := testutil.ToFloat64(ChecksTotal.WithLabelValues(OutcomeRateLimited)); got != before+1 {
		t.Errorf("rate_limited = %v, want %v", got, before+1)
	}
}
