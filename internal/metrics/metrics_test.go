package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestObserversAreNoOpsBeforeInit(t *testing.T) {
	// Must not panic even when Init has not run in this process yet.
	ObserveUnit("home", "desktop", "succeeded")
	SetCoverage("home", "desktop", 42.5)
	ObserveRunDuration(time.Second)
	IncActiveScans()
	DecActiveScans()
	ObserveDiscoveredPages("marketing", 3)
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	ObserveUnit("home", "desktop", "succeeded")
	ObserveUnit("home", "mobile", "failed")
	SetCoverage("home", "desktop", 42.5)
	ObserveRunDuration(90 * time.Second)
	IncActiveScans()
	DecActiveScans()
	ObserveDiscoveredPages("marketing", 2)
	ObserveDiscoveredPages("marketing", 0)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, "tplscan_units_total"))
	require.True(t, strings.Contains(body, "tplscan_coverage_percent"))
	require.True(t, strings.Contains(body, "tplscan_run_duration_seconds"))
	require.True(t, strings.Contains(body, "tplscan_active_runs"))
	require.True(t, strings.Contains(body, "tplscan_discovered_pages_total"))
}
