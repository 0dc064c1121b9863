package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	rr := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestCollector_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUpstream("user", 200, 30*time.Millisecond)
	c.RecordUpstream("user", 404, 10*time.Millisecond)
	c.RecordUpstream("repos", 200, 20*time.Millisecond)
	c.RecordSearch("success")
	c.RecordSearch("success")
	c.RecordSignIn("github", true)
	c.RecordSignIn("google", false)

	body := scrape(t, reg)

	assert.Contains(t, body, `explorer_upstream_requests_total{endpoint="user",status_code="404"} 1`)
	assert.Contains(t, body, `explorer_upstream_latency_seconds_count{endpoint="user"} 2`)
	assert.Contains(t, body, `explorer_searches_total{outcome="success"} 2`)
	assert.Contains(t, body, `explorer_sign_ins_total{provider="google",result="failure"} 1`)
}

func TestNop_DiscardsEverything(t *testing.T) {
	var r Recorder = Nop{}
	r.RecordUpstream("user", 200, time.Second)
	r.RecordSearch("success")
	r.RecordSignIn("github", true)
}
