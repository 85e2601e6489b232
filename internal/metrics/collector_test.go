package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func render(c *Collector) string {
	w := httptest.NewRecorder()
	c.Handler()(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return w.Body.String()
}

func TestCounterAndGauge(t *testing.T) {
	c := NewCollector()

	ctr := c.Counter("test_requests_total", "Requests", "")
	ctr.Inc()
	ctr.Add(4)
	if ctr.Value() != 5 {
		t.Fatalf("counter = %d", ctr.Value())
	}

	g := c.Gauge("test_connections", "Connections", "")
	g.Inc()
	g.Inc()
	g.Dec()
	if g.Value() != 1 {
		t.Fatalf("gauge = %d", g.Value())
	}
	g.Set(42)
	if g.Value() != 42 {
		t.Fatalf("gauge after set = %d", g.Value())
	}

	out := render(c)
	for _, want := range []string{
		"# TYPE test_requests_total counter",
		"test_requests_total 5",
		"# TYPE test_connections gauge",
		"test_connections 42",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCounterRegistrationIsIdempotent(t *testing.T) {
	c := NewCollector()
	a := c.Counter("test_total", "help", "")
	b := c.Counter("test_total", "help", "")
	if a != b {
		t.Fatal("same name and labels should return the same counter")
	}
	labeled := c.Counter("test_total", "help", `agent="x"`)
	if labeled == a {
		t.Fatal("different labels should return a distinct counter")
	}
}

func TestLabeledCounterRendering(t *testing.T) {
	c := NewCollector()
	c.Counter("test_agent_total", "Per agent", `agent="InventoryAgent"`).Add(3)
	c.Counter("test_agent_total", "Per agent", `agent="LessonPlanAgent"`).Inc()

	out := render(c)
	if !strings.Contains(out, `test_agent_total{agent="InventoryAgent"} 3`) {
		t.Fatalf("output:\n%s", out)
	}
	if !strings.Contains(out, `test_agent_total{agent="LessonPlanAgent"} 1`) {
		t.Fatalf("output:\n%s", out)
	}
	// One HELP/TYPE block for the shared metric name.
	if strings.Count(out, "# TYPE test_agent_total counter") != 1 {
		t.Fatalf("duplicated TYPE lines:\n%s", out)
	}
}

func TestHistogramBuckets(t *testing.T) {
	c := NewCollector()
	h := c.Histogram("test_latency_seconds", "Latency", "", []float64{0.5, 1, 5})

	for _, v := range []float64{0.2, 0.7, 0.9, 3, 10} {
		h.Observe(v)
	}

	out := render(c)
	for _, want := range []string{
		`test_latency_seconds_bucket{le="0.5"} 1`,
		`test_latency_seconds_bucket{le="1"} 3`,
		`test_latency_seconds_bucket{le="5"} 4`,
		"test_latency_seconds_count 5",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "test_latency_seconds_sum 14.8") {
		t.Fatalf("sum missing:\n%s", out)
	}
}

func TestHandlerReportsUptime(t *testing.T) {
	out := render(NewCollector())
	if !strings.Contains(out, "stemchat_uptime_seconds") {
		t.Fatalf("uptime missing:\n%s", out)
	}
}

func TestPredefinedMetricsRegistered(t *testing.T) {
	if MessagesTotal == nil || BotRepliesTotal == nil || FallbackTotal == nil || WSConnections == nil || RouteLatency == nil {
		t.Fatal("predefined metrics not initialized")
	}
	a := AgentExecutions("InventoryAgent")
	b := AgentExecutions("InventoryAgent")
	if a != b {
		t.Fatal("per-agent counter not stable across calls")
	}
}
