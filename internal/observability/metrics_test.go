package observability

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/panbanda/cohere/pkg/analyzer"
	"github.com/panbanda/cohere/pkg/analyzer/commgraph"
	"github.com/panbanda/cohere/pkg/engine"
	"github.com/panbanda/cohere/pkg/ir"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ engine.Observer = (*Metrics)(nil)

func TestMetrics_Observer(t *testing.T) {
	m := NewMetrics()

	m.PhaseCompleted(analyzer.PhaseCollect, 20*time.Millisecond)
	m.PhaseCompleted(analyzer.PhaseCollect, 30*time.Millisecond)
	m.Diagnostics("unresolved_reference", 3)
	m.Diagnostics("unresolved_reference", 2)
	m.GraphEdges(commgraph.LevelClass, 7)
	m.GraphEdges(commgraph.LevelClass, 4)

	assert.Equal(t, 1, testutil.CollectAndCount(m.phaseDuration))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.diagnostics.WithLabelValues("unresolved_reference")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.graphEdges.WithLabelValues("class")))
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.RunFinished(nil)
	m.RunFinished(errors.New("boom"))
	m.RunFinished(nil)
	m.Loaded(3, 7)
	m.WatchBatch()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.runs.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.filesLoaded.WithLabelValues("parsed")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.filesLoaded.WithLabelValues("cache")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.watchBatches))
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.WatchBatch()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.watchBatches))
}

func TestMetrics_EngineRun(t *testing.T) {
	m := NewMetrics()
	units := []ir.Unit{{
		Path: "a.php",
		Decls: []ir.Decl{{
			Kind: ir.DeclClass,
			Name: "A",
			Methods: []ir.Method{{
				Name: "run",
				Body: []*ir.Node{{Kind: ir.NodeFuncCall, Name: "missing"}},
			}},
		}},
	}}

	_, err := engine.Analyze(context.Background(), units, engine.WithObserver(m))
	require.NoError(t, err)

	assert.Equal(t, len(analyzer.Phases), testutil.CollectAndCount(m.phaseDuration))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.diagnostics.WithLabelValues("unresolved_reference")))
}

func TestServer_Handler(t *testing.T) {
	m := NewMetrics()
	m.WatchBatch()
	s := NewServer("127.0.0.1:0", m, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cohere_watch_batches_total 1")

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"up"}`, rec.Body.String())
}

func TestServer_StartStop(t *testing.T) {
	s := NewServer("127.0.0.1:0", NewMetrics(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, s.Start())
	defer s.Stop(context.Background())

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "cohere_watch_batches_total"))
}
