package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"mip/qsync/internal/alerts"
	"mip/qsync/internal/analytics"
	"mip/qsync/internal/dispatch"
	"mip/qsync/internal/enrich"
	"mip/qsync/internal/explain"
	"mip/qsync/internal/history"
	"mip/qsync/internal/model"
	"mip/qsync/internal/pipeline"
	"mip/qsync/pkg/logger"
)

// stubAnomalyModel 固定原始得分
type stubAnomalyModel struct{ score float64 }

func (m *stubAnomalyModel) DecisionFunction(vec []float64) (float64, error) {
	return m.score, nil
}

func testRouter(t *testing.T) (*gin.Engine, *history.MemoryLedger) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ledger := history.NewMemoryLedger()
	store := alerts.NewMemoryStore()

	bundle := model.Bundle{
		SpectralCols:  []string{"900", "1100"},
		ImportantCols: []string{"fat_predicted"},
	}

	p := pipeline.New(pipeline.Deps{
		Extractor:  enrich.NewFeatureExtractor(),
		Scorer:     enrich.NewQualityScorer(33.0),
		Classifier: enrich.NewRiskClassifier(enrich.DefaultThresholds()),
		Anomaly:    model.NewAnomalyScorer(&stubAnomalyModel{score: 1.5}, nil, bundle),
		Ranker:     explain.NewRanker(nil, bundle),
		ShapCache:  explain.NewCache(10),
		Engine:     alerts.NewEngine(store, logger.Nop{}),
		Aggregator: analytics.NewAggregator(),
		Ledger:     ledger,
		Dispatcher: dispatch.New("", time.Second, 0, time.Millisecond, dispatch.NewState(), logger.Nop{}),
		Latest:     pipeline.NewLatestStore(),
		Logger:     logger.Nop{},
	})

	h := NewHandler(p, analytics.NewAggregator(), store, logger.Nop{})
	return SetupRoutes(h, "qsync-test"), ledger
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const samplePayload = `{
	"inference": {
		"supplier_data": {"sample_id": "s-api-1", "supplier_id": "SUP-1", "route_id": "R-1"},
		"fat_predicted": 4.2,
		"snf": 8.6,
		"total_solids_predicted": 12.8,
		"metadata": {"900": 0.5, "1100": 0.6}
	}
}`

func TestHealth(t *testing.T) {
	r, _ := testRouter(t)
	w := doRequest(r, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestLatestBeforeAndAfterLoad(t *testing.T) {
	r, ledger := testRouter(t)

	if w := doRequest(r, http.MethodGet, "/api/v1/latest", ""); w.Code != http.StatusNotFound {
		t.Errorf("empty latest status = %d, want 404", w.Code)
	}

	if w := doRequest(r, http.MethodPost, "/api/v1/test/load-sample", samplePayload); w.Code != http.StatusOK {
		t.Fatalf("load-sample status = %d, body %s", w.Code, w.Body.String())
	}

	// 手工注入与 MQTT 接入共用同一账本
	if n, _ := ledger.Len(context.Background()); n != 1 {
		t.Errorf("ledger rows = %d, want 1", n)
	}

	w := doRequest(r, http.MethodGet, "/api/v1/latest", "")
	if w.Code != http.StatusOK {
		t.Fatalf("latest status = %d", w.Code)
	}
	var resp struct {
		Data struct {
			SampleID string `json:"sample_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode latest: %v", err)
	}
	if resp.Data.SampleID != "s-api-1" {
		t.Errorf("latest sample_id = %q", resp.Data.SampleID)
	}
}

func TestLoadSampleMalformed(t *testing.T) {
	r, _ := testRouter(t)
	if w := doRequest(r, http.MethodPost, "/api/v1/test/load-sample", `{"no_inference": true}`); w.Code != http.StatusBadRequest {
		t.Errorf("malformed load-sample status = %d, want 400", w.Code)
	}
}

func TestAlertsRecentValidation(t *testing.T) {
	r, _ := testRouter(t)
	if w := doRequest(r, http.MethodGet, "/api/v1/alerts/recent/0", ""); w.Code != http.StatusBadRequest {
		t.Errorf("n=0 status = %d, want 400", w.Code)
	}
	if w := doRequest(r, http.MethodGet, "/api/v1/alerts/recent/5", ""); w.Code != http.StatusOK {
		t.Errorf("n=5 status = %d, want 200", w.Code)
	}
}

func TestAlertsRecentReturnsFiredAlerts(t *testing.T) {
	r, _ := testRouter(t)
	doRequest(r, http.MethodPost, "/api/v1/test/load-sample", samplePayload)

	w := doRequest(r, http.MethodGet, "/api/v1/alerts/recent/10", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Data struct {
			Count int `json:"count"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode alerts: %v", err)
	}
	// 空账本快照触发 stability / route 两条低级别告警
	if resp.Data.Count != 2 {
		t.Errorf("alert count = %d, want 2", resp.Data.Count)
	}
}

func TestShapHistoryLimitValidation(t *testing.T) {
	r, _ := testRouter(t)
	if w := doRequest(r, http.MethodGet, "/api/v1/shap/history?limit=-1", ""); w.Code != http.StatusBadRequest {
		t.Errorf("limit=-1 status = %d, want 400", w.Code)
	}
	if w := doRequest(r, http.MethodGet, "/api/v1/shap/history", ""); w.Code != http.StatusOK {
		t.Errorf("no-limit status = %d, want 200", w.Code)
	}
}

func TestAnalyticsFull(t *testing.T) {
	r, _ := testRouter(t)
	doRequest(r, http.MethodPost, "/api/v1/test/load-sample", samplePayload)

	w := doRequest(r, http.MethodGet, "/api/v1/analytics/full", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Data struct {
			Suppliers map[string]any `json:"suppliers"`
			Global    struct {
				TotalSamples int `json:"total_samples"`
			} `json:"global"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if resp.Data.Global.TotalSamples != 1 {
		t.Errorf("total_samples = %d, want 1", resp.Data.Global.TotalSamples)
	}
	if _, ok := resp.Data.Suppliers["SUP-1"]; !ok {
		t.Errorf("suppliers missing SUP-1: %v", resp.Data.Suppliers)
	}
}
