package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/balance-indicators/internal/domain"
	infra "github.com/dvloznov/balance-indicators/internal/infra/inmemory"
	"github.com/dvloznov/balance-indicators/internal/jobs"
	jobstore "github.com/dvloznov/balance-indicators/internal/jobs/inmemory"
	"github.com/dvloznov/balance-indicators/internal/logger"
	"github.com/dvloznov/balance-indicators/internal/metrics"
	"github.com/dvloznov/balance-indicators/internal/pipeline"
	"github.com/dvloznov/balance-indicators/internal/report"
	"github.com/dvloznov/balance-indicators/internal/worker"
)

const julyUpload = "Balancete\nEmpresa\nPeriodo\n1.1;Ativo Circulante;10.000,00\n2.1;Passivo Circulante;5.000,00\n1.1.1;Caixa;2.500,00\n"

type testServer struct {
	handler http.Handler
	store   *jobstore.Store
}

func newTestServer(t *testing.T, repo pipeline.RecordRepository) *testServer {
	t.Helper()

	log := logger.NewWithWriter(io.Discard)
	m := metrics.New()
	svc := pipeline.NewService(repo, pipeline.Options{Metrics: m})

	store := jobstore.NewStore()
	queue := jobstore.NewQueue(10, store)
	require.NoError(t, queue.Start(context.Background(), worker.NewHandler(svc, time.Minute)))
	t.Cleanup(func() { _ = queue.Close() })

	return &testServer{
		handler: NewRouter(Deps{
			Read:          svc,
			Publisher:     queue,
			Jobs:          store,
			Metrics:       m.Handler(),
			MaxUpload:     1 << 20,
			DefaultLayout: "upload",
			Log:           log,
		}),
		store: store,
	}
}

func (s *testServer) do(t *testing.T, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) awaitJob(t *testing.T, rec *httptest.ResponseRecorder) *jobs.ActionJob {
	t.Helper()
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var accepted map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	jobID := accepted["job_id"]
	require.NotEmpty(t, jobID)

	var job *jobs.ActionJob
	require.Eventually(t, func() bool {
		got := s.do(t, http.MethodGet, "/api/jobs/"+jobID, nil, "")
		if got.Code != http.StatusOK {
			return false
		}
		job = &jobs.ActionJob{}
		if err := json.Unmarshal(got.Body.Bytes(), job); err != nil {
			return false
		}
		return job.Status == jobs.JobStatusCompleted || job.Status == jobs.JobStatusFailed
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestUploadThenIndicators(t *testing.T) {
	s := newTestServer(t, infra.NewRecordRepository())

	job := s.awaitJob(t, s.do(t, http.MethodPost, "/api/uploads?period=julho", strings.NewReader(julyUpload), "text/csv"))
	assert.Equal(t, jobs.JobStatusCompleted, job.Status)
	assert.Equal(t, 3, job.RowsStored)
	assert.Equal(t, string(domain.PeriodJuly), job.Period)

	rec := s.do(t, http.MethodGet, "/api/indicators", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var d report.Dashboard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	require.Len(t, d.Ratios, 1)
	assert.True(t, decimal.NewFromInt(2).Equal(d.Ratios[0].CurrentRatio), d.Ratios[0].CurrentRatio.String())
	assert.True(t, decimal.NewFromInt(1).Equal(d.Ratios[0].DebtRatio))
	assert.Len(t, d.Indicators, 5)
	assert.Len(t, d.Liquidity, 3)
}

func TestUpload_Multipart(t *testing.T) {
	s := newTestServer(t, infra.NewRecordRepository())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "agosto.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(julyUpload))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	job := s.awaitJob(t, s.do(t, http.MethodPost, "/api/uploads?period=AUGUST", &body, mw.FormDataContentType()))
	assert.Equal(t, jobs.JobStatusCompleted, job.Status)
	assert.Equal(t, "agosto.csv", job.Filename)
}

func TestUpload_Rejections(t *testing.T) {
	s := newTestServer(t, infra.NewRecordRepository())

	tests := []struct {
		name   string
		target string
		body   string
		status int
	}{
		{"missing period", "/api/uploads", julyUpload, http.StatusBadRequest},
		{"unknown period", "/api/uploads?period=MARCH", julyUpload, http.StatusBadRequest},
		{"unknown layout", "/api/uploads?period=JULY&layout=xml", julyUpload, http.StatusBadRequest},
		{"empty body", "/api/uploads?period=JULY", "  \n", http.StatusBadRequest},
		{"too few columns", "/api/uploads?period=JULY", "a\nb\nc\nconta;1,00\n", http.StatusBadRequest},
		{"no valid rows", "/api/uploads?period=JULY", "a\nb\nc\n1;;1,00\n2;caixa;abc\n", http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, tt.target, strings.NewReader(tt.body), "text/csv")
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.NotEmpty(t, errorMessage(t, rec))
		})
	}

	rec := s.do(t, http.MethodGet, "/api/jobs", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":0`)
}

func TestUpload_StaticLayoutNeedsNoPeriod(t *testing.T) {
	s := newTestServer(t, infra.NewRecordRepository())

	body := "account;value;period\nativo circulante;100,00;JULY\npassivo circulante;50,00;AUGUST\n"
	job := s.awaitJob(t, s.do(t, http.MethodPost, "/api/uploads?layout=static", strings.NewReader(body), "text/csv"))
	assert.Equal(t, jobs.JobStatusCompleted, job.Status)
	assert.Equal(t, 2, job.RowsStored)
}

func TestIngest(t *testing.T) {
	s := newTestServer(t, infra.NewRecordRepository())

	rejected := []string{
		`not json`,
		`{"period": "JULY"}`,
		`{"gcs_uri": "https://example.com/a.csv", "period": "JULY"}`,
		`{"gcs_uri": "gs://bucket/a.csv", "period": "MARCH"}`,
		`{"gcs_uri": "gs://bucket/a.csv", "period": "JULY", "layout": "pdf"}`,
	}
	for _, body := range rejected {
		rec := s.do(t, http.MethodPost, "/api/ingest", strings.NewReader(body), "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	// No storage is configured, so the queued job fails in the worker.
	rec := s.do(t, http.MethodPost, "/api/ingest", strings.NewReader(`{"gcs_uri": "gs://bucket/a.csv", "period": "agosto"}`), "application/json")
	job := s.awaitJob(t, rec)
	assert.Equal(t, jobs.JobTypeIngest, job.Type)
	assert.Equal(t, "AUGUST", job.Period)
	assert.Equal(t, "gs://bucket/a.csv", job.GCSURI)
	assert.Equal(t, jobs.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "no storage service configured")
}

func TestRecords_DistinctAndDelete(t *testing.T) {
	s := newTestServer(t, infra.NewRecordRepository())

	for i := 0; i < 2; i++ {
		s.awaitJob(t, s.do(t, http.MethodPost, "/api/uploads?period=JULY", strings.NewReader(julyUpload), "text/csv"))
	}

	var list struct {
		Records []domain.AccountRecord `json:"records"`
		Count   int                    `json:"count"`
	}

	rec := s.do(t, http.MethodGet, "/api/records", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 6, list.Count)

	rec = s.do(t, http.MethodGet, "/api/records?distinct=true", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 3, list.Count)

	rec = s.do(t, http.MethodGet, "/api/records?distinct=maybe", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	job := s.awaitJob(t, s.do(t, http.MethodDelete, "/api/records", nil, ""))
	assert.Equal(t, jobs.JobStatusCompleted, job.Status)
	assert.Equal(t, jobs.JobTypeDeleteAll, job.Type)

	rec = s.do(t, http.MethodGet, "/api/records", nil, "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 0, list.Count)
	assert.NotNil(t, list.Records)
}

func TestComposition(t *testing.T) {
	s := newTestServer(t, infra.NewRecordRepository())
	s.awaitJob(t, s.do(t, http.MethodPost, "/api/uploads?period=JULY", strings.NewReader(julyUpload), "text/csv"))

	rec := s.do(t, http.MethodGet, "/api/composition?period=JULY", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"account":"caixa"`)

	rec = s.do(t, http.MethodGet, "/api/composition", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWorkbookDownload(t *testing.T) {
	s := newTestServer(t, infra.NewRecordRepository())
	s.awaitJob(t, s.do(t, http.MethodPost, "/api/uploads?period=JULY", strings.NewReader(julyUpload), "text/csv"))

	rec := s.do(t, http.MethodGet, "/api/indicators.xlsx", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "indicators.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue(report.SheetIndicators, "A2")
	require.NoError(t, err)
	assert.Equal(t, "JULY", v)
}

type failingRepo struct{}

func (failingRepo) AppendRecords(context.Context, []domain.AccountRecord) error {
	return errors.New("unavailable")
}

func (failingRepo) FetchAllRecords(context.Context) ([]domain.AccountRecord, error) {
	return nil, errors.New("unavailable")
}

func (failingRepo) DeleteAllRecords(context.Context) error {
	return errors.New("unavailable")
}

func TestBackendFailures(t *testing.T) {
	s := newTestServer(t, failingRepo{})

	for _, target := range []string{"/api/records", "/api/indicators", "/api/indicators.xlsx", "/api/composition?period=JULY"} {
		rec := s.do(t, http.MethodGet, target, nil, "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code, target)
	}

	job := s.awaitJob(t, s.do(t, http.MethodPost, "/api/uploads?period=JULY", strings.NewReader(julyUpload), "text/csv"))
	assert.Equal(t, jobs.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "unavailable")

	job = s.awaitJob(t, s.do(t, http.MethodDelete, "/api/records", nil, ""))
	assert.Equal(t, jobs.JobStatusFailed, job.Status)
}

func TestJobs_NotFound(t *testing.T) {
	s := newTestServer(t, infra.NewRecordRepository())

	rec := s.do(t, http.MethodGet, "/api/jobs/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Job not found", errorMessage(t, rec))
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, infra.NewRecordRepository())

	rec := s.do(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	s.awaitJob(t, s.do(t, http.MethodPost, "/api/uploads?period=JULY", strings.NewReader(julyUpload), "text/csv"))

	rec = s.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "balance_uploads_total")
}

func TestRouting(t *testing.T) {
	s := newTestServer(t, infra.NewRecordRepository())

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/unknown", nil, "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, s.do(t, http.MethodPut, "/api/records", nil, "").Code)
}
