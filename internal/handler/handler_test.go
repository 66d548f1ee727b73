package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"churn-predictor/internal/config"
	"churn-predictor/internal/features"
	"churn-predictor/internal/models"
	"churn-predictor/internal/repository"
	"churn-predictor/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const referenceCSV = `SeniorCitizen,MonthlyCharges,TotalCharges,gender,Partner,Dependents,PhoneService,MultipleLines,InternetService,OnlineSecurity,OnlineBackup,DeviceProtection,TechSupport,StreamingTV,StreamingMovies,Contract,PaperlessBilling,PaymentMethod,tenure
0,29.85,29.85,Female,Yes,No,No,No phone service,DSL,No,Yes,No,No,No,No,Month-to-month,Yes,Electronic check,1
0,56.95,1889.5,Male,No,No,Yes,No,DSL,Yes,No,Yes,No,No,No,One year,No,Mailed check,34
1,70.7,151.65,Female,No,No,Yes,No,Fiber optic,No,No,No,No,No,No,Month-to-month,Yes,Electronic check,2
`

type stubClassifier struct {
	err error
}

func (s *stubClassifier) FeatureNames() []string {
	return []string{"MonthlyCharges", "TotalCharges", "gender_Female", "tenure_group_1 - 12"}
}

func (s *stubClassifier) Predict(context.Context, []float64) (int, error) { return 1, s.err }

func (s *stubClassifier) PredictProba(context.Context, []float64) ([2]float64, error) {
	return [2]float64{0.2, 0.8}, s.err
}

func (s *stubClassifier) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{"model": "stub", "version": "test"}
}

type testServer struct {
	router *gin.Engine
	repo   repository.PredictionRepository
	auth   *service.AuthService
}

func newTestServer(t *testing.T, clf service.Classifier, withAdmin bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	ref, err := features.ReadReference(strings.NewReader(referenceCSV))
	require.NoError(t, err)

	ts := &testServer{}
	if withAdmin {
		db, err := repository.NewDB(config.DatabaseSQLite, filepath.Join(t.TempDir(), "predictions.db"), logger)
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		ts.repo = repository.NewPredictionRepository(db, logger)

		hash, err := service.HashPassword("s3cret")
		require.NoError(t, err)
		ts.auth = service.NewAuthService("admin", hash, "test-key", time.Hour, logger)
	}

	predictor, err := service.NewPredictor(ref, clf, ts.repo, service.Options{}, logger)
	require.NoError(t, err)

	ts.router = gin.New()
	NewHandler(predictor, ts.repo, ts.auth, logger).RegisterRoutes(ts.router)
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func validForm() url.Values {
	values := []string{
		"0", "70.35", "351.75", "Female", "Yes", "No", "Yes", "No", "Fiber optic",
		"No", "Yes", "No", "No", "No", "No", "Month-to-month", "Yes", "Electronic check", "5",
	}
	form := url.Values{}
	for i, v := range values {
		form.Set(formKey(i), v)
	}
	return form
}

func validFields() models.Fields {
	form := validForm()
	fields := models.Fields{}
	for i, name := range formFields {
		fields[name] = form.Get(formKey(i))
	}
	return fields
}

func postForm(form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func postJSON(path string, body interface{}) *http.Request {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHomePage(t *testing.T) {
	ts := newTestServer(t, &stubClassifier{}, false)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="query1"`)
	assert.Contains(t, w.Body.String(), `name="query19"`)
}

func TestSubmitFormSuccess(t *testing.T) {
	ts := newTestServer(t, &stubClassifier{}, false)

	w := ts.do(postForm(validForm()))

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "This customer is likely to be churned!!")
	assert.Contains(t, body, "Confidence: 80.00%")
	assert.Contains(t, body, `value="70.35"`)
	assert.Contains(t, body, `value="Fiber optic"`)
}

func TestSubmitFormValidationErrors(t *testing.T) {
	ts := newTestServer(t, &stubClassifier{}, false)

	form := validForm()
	form.Set("query19", "")
	form.Set("query2", "lots")

	w := ts.do(postForm(form))

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Please fix these errors: Invalid value for MonthlyCharges, tenure is required")
	assert.Contains(t, body, `value="lots"`)
	assert.Contains(t, body, `value="351.75"`)
	assert.NotContains(t, body, "Confidence")
}

func TestSubmitFormSystemError(t *testing.T) {
	ts := newTestServer(t, &stubClassifier{err: errors.New("boom")}, false)

	w := ts.do(postForm(validForm()))

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "System error: ")
	assert.Contains(t, body, "boom")
	assert.Contains(t, body, "Please try again")
	assert.NotContains(t, body, `value="70.35"`)
}

func TestPredictAPI(t *testing.T) {
	ts := newTestServer(t, &stubClassifier{}, false)

	w := ts.do(postJSON("/api/v1/predict", models.PredictRequest{Fields: validFields()}))
	require.Equal(t, http.StatusOK, w.Code)

	var out service.Outcome
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.True(t, out.Churn)
	assert.Equal(t, models.LabelChurn, out.Label)
	assert.InDelta(t, 80.0, out.Confidence, 1e-9)
	assert.NotEmpty(t, out.ID)
}

func TestPredictAPIRejects(t *testing.T) {
	ts := newTestServer(t, &stubClassifier{}, false)

	fields := validFields()
	fields["gender"] = ""
	w := ts.do(postJSON("/api/v1/predict", models.PredictRequest{Fields: fields}))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var out service.Outcome
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, []string{"gender is required"}, out.Errors)

	w = ts.do(postJSON("/api/v1/predict", map[string]string{"tenure": "5"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPredictAPIFailure(t *testing.T) {
	ts := newTestServer(t, &stubClassifier{err: errors.New("boom")}, false)

	w := ts.do(postJSON("/api/v1/predict", models.PredictRequest{Fields: validFields()}))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"prediction failed"}`, w.Body.String())
}

func TestModelInfoHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, &stubClassifier{}, false)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/model", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var info struct {
		Model    map[string]interface{} `json:"model"`
		Features []string               `json:"features"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "stub", info.Model["model"])
	assert.Equal(t, (&stubClassifier{}).FeatureNames(), info.Features)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	ts.do(postForm(validForm()))
	w = ts.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "churn_predictions_total")
}

func TestAdminRoutesDisabled(t *testing.T) {
	ts := newTestServer(t, &stubClassifier{}, false)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/v1/predictions", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(postJSON("/api/auth/login", models.LoginRequest{Username: "admin", Password: "s3cret"}))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func login(t *testing.T, ts *testServer) string {
	t.Helper()
	w := ts.do(postJSON("/api/auth/login", models.LoginRequest{Username: "admin", Password: "s3cret"}))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func adminGet(ts *testServer, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return ts.do(req)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	ts := newTestServer(t, &stubClassifier{}, true)

	w := ts.do(postJSON("/api/auth/login", models.LoginRequest{Username: "admin", Password: "nope"}))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(postJSON("/api/auth/login", map[string]string{"username": "admin"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminHistory(t *testing.T) {
	ts := newTestServer(t, &stubClassifier{}, true)

	w := ts.do(postJSON("/api/v1/predict", models.PredictRequest{Fields: validFields()}))
	require.Equal(t, http.StatusOK, w.Code)
	var out service.Outcome
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))

	assert.Equal(t, http.StatusUnauthorized, adminGet(ts, "/api/v1/predictions", "").Code)

	token := login(t, ts)

	w = adminGet(ts, "/api/v1/predictions?limit=10", token)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Predictions []models.Prediction `json:"predictions"`
		Total       int                 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Equal(t, 1, list.Total)
	assert.Equal(t, out.ID, list.Predictions[0].ID)
	assert.Equal(t, "5", list.Predictions[0].Input["tenure"])

	assert.Equal(t, http.StatusBadRequest, adminGet(ts, "/api/v1/predictions?limit=abc", token).Code)

	w = adminGet(ts, "/api/v1/predictions/"+out.ID, token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusNotFound, adminGet(ts, "/api/v1/predictions/missing", token).Code)

	w = adminGet(ts, "/api/v1/predictions/stats", token)
	require.Equal(t, http.StatusOK, w.Code)
	var stats models.PredictionStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Churned)

	w = adminGet(ts, "/api/v1/export/csv", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "id,created_at,label,churn,churn_probability,model_version,SeniorCitizen"))
	assert.True(t, strings.HasPrefix(lines[1], out.ID+","))
	assert.Contains(t, lines[1], "likely to be churned,true,0.8000,test")
}

// unnamedClassifier reports no model name.
type unnamedClassifier struct {
	stubClassifier
}

func (u *unnamedClassifier) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{"type": "remote"}
}

func TestHealthCheckModelName(t *testing.T) {
	tests := []struct {
		name string
		clf  service.Classifier
		want string
	}{
		{"named", &stubClassifier{}, "stub"},
		{"unnamed", &unnamedClassifier{}, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.clf, false)

			w := ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))
			require.Equal(t, http.StatusOK, w.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.want, body["model"])
			assert.Equal(t, "healthy", body["status"])
		})
	}
}
