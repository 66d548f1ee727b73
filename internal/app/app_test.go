package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"churn-predictor/internal/config"
	"churn-predictor/internal/model"
	"churn-predictor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const referenceCSV = `SeniorCitizen,MonthlyCharges,TotalCharges,gender,Partner,Dependents,PhoneService,MultipleLines,InternetService,OnlineSecurity,OnlineBackup,DeviceProtection,TechSupport,StreamingTV,StreamingMovies,Contract,PaperlessBilling,PaymentMethod,tenure
0,29.85,29.85,Female,Yes,No,No,No phone service,DSL,No,Yes,No,No,No,No,Month-to-month,Yes,Electronic check,1
0,56.95,1889.5,Male,No,No,Yes,No,DSL,Yes,No,Yes,No,No,No,One year,No,Mailed check,34
`

var featureNames = []string{"MonthlyCharges", "Contract_Month-to-month", "tenure_group_1 - 12"}

func writeFixtures(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	refPath := filepath.Join(dir, "reference.csv")
	require.NoError(t, os.WriteFile(refPath, []byte(referenceCSV), 0644))

	artifact, err := json.Marshal(model.Artifact{
		Name:         "churn-logreg",
		Version:      "2024.1",
		FeatureNames: featureNames,
		Coefficients: []float64{0.01, 1.2, 0.9},
		Intercept:    -2,
	})
	require.NoError(t, err)
	modelPath := filepath.Join(dir, "model.json")
	require.NoError(t, os.WriteFile(modelPath, artifact, 0644))

	cfg := config.Default()
	cfg.Data.ReferencePath = refPath
	cfg.Model.Path = modelPath
	cfg.Database.Path = filepath.Join(dir, "db", "predictions.db")
	return cfg
}

func customer() models.Fields {
	return models.Fields{
		"MonthlyCharges": "70.35", "TotalCharges": "351.75", "tenure": "5",
		"gender": "Female", "Partner": "Yes", "Dependents": "No",
		"PhoneService": "Yes", "MultipleLines": "No", "InternetService": "DSL",
		"OnlineSecurity": "No", "OnlineBackup": "Yes", "DeviceProtection": "No",
		"TechSupport": "No", "StreamingTV": "No", "StreamingMovies": "No",
		"Contract": "Month-to-month", "PaperlessBilling": "Yes",
		"PaymentMethod": "Electronic check",
	}
}

func TestBuildWithArtifactAndHistory(t *testing.T) {
	cfg := writeFixtures(t)

	c, err := Build(context.Background(), cfg, true, zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	require.NotNil(t, c.Repo)
	assert.Equal(t, featureNames, c.Predictor.Features())
	assert.Equal(t, 2, c.Reference.Len())

	out, err := c.Predictor.Predict(context.Background(), customer())
	require.NoError(t, err)
	require.False(t, out.Rejected())
	// z = -2 + 0.7035 + 1.2 + 0.9 > 0
	assert.True(t, out.Churn)
	assert.Greater(t, out.Confidence, 50.0)

	saved, err := c.Repo.Get(context.Background(), out.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024.1", saved.ModelVersion)
}

func TestBuildWithoutHistory(t *testing.T) {
	cfg := writeFixtures(t)

	c, err := Build(context.Background(), cfg, false, zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	assert.Nil(t, c.DB)
	assert.Nil(t, c.Repo)
}

func TestBuildFailsWithoutReference(t *testing.T) {
	cfg := writeFixtures(t)
	cfg.Data.ReferencePath = filepath.Join(t.TempDir(), "missing.csv")

	_, err := Build(context.Background(), cfg, false, zap.NewNop())
	assert.Error(t, err)
}

func TestBuildFailsWithoutModel(t *testing.T) {
	cfg := writeFixtures(t)
	cfg.Model.Path = filepath.Join(t.TempDir(), "missing.json")

	_, err := Build(context.Background(), cfg, false, zap.NewNop())
	assert.Error(t, err)
}

func TestNewClassifierRemote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"service_name":  "model-service",
			"model":         "rf",
			"version":       "1",
			"feature_names": featureNames,
		})
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Model.Type = config.ModelRemote
	cfg.Model.URL = server.URL

	clf, err := NewClassifier(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, featureNames, clf.FeatureNames())
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"console", "json"} {
		logger, err := NewLogger(format)
		require.NoError(t, err)
		assert.NotNil(t, logger)
	}
}
