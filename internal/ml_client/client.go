package ml_client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a client for a model service hosting the trained estimator.
type Client struct {
	baseURL    string
	httpClient *http.Client
	info       *ModelInfo
}

// PredictRequest carries one aligned feature row.
type PredictRequest struct {
	Features []float64 `json:"features"`
}

// PredictResponse is the estimator output for one row.
type PredictResponse struct {
	Prediction    int       `json:"prediction"`
	Probabilities []float64 `json:"probabilities"`
}

// ModelInfo describes the model behind the service.
type ModelInfo struct {
	ServiceName  string   `json:"service_name"`
	Model        string   `json:"model"`
	Version      string   `json:"version"`
	FeatureNames []string `json:"feature_names"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Message     string `json:"message"`
}

// NewClient creates a new model service client
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Connect fetches the model description once. The feature list it returns
// is fixed for the lifetime of the client.
func (c *Client) Connect(ctx context.Context) error {
	info, err := c.FetchModelInfo(ctx)
	if err != nil {
		return err
	}
	if len(info.FeatureNames) == 0 {
		return errors.New("model service declares no features")
	}
	c.info = info
	return nil
}

// FeatureNames returns the expected columns reported at Connect.
func (c *Client) FeatureNames() []string {
	if c.info == nil {
		return nil
	}
	return append([]string(nil), c.info.FeatureNames...)
}

// Predict returns the predicted class of a row.
func (c *Client) Predict(ctx context.Context, row []float64) (int, error) {
	label, _, err := c.Score(ctx, row)
	return label, err
}

// PredictProba returns [P(class 0), P(class 1)] for a row.
func (c *Client) PredictProba(ctx context.Context, row []float64) ([2]float64, error) {
	_, proba, err := c.Score(ctx, row)
	return proba, err
}

// Score returns the class and probabilities of a row from one request.
func (c *Client) Score(ctx context.Context, row []float64) (int, [2]float64, error) {
	resp, err := c.score(ctx, row)
	if err != nil {
		return 0, [2]float64{}, err
	}
	if len(resp.Probabilities) != 2 {
		return 0, [2]float64{}, fmt.Errorf("model service returned %d probabilities, want 2", len(resp.Probabilities))
	}
	return resp.Prediction, [2]float64{resp.Probabilities[0], resp.Probabilities[1]}, nil
}

func (c *Client) score(ctx context.Context, row []float64) (*PredictResponse, error) {
	jsonData, err := json.Marshal(PredictRequest{Features: row})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/predict", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	var result PredictResponse
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// HealthCheck checks if the model service is healthy
func (c *Client) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/v1/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var result HealthResponse
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FetchModelInfo retrieves information about the loaded model
func (c *Client) FetchModelInfo(ctx context.Context) (*ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/v1/model/info", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var result ModelInfo
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetModelInfo describes the connected model.
func (c *Client) GetModelInfo() map[string]interface{} {
	info := map[string]interface{}{
		"type": "remote",
		"url":  c.baseURL,
	}
	if c.info != nil {
		info["model"] = c.info.Model
		info["version"] = c.info.Version
		info["features"] = len(c.info.FeatureNames)
	}
	return info
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("model service returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
