package predict_client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/garr-ai/garr/pkg/constants"
	"github.com/garr-ai/garr/pkg/logging"
)

const maxErrorBody = 4096

type PredictClient struct {
	logger     logging.Interface
	Config     Config
	httpClient *http.Client
}

func NewPredictClient(config *Config, httpClient *http.Client) (*PredictClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	return &PredictClient{
		logger:     config.AnotherLogger,
		Config:     *config,
		httpClient: httpClient,
	}, nil
}

// Start sends the configured text and prints the predicted label.
func (c *PredictClient) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.Config.Timeout)
	defer cancel()

	label, err := c.Predict(ctx, c.Config.Text)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.Config.Out, "Predicted label: %d\n", label)
	return err
}

// Predict calls GET {url}/predict?text=... and returns the label.
func (c *PredictClient) Predict(ctx context.Context, text string) (int, error) {
	endpoint := strings.TrimRight(c.Config.URL, "/") + constants.PredictPath + "?" + url.Values{"text": {text}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debugf("GET %s", endpoint)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("calling %s: %w", c.Config.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return 0, fmt.Errorf("prediction failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out struct {
		PredictedLabel *int `json:"predicted_label"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decoding prediction: %w", err)
	}
	if out.PredictedLabel == nil {
		return 0, fmt.Errorf("response has no predicted_label")
	}
	return *out.PredictedLabel, nil
}
