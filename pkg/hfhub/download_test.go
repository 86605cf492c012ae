package hfhub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garr-ai/garr/pkg/afero"
)

func testConfig(t *testing.T, endpoint string) *Config {
	t.Helper()
	config, err := NewConfig(func(c *Config) error {
		c.Endpoint = endpoint
		c.LocalDir = "/models/gpt2"
		c.Files = []string{"config.json", "onnx/model.onnx"}
		c.RetryInterval = time.Millisecond
		c.Token = "hf_secret"
		return nil
	})
	require.NoError(t, err)
	return config
}

func TestDownloadAll(t *testing.T) {
	var flaky atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer hf_secret", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/gpt2/resolve/main/config.json":
			if flaky.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(`{"n_layer":12}`))
		case "/gpt2/resolve/main/onnx/model.onnx":
			_, _ = w.Write([]byte("onnx"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	fs := afero.NewMemMapFs()
	d := NewDownloader(testConfig(t, server.URL), fs, server.Client())

	paths, err := d.DownloadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"/models/gpt2/config.json", "/models/gpt2/onnx/model.onnx"}, paths)
	assert.Equal(t, int32(3), flaky.Load())

	data, err := afero.ReadFile(fs, "/models/gpt2/config.json")
	require.NoError(t, err)
	assert.Equal(t, `{"n_layer":12}`, string(data))
}

func TestDownload_NotRetryable(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "Repository Not Found", http.StatusUnauthorized)
	}))
	defer server.Close()

	fs := afero.NewMemMapFs()
	d := NewDownloader(testConfig(t, server.URL), fs, server.Client())

	_, err := d.Download(context.Background(), "config.json")
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	assert.Contains(t, httpErr.Error(), "Repository Not Found")
	assert.Equal(t, int32(1), calls.Load())

	ok, err := afero.Exists(fs, "/models/gpt2/config.json")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDownload_GivesUp(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	d := NewDownloader(testConfig(t, server.URL), afero.NewMemMapFs(), server.Client())
	_, err := d.Download(context.Background(), "config.json")
	assert.ErrorContains(t, err, "after 4 attempts")
	assert.Equal(t, int32(4), calls.Load())
}

func TestFileURL(t *testing.T) {
	d := NewDownloader(testConfig(t, "https://huggingface.co/"), afero.NewMemMapFs(), nil)
	assert.Equal(t, "https://huggingface.co/gpt2/resolve/main/config.json", d.FileURL("config.json"))
}

func TestConfigValidation(t *testing.T) {
	_, err := NewConfig(func(c *Config) error {
		c.Files = nil
		return nil
	})
	assert.Error(t, err)

	config, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"config.json", "model.safetensors", "vocab.json"}, config.Files)
}

func TestConfig_WithViperReplacesFiles(t *testing.T) {
	v := viper.New()
	v.Set("files", []string{"config.json"})
	v.Set("repo_id", "distilgpt2")

	config, err := NewConfig(WithViper(v))
	require.NoError(t, err)
	assert.Equal(t, []string{"config.json"}, config.Files)
	assert.Equal(t, "distilgpt2", config.RepoID)
	assert.Equal(t, "main", config.Revision)
}

func TestExponentialBackoff(t *testing.T) {
	assert.Equal(t, time.Duration(0), exponentialBackoff(0, time.Second))
	assert.Equal(t, time.Second, exponentialBackoff(1, time.Second))
	assert.Equal(t, 4*time.Second, exponentialBackoff(3, time.Second))
	assert.Equal(t, 30*time.Second, exponentialBackoff(10, time.Second))
}
