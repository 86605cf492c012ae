package training_agent

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garr-ai/garr/pkg/afero"
	testingPkg "github.com/garr-ai/garr/pkg/testing"
)

type fakePutter struct {
	mu      sync.Mutex
	objects map[string]string
	fail    map[string]bool
}

func (f *fakePutter) Upload(_ context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	key := aws.ToString(input.Key)
	if f.fail[key] {
		return nil, &smithy.GenericAPIError{Code: "AccessDenied", Message: "Access Denied"}
	}
	body, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(input.Bucket)+"/"+key] = string(body)
	return &manager.UploadOutput{Key: input.Key}, nil
}

func newFakeUploader(t *testing.T, prefix string, fail ...string) (*S3Uploader, *fakePutter) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/weights/epoch_1/config.json", []byte("{}"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/weights/epoch_1/model.safetensors", []byte("weights"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/weights/metrics.json", []byte("[]"), 0o644))

	putter := &fakePutter{objects: map[string]string{}, fail: map[string]bool{}}
	for _, key := range fail {
		putter.fail[key] = true
	}
	config := UploadConfig{Bucket: "garr-models", Prefix: prefix, Timeout: time.Minute}
	return newS3Uploader(fs, config, putter, testingPkg.SetupMockLogger()), putter
}

func TestS3Uploader_Key(t *testing.T) {
	u, _ := newFakeUploader(t, "/runs/")
	assert.Equal(t, "runs/epoch_1/config.json", u.Key("epoch_1/config.json"))

	u, _ = newFakeUploader(t, "")
	assert.Equal(t, "metrics.json", u.Key("metrics.json"))
}

func TestS3Uploader_UploadDir(t *testing.T) {
	u, putter := newFakeUploader(t, "runs")

	require.NoError(t, u.UploadDir(context.Background(), "/weights/epoch_1", "epoch_1"))
	require.NoError(t, u.UploadFile(context.Background(), "/weights/metrics.json", "metrics.json"))

	keys := make([]string, 0, len(putter.objects))
	for k := range putter.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{
		"garr-models/runs/epoch_1/config.json",
		"garr-models/runs/epoch_1/model.safetensors",
		"garr-models/runs/metrics.json",
	}, keys)
	assert.Equal(t, "weights", putter.objects["garr-models/runs/epoch_1/model.safetensors"])
}

func TestS3Uploader_UploadDirAggregatesErrors(t *testing.T) {
	u, putter := newFakeUploader(t, "runs", "runs/epoch_1/config.json", "runs/epoch_1/model.safetensors")

	err := u.UploadDir(context.Background(), "/weights/epoch_1", "epoch_1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 errors occurred")
	assert.Contains(t, err.Error(), "runs/epoch_1/config.json")
	assert.Contains(t, err.Error(), "runs/epoch_1/model.safetensors")
	assert.Contains(t, err.Error(), "access denied")
	assert.Empty(t, putter.objects)

	var apiErr smithy.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "AccessDenied", apiErr.ErrorCode())
}

func TestS3Uploader_MissingSource(t *testing.T) {
	u, _ := newFakeUploader(t, "runs")

	assert.Error(t, u.UploadFile(context.Background(), "/weights/nope.json", "nope.json"))
	assert.Error(t, u.UploadDir(context.Background(), "/nope", "nope"))
}

func TestWrapUploadError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "missing bucket",
			err:  &smithy.GenericAPIError{Code: "NoSuchBucket", Message: "gone"},
			want: "uploading: bucket not found: api error NoSuchBucket: gone",
		},
		{
			name: "access denied",
			err:  &smithy.GenericAPIError{Code: "AccessDenied", Message: "Access Denied"},
			want: "uploading: access denied: api error AccessDenied: Access Denied",
		},
		{
			name: "other api error",
			err:  &smithy.GenericAPIError{Code: "SlowDown", Message: "reduce rate"},
			want: "uploading: SlowDown: api error SlowDown: reduce rate",
		},
		{
			name: "transport error",
			err:  errors.New("connection reset"),
			want: "uploading: connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrapUploadError(tt.err, "uploading")
			assert.EqualError(t, err, tt.want)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
