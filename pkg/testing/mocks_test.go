package testing

import (
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetupMockLogger(t *testing.T) {
	logger := SetupMockLogger()

	chained := logger.WithField("epoch", 1).WithError(errors.New("boom"))
	chained.Infof("loss %f", 0.5)
	chained.Warn("careful")

	logger.AssertCalled(t, "WithField", "epoch", 1)
	logger.AssertCalled(t, "Warn", "careful")
}

func TestPerformQuery(t *testing.T) {
	var got string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query().Get("text")
		w.WriteHeader(http.StatusTeapot)
	})

	w := PerformQuery(h, "/predict", url.Values{"text": {"a b&c"}})
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "a b&c", got)
}
