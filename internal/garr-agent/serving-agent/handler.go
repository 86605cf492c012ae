package serving_agent

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/garr-ai/garr/pkg/logging/ginlog"
)

// PredictRequest is bound from the query string.
type PredictRequest struct {
	Text string `form:"text" binding:"required"`
}

type PredictResponse struct {
	PredictedLabel int `json:"predicted_label"`
}

// ValidationError is one entry of a 422 response body.
type ValidationError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

type ValidationErrorResponse struct {
	Detail []ValidationError `json:"detail"`
}

// PredictHandler serves GET /predict.
type PredictHandler struct {
	predictor *Predictor
	metrics   *Metrics
}

func NewPredictHandler(predictor *Predictor, metrics *Metrics) *PredictHandler {
	return &PredictHandler{
		predictor: predictor,
		metrics:   metrics,
	}
}

// Predict handles GET /predict?text=...
func (h *PredictHandler) Predict(c *gin.Context) {
	start := time.Now()
	defer func() {
		// a panic is answered 500 by gin.Recovery after this has run
		if r := recover(); r != nil {
			h.metrics.observeRequest(strconv.Itoa(http.StatusInternalServerError), time.Since(start).Seconds())
			panic(r)
		}
		h.metrics.observeRequest(strconv.Itoa(c.Writer.Status()), time.Since(start).Seconds())
	}()

	var req PredictRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, ValidationErrorResponse{Detail: validationDetail(err)})
		return
	}

	label, err := h.predictor.Predict(c.Request.Context(), req.Text)
	if err != nil {
		ginlog.GetRequestLogger(c).Error("prediction failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	h.metrics.observeLabel(h.predictor.LabelName(label))
	c.JSON(http.StatusOK, PredictResponse{PredictedLabel: label})
}

func validationDetail(err error) []ValidationError {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return []ValidationError{{Loc: []string{"query"}, Msg: err.Error(), Type: "value_error"}}
	}

	detail := make([]ValidationError, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		ve := ValidationError{
			Loc:  []string{"query", strings.ToLower(fe.Field())},
			Msg:  fe.Error(),
			Type: "value_error." + fe.Tag(),
		}
		if fe.Tag() == "required" {
			ve.Msg = "field required"
			ve.Type = "value_error.missing"
		}
		detail = append(detail, ve)
	}
	return detail
}

// HealthHandler serves GET /healthz. The router only exists once the
// predictor is loaded, so reaching it means the service is ready.
type HealthHandler struct {
	predictor *Predictor
}

func NewHealthHandler(predictor *Predictor) *HealthHandler {
	return &HealthHandler{predictor: predictor}
}

type HealthStatus struct {
	Status    string `json:"status"`
	Device    string `json:"device"`
	MaxLength int    `json:"max_length"`
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthStatus{
		Status:    "ok",
		Device:    h.predictor.Device(),
		MaxLength: h.predictor.MaxLength(),
	})
}
