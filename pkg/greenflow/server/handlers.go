package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"k8s.io/klog/v2"
	"k8s.io/utils/ptr"

	"github.com/elevated-systems/greenflow/pkg/greenflow/clock"
	"github.com/elevated-systems/greenflow/pkg/greenflow/metrics"
	"github.com/elevated-systems/greenflow/pkg/greenflow/store"
	"github.com/elevated-systems/greenflow/pkg/greenflow/types"
)

type eventRequest struct {
	Source    string   `json:"source" binding:"required,max=256"`
	CO2PPM    *float64 `json:"co2_ppm" binding:"required,gte=0"`
	Location  *string  `json:"location" binding:"omitempty,max=256"`
	Timestamp *float64 `json:"timestamp"`
}

type pageQuery struct {
	Limit  int `form:"limit,default=50" binding:"gte=1,lte=500"`
	Offset int `form:"offset,default=0" binding:"gte=0"`
}

type alertQuery struct {
	pageQuery
	Unresolved bool `form:"unresolved"`
}

type queryRequest struct {
	Query string `json:"query" binding:"required,min=3,max=2000"`
}

type riskResponse struct {
	RiskScore float64        `json:"risk_score"`
	RiskLevel types.Severity `json:"risk_level"`
	CO2PPM    float64        `json:"co2_ppm"`
	Threshold float64        `json:"threshold"`
	Message   string         `json:"message"`
}

type recommendationResponse struct {
	recommendation
	CO2Context float64 `json:"co2_context"`
}

type healthResponse struct {
	Status      string            `json:"status"`
	Version     string            `json:"version"`
	Environment string            `json:"environment"`
	Components  map[string]string `json:"components"`
}

func (s *System) health(c *gin.Context) {
	resp := healthResponse{
		Status:      "ok",
		Version:     s.cfg.App.Version,
		Environment: s.cfg.App.Environment,
		Components:  map[string]string{},
	}

	if err := s.store.Ping(c.Request.Context()); err != nil {
		resp.Components["database"] = "error: " + err.Error()
		resp.Status = "degraded"
	} else {
		resp.Components["database"] = "ok"
	}
	resp.Components["llm"] = s.engine.Capability().String()
	resp.Components["knowledge_base"] = fmt.Sprintf("%d documents", s.engine.DocumentCount())

	switch _, err := os.Stat(s.outputLog.Path()); {
	case err == nil:
		resp.Components["pipeline_output"] = "present"
	case errors.Is(err, os.ErrNotExist):
		resp.Components["pipeline_output"] = "empty"
	default:
		resp.Components["pipeline_output"] = "error: " + err.Error()
	}

	c.JSON(http.StatusOK, resp)
}

// createEvent enriches a reading and commits it together with its alerts
func (s *System) createEvent(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}

	reading := types.Reading{
		Source:    req.Source,
		Timestamp: ptr.Deref(req.Timestamp, clock.UnixSeconds(s.clock.Now())),
		CO2PPM:    *req.CO2PPM,
		Location:  req.Location,
	}
	if math.IsNaN(reading.Timestamp) || math.IsInf(reading.Timestamp, 0) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "timestamp must be a finite number"})
		return
	}
	raw, err := json.Marshal(reading)
	if err != nil {
		internalError(c, err, "Failed to encode raw payload")
		return
	}

	ctx := c.Request.Context()
	event := types.PersistedEvent{EnrichedReading: s.extractor.Enrich(reading), RawPayload: string(raw)}
	var emitted []types.Alert
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertEvent(ctx, &event); err != nil {
			return err
		}
		emitted = s.evaluator.Evaluate(event)
		return tx.InsertAlerts(ctx, emitted)
	})
	if err != nil {
		internalError(c, err, "Failed to persist event", "source", reading.Source)
		return
	}

	metrics.ReadingsIngested.WithLabelValues("api").Inc()
	metrics.ReadingsBySeverity.WithLabelValues(string(event.Severity)).Inc()
	for _, a := range emitted {
		metrics.AlertsEmitted.WithLabelValues(string(a.Type)).Inc()
	}
	klog.V(2).InfoS("Event ingested", "id", event.ID, "source", event.Source,
		"co2", event.CO2PPM, "severity", event.Severity, "alerts", len(emitted))

	c.JSON(http.StatusCreated, event)
}

func (s *System) listEvents(c *gin.Context) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		validationError(c, err)
		return
	}
	events, err := s.store.ListEvents(c.Request.Context(), q.Limit, q.Offset)
	if err != nil {
		internalError(c, err, "Failed to list events")
		return
	}
	if events == nil {
		events = []types.PersistedEvent{}
	}
	c.JSON(http.StatusOK, events)
}

func (s *System) getEvent(c *gin.Context) {
	event, ok := s.lookupEvent(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, event)
}

func (s *System) eventAlerts(c *gin.Context) {
	event, ok := s.lookupEvent(c)
	if !ok {
		return
	}
	list, err := s.store.AlertsForEvent(c.Request.Context(), event.ID)
	if err != nil {
		internalError(c, err, "Failed to list event alerts", "event", event.ID)
		return
	}
	if list == nil {
		list = []types.Alert{}
	}
	c.JSON(http.StatusOK, list)
}

// lookupEvent resolves the :id parameter, writing the error response itself
// when the event cannot be returned
func (s *System) lookupEvent(c *gin.Context) (*types.PersistedEvent, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "id must be an integer"})
		return nil, false
	}
	event, err := s.store.GetEvent(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": fmt.Sprintf("Event %d not found.", id)})
		return nil, false
	}
	if err != nil {
		internalError(c, err, "Failed to load event", "id", id)
		return nil, false
	}
	return event, true
}

func (s *System) listAlerts(c *gin.Context) {
	var q alertQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		validationError(c, err)
		return
	}
	list, err := s.store.ListAlerts(c.Request.Context(), store.AlertFilter{
		Limit:          q.Limit,
		Offset:         q.Offset,
		UnresolvedOnly: q.Unresolved,
	})
	if err != nil {
		internalError(c, err, "Failed to list alerts")
		return
	}
	if list == nil {
		list = []types.Alert{}
	}
	c.JSON(http.StatusOK, list)
}

func (s *System) risk(c *gin.Context) {
	co2, err := s.currentCO2(c.Request.Context(), riskDemoMin, riskDemoMax)
	if err != nil {
		internalError(c, err, "Failed to load latest event")
		return
	}
	severity := s.extractor.ClassifySeverity(co2)
	c.JSON(http.StatusOK, riskResponse{
		RiskScore: s.extractor.RiskScore(co2),
		RiskLevel: severity,
		CO2PPM:    co2,
		Threshold: s.extractor.Thresholds().Danger,
		Message:   riskMessages[severity],
	})
}

func (s *System) recommendation(c *gin.Context) {
	co2, err := s.currentCO2(c.Request.Context(), recommendationDemoMin, recommendationDemoMax)
	if err != nil {
		internalError(c, err, "Failed to load latest event")
		return
	}
	rec, ok := recommendations[s.extractor.ClassifySeverity(co2)]
	if !ok {
		rec = recommendations[types.SeveritySafe]
	}
	c.JSON(http.StatusOK, recommendationResponse{recommendation: rec, CO2Context: co2})
}

func (s *System) summary(c *gin.Context) {
	since := clock.UnixSeconds(s.clock.Now().Add(-24 * time.Hour))
	sum, err := s.store.Summary(c.Request.Context(), since)
	if err != nil {
		internalError(c, err, "Failed to summarize events")
		return
	}
	c.JSON(http.StatusOK, sum)
}

// query answers a question. Language model failures degrade the answer but
// never the status code.
func (s *System) query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}

	ctx := c.Request.Context()
	var liveCO2 *float64
	latest, err := s.store.LatestEvent(ctx)
	switch {
	case err == nil:
		liveCO2 = ptr.To(latest.CO2PPM)
	case !errors.Is(err, store.ErrNotFound):
		klog.ErrorS(err, "Failed to load live context for query")
	}

	answer := s.engine.Ask(ctx, req.Query, liveCO2)
	if answer.Sources == nil {
		answer.Sources = []string{}
	}

	entry := types.QueryLog{
		RequestID:   c.GetString(requestIDKey),
		Query:       req.Query,
		Answer:      answer.Answer,
		SourceCount: len(answer.Sources),
		LatencyMS:   answer.LatencyMS,
		Timestamp:   clock.UnixSeconds(s.clock.Now()),
	}
	if err := s.store.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertQueryLog(ctx, &entry)
	}); err != nil {
		klog.ErrorS(err, "Failed to log query", "requestID", entry.RequestID)
	}

	c.JSON(http.StatusOK, answer)
}

func (s *System) streamSSE(c *gin.Context) {
	r, stop := s.streamRequest(c.Request)
	defer stop()
	s.tailer.ServeSSE(c.Writer, r)
}

func (s *System) streamWebSocket(c *gin.Context) {
	r, stop := s.streamRequest(c.Request)
	defer stop()
	s.tailer.ServeWebSocket(s.upgrader, c.Writer, r)
}

// streamRequest ties a subscriber's context to server shutdown
func (s *System) streamRequest(r *http.Request) (*http.Request, func()) {
	ctx, cancel := context.WithCancel(r.Context())
	stopAfter := context.AfterFunc(s.streams, cancel)
	return r.WithContext(ctx), func() {
		stopAfter()
		cancel()
	}
}

// currentCO2 returns the latest persisted reading, or a demo value drawn
// uniformly from [lo, hi) when nothing has been persisted
func (s *System) currentCO2(ctx context.Context, lo, hi float64) (float64, error) {
	latest, err := s.store.LatestEvent(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return math.Round((lo+s.random()*(hi-lo))*100) / 100, nil
	}
	if err != nil {
		return 0, err
	}
	return latest.CO2PPM, nil
}

func internalError(c *gin.Context, err error, msg string, keysAndValues ...interface{}) {
	klog.ErrorS(err, msg, keysAndValues...)
	c.JSON(http.StatusInternalServerError, gin.H{"detail": msg})
}

func validationError(c *gin.Context, err error) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": validationDetail(err)})
}

func validationDetail(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			msgs = append(msgs, fieldMessage(fe))
		}
		return strings.Join(msgs, "; ")
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("%s has the wrong type: got %s", typeErr.Field, typeErr.Value)
	}
	var numErr *strconv.NumError
	if errors.As(err, &numErr) {
		return fmt.Sprintf("invalid value %q", numErr.Num)
	}
	if errors.Is(err, io.EOF) {
		return "request body is required"
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return "request body is not valid JSON"
	}
	return "invalid request: " + err.Error()
}

func fieldMessage(fe validator.FieldError) string {
	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s%s", fe.Field(), fe.Param(), unit)
	case "max":
		return fmt.Sprintf("%s must be at most %s%s", fe.Field(), fe.Param(), unit)
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
