package rag

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/elevated-systems/greenflow/pkg/greenflow/config"
	"github.com/elevated-systems/greenflow/pkg/greenflow/metrics"
)

const (
	systemPrompt = "You are GreenFlow AI, an expert environmental monitoring assistant. " +
		"Answer questions about CO2 levels, climate risk, and environmental actions " +
		"using the context provided. Be concise, factual, and actionable. " +
		"If you are unsure, say so clearly."

	noContext = "No additional context."

	// UnavailableAnswer is returned when no language model is configured
	UnavailableAnswer = "AI service is currently unavailable. Please check your OPENAI_API_KEY or GEMINI_API_KEY."
	timeoutAnswer     = "AI service is currently unavailable: the language model did not respond in time."
	failedAnswer      = "AI service is currently unavailable: the language model request failed."
)

// Answer is the result of one question
type Answer struct {
	Answer    string   `json:"answer"`
	Sources   []string `json:"sources"`
	LatencyMS float64  `json:"latency_ms"`
	Degraded  bool     `json:"-"`
}

// Engine answers questions from retrieved knowledge plus live sensor context
type Engine struct {
	index      *Index
	cache      *RetrievalCache
	capability Capability
	timeout    time.Duration
	topK       int
}

// NewEngine creates an engine with an empty index. capability is fixed for
// the engine's lifetime.
func NewEngine(cfg config.RAGConfig, capability Capability) *Engine {
	if capability.Available() {
		klog.InfoS("Language model available", "provider", capability.Completer.Name())
	} else {
		klog.InfoS("Language model unavailable, answers will be degraded", "reason", capability.Reason)
	}
	return &Engine{
		index:      NewIndex(),
		cache:      NewRetrievalCache(cfg.CacheTTL),
		capability: capability,
		timeout:    cfg.Timeout,
		topK:       cfg.TopK,
	}
}

// Capability reports the language model state
func (e *Engine) Capability() Capability {
	return e.capability
}

// DocumentCount returns the number of indexed documents
func (e *Engine) DocumentCount() int {
	return e.index.Count()
}

// Seed indexes docs, replacing documents with the same IDs
func (e *Engine) Seed(ctx context.Context, docs []Document) error {
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.index.Upsert(doc)
	}
	e.cache.Clear()
	klog.InfoS("Knowledge base seeded", "documents", len(docs), "total", e.index.Count())
	return nil
}

// Retrieve returns the best matching documents for query
func (e *Engine) Retrieve(query string) []Match {
	// Read the generation first: matches computed while a seed is running
	// are stored under the older generation and never reused after it.
	gen := e.index.Generation()
	if matches, ok := e.cache.Get(query, e.topK, gen); ok {
		return matches
	}
	matches := e.index.Query(query, e.topK)
	e.cache.Set(query, e.topK, gen, matches)
	return matches
}

// Ask answers query. liveCO2, when set, is added to the prompt as the
// current sensor reading. Language model failures and timeouts produce a
// degraded answer, never an error.
func (e *Engine) Ask(ctx context.Context, query string, liveCO2 *float64) Answer {
	start := time.Now()
	defer func() {
		metrics.RAGQueryDuration.Observe(time.Since(start).Seconds())
	}()

	matches := e.Retrieve(query)
	sources := make([]string, 0, len(matches))
	passages := make([]string, 0, len(matches))
	for _, m := range matches {
		sources = append(sources, m.Document.ID)
		passages = append(passages, m.Document.Content)
	}

	answer := Answer{Sources: sources}
	prompt := buildPrompt(query, passages, liveCO2)

	if !e.capability.Available() {
		answer.Answer = UnavailableAnswer
		answer.Degraded = true
		metrics.RAGQueries.WithLabelValues("unavailable").Inc()
	} else {
		text, err := e.complete(ctx, prompt)
		switch {
		case err != nil && errors.Is(err, context.DeadlineExceeded):
			klog.ErrorS(err, "Language model timed out", "provider", e.capability.Completer.Name(), "timeout", e.timeout)
			answer.Answer, answer.Degraded = timeoutAnswer, true
			metrics.RAGQueries.WithLabelValues("error").Inc()
		case err != nil:
			klog.ErrorS(err, "Language model request failed", "provider", e.capability.Completer.Name())
			answer.Answer, answer.Degraded = failedAnswer, true
			metrics.RAGQueries.WithLabelValues("error").Inc()
		case strings.TrimSpace(text) == "":
			answer.Answer, answer.Degraded = UnavailableAnswer, true
			metrics.RAGQueries.WithLabelValues("error").Inc()
		default:
			answer.Answer = strings.TrimSpace(text)
			metrics.RAGQueries.WithLabelValues("answered").Inc()
		}
	}

	answer.LatencyMS = math.Round(float64(time.Since(start).Microseconds())/10) / 100
	return answer
}

// complete bounds the completer call by the engine timeout and converts
// panics into errors.
func (e *Engine) complete(ctx context.Context, prompt Prompt) (text string, err error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("completer panic: %v", r)}
			}
		}()
		t, err := e.capability.Completer.Complete(ctx, prompt)
		done <- result{text: t, err: err}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close stops background work
func (e *Engine) Close() {
	e.cache.Close()
	if c, ok := e.capability.Completer.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			klog.ErrorS(err, "Failed to close language model client")
		}
	}
}

func buildPrompt(query string, passages []string, liveCO2 *float64) Prompt {
	background := noContext
	if len(passages) > 0 {
		background = strings.Join(passages, "\n\n")
	}
	live := ""
	if liveCO2 != nil {
		live = fmt.Sprintf("\n\nLive Sensor Reading: CO2 = %.1f ppm", *liveCO2)
	}
	return Prompt{
		System: systemPrompt,
		User:   fmt.Sprintf("Context:\n%s%s\n\nQuestion: %s\n\nAnswer:", background, live, query),
	}
}
