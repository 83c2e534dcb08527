package rag

import (
	"context"
	"fmt"
	"strings"

	"k8s.io/klog/v2"

	"github.com/elevated-systems/greenflow/pkg/greenflow/config"
)

// Prompt is a system instruction plus the user turn
type Prompt struct {
	System string
	User   string
}

// Completer generates an answer for a prompt using a language model
type Completer interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
	// Name identifies the provider in health output and logs
	Name() string
}

// Capability records, once at startup, whether a completer is usable
type Capability struct {
	Completer Completer // nil when unavailable
	Reason    string    // why no completer is configured
}

// Available reports whether answers can be generated
func (c Capability) Available() bool {
	return c.Completer != nil
}

func (c Capability) String() string {
	if c.Available() {
		return "available: " + c.Completer.Name()
	}
	return "unavailable: " + c.Reason
}

// NewCapability resolves the configured provider. "auto" picks OpenAI when
// its key is set, then Gemini, and otherwise leaves the capability
// unavailable. Construction errors also leave it unavailable.
func NewCapability(ctx context.Context, cfg config.RAGConfig) Capability {
	provider := strings.ToLower(cfg.Provider)
	if provider == config.ProviderAuto {
		switch {
		case cfg.OpenAI.APIKey != "":
			provider = config.ProviderOpenAI
		case cfg.Gemini.APIKey != "":
			provider = config.ProviderGemini
		default:
			return Capability{Reason: "no LLM API key configured"}
		}
	}

	switch provider {
	case config.ProviderOpenAI:
		if cfg.OpenAI.APIKey == "" {
			return Capability{Reason: "OPENAI_API_KEY not set"}
		}
		return Capability{Completer: NewOpenAICompleter(cfg)}
	case config.ProviderGemini:
		if cfg.Gemini.APIKey == "" {
			return Capability{Reason: "GEMINI_API_KEY not set"}
		}
		c, err := NewGeminiCompleter(ctx, cfg)
		if err != nil {
			klog.ErrorS(err, "Failed to create Gemini client")
			return Capability{Reason: fmt.Sprintf("gemini client error: %v", err)}
		}
		return Capability{Completer: c}
	case config.ProviderStub:
		return Capability{Completer: StubCompleter{}}
	default:
		return Capability{Reason: "LLM provider disabled"}
	}
}

// StubCompleter answers deterministically from the prompt context without
// any network access. Used for demos and offline deployments.
type StubCompleter struct{}

func (StubCompleter) Name() string { return config.ProviderStub }

func (StubCompleter) Complete(_ context.Context, prompt Prompt) (string, error) {
	passages, _, _ := strings.Cut(strings.TrimPrefix(prompt.User, "Context:\n"), "\n\nQuestion:")
	first, _, _ := strings.Cut(passages, "\n\n")
	return "Based on the GreenFlow knowledge base: " + strings.TrimSpace(first), nil
}
