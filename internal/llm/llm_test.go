package llm

import (
	"context"
	"errors"
	"testing"
)

// fakeProvider is a scriptable in-memory provider for router tests.
type fakeProvider struct {
	name    string
	calls   int
	content string
	err     error
}

func (f *fakeProvider) Name() string     { return f.name }
func (f *fakeProvider) Models() []string { return []string{f.name + "-model"} }
func (f *fakeProvider) Ping(ctx context.Context) error {
	return f.err
}
func (f *fakeProvider) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &Response{Content: f.content, Provider: f.name, FinishReason: FinishStop}, nil
}

func TestRouterPrimarySucceeds(t *testing.T) {
	primary := &fakeProvider{name: "openai", content: "ok"}
	backup := &fakeProvider{name: "anthropic", content: "backup"}

	r := NewRouter("openai", WithFallbacks("anthropic"))
	r.RegisterProvider(primary)
	r.RegisterProvider(backup)

	resp, err := r.Chat(context.Background(), []Message{UserMessage("hi")}, nil)
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("Content = %q, want %q", resp.Content, "ok")
	}
	if backup.calls != 0 {
		t.Errorf("fallback was called %d times, want 0", backup.calls)
	}
}

func TestRouterFallbackChain(t *testing.T) {
	primary := &fakeProvider{name: "openai", err: errors.New("boom")}
	second := &fakeProvider{name: "anthropic", err: errors.New("also boom")}
	third := &fakeProvider{name: "gemini", content: "rescued"}

	r := NewRouter("openai", WithFallbacks("anthropic", "gemini"))
	r.RegisterProvider(primary)
	r.RegisterProvider(second)
	r.RegisterProvider(third)

	resp, err := r.Chat(context.Background(), []Message{UserMessage("hi")}, nil)
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Provider != "gemini" {
		t.Errorf("Provider = %q, want gemini", resp.Provider)
	}
	if primary.calls != 1 || second.calls != 1 || third.calls != 1 {
		t.Errorf("call counts = %d/%d/%d, want 1/1/1",
			primary.calls, second.calls, third.calls)
	}
}

func TestRouterEachProviderTriedOnce(t *testing.T) {
	// maxRetries defaults to 0: one attempt per provider, no revisiting.
	p1 := &fakeProvider{name: "openai", err: errors.New("down")}
	p2 := &fakeProvider{name: "ollama", err: errors.New("down")}

	r := NewRouter("openai", WithFallbacks("ollama"))
	r.RegisterProvider(p1)
	r.RegisterProvider(p2)

	_, err := r.Chat(context.Background(), []Message{UserMessage("hi")}, nil)
	if err == nil {
		t.Fatal("Chat() expected error when all providers fail")
	}
	if p1.calls != 1 {
		t.Errorf("primary called %d times, want exactly 1", p1.calls)
	}
	if p2.calls != 1 {
		t.Errorf("fallback called %d times, want exactly 1", p2.calls)
	}
}

func TestRouterAllFailReturnsLastError(t *testing.T) {
	lastErr := errors.New("final failure")
	p1 := &fakeProvider{name: "openai", err: errors.New("first failure")}
	p2 := &fakeProvider{name: "gemini", err: lastErr}

	r := NewRouter("openai", WithFallbacks("gemini"))
	r.RegisterProvider(p1)
	r.RegisterProvider(p2)

	_, err := r.Chat(context.Background(), []Message{UserMessage("hi")}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, lastErr) {
		t.Errorf("error %v does not wrap last provider error", err)
	}
}

func TestRouterNoProviders(t *testing.T) {
	r := NewRouter("openai")
	_, err := r.Chat(context.Background(), []Message{UserMessage("hi")}, nil)
	if err == nil {
		t.Fatal("expected error with no registered providers")
	}
}

func TestRouterContextCancelled(t *testing.T) {
	p1 := &fakeProvider{name: "openai", err: errors.New("down")}
	p2 := &fakeProvider{name: "gemini", content: "never"}

	r := NewRouter("openai", WithFallbacks("gemini"))
	r.RegisterProvider(p1)
	r.RegisterProvider(p2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Chat(ctx, []Message{UserMessage("hi")}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if p2.calls != 0 {
		t.Errorf("fallback called after cancellation")
	}
}

func TestRouterSkipsPrimaryDuplicateInFallbacks(t *testing.T) {
	p := &fakeProvider{name: "openai", err: errors.New("down")}
	r := NewRouter("openai", WithFallbacks("openai"))
	r.RegisterProvider(p)

	_, _ = r.Chat(context.Background(), []Message{UserMessage("hi")}, nil)
	if p.calls != 1 {
		t.Errorf("provider called %d times, want 1 (duplicate in chain must be skipped)", p.calls)
	}
}

func TestNewProvidersRequireCredentials(t *testing.T) {
	if _, err := NewOpenAIProvider(""); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("NewOpenAIProvider(\"\") error = %v, want ErrNoAPIKey", err)
	}
	if _, err := NewAnthropicProvider(""); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("NewAnthropicProvider(\"\") error = %v, want ErrNoAPIKey", err)
	}
	if _, err := NewGeminiProvider(""); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("NewGeminiProvider(\"\") error = %v, want ErrNoAPIKey", err)
	}
	if _, err := NewOllamaProvider(""); err == nil {
		t.Error("NewOllamaProvider(\"\") expected error for empty URL")
	}
}

func TestMessageHelpers(t *testing.T) {
	if m := SystemMessage("x"); m.Role != RoleSystem {
		t.Errorf("SystemMessage role = %q", m.Role)
	}
	if m := UserMessage("x"); m.Role != RoleUser {
		t.Errorf("UserMessage role = %q", m.Role)
	}
	if m := AssistantMessage("x"); m.Role != RoleAssistant {
		t.Errorf("AssistantMessage role = %q", m.Role)
	}
}
