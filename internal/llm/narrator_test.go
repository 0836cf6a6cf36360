package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/strata/internal/cache"
	"github.com/ppiankov/strata/internal/model"
	"github.com/ppiankov/strata/internal/worker"
	"github.com/spf13/afero"
)

// MockProvider answers from a function and counts calls
type MockProvider struct {
	mu    sync.Mutex
	calls int
	reply func(call int, req CompletionRequest) (string, error)
}

func (m *MockProvider) Name() string     { return "mock" }
func (m *MockProvider) Model() string    { return "mock-1" }
func (m *MockProvider) Endpoint() string { return "http://mock.local" }

func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.mu.Unlock()

	text, err := m.reply(call, req)
	if err != nil {
		return nil, err
	}
	return &CompletionResponse{Text: text, Model: "mock-1"}, nil
}

func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func testSummaries() []model.StratumSummary {
	return []model.StratumSummary{
		{StratumID: "adults", Label: "Adults", UniqueStudies: 4, YearRange: "2015-2020", TopTreatment: "cbt"},
		{StratumID: "older_adults_diabetes", Label: "Older Adults / Diabetes", UniqueStudies: 9, TopTreatment: "medication"},
		{StratumID: "female", Label: "Female", UniqueStudies: 4, TopTreatment: "exercise"},
		{StratumID: "children", Label: "Children", UniqueStudies: 1},
	}
}

func fastOptions() NarratorOptions {
	return NarratorOptions{
		Workers:       3,
		TopStrata:     3,
		RetryAttempts: 3,
		RetryBase:     time.Millisecond,
		RetryMax:      2 * time.Millisecond,
	}
}

func echoStratum(call int, req CompletionRequest) (string, error) {
	if strings.HasPrefix(req.Prompt, "Compare") {
		return "comparison", nil
	}
	line := strings.SplitN(req.Prompt, "\n", 4)[2]
	return "insight for " + strings.Fields(line)[2], nil
}

func TestNarrator_Generate(t *testing.T) {
	provider := &MockProvider{reply: echoStratum}
	n := NewNarrator(provider, fastOptions())
	n.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

	set, err := n.Generate(context.Background(), testSummaries())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	wantOrder := []string{"older_adults_diabetes", "adults", "female"}
	if len(set.Insights) != len(wantOrder) {
		t.Fatalf("expected %d insights, got %d", len(wantOrder), len(set.Insights))
	}
	for i, id := range wantOrder {
		got := set.Insights[i]
		if got.StratumID != id || got.Rank != i+1 {
			t.Errorf("insight %d: got %s rank %d, want %s rank %d", i, got.StratumID, got.Rank, id, i+1)
		}
		if got.Text != "insight for "+id {
			t.Errorf("insight %d: unexpected text %q", i, got.Text)
		}
		if got.Provider != "mock" || got.Model != "mock-1" || got.Error != "" {
			t.Errorf("insight %d: unexpected metadata %+v", i, got)
		}
	}
	if set.Comparative != "comparison" {
		t.Errorf("unexpected comparative analysis %q", set.Comparative)
	}
	if len(set.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", set.Warnings)
	}
	if provider.Calls() != 4 {
		t.Errorf("expected 4 provider calls, got %d", provider.Calls())
	}
}

func TestNarrator_RetriesTransientErrors(t *testing.T) {
	provider := &MockProvider{reply: func(call int, req CompletionRequest) (string, error) {
		if call <= 2 {
			return "", &StatusError{Provider: "mock", StatusCode: 503, Body: "busy"}
		}
		return "ok", nil
	}}
	opts := fastOptions()
	opts.Workers = 1
	opts.TopStrata = 1

	set, err := NewNarrator(provider, opts).Generate(context.Background(), testSummaries()[:1])
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if set.Insights[0].Text != "ok" || set.Insights[0].Error != "" {
		t.Errorf("expected success after retries, got %+v", set.Insights[0])
	}
}

func TestNarrator_FailuresBecomeUnavailable(t *testing.T) {
	provider := &MockProvider{reply: func(call int, req CompletionRequest) (string, error) {
		return "", errors.New("connection refused")
	}}

	set, err := NewNarrator(provider, fastOptions()).Generate(context.Background(), testSummaries())
	if err != nil {
		t.Fatalf("Generate should not fail on request errors: %v", err)
	}

	// 3 strata + 1 comparative, 3 attempts each
	if provider.Calls() != 12 {
		t.Errorf("expected 12 attempts, got %d", provider.Calls())
	}
	for _, in := range set.Insights {
		if !strings.HasPrefix(in.Text, "Analysis unavailable due to API error: ") || in.Error == "" {
			t.Errorf("expected unavailable insight, got %+v", in)
		}
	}
	if !strings.HasPrefix(set.Comparative, "Comparative analysis unavailable: ") {
		t.Errorf("unexpected comparative text %q", set.Comparative)
	}
	if len(set.Warnings) != 4 {
		t.Errorf("expected 4 warnings, got %v", set.Warnings)
	}
}

func TestNarrator_PermanentErrorNotRetried(t *testing.T) {
	provider := &MockProvider{reply: func(call int, req CompletionRequest) (string, error) {
		return "", &StatusError{Provider: "mock", StatusCode: 401, Body: "unauthorized"}
	}}
	opts := fastOptions()
	opts.TopStrata = 1

	set, err := NewNarrator(provider, opts).Generate(context.Background(), testSummaries()[:1])
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if provider.Calls() != 2 {
		t.Errorf("expected one attempt per request, got %d calls", provider.Calls())
	}
	if set.Insights[0].Error == "" {
		t.Error("expected error on insight")
	}
}

func TestNarrator_UsesCache(t *testing.T) {
	fs := afero.NewMemMapFs()
	opts := fastOptions()
	opts.Cache = cache.NewLayeredCache(fs, time.Minute, "/cache", time.Hour)

	first := &MockProvider{reply: echoStratum}
	if _, err := NewNarrator(first, opts).Generate(context.Background(), testSummaries()); err != nil {
		t.Fatalf("first Generate failed: %v", err)
	}

	// A new process sees only the disk layer
	opts.Cache = cache.NewLayeredCache(fs, time.Minute, "/cache", time.Hour)
	second := &MockProvider{reply: echoStratum}
	set, err := NewNarrator(second, opts).Generate(context.Background(), testSummaries())
	if err != nil {
		t.Fatalf("second Generate failed: %v", err)
	}

	if second.Calls() != 0 {
		t.Errorf("expected all requests served from cache, got %d calls", second.Calls())
	}
	for _, in := range set.Insights {
		if !in.Cached {
			t.Errorf("expected cached insight for %s", in.StratumID)
		}
	}
}

func TestNarrator_RateLimited(t *testing.T) {
	provider := &MockProvider{reply: echoStratum}
	opts := fastOptions()
	opts.Limiter = worker.NewLimiter(1000, 1)

	if _, err := NewNarrator(provider, opts).Generate(context.Background(), testSummaries()); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if provider.Calls() != 4 {
		t.Errorf("expected 4 calls, got %d", provider.Calls())
	}
}

func TestNarrator_NoStrata(t *testing.T) {
	provider := &MockProvider{reply: echoStratum}
	set, err := NewNarrator(provider, fastOptions()).Generate(context.Background(), nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(set.Insights) != 0 || len(set.Warnings) != 1 {
		t.Errorf("expected empty set with one warning, got %+v", set)
	}
	if provider.Calls() != 0 {
		t.Errorf("expected no calls, got %d", provider.Calls())
	}
}

func TestNarrator_Disabled(t *testing.T) {
	_, err := NewNarrator(nil, NarratorOptions{}).Generate(context.Background(), testSummaries())
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("expected ErrDisabled, got %v", err)
	}
}
