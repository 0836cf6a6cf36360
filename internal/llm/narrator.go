package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/ppiankov/strata/internal/cache"
	"github.com/ppiankov/strata/internal/logging"
	"github.com/ppiankov/strata/internal/model"
	"github.com/ppiankov/strata/internal/worker"
	"github.com/sethvargo/go-retry"
)

const (
	unavailablePrefix            = "Analysis unavailable due to API error: "
	comparativeUnavailablePrefix = "Comparative analysis unavailable: "
)

// NarratorOptions tunes request fan-out and resilience
type NarratorOptions struct {
	Cache   cache.Cache     // Nil disables caching
	Limiter *worker.Limiter // Nil disables rate limiting

	Workers     int
	TopStrata   int
	MaxTokens   int
	Temperature float32

	RetryAttempts int
	RetryBase     time.Duration
	RetryMax      time.Duration
}

// Narrator turns stratum summaries into LLM commentary
type Narrator struct {
	provider Provider
	opts     NarratorOptions
	now      func() time.Time
}

// NewNarrator creates a narrator for provider
func NewNarrator(provider Provider, opts NarratorOptions) *Narrator {
	if opts.Cache == nil {
		opts.Cache = cache.Nop{}
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.TopStrata <= 0 {
		opts.TopStrata = 3
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = stratumMaxTokens
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 3
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = time.Second
	}
	if opts.RetryMax <= 0 {
		opts.RetryMax = 8 * time.Second
	}

	return &Narrator{
		provider: provider,
		opts:     opts,
		now:      time.Now,
	}
}

// NarratorOptionsFromModel builds options from the application config
func NarratorOptionsFromModel(cfg model.LLMConfig, c cache.Cache) NarratorOptions {
	return NarratorOptions{
		Cache:         c,
		Limiter:       worker.NewLimiter(cfg.RequestsPerSecond, cfg.Burst),
		Workers:       cfg.Workers,
		TopStrata:     cfg.TopStrata,
		MaxTokens:     cfg.MaxTokens,
		Temperature:   cfg.Temperature,
		RetryAttempts: cfg.RetryAttempts,
	}
}

// Generate produces insights for the top strata plus a comparative analysis.
// Request failures become "unavailable" entries and warnings, not errors.
func (n *Narrator) Generate(ctx context.Context, summaries []model.StratumSummary) (*model.InsightSet, error) {
	if n.provider == nil {
		return nil, ErrDisabled
	}

	set := &model.InsightSet{GeneratedAt: n.now().UTC()}

	ranked := rankStrata(summaries)
	if len(ranked) == 0 {
		set.Comparative = "Comparative analysis unavailable."
		set.Warnings = append(set.Warnings, "no strata passed the minimum size filter")
		return set, nil
	}

	top := ranked
	if len(top) > n.opts.TopStrata {
		top = top[:n.opts.TopStrata]
	}

	jobs := make([]worker.Job, 0, len(top)+1)
	for i := range top {
		req := StratumPrompt(top[i])
		req.MaxTokens = n.opts.MaxTokens
		req.Temperature = n.opts.Temperature
		jobs = append(jobs, &narrativeJob{narrator: n, label: top[i].StratumID, req: req})
	}

	comp, err := ComparativePrompt(ranked)
	if err != nil {
		return nil, err
	}
	comp.MaxTokens = max(comp.MaxTokens, n.opts.MaxTokens)
	comp.Temperature = n.opts.Temperature
	jobs = append(jobs, &narrativeJob{narrator: n, label: "comparative", req: comp})

	log := logging.L()
	log.Info("generating narratives", "provider", n.provider.Name(), "model", n.provider.Model(), "strata", len(top), "workers", n.opts.Workers)

	results := worker.Run(ctx, n.opts.Workers, jobs)
	if len(results) != len(jobs) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("generate narratives: %w", err)
		}
		return nil, fmt.Errorf("generate narratives: %d of %d requests finished", len(results), len(jobs))
	}

	for i, s := range top {
		res := results[i].(*narrativeResult)
		insight := model.Insight{
			StratumID: s.StratumID,
			Rank:      i + 1,
			Provider:  n.provider.Name(),
			Model:     n.provider.Model(),
			Data:      s,
		}
		if res.err != nil {
			insight.Text = unavailablePrefix + res.err.Error()
			insight.Error = res.err.Error()
			set.Warnings = append(set.Warnings, fmt.Sprintf("stratum %s: %v", s.StratumID, res.err))
			log.Warn("narrative request failed", "stratum", s.StratumID, "err", res.err)
		} else {
			insight.Text = res.text
			insight.Cached = res.cached
		}
		set.Insights = append(set.Insights, insight)
	}
	sort.SliceStable(set.Insights, func(i, j int) bool {
		return set.Insights[i].Rank < set.Insights[j].Rank
	})

	compRes := results[len(top)].(*narrativeResult)
	if compRes.err != nil {
		set.Comparative = comparativeUnavailablePrefix + compRes.err.Error()
		set.Warnings = append(set.Warnings, fmt.Sprintf("comparative analysis: %v", compRes.err))
		log.Warn("comparative request failed", "err", compRes.err)
	} else {
		set.Comparative = compRes.text
	}

	return set, nil
}

// complete answers req from the cache or the provider, retrying transient failures
func (n *Narrator) complete(ctx context.Context, req CompletionRequest) (string, bool, error) {
	key := cache.Key(
		n.provider.Name(),
		n.provider.Model(),
		req.System,
		req.Prompt,
		strconv.Itoa(req.MaxTokens),
		strconv.FormatFloat(float64(req.Temperature), 'f', -1, 32),
	)
	if val, ok := n.opts.Cache.Get(key); ok && len(val) > 0 {
		return string(val), true, nil
	}

	var text string
	err := retry.Do(ctx, n.backoff(), func(ctx context.Context) error {
		if n.opts.Limiter != nil {
			if err := n.opts.Limiter.Wait(ctx, n.provider.Endpoint()); err != nil {
				return err
			}
		}

		resp, err := n.provider.Complete(ctx, req)
		if err != nil {
			logging.L().Debug("narrative attempt failed", "provider", n.provider.Name(), "err", err)
			if Retryable(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		if resp.Text == "" {
			return retry.RetryableError(errors.New("empty response"))
		}
		text = resp.Text
		return nil
	})
	if err != nil {
		return "", false, err
	}

	if err := n.opts.Cache.Set(key, []byte(text), 0); err != nil {
		logging.L().Warn("cache write failed", "err", err)
	}
	return text, false, nil
}

func (n *Narrator) backoff() retry.Backoff {
	b := retry.NewExponential(n.opts.RetryBase)
	b = retry.WithCappedDuration(n.opts.RetryMax, b)
	return retry.WithMaxRetries(uint64(n.opts.RetryAttempts-1), b)
}

// narrativeJob is one LLM request run on the worker pool
type narrativeJob struct {
	narrator *Narrator
	label    string
	req      CompletionRequest
}

// Execute implements worker.Job
func (j *narrativeJob) Execute(ctx context.Context) worker.Result {
	text, cached, err := j.narrator.complete(ctx, j.req)
	if err == nil {
		logging.L().Debug("narrative ready", "target", j.label, "cached", cached)
	}
	return &narrativeResult{text: text, cached: cached, err: err}
}

type narrativeResult struct {
	text   string
	cached bool
	err    error
}

// GetError implements worker.Result
func (r *narrativeResult) GetError() error {
	return r.err
}

// rankStrata orders strata by unique studies, then id
func rankStrata(summaries []model.StratumSummary) []model.StratumSummary {
	ranked := append([]model.StratumSummary(nil), summaries...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].UniqueStudies != ranked[j].UniqueStudies {
			return ranked[i].UniqueStudies > ranked[j].UniqueStudies
		}
		return ranked[i].StratumID < ranked[j].StratumID
	})
	return ranked
}
