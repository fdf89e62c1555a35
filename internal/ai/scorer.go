// Package ai wraps the model provider used for content-quality analysis.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/sitelens/sitelens/internal/config"
	"github.com/sitelens/sitelens/internal/core"
	"github.com/sitelens/sitelens/internal/core/score"
)

// PageInput is one sampled page handed to the scorer.
type PageInput struct {
	URL  string
	HTML string
}

// Result is the batch output: one analysis per input page plus the
// token and cost accounting for the whole batch.
type Result struct {
	Analyses     []core.AIAnalysis
	InputTokens  int
	OutputTokens int
	Cost         float64
}

// Scorer judges sampled pages across the five strategic dimensions. It
// is called at most once per audit per sample; a failure fails the
// batch, it never returns fabricated scores.
type Scorer interface {
	Analyze(ctx context.Context, pages []PageInput) (*Result, error)
}

// OpenAIScorer implements Scorer on the OpenAI Chat Completions API,
// one call per page.
type OpenAIScorer struct {
	client *openai.Client
	cfg    config.AIConfig
	prompt *Prompt
	logger *zap.Logger
}

// NewOpenAIScorer builds a scorer from configuration. When a prompt
// file is configured, its template and overrides replace the built-in
// system prompt.
func NewOpenAIScorer(cfg config.AIConfig, logger *zap.Logger) (*OpenAIScorer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("AI API key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	var prompt *Prompt
	if cfg.PromptFile != "" {
		loaded, err := LoadPromptFile(cfg.PromptFile)
		if err != nil {
			return nil, err
		}
		prompt = loaded
	}

	return &OpenAIScorer{
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    cfg,
		prompt: prompt,
		logger: logger,
	}, nil
}

const systemPrompt = `You are a content strategist scoring web pages for AI-answer-engine readiness.
Score the page 0-100 on each dimension: data_quality, expert_credibility, comprehensiveness, citability, authority.
Respond with JSON only, shaped as:
{"scores":{"data_quality":0,"expert_credibility":0,"comprehensiveness":0,"citability":0,"authority":0},
 "findings":{},
 "recommendations":[{"priority":"critical|recommended|optional","category":"","issue":"","recommendation":"","impact":""}]}`

// analysisPayload is the JSON document the model is asked to return.
type analysisPayload struct {
	Scores          core.DimensionScores  `json:"scores"`
	Findings        map[string]any        `json:"findings"`
	Recommendations []core.Recommendation `json:"recommendations"`
}

// Analyze scores the sampled pages. The first page that exhausts its
// retries fails the whole batch; usage accrued up to that point is
// still reported so the caller can account for it.
func (s *OpenAIScorer) Analyze(ctx context.Context, pages []PageInput) (*Result, error) {
	result := &Result{}
	for _, page := range pages {
		analysis, usage, err := s.analyzePage(ctx, page)
		result.InputTokens += usage.inputTokens
		result.OutputTokens += usage.outputTokens
		result.Cost += usage.cost
		if err != nil {
			return result, err
		}
		result.Analyses = append(result.Analyses, *analysis)
	}
	return result, nil
}

type callUsage struct {
	inputTokens  int
	outputTokens int
	cost         float64
}

// analyzePage scores one page, retrying transient API failures with
// exponential backoff up to the configured attempt limit.
func (s *OpenAIScorer) analyzePage(ctx context.Context, page PageInput) (*core.AIAnalysis, callUsage, error) {
	model := s.cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	system := systemPrompt
	var temperature float32 = 0.2
	if s.prompt != nil {
		system = s.prompt.Config.SystemTemplate
		if s.prompt.Config.Model != "" {
			model = s.prompt.Config.Model
		}
		if s.prompt.Config.Temperature != nil {
			temperature = *s.prompt.Config.Temperature
		}
	}

	timeout := s.cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: system,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("URL: %s\n\nPage content:\n%s", page.URL, truncate(page.HTML, 24000)),
			},
		},
		Temperature: temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	attempts := s.cfg.MaxRetries
	if attempts <= 0 {
		attempts = 3
	}

	var usage callUsage
	var resp openai.ChatCompletionResponse
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			if backoff > 8*time.Second {
				backoff = 8 * time.Second
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, usage, ctx.Err()
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		resp, err = s.client.CreateChatCompletion(callCtx, req)
		cancel()
		if err == nil {
			break
		}
		if s.logger != nil {
			s.logger.Warn("analysis call failed",
				zap.String("page_url", page.URL),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
		}
		if ctx.Err() != nil {
			return nil, usage, ctx.Err()
		}
	}
	if err != nil {
		return nil, usage, fmt.Errorf("analyze %s: %w", page.URL, err)
	}

	usage.inputTokens = resp.Usage.PromptTokens
	usage.outputTokens = resp.Usage.CompletionTokens
	usage.cost = float64(usage.inputTokens)/1000*s.cfg.InputCostPer1K +
		float64(usage.outputTokens)/1000*s.cfg.OutputCostPer1K

	if len(resp.Choices) == 0 {
		return nil, usage, fmt.Errorf("analyze %s: empty response", page.URL)
	}

	var payload analysisPayload
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, usage, fmt.Errorf("analyze %s: malformed model output: %w", page.URL, err)
	}
	clampScores(&payload.Scores)

	analysis := &core.AIAnalysis{
		PageURL:         page.URL,
		Scores:          payload.Scores,
		OverallScore:    score.PageStrategic(payload.Scores),
		Findings:        payload.Findings,
		Recommendations: payload.Recommendations,
	}
	return analysis, usage, nil
}

func clampScores(scores *core.DimensionScores) {
	for _, v := range []*int{
		&scores.DataQuality,
		&scores.ExpertCredibility,
		&scores.Comprehensiveness,
		&scores.Citability,
		&scores.Authority,
	} {
		if *v < 0 {
			*v = 0
		}
		if *v > 100 {
			*v = 100
		}
	}
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}
