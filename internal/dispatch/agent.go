package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"genbroker/internal/domain"
)

// Outcome classifies the agent pool's synchronous reply to a dispatch call.
type Outcome string

const (
	OutcomeQueued Outcome = "queued"
	OutcomeBusy   Outcome = "busy"
	OutcomeError  Outcome = "error"
)

// Result is the classified reply from the agent pool.
type Result struct {
	Outcome Outcome
	Message string
}

// AgentClient hands a job to the external GPU agent pool.
type AgentClient interface {
	Dispatch(ctx context.Context, job *domain.GenerationJob) (Result, error)
}

// AgentOptions configures the HTTP agent client.
type AgentOptions struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// HTTPAgentClient submits jobs to the agent pool over HTTP.
type HTTPAgentClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPAgentClient builds a client for the agent pool endpoint.
func NewHTTPAgentClient(opts AgentOptions) *HTTPAgentClient {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPAgentClient{baseURL: opts.BaseURL, token: opts.Token, httpClient: client}
}

type agentJobRequest struct {
	JobID          string                `json:"jobId"`
	Prompt         string                `json:"prompt"`
	NegativePrompt string                `json:"negativePrompt,omitempty"`
	Seed           int64                 `json:"seed"`
	GuidanceScale  float64               `json:"guidanceScale"`
	Steps          int                   `json:"steps"`
	Width          int                   `json:"width"`
	Height         int                   `json:"height"`
	BaseModels     []domain.ResolvedModel `json:"baseModels"`
	LoRAs          []domain.ResolvedLoRA  `json:"loras,omitempty"`
	OutputBucket   string                `json:"outputBucket"`
	OutputPrefix   string                `json:"outputPrefix"`
}

type agentJobResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Dispatch posts the job to the agent pool and classifies the reply.
func (c *HTTPAgentClient) Dispatch(ctx context.Context, job *domain.GenerationJob) (Result, error) {
	payload := agentJobRequest{
		JobID:          job.ID,
		Prompt:         job.Prompt,
		NegativePrompt: job.NegativePrompt,
		Seed:           job.Seed,
		GuidanceScale:  job.GuidanceScale,
		Steps:          job.Steps,
		Width:          job.Width,
		Height:         job.Height,
		BaseModels:     job.BaseModels,
		LoRAs:          job.LoRAs,
		OutputBucket:   job.OutputBucket,
		OutputPrefix:   job.OutputPrefix,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("agent: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jobs", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("agent: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("agent: dispatch call: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("agent: read reply: %w", err)
	}
	var reply agentJobResponse
	if err := json.Unmarshal(raw, &reply); err != nil {
		return Result{}, fmt.Errorf("agent: decode reply (http %d): %w", resp.StatusCode, err)
	}

	switch Outcome(reply.Status) {
	case OutcomeQueued, OutcomeBusy, OutcomeError:
		return Result{Outcome: Outcome(reply.Status), Message: reply.Message}, nil
	}
	return Result{}, fmt.Errorf("agent: unrecognized dispatch status %q (http %d)", reply.Status, resp.StatusCode)
}
