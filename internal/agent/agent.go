// Package agent is the reference agent served by cmd/agent. It answers every
// query with an acknowledgement and is what the deploy pipeline installs and probes.
package agent

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
	"sigs.k8s.io/controller-runtime/pkg/log"

	agentv1alpha1 "github.com/camcast3/releasegate/api/v1alpha1"
)

// DefaultModelEndpoint is used when MODEL_ENDPOINT is unset.
const DefaultModelEndpoint = "http://vllm-openai:8000/v1"

// Dependency names reported on the readiness endpoint.
const (
	DependencyModel = "model-endpoint"
	DependencyJira  = "mcp-jira"
)

// ErrEmptyQuery is returned for a task without a query.
var ErrEmptyQuery = errors.New("empty query")

// Config holds the agent's endpoints and credentials.
type Config struct {
	ModelEndpoint string `mapstructure:"model_endpoint"`
	JiraToken     string `mapstructure:"mcp_jira_token"`
}

// LoadConfig reads MODEL_ENDPOINT and MCP_JIRA_TOKEN from the environment.
func LoadConfig() (Config, error) {
	v := viper.New()
	v.SetDefault("model_endpoint", DefaultModelEndpoint)
	v.SetDefault("mcp_jira_token", "")
	for _, k := range []string{"model_endpoint", "mcp_jira_token"} {
		if err := v.BindEnv(k); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding agent config: %w", err)
	}
	return cfg, nil
}

// Task is a single unit of work.
type Task struct {
	Query  string
	Params map[string]any
}

// Agent executes tasks. It is safe for concurrent use.
type Agent struct {
	cfg Config
	now func() time.Time
}

// New creates an Agent from cfg.
func New(cfg Config) *Agent {
	return &Agent{cfg: cfg, now: time.Now}
}

// Config returns the configuration the agent was built with.
func (a *Agent) Config() Config {
	return a.cfg
}

// Check reports the state of every dependency; a nil error means ready.
// A missing Jira token only disables the tool and is not reported as an error.
func (a *Agent) Check(_ context.Context) map[string]error {
	deps := map[string]error{DependencyModel: nil, DependencyJira: nil}
	u, err := url.Parse(a.cfg.ModelEndpoint)
	switch {
	case a.cfg.ModelEndpoint == "":
		deps[DependencyModel] = errors.New("MODEL_ENDPOINT is empty")
	case err != nil:
		deps[DependencyModel] = fmt.Errorf("invalid MODEL_ENDPOINT: %w", err)
	case u.Scheme != "http" && u.Scheme != "https":
		deps[DependencyModel] = fmt.Errorf("invalid MODEL_ENDPOINT scheme %q", u.Scheme)
	}
	return deps
}

// Run executes task and returns the answer with its metadata.
func (a *Agent) Run(ctx context.Context, task Task) (*agentv1alpha1.ExecuteResponse, error) {
	if task.Query == "" {
		return nil, ErrEmptyQuery
	}
	start := a.now()

	tools := []agentv1alpha1.ToolCall{}
	if a.cfg.JiraToken != "" {
		tools = append(tools, agentv1alpha1.ToolCall{Name: "jira", Status: "available"})
	}

	resp := &agentv1alpha1.ExecuteResponse{
		Answer:  fmt.Sprintf("OK: received query='%s'", task.Query),
		Sources: []agentv1alpha1.Source{},
		Tools:   tools,
	}
	resp.LatencyMs = max(a.now().Sub(start).Milliseconds(), 1)

	log.FromContext(ctx).V(1).Info("task executed", "latencyMs", resp.LatencyMs, "params", len(task.Params))
	return resp, nil
}
