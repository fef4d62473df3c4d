package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/csv-chat/backend/internal/config"
	"github.com/csv-chat/backend/internal/logging"
)

// Temperature is fixed at zero so answers stay close to the data.
const Temperature float32 = 0

// Options configures the agents built by EinoFactory.
type Options struct {
	Model              string
	BaseURL            string
	Mode               string
	AllowCodeExecution bool
	Verbose            bool
	MaxSteps           int
	Timeout            time.Duration
	MaxQueryRows       int
	SampleRows         int
}

// OptionsFromConfig maps the application configuration onto agent options.
func OptionsFromConfig(cfg *config.AppConfig) Options {
	return Options{
		Model:              cfg.Agent.Model,
		BaseURL:            cfg.Agent.BaseURL,
		Mode:               cfg.Agent.Mode,
		AllowCodeExecution: cfg.Agent.AllowCodeExecution,
		Verbose:            cfg.Agent.Verbose,
		MaxSteps:           cfg.Agent.MaxSteps,
		Timeout:            cfg.AgentTimeout(),
		MaxQueryRows:       cfg.Limits.MaxQueryRows,
		SampleRows:         cfg.Limits.PreviewRows,
	}
}

// EinoFactory builds ReAct agents on an OpenAI chat model. The model drives
// the table tools through function calling until it produces an answer.
type EinoFactory struct {
	opts   Options
	logger *zap.Logger
}

// NewEinoFactory creates a factory. A nil logger disables logging.
func NewEinoFactory(opts Options, logger *zap.Logger) *EinoFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EinoFactory{opts: opts, logger: logger.Named("agent")}
}

// New builds an agent for one question. Nothing is sent to the provider
// until Run is called.
func (f *EinoFactory) New(ctx context.Context, credential string, tables TableSource) (Agent, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, ErrMissingCredential
	}
	if f.opts.Mode != config.AgentModeToolCalling {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMode, f.opts.Mode)
	}

	temperature := Temperature
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      credential,
		BaseURL:     f.opts.BaseURL,
		Model:       f.opts.Model,
		Temperature: &temperature,
		Timeout:     f.opts.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	kit := &toolKit{
		src:          tables,
		maxQueryRows: f.opts.MaxQueryRows,
		sampleRows:   f.opts.SampleRows,
		verbose:      f.opts.Verbose,
		logger:       f.logger,
	}

	ra, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: chatModel,
		ToolsConfig:      compose.ToolsNodeConfig{Tools: kit.tools(f.opts.AllowCodeExecution)},
		MaxStep:          f.opts.MaxSteps,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	if f.opts.Verbose {
		f.logger.Info("Agent created",
			zap.String("model", f.opts.Model),
			zap.String("credential", logging.Redact(credential)),
			zap.Int("tables", len(tables.Tables())),
			zap.Bool("code_execution", f.opts.AllowCodeExecution))
	}

	return &einoAgent{agent: ra}, nil
}

type einoAgent struct {
	agent *react.Agent
}

func (a *einoAgent) Run(ctx context.Context, request string) (string, error) {
	msg, err := a.agent.Generate(ctx, []*schema.Message{schema.UserMessage(request)})
	if err != nil {
		return "", Classify(err)
	}
	return msg.Content, nil
}
