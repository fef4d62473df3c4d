// Package chat runs one question through the pipeline: gate, summarize,
// compose, invoke the agent and render the answer.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/csv-chat/backend/internal/agent"
	"github.com/csv-chat/backend/internal/logging"
	"github.com/csv-chat/backend/internal/models"
	"github.com/csv-chat/backend/internal/prompt"
	"github.com/csv-chat/backend/internal/render"
	"github.com/csv-chat/backend/internal/session"
)

var (
	ErrNoCredential = errors.New("an API key is required before asking")
	ErrNoTables     = errors.New("upload at least one CSV file before asking")
)

// Options configures a Service.
type Options struct {
	AgentTimeout      time.Duration
	MaxConcurrentAsks int
	MaxSummaryColumns int
}

// Service answers questions against a session's tables.
type Service struct {
	sessions *session.Manager
	factory  agent.Factory
	opts     Options
	sem      *semaphore.Weighted
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a chat service. A nil logger disables logging.
func NewService(sessions *session.Manager, factory agent.Factory, opts Options, logger *zap.Logger) *Service {
	if opts.AgentTimeout <= 0 {
		opts.AgentTimeout = 120 * time.Second
	}
	if opts.MaxConcurrentAsks <= 0 {
		opts.MaxConcurrentAsks = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		sessions: sessions,
		factory:  factory,
		opts:     opts,
		sem:      semaphore.NewWeighted(int64(opts.MaxConcurrentAsks)),
		logger:   logger.Named("chat"),
		now:      time.Now,
	}
}

// Summary returns the schema summary the agent would see for the session.
func (s *Service) Summary(sessionID string) (string, error) {
	var summary string
	err := s.sessions.Read(sessionID, func(snap session.Snapshot) error {
		summary = prompt.Summarize(snap.Tables, s.opts.MaxSummaryColumns)
		return nil
	})
	return summary, err
}

// Ask answers one question. Missing input (no session, credential, tables
// or question) is returned as an error before any agent is built. Agent
// failures are not errors: they come back as an Answer in error state,
// which is also stored as the session's last answer.
func (s *Service) Ask(ctx context.Context, sessionID, question string) (*models.Answer, error) {
	var answer *models.Answer
	err := s.sessions.Read(sessionID, func(snap session.Snapshot) error {
		if snap.Credential == "" {
			return ErrNoCredential
		}
		if len(snap.Tables) == 0 {
			return ErrNoTables
		}
		request, err := prompt.Compose(prompt.Summarize(snap.Tables, s.opts.MaxSummaryColumns), question)
		if err != nil {
			return err
		}

		if err := s.sem.Acquire(ctx, 1); err != nil {
			return fmt.Errorf("waiting for a free agent slot: %w", err)
		}
		defer s.sem.Release(1)

		answer = s.invoke(ctx, snap, question, request)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.sessions.SetLastAnswer(sessionID, answer); err != nil {
		return nil, err
	}
	return answer, nil
}

// invoke builds the agent and runs the request once, under AgentTimeout.
func (s *Service) invoke(ctx context.Context, snap session.Snapshot, question, request string) *models.Answer {
	start := s.now()
	answer := &models.Answer{Question: question}
	log := s.logger.With(zap.String("session", logging.ShortID(snap.ID)))

	finish := func() *models.Answer {
		answer.AnsweredAt = s.now()
		answer.DurationMs = answer.AnsweredAt.Sub(start).Milliseconds()
		return answer
	}
	fail := func(code string, err error) *models.Answer {
		answer.Status = models.AnswerStatusError
		answer.ErrorCode = code
		answer.Error = render.ErrorMessage(code)
		log.Warn("Question failed",
			zap.String("code", code),
			zap.Error(err),
			zap.Duration("elapsed", s.now().Sub(start)))
		return finish()
	}

	a, err := s.factory.New(ctx, snap.Credential, snap.Store)
	if err != nil {
		return fail(models.ErrorCodeAgentInit, err)
	}

	runCtx, cancel := context.WithTimeout(ctx, s.opts.AgentTimeout)
	defer cancel()

	text, err := a.Run(runCtx, request)
	if err == nil && strings.TrimSpace(text) == "" {
		err = fmt.Errorf("%w: empty response", agent.ErrAgentFailed)
	}
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("%w: %w", agent.ErrTimeout, err)
		}
		return fail(agent.ErrorCode(err), err)
	}

	html, err := render.Markdown(text)
	if err != nil {
		log.Warn("Falling back to plain text answer", zap.Error(err))
		html = ""
	}
	answer.Status = models.AnswerStatusOK
	answer.Text = text
	answer.HTML = html

	log.Info("Question answered",
		zap.Int("question_len", len(question)),
		zap.Int("answer_len", len(text)),
		zap.Duration("elapsed", s.now().Sub(start)))
	return finish()
}
