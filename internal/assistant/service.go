package assistant

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"planner/backend/internal/apperrors"
	"planner/backend/internal/cache"
	"planner/backend/internal/models"
	"planner/backend/internal/repositories"
)

const systemPrompt = `You are a helpful assistant that helps users manage their tasks and events.
Check the user's schedule for overlapping tasks or events, days with too much on them,
missing breaks between activities and unrealistic time allocations.
When the schedule is too busy, suggest concrete changes: moving tasks to quieter times,
splitting large tasks, adding breaks and putting the important work first.
Answer as plain text with three sections: Analysis, Suggestions (numbered) and Schedule Changes.
Be concise.`

const emptyAnswer = "I couldn't analyze your schedule at this time. Please try again later."

// ErrUnavailable means the model is being skipped after repeated failures.
var ErrUnavailable = errors.New("assistant temporarily unavailable")

// RateLimitError is returned when a user has used up the current window.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%v: retry in %s", apperrors.ErrRateLimited, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Is(target error) bool { return target == apperrors.ErrRateLimited }

type Service struct {
	interactions *repositories.InteractionRepository
	builder      *ContextBuilder
	client       Client
	limiter      *cache.FixedWindowLimiter
	responses    *cache.RedisCache
	breaker      *cache.CircuitBreaker
	cacheTTL     time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

type Options struct {
	Interactions *repositories.InteractionRepository
	Builder      *ContextBuilder
	Client       Client
	Limiter      *cache.FixedWindowLimiter
	Responses    *cache.RedisCache
	Breaker      *cache.CircuitBreaker
	CacheTTL     time.Duration
	Logger       *slog.Logger
}

func NewService(opts Options) *Service {
	breaker := opts.Breaker
	if breaker == nil {
		breaker = cache.NewCircuitBreaker(nil)
	}
	return &Service{
		interactions: opts.Interactions,
		builder:      opts.Builder,
		client:       opts.Client,
		limiter:      opts.Limiter,
		responses:    opts.Responses,
		breaker:      breaker,
		cacheTTL:     opts.CacheTTL,
		logger:       opts.Logger.With("component", "assistant"),
		now:          time.Now,
	}
}

// WithClock replaces the time source; used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Ask answers prompt for userID and stores the exchange. Every call counts
// against the user's window, including ones that later fail.
func (s *Service) Ask(ctx context.Context, userID uint, prompt string) (*models.AssistantInteraction, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		verr := apperrors.NewValidationError()
		verr.Add("request_data", "request data is required")
		return nil, verr
	}

	decision, err := s.limiter.Allow(ctx, strconv.FormatUint(uint64(userID), 10))
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		s.logger.Warn("assistant rate limit exceeded", "user_id", userID, "count", decision.Count)
		return nil, &RateLimitError{RetryAfter: decision.RetryAfter}
	}

	schedule, err := s.builder.Build(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}
	scheduleJSON, err := json.MarshalIndent(schedule, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode schedule: %w", err)
	}
	message := fmt.Sprintf("User's schedule:\n%s\n\nUser's question: %s", scheduleJSON, prompt)

	interaction := &models.AssistantInteraction{UserID: userID, Request: prompt}
	key := responseKey(userID, message)

	var cached string
	switch err := s.responses.Get(ctx, key, &cached); {
	case err == nil:
		interaction.Response = cached
		interaction.Cached = true
	case errors.Is(err, cache.ErrCacheMiss):
	default:
		s.logger.Warn("assistant response cache unavailable", "error", err)
	}

	if !interaction.Cached {
		answer, err := s.complete(ctx, message)
		if err != nil {
			return nil, err
		}
		interaction.Response = answer
		if err := s.responses.Set(ctx, key, answer, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache assistant response", "error", err)
		}
	}

	if err := s.interactions.Create(ctx, interaction); err != nil {
		return nil, fmt.Errorf("save interaction: %w", err)
	}
	s.logger.Info("assistant answered", "user_id", userID, "interaction_id", interaction.ID, "cached", interaction.Cached)
	return interaction, nil
}

func (s *Service) complete(ctx context.Context, message string) (string, error) {
	var answer string
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		answer, err = s.client.Complete(ctx, systemPrompt, message)
		return err
	})
	if errors.Is(err, cache.ErrCircuitBreakerOpen) {
		return "", ErrUnavailable
	}
	if err != nil {
		s.logger.Error("assistant model call failed", "error", err)
		return "", err
	}
	if answer == "" {
		s.logger.Warn("assistant model returned an empty answer")
		return emptyAnswer, nil
	}
	return answer, nil
}

func (s *Service) List(ctx context.Context, userID uint) ([]models.AssistantInteraction, error) {
	return s.interactions.List(ctx, userID)
}

func (s *Service) Get(ctx context.Context, userID, id uint) (*models.AssistantInteraction, error) {
	return s.interactions.Get(ctx, userID, id)
}

func (s *Service) Delete(ctx context.Context, userID, id uint) error {
	deleted, err := s.interactions.Delete(ctx, userID, id)
	if err != nil {
		return err
	}
	if !deleted {
		return apperrors.NotFound("interaction", id)
	}
	// Cached answers are dropped with the history so a repeated prompt is
	// answered afresh.
	if err := s.responses.DeletePattern(ctx, responsePattern(userID)); err != nil {
		s.logger.Warn("failed to clear cached assistant responses", "user_id", userID, "error", err)
	}
	return nil
}

// responseKey scopes cached answers to the user and to the exact prompt and
// schedule, so any change to either misses the cache.
func responseKey(userID uint, message string) string {
	sum := sha256.Sum256([]byte(message))
	return fmt.Sprintf("assistant:%d:%s", userID, hex.EncodeToString(sum[:]))
}

func responsePattern(userID uint) string {
	return fmt.Sprintf("assistant:%d:*", userID)
}
