package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/corvid-labs/hindsight/internal/config"
	"github.com/corvid-labs/hindsight/internal/core"
	"github.com/corvid-labs/hindsight/internal/observability"
	"github.com/corvid-labs/hindsight/internal/service/composer"
	"github.com/corvid-labs/hindsight/pkg/log"
	"github.com/corvid-labs/hindsight/pkg/retry"
)

// TemporalResolver turns an utterance into a structured transcript predicate,
// or nil when the utterance carries no usable temporal reference.
type TemporalResolver interface {
	Resolve(ctx context.Context, utterance string, now time.Time) *core.Predicate
}

// Memorizer runs the post-turn fact extraction pass.
type Memorizer interface {
	Memorize(ctx context.Context, sessionID, userText, assistantText string, known []core.SemanticMatch) (int, error)
}

// PromptComposer fuses retrieval output into a bounded prompt.
type PromptComposer interface {
	Compose(systemPrompt, userText string, recent []core.Turn, retrieved core.RetrievalContext) composer.Prompt
}

// Orchestrator drives a full turn: persist the utterance, retrieve memory,
// compose the prompt, generate, persist the reply, then memorize in the
// background. Retrieval is best-effort; the transcript writes and the
// generation call are the only steps that can fail a turn.
type Orchestrator struct {
	transcripts core.TranscriptStore
	semantic    core.SemanticStore
	embedder    core.Embedder
	primary     core.Completer
	temporal    TemporalResolver
	memorizer   Memorizer
	composer    PromptComposer

	systemPrompt string
	cfg          *config.MemoryConfig
	metrics      *observability.Metrics
	retrier      *retry.Retrier

	sessions *sessionLocks
	detached sync.WaitGroup
	now      func() time.Time
}

func New(
	transcripts core.TranscriptStore,
	semantic core.SemanticStore,
	embedder core.Embedder,
	primary core.Completer,
	temporal TemporalResolver,
	memorizer Memorizer,
	promptComposer PromptComposer,
	systemPrompt string,
	cfg *config.MemoryConfig,
	metrics *observability.Metrics,
) *Orchestrator {
	retryCfg := retry.NewDefaultConfig()
	retryCfg.MaxRetries = cfg.GenerationRetries

	return &Orchestrator{
		transcripts:  transcripts,
		semantic:     semantic,
		embedder:     embedder,
		primary:      primary,
		temporal:     temporal,
		memorizer:    memorizer,
		composer:     promptComposer,
		systemPrompt: systemPrompt,
		cfg:          cfg,
		metrics:      metrics,
		retrier:      retry.NewRetrier(retryCfg),
		sessions:     newSessionLocks(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// HandleTurn processes one user utterance end to end and returns the
// assistant's reply together with everything that was recalled for it.
func (o *Orchestrator) HandleTurn(ctx context.Context, sessionID, userText string) (core.TurnResult, error) {
	logger := log.FromCtx(ctx)
	unlock := o.sessions.lock(sessionID)
	defer unlock()

	started := o.now()

	userTurn := core.Turn{
		SessionID: sessionID,
		Role:      core.RoleUser,
		Content:   userText,
		CreatedAt: started,
	}
	if _, err := o.transcripts.Append(ctx, userTurn); err != nil {
		o.metrics.IncTurn("storage_failed")
		return core.TurnResult{}, fmt.Errorf("append user turn: %w", err)
	}

	retrieved, recent := o.retrieve(ctx, sessionID, userText)

	prompt := o.composer.Compose(o.systemPrompt, userText, recent, retrieved)

	responseText, err := o.generate(ctx, prompt)
	if err != nil {
		o.metrics.IncTurn("generation_failed")
		o.metrics.IncProviderError("generation")
		return core.TurnResult{Retrieved: retrieved}, fmt.Errorf("%w: %v", core.ErrGeneration, err)
	}

	assistantTurn := core.Turn{
		SessionID: sessionID,
		Role:      core.RoleAssistant,
		Content:   responseText,
		CreatedAt: o.now(),
	}
	if _, err := o.transcripts.Append(ctx, assistantTurn); err != nil {
		o.metrics.IncTurn("storage_failed")
		return core.TurnResult{Retrieved: retrieved}, fmt.Errorf("append assistant turn: %w", err)
	}

	o.memorizeDetached(ctx, sessionID, userText, responseText, retrieved.SemanticMatches)

	o.metrics.IncTurn("ok")
	o.metrics.ObserveStage("total", o.now().Sub(started))
	logger.Info().Str("session", sessionID).Dur("took", o.now().Sub(started)).Msg("turn handled")

	return core.TurnResult{ResponseText: responseText, Retrieved: retrieved}, nil
}

// History returns the most recent turns of a session, oldest first.
func (o *Orchestrator) History(ctx context.Context, sessionID string, limit int) ([]core.Turn, error) {
	if limit <= 0 {
		limit = o.cfg.RecentTurns
	}
	return o.transcripts.RecentBySession(ctx, sessionID, limit)
}

// retrieve fans out the temporal and semantic branches under independent
// timeouts. Either branch failing or timing out degrades to an empty result;
// the turn proceeds regardless.
func (o *Orchestrator) retrieve(ctx context.Context, sessionID, userText string) (core.RetrievalContext, []core.Turn) {
	logger := log.FromCtx(ctx)
	started := o.now()

	var (
		wg        sync.WaitGroup
		retrieved core.RetrievalContext
		recent    []core.Turn
	)

	wg.Add(3)

	go func() {
		defer wg.Done()
		branchCtx, cancel := context.WithTimeout(ctx, o.cfg.RetrievalTimeout)
		defer cancel()

		turns, err := o.transcripts.RecentBySession(branchCtx, sessionID, o.cfg.RecentTurns)
		if err != nil {
			logger.Warn().Err(err).Msg("recent-history fetch failed, proceeding without it")
			return
		}
		recent = turns
	}()

	go func() {
		defer wg.Done()
		branchCtx, cancel := context.WithTimeout(ctx, o.cfg.RetrievalTimeout)
		defer cancel()

		predicate := o.temporal.Resolve(branchCtx, userText, o.now())
		if predicate == nil {
			return
		}

		turns, err := o.transcripts.QueryByPredicate(branchCtx, sessionID, *predicate)
		if err != nil {
			logger.Warn().Err(err).Msg("temporal recall failed, proceeding without it")
			return
		}
		retrieved.TemporalTurns = turns
	}()

	go func() {
		defer wg.Done()
		branchCtx, cancel := context.WithTimeout(ctx, o.cfg.RetrievalTimeout)
		defer cancel()

		embedding, err := o.embedder.Embed(branchCtx, userText)
		if err != nil {
			o.metrics.IncProviderError("embedding")
			logger.Warn().Err(err).Msg("utterance embedding failed, skipping semantic recall")
			return
		}

		matches, err := o.semantic.Search(branchCtx, embedding, o.cfg.SemanticK)
		if err != nil {
			logger.Warn().Err(err).Msg("semantic recall failed, proceeding without it")
			return
		}
		retrieved.SemanticMatches = matches
	}()

	wg.Wait()

	o.metrics.ObserveStage("retrieval", o.now().Sub(started))
	o.metrics.ObserveRecall("temporal", len(retrieved.TemporalTurns))
	o.metrics.ObserveRecall("semantic", len(retrieved.SemanticMatches))

	return retrieved, recent
}

func (o *Orchestrator) generate(ctx context.Context, prompt composer.Prompt) (string, error) {
	started := o.now()

	var responseText string
	err := o.retrier.Do(ctx, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, o.cfg.GenerationTimeout)
		defer cancel()

		text, err := o.primary.Complete(attemptCtx, prompt.System, prompt.Messages)
		if err != nil {
			return err
		}
		responseText = text
		return nil
	})

	o.metrics.ObserveStage("generation", o.now().Sub(started))
	return responseText, err
}

// memorizeDetached runs fact extraction in the background. It survives the
// caller's cancellation and never surfaces errors to the turn that spawned it.
func (o *Orchestrator) memorizeDetached(ctx context.Context, sessionID, userText, assistantText string, known []core.SemanticMatch) {
	logger := log.FromCtx(ctx)
	detachedCtx := logger.WithContext(context.WithoutCancel(ctx))

	o.detached.Add(1)
	go func() {
		defer o.detached.Done()
		started := o.now()

		stored, err := o.memorizer.Memorize(detachedCtx, sessionID, userText, assistantText, known)
		if err != nil {
			o.metrics.IncProviderError("memorize")
			logger.Warn().Err(err).Str("session", sessionID).Msg("memorization pass failed")
		}

		o.metrics.AddMemorized(stored)
		o.metrics.ObserveStage("memorize", o.now().Sub(started))
	}()
}

// Drain blocks until all detached memorization passes finish or the context
// expires. Called on shutdown so in-flight extractions are not lost.
func (o *Orchestrator) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.detached.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
