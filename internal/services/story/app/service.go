package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	apperrors "github.com/louisbranch/chronicle/internal/platform/errors"
	"github.com/louisbranch/chronicle/internal/platform/timeouts"
	"github.com/louisbranch/chronicle/internal/services/story/catalog"
	"github.com/louisbranch/chronicle/internal/services/story/domain/consequence"
	"github.com/louisbranch/chronicle/internal/services/story/domain/decision"
	"github.com/louisbranch/chronicle/internal/services/story/domain/impact"
	"github.com/louisbranch/chronicle/internal/services/story/domain/relevance"
	"github.com/louisbranch/chronicle/internal/services/story/domain/session"
	"github.com/louisbranch/chronicle/internal/services/story/domain/trigger"
	"github.com/louisbranch/chronicle/internal/services/story/storage"
)

// fallbackNarrativeFormat is used when the narrator cannot answer a choice.
const fallbackNarrativeFormat = "You chose to %s. The consequences of this choice will unfold as your journey continues."

// errUnchanged lets an update callback skip the save.
var errUnchanged = errors.New("session unchanged")

// ServiceConfig wires a Service. Only Store is required.
type ServiceConfig struct {
	Store    storage.SessionStore
	Trigger  trigger.Trigger
	Catalog  *catalog.Catalog
	Narrator Narrator
	Notifier Notifier
	Now      func() time.Time
	// GenerationTimeout bounds one decision generation; defaults to
	// timeouts.Generation.
	GenerationTimeout time.Duration
	// NarrativeTimeout bounds one narrator call; defaults to timeouts.Narrative.
	NarrativeTimeout time.Duration
	Logf             func(format string, args ...any)
}

// Service coordinates story sessions.
type Service struct {
	store             storage.SessionStore
	trigger           trigger.Trigger
	catalog           *catalog.Catalog
	narrator          Narrator
	notifier          Notifier
	now               func() time.Time
	generationTimeout time.Duration
	narrativeTimeout  time.Duration
	logf              func(format string, args ...any)

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock serializes one session's updates. refs counts holders and
// waiters so idle locks can be dropped.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewService builds a story service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("session store is required")
	}
	svc := &Service{
		store:             cfg.Store,
		trigger:           cfg.Trigger,
		catalog:           cfg.Catalog,
		narrator:          cfg.Narrator,
		notifier:          cfg.Notifier,
		now:               cfg.Now,
		generationTimeout: cfg.GenerationTimeout,
		narrativeTimeout:  cfg.NarrativeTimeout,
		logf:              cfg.Logf,
		locks:             map[string]*sessionLock{},
	}
	if svc.notifier == nil {
		svc.notifier = noopNotifier{}
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.generationTimeout <= 0 {
		svc.generationTimeout = timeouts.Generation
	}
	if svc.narrativeTimeout <= 0 {
		svc.narrativeTimeout = timeouts.Narrative
	}
	if svc.logf == nil {
		svc.logf = log.Printf
	}
	if svc.trigger.Pipeline.Logf == nil {
		svc.trigger.Pipeline.Logf = svc.logf
	}
	return svc, nil
}

// SetNotifier replaces the notification collaborator.
func (s *Service) SetNotifier(notifier Notifier) {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	s.notifier = notifier
}

// ObserveResult reports what a piece of narrative traffic caused.
type ObserveResult struct {
	Reason trigger.Reason
	// Decision is the decision presented as a result, if any.
	Decision *decision.Decision
	Source   trigger.Source
}

// Observe feeds narrative or player text into the session. When the text
// triggers a decision, one is resolved and presented before Observe returns.
func (s *Service) Observe(ctx context.Context, sessionID, text string) (ObserveResult, error) {
	var (
		reason   trigger.Reason
		snapshot session.State
	)
	err := s.update(ctx, sessionID, func(state session.State) (session.State, error) {
		next, r := s.trigger.Evaluate(state, text)
		reason = r
		if r != trigger.ReasonNone {
			next = session.BeginGeneration(next, s.now())
		}
		snapshot = next
		return next, nil
	})
	if err != nil || reason == trigger.ReasonNone {
		return ObserveResult{Reason: reason}, err
	}

	outcome := s.resolve(ctx, trigger.Request{
		Session: snapshot,
		Context: text,
		Force:   reason == trigger.ReasonMarker,
	})
	presented, err := s.applyOutcome(ctx, sessionID, outcome, "")
	if err != nil {
		return ObserveResult{Reason: reason}, err
	}
	return ObserveResult{Reason: reason, Decision: &presented, Source: outcome.Source}, nil
}

// TriggerDecision requests a decision on demand, seeding extraContext into
// the narrative first and stamping importance when set.
func (s *Service) TriggerDecision(ctx context.Context, sessionID, extraContext string, importance decision.Importance) (decision.Decision, trigger.Source, error) {
	var snapshot session.State
	err := s.update(ctx, sessionID, func(state session.State) (session.State, error) {
		if state.Generating {
			return state, apperrors.WithMetadata(apperrors.CodeSessionGenerating,
				"a decision is already being generated",
				map[string]string{"SessionID": sessionID})
		}
		next := session.BeginGeneration(session.AppendNarrative(state, extraContext), s.now())
		snapshot = next
		return next, nil
	})
	if err != nil {
		return decision.Decision{}, "", err
	}

	outcome := s.resolve(ctx, trigger.Request{
		Session:    snapshot,
		Context:    extraContext,
		Force:      true,
		Importance: importance,
	})
	presented, err := s.applyOutcome(ctx, sessionID, outcome, importance)
	if err != nil {
		return decision.Decision{}, "", err
	}
	return presented, outcome.Source, nil
}

// PresentAuthored presents the catalog decision stored under key.
func (s *Service) PresentAuthored(ctx context.Context, sessionID, key string) (decision.Decision, error) {
	if s.catalog == nil {
		return decision.Decision{}, apperrors.WithMetadata(apperrors.CodeCatalogEntryNotFound,
			"no decision catalog is loaded", map[string]string{"Key": key})
	}
	d, err := s.catalog.Build(s.trigger.Pipeline.Factory, key)
	if err != nil {
		return decision.Decision{}, err
	}
	err = s.update(ctx, sessionID, func(state session.State) (session.State, error) {
		next := session.Present(state, d)
		next.ActionsSinceDecision = 0
		return next, nil
	})
	if err != nil {
		return decision.Decision{}, err
	}
	s.notifier.DecisionReady(ctx, sessionID, d)
	return d, nil
}

// SelectResult describes a recorded choice.
type SelectResult struct {
	Record        decision.Record
	Narrative     string
	AcquiredItems []string
	RemovedItems  []string
	// FallbackNarrative is set when the narrator failed and the templated
	// narrative was used instead.
	FallbackNarrative bool
}

// Select records the player's choice, asks the narrator to continue the
// story, and applies the chosen option's impacts.
func (s *Service) Select(ctx context.Context, sessionID, decisionID, optionID string, inventory []string) (SelectResult, error) {
	var (
		selection session.Selection
		recent    []string
	)
	err := s.update(ctx, sessionID, func(state session.State) (session.State, error) {
		next, sel, err := session.BeginSelect(state, decisionID, optionID)
		if err != nil {
			return state, err
		}
		selection = sel
		recent = state.LastNarrative(session.MaxRecentNarrative)
		return next, nil
	})
	if err != nil {
		return SelectResult{}, err
	}

	response, fallback := s.narrate(ctx, NarrativeRequest{
		OptionText:      selection.Option.Text,
		Prompt:          selection.Decision.Prompt,
		RecentNarrative: recent,
		Inventory:       inventory,
	})

	var (
		record  decision.Record
		current *decision.Decision
	)
	err = s.update(context.WithoutCancel(ctx), sessionID, func(state session.State) (session.State, error) {
		next, created, err := session.CompleteSelect(state, selection, response.Narrative, s.now())
		if err != nil {
			return state, err
		}
		impacts, processed := consequence.ProcessDecisionImpacts(next.Impacts, created, s.now())
		next.Impacts = impacts
		next.History[len(next.History)-1] = processed
		next = session.AppendNarrative(next, response.Narrative)
		record = processed
		current = next.Current
		return next, nil
	})
	if err != nil {
		return SelectResult{}, err
	}

	if current == nil {
		s.notifier.DecisionCleared(ctx, sessionID)
	} else {
		s.notifier.ForceUpdate(ctx, sessionID)
	}
	return SelectResult{
		Record:            record,
		Narrative:         response.Narrative,
		AcquiredItems:     response.AcquiredItems,
		RemovedItems:      response.RemovedItems,
		FallbackNarrative: fallback,
	}, nil
}

// Clear abandons the current decision without recording it.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	err := s.update(ctx, sessionID, func(state session.State) (session.State, error) {
		return session.Clear(state), nil
	})
	if err != nil {
		return err
	}
	s.notifier.DecisionCleared(ctx, sessionID)
	return nil
}

// ConsumeSkipNarrative reports, once, whether the narrative layer should skip
// its response for this turn.
func (s *Service) ConsumeSkipNarrative(ctx context.Context, sessionID string) (bool, error) {
	var skip bool
	err := s.update(ctx, sessionID, func(state session.State) (session.State, error) {
		next, consumed := session.ConsumeSkipNarrative(state)
		skip = consumed
		return next, nil
	})
	return skip, err
}

// Scene is the current place, cast, and themes of a session.
type Scene struct {
	Location   *decision.Location
	Characters []string
	Themes     []string
}

// SetScene replaces the session's scene context.
func (s *Service) SetScene(ctx context.Context, sessionID string, scene Scene) error {
	return s.update(ctx, sessionID, func(state session.State) (session.State, error) {
		next := state.Clone()
		if scene.Location != nil {
			location := *scene.Location
			next.Location = &location
		} else {
			next.Location = nil
		}
		next.Characters = trimAll(scene.Characters)
		next.Themes = trimAll(scene.Themes)
		return next, nil
	})
}

// Evolve applies due decay to the session's temporary impacts. Nothing is
// saved or announced when no impact was due.
func (s *Service) Evolve(ctx context.Context, sessionID string) (impact.State, error) {
	var (
		out     impact.State
		changed bool
	)
	err := s.update(ctx, sessionID, func(state session.State) (session.State, error) {
		next := state.Clone()
		next.Impacts, next.History = consequence.EvolveImpactsOverTime(state.Impacts, state.History, s.now())
		out = next.Impacts
		if decayedCount(next.History) == decayedCount(state.History) {
			out = state.Impacts
			return state, errUnchanged
		}
		changed = true
		return next, nil
	})
	if err != nil {
		return impact.State{}, err
	}
	if changed {
		s.notifier.ForceUpdate(ctx, sessionID)
	}
	return out, nil
}

func decayedCount(history []decision.Record) int {
	n := 0
	for _, record := range history {
		for _, item := range record.Impacts {
			if item.Decayed {
				n++
			}
		}
	}
	return n
}

// State returns a snapshot of the session's story fragment.
func (s *Service) State(ctx context.Context, sessionID string) (session.State, error) {
	if err := validateSessionID(sessionID); err != nil {
		return session.State{}, err
	}
	unlock := s.lock(sessionID)
	defer unlock()
	return s.load(ctx, sessionID)
}

// History renders the decision digest for the session's current scene.
func (s *Service) History(ctx context.Context, sessionID string, limit int) (string, error) {
	state, err := s.State(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return relevance.CreateDecisionHistoryContext(state.History, relevance.HistoryQuery{
		Location:   state.Location,
		Characters: state.Characters,
		Themes:     state.Themes,
		Limit:      limit,
	}, s.now()), nil
}

// ListRecords returns one page of the session's persisted decision records.
func (s *Service) ListRecords(ctx context.Context, sessionID, filter string, pageSize int, pageToken string) (storage.DecisionRecordPage, error) {
	if err := validateSessionID(sessionID); err != nil {
		return storage.DecisionRecordPage{}, err
	}
	return s.store.ListDecisionRecords(ctx, sessionID, filter, pageSize, pageToken)
}

func (s *Service) resolve(ctx context.Context, req trigger.Request) trigger.Outcome {
	genCtx, cancel := context.WithTimeout(ctx, s.generationTimeout)
	defer cancel()
	return s.trigger.Pipeline.Resolve(genCtx, req)
}

// applyOutcome presents the outcome on the latest state. It runs detached
// from ctx cancellation. When presenting fails it still tries to release the
// generating flag; a lock that cannot be released expires after the
// generation timeout.
func (s *Service) applyOutcome(ctx context.Context, sessionID string, outcome trigger.Outcome, importance decision.Importance) (decision.Decision, error) {
	var presented decision.Decision
	detached := context.WithoutCancel(ctx)
	err := s.update(detached, sessionID, func(state session.State) (session.State, error) {
		next := s.trigger.Apply(state, outcome, importance)
		presented = *next.Current
		return next, nil
	})
	if err != nil {
		releaseErr := s.update(detached, sessionID, func(state session.State) (session.State, error) {
			return session.EndGeneration(state), nil
		})
		if releaseErr != nil {
			s.logf("session %s: release generating flag: %v", sessionID, releaseErr)
		}
		return decision.Decision{}, err
	}
	if outcome.Cause != nil {
		s.logf("session %s: presented fallback decision %s: %v", sessionID, presented.ID, outcome.Cause)
	}
	s.notifier.DecisionReady(ctx, sessionID, presented)
	return presented, nil
}

func (s *Service) narrate(ctx context.Context, req NarrativeRequest) (NarrativeResponse, bool) {
	if s.narrator != nil {
		narrCtx, cancel := context.WithTimeout(ctx, s.narrativeTimeout)
		defer cancel()
		response, err := s.narrator.RespondToChoice(narrCtx, req)
		if err == nil && strings.TrimSpace(response.Narrative) != "" {
			return response, false
		}
		if err == nil {
			err = errors.New("empty narrative")
		}
		s.logf("narrative response for %q failed: %v", req.OptionText, err)
	}
	return NarrativeResponse{Narrative: FallbackNarrative(req.OptionText)}, true
}

// FallbackNarrative is the templated continuation used when the narrator
// cannot answer.
func FallbackNarrative(optionText string) string {
	text := strings.TrimSpace(optionText)
	if text != "" {
		text = strings.ToLower(text[:1]) + text[1:]
	}
	return fmt.Sprintf(fallbackNarrativeFormat, text)
}

func (s *Service) update(ctx context.Context, sessionID string, fn func(session.State) (session.State, error)) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}
	unlock := s.lock(sessionID)
	defer unlock()

	state, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	next, err := fn(state)
	if errors.Is(err, errUnchanged) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.store.PutSession(ctx, sessionID, next); err != nil {
		return fmt.Errorf("save session %s: %w", sessionID, err)
	}
	return nil
}

func (s *Service) load(ctx context.Context, sessionID string) (session.State, error) {
	state, err := s.store.GetSession(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return session.New(), nil
	}
	if err != nil {
		return session.State{}, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	state, released := session.ReleaseStaleGeneration(state, s.now(), s.generationTimeout)
	if released {
		s.logf("session %s: released stale generating flag", sessionID)
	}
	return state, nil
}

func (s *Service) lock(sessionID string) func() {
	s.mu.Lock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		s.locks[sessionID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, sessionID)
		}
		s.mu.Unlock()
	}
}

func validateSessionID(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return apperrors.New(apperrors.CodeSessionEmptyID, "session id is required")
	}
	return nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
