package trigger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/louisbranch/chronicle/internal/services/story/domain/decision"
	"github.com/louisbranch/chronicle/internal/services/story/domain/session"
)

var (
	// ErrNoDecision is reported when the generator returns neither a decision nor an error.
	ErrNoDecision = errors.New("generator returned no decision")
	// ErrEmptyPrompt rejects generated decisions without a prompt.
	ErrEmptyPrompt = errors.New("decision prompt is empty")
	// ErrNoOptions rejects generated decisions without options.
	ErrNoOptions = errors.New("decision has no options")
)

// Request is what a decision generator is given.
type Request struct {
	// Session is a snapshot of the story fragment at trigger time.
	Session session.State
	// Context is the narrative text or caller-supplied context that prompted
	// the decision.
	Context string
	// Force is set when the decision was asked for explicitly rather than by
	// action cadence.
	Force bool
	// Importance, when set, is stamped on the resulting decision.
	Importance decision.Importance
}

// Generator produces a decision remotely. A nil decision with a nil error is
// treated the same as an error.
type Generator interface {
	GenerateDecision(ctx context.Context, req Request) (*decision.Decision, error)
}

// Source records which pipeline stage produced a decision.
type Source string

const (
	SourceRemote   Source = "remote"
	SourceFallback Source = "fallback"
)

// Outcome is the result of resolving a request. Decision is always usable.
type Outcome struct {
	Decision decision.Decision
	Source   Source
	// Cause is the remote failure that sent the request to the fallback.
	Cause error
}

// Pipeline resolves requests through the remote generator with a local
// fallback.
type Pipeline struct {
	// Generator may be nil, in which case every request is synthesized.
	Generator Generator
	Factory   decision.Factory
	// Logf defaults to log.Printf.
	Logf func(format string, args ...any)
}

// Resolve returns a decision for req, falling back to Synthesize when the
// generator is missing, fails, or returns something VerifyDecisionContext
// rejects.
func (p Pipeline) Resolve(ctx context.Context, req Request) Outcome {
	var cause error
	if p.Generator != nil {
		generated, err := p.Generator.GenerateDecision(ctx, req)
		switch {
		case err != nil:
			cause = fmt.Errorf("generate decision: %w", err)
		case generated == nil:
			cause = ErrNoDecision
		default:
			if err := VerifyDecisionContext(generated); err != nil {
				cause = fmt.Errorf("verify generated decision: %w", err)
			} else {
				return Outcome{Decision: p.normalize(*generated, req), Source: SourceRemote}
			}
		}
		p.logf("decision generation fell back to local synthesis: %v", cause)
	}
	return Outcome{Decision: Synthesize(p.Factory, req), Source: SourceFallback, Cause: cause}
}

// VerifyDecisionContext rejects decisions with an empty prompt or no options.
func VerifyDecisionContext(d *decision.Decision) error {
	if d == nil {
		return ErrNoDecision
	}
	if strings.TrimSpace(d.Prompt) == "" {
		return ErrEmptyPrompt
	}
	if len(d.Options) == 0 {
		return ErrNoOptions
	}
	return nil
}

// normalize fills what a remote generator may leave out and stamps the
// requested importance.
func (p Pipeline) normalize(d decision.Decision, req Request) decision.Decision {
	out := d.Clone()
	if out.ID == "" || out.CreatedAt.IsZero() {
		rebuilt, err := p.Factory.CreateDecision(decision.CreateDecisionInput{
			Prompt:           out.Prompt,
			Options:          out.Options,
			NarrativeContext: out.NarrativeContext,
			Importance:       out.Importance,
			Location:         out.Location,
			Characters:       out.Characters,
			Generated:        true,
		})
		if err == nil {
			if out.ID != "" {
				rebuilt.ID = out.ID
			}
			out = rebuilt
		} else {
			p.logf("stamp generated decision: %v", err)
			if out.ID == "" {
				out.ID = fallbackID("decision", p.Factory.Now().UnixNano())
			}
			if out.CreatedAt.IsZero() {
				out.CreatedAt = p.Factory.Now().UTC()
			}
		}
	}
	for i := range out.Options {
		if out.Options[i].ID != "" {
			continue
		}
		out.Options[i].ID = fmt.Sprintf("%s-option-%d", out.ID, i+1)
	}
	if importance, ok := decision.ParseImportance(string(req.Importance)); ok {
		out.Importance = importance
	} else if _, ok := decision.ParseImportance(string(out.Importance)); !ok {
		out.Importance = decision.ImportanceModerate
	}
	out.Generated = true
	return out
}

func (p Pipeline) logf(format string, args ...any) {
	if p.Logf != nil {
		p.Logf(format, args...)
		return
	}
	log.Printf(format, args...)
}
