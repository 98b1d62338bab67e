package generation

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/louisbranch/chronicle/internal/services/story/app"
	"github.com/louisbranch/chronicle/internal/services/story/domain/relevance"
	"github.com/louisbranch/chronicle/internal/services/story/domain/trigger"
)

const decisionSystemPrompt = `You are the game master of a text role-playing game.
Offer the player one meaningful decision that grows out of the recent story.
Reply with a single JSON object and nothing else:
{"prompt": string, "narrative_context": string, "importance": "minor"|"moderate"|"significant"|"critical",
 "characters": [string],
 "options": [{"text": string, "impact": string, "tags": [string],
   "impacts": [{"type": "reputation"|"relationship"|"world-state"|"story-arc", "target": string,
     "value": number, "severity": "minor"|"moderate"|"major", "duration_ms": number}]}]}
Offer two to four options. Relationship targets are "actor:recipient". Omit duration_ms for lasting effects.`

const narrativeSystemPrompt = `You are the narrator of a text role-playing game.
The player has just made a choice. Continue the story in two to four vivid sentences in the second person.
Reply with a single JSON object and nothing else:
{"narrative": string, "acquired_items": [string], "removed_items": [string]}`

// prompt is a user prompt split into parts that can be dropped to fit a
// rune budget. Narrative lines go first, oldest first, then the history.
type prompt struct {
	head      []string
	history   string
	narrative []string
	tail      []string
}

func (p prompt) render() string {
	var b strings.Builder
	for _, line := range p.head {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if p.history != "" {
		b.WriteByte('\n')
		b.WriteString(p.history)
		b.WriteByte('\n')
	}
	if len(p.narrative) > 0 {
		b.WriteString("\nRecent narrative:\n")
		for _, line := range p.narrative {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	if len(p.tail) > 0 {
		b.WriteByte('\n')
		for _, line := range p.tail {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return strings.TrimSpace(b.String())
}

// fit renders p within maxRunes.
func (p prompt) fit(maxRunes int) string {
	for {
		text := p.render()
		if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
			return text
		}
		switch {
		case len(p.narrative) > 0:
			p.narrative = p.narrative[1:]
		case p.history != "":
			p.history = ""
		default:
			return truncateRunes(text, maxRunes)
		}
	}
}

func truncateRunes(text string, maxRunes int) string {
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes])
}

func buildDecisionPrompt(req trigger.Request, now time.Time, maxRunes int) string {
	state := req.Session
	p := prompt{}
	if req.Force {
		p.head = append(p.head, "The story has reached a decision point. Present a decision now.")
	} else {
		p.head = append(p.head, "Present a decision that fits the current moment.")
	}
	if state.PlayerName != "" {
		p.head = append(p.head, "Player: "+state.PlayerName)
	}
	if loc := state.Location; loc != nil {
		if loc.Name != "" {
			p.head = append(p.head, fmt.Sprintf("Location: %s (%s)", loc.Name, loc.Type))
		} else if loc.Type != "" {
			p.head = append(p.head, fmt.Sprintf("Location: %s", loc.Type))
		}
	}
	if len(state.Characters) > 0 {
		p.head = append(p.head, "Characters present: "+strings.Join(state.Characters, ", "))
	}
	if len(state.Themes) > 0 {
		p.head = append(p.head, "Themes: "+strings.Join(state.Themes, ", "))
	}
	if req.Importance != "" {
		p.head = append(p.head, "Importance: "+string(req.Importance))
	}

	p.history = relevance.CreateDecisionHistoryContext(state.History, relevance.HistoryQuery{
		Location:   state.Location,
		Characters: state.Characters,
		Themes:     state.Themes,
	}, now)
	p.narrative = state.LastNarrative(len(state.RecentNarrative))
	if extra := strings.TrimSpace(req.Context); extra != "" && !endsWith(p.narrative, extra) {
		p.tail = append(p.tail, "Latest: "+extra)
	}
	return p.fit(maxRunes)
}

func buildNarrativePrompt(req app.NarrativeRequest, maxRunes int) string {
	p := prompt{}
	if strings.TrimSpace(req.Prompt) != "" {
		p.head = append(p.head, "Decision: "+strings.TrimSpace(req.Prompt))
	}
	p.head = append(p.head, "Choice: "+strings.TrimSpace(req.OptionText))
	if len(req.Inventory) > 0 {
		p.head = append(p.head, "Inventory: "+strings.Join(req.Inventory, ", "))
	}
	p.narrative = append([]string(nil), req.RecentNarrative...)
	return p.fit(maxRunes)
}

func endsWith(lines []string, text string) bool {
	return len(lines) > 0 && lines[len(lines)-1] == text
}
