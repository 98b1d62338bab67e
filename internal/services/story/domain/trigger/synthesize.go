package trigger

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/louisbranch/chronicle/internal/services/story/domain/decision"
)

// SynthesisLines is how many of the newest narrative lines feed a local decision.
const SynthesisLines = 3

type optionTemplate struct {
	text     string
	impact   string
	approach string
}

type sceneTemplate struct {
	theme    string
	keywords []string
	prompt   string
	options  []optionTemplate
}

// sceneTemplates are checked in order; the last one matches anything.
var sceneTemplates = []sceneTemplate{
	{
		theme:    "danger",
		keywords: []string{"attack", "ambush", "blood", "sword", "monster", "threat", "danger", "fight", "bandit", "wolves"},
		prompt:   "Danger closes in%s. How do you respond?",
		options: []optionTemplate{
			{text: "Stand your ground and fight", impact: "You meet the threat head on, whatever it costs", approach: "bold"},
			{text: "Fall back and look for an advantage", impact: "You trade ground for time to think", approach: "cautious"},
			{text: "Try to talk your way out", impact: "Words may succeed where steel would not", approach: "diplomatic"},
		},
	},
	{
		theme:    "encounter",
		keywords: []string{"stranger", "merchant", "villager", "guard", "offers", "asks", "request", "begs", "whispers", "traveler"},
		prompt:   "Someone is waiting on your answer%s. What do you say?",
		options: []optionTemplate{
			{text: "Agree to help", impact: "You earn goodwill but take on a burden", approach: "generous"},
			{text: "Ask what is in it for you", impact: "You may profit, though trust will be thin", approach: "shrewd"},
			{text: "Politely decline and move on", impact: "You keep your freedom and lose an ally", approach: "cautious"},
		},
	},
	{
		theme:    "mystery",
		keywords: []string{"door", "path", "cave", "ruins", "map", "strange", "mysterious", "hidden", "crossroads", "tracks"},
		prompt:   "Something here does not add up%s. What do you do?",
		options: []optionTemplate{
			{text: "Investigate closely", impact: "You may uncover a secret, or disturb it", approach: "curious"},
			{text: "Mark the place and return later", impact: "You lose time but keep your options open", approach: "patient"},
			{text: "Leave it alone", impact: "Some doors are better left closed", approach: "cautious"},
		},
	},
	{
		theme:  "journey",
		prompt: "The road ahead splits%s. Which way do you go?",
		options: []optionTemplate{
			{text: "Press on toward your goal", impact: "You make progress, though you may miss something", approach: "bold"},
			{text: "Rest and gather your strength", impact: "You recover, but the world does not wait", approach: "cautious"},
			{text: "Explore the surroundings", impact: "You may find something unexpected", approach: "curious"},
		},
	},
}

// Synthesize builds a decision locally from the newest narrative lines, the
// scene location, and the player's name. The same request always yields the
// same prompt and options.
func Synthesize(factory decision.Factory, req Request) decision.Decision {
	lines := req.Session.LastNarrative(SynthesisLines)
	narrative := strings.Join(lines, " ")
	if extra := strings.TrimSpace(req.Context); extra != "" && !strings.Contains(narrative, extra) {
		narrative = strings.TrimSpace(narrative + " " + extra)
	}
	scene := matchScene(narrative)

	title := cases.Title(language.English)
	place := ""
	if location := req.Session.Location; location != nil && strings.TrimSpace(location.Name) != "" {
		place = " near " + title.String(strings.TrimSpace(location.Name))
	}
	prompt := fmt.Sprintf(scene.prompt, place)
	if name := strings.TrimSpace(req.Session.PlayerName); name != "" {
		prompt = title.String(name) + ", " + lowerFirst(prompt)
	}

	importance, ok := decision.ParseImportance(string(req.Importance))
	if !ok {
		importance = decision.ImportanceModerate
	}

	now := factory.Now()
	options := make([]decision.Option, 0, len(scene.options))
	for i, tmpl := range scene.options {
		option, err := factory.CreateOption(tmpl.text, tmpl.impact, "approach:"+tmpl.approach, decision.ThemeTag(scene.theme))
		if err != nil {
			option = decision.Option{
				ID:     fallbackID(fmt.Sprintf("option-%d", i+1), now.UnixNano()),
				Text:   tmpl.text,
				Impact: tmpl.impact,
				Tags:   []string{"approach:" + tmpl.approach, decision.ThemeTag(scene.theme)},
			}
		}
		options = append(options, option)
	}

	input := decision.CreateDecisionInput{
		Prompt:           prompt,
		Options:          options,
		NarrativeContext: narrative,
		Importance:       importance,
		Location:         req.Session.Location,
		Characters:       req.Session.Characters,
		Generated:        true,
	}
	d, err := factory.CreateDecision(input)
	if err != nil {
		d = decision.Decision{
			ID:               fallbackID("decision", now.UnixNano()),
			Prompt:           input.Prompt,
			CreatedAt:        now.UTC(),
			Options:          input.Options,
			NarrativeContext: input.NarrativeContext,
			Importance:       input.Importance,
			Location:         input.Location,
			Characters:       input.Characters,
			Generated:        true,
		}
		d = d.Clone()
	}
	return d
}

func matchScene(narrative string) sceneTemplate {
	lowered := strings.ToLower(narrative)
	for _, scene := range sceneTemplates {
		for _, keyword := range scene.keywords {
			if strings.Contains(lowered, keyword) {
				return scene
			}
		}
	}
	return sceneTemplates[len(sceneTemplates)-1]
}

func lowerFirst(text string) string {
	if text == "" {
		return text
	}
	return strings.ToLower(text[:1]) + text[1:]
}

func fallbackID(kind string, nanos int64) string {
	return fmt.Sprintf("local-%s-%d", kind, nanos)
}
