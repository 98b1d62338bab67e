package trigger

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// decisionMarkers are phrasings a narrator uses when it hands the story over
// to the player for a choice.
var decisionMarkers = []string{
	"[decision]",
	"what will you do?",
	"what do you do?",
	"what will you choose?",
	"you must decide",
	"you must choose",
	"make a choice",
	"make your choice",
	"the choice is yours",
	"choose wisely",
	"decision point",
}

// actionPrefixes mark text written by the player rather than the narrator.
var actionPrefixes = []string{">", "i ", "i'", "we ", "player:"}

var playerNamePattern = regexp.MustCompile(`(?i)\b(?:my name is|call me|i am called|they call me)\s+([\p{L}][\p{L}'-]{1,29})`)

// HasDecisionMarker reports whether text explicitly asks the player to choose.
func HasDecisionMarker(text string) bool {
	lowered := strings.ToLower(text)
	for _, marker := range decisionMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// IsPlayerAction reports whether text reads as a player action: a command
// line starting with '>' or a first-person statement.
func IsPlayerAction(text string) bool {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return false
	}
	for _, prefix := range actionPrefixes {
		if strings.HasPrefix(lowered, prefix) {
			return true
		}
	}
	return false
}

// DetectPlayerName extracts a self-introduced name such as "my name is
// aria", returned title-cased.
func DetectPlayerName(text string) (string, bool) {
	match := playerNamePattern.FindStringSubmatch(text)
	if len(match) < 2 {
		return "", false
	}
	return cases.Title(language.English).String(match[1]), true
}
