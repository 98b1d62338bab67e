// Package generation implements the story service's language-model
// collaborators over the OpenAI chat completions API.
//
// Client satisfies both trigger.Generator, which proposes decisions, and
// app.Narrator, which continues the story after a choice. Replies are asked
// for as JSON objects; prompt size is bounded by Config.MaxPromptRunes.
package generation
