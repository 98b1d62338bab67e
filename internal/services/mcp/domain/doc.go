// Package domain translates MCP tool calls and resource reads into story
// service operations.
//
// Handlers parse MCP input, resolve the session from the input or the
// current context, call the story service, and shape structured output that
// MCP clients can render.
package domain
