// Package branding holds product naming shared by servers and prompts.
package branding

// AppName is the product name shown to MCP clients and model prompts.
const AppName = "Chronicle"
