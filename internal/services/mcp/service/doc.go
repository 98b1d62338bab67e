// Package service wires MCP transports to the story domain handlers.
//
// It runs MCP over stdio or streamable HTTP, registers tool and resource
// modules, and implements the story service's notifier as MCP
// resources/updated notifications.
package service
