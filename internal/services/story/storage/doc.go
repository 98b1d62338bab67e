// Package storage defines persistence contracts for the story service.
//
// The story fragment of a session is stored wholesale as one JSON value.
// Stores also index each resolved decision so history can be listed and
// filtered without decoding whole sessions.
package storage
