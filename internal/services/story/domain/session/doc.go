// Package session holds the story fragment of a play session and the
// decision lifecycle that runs over it.
//
// The lifecycle has three phases: no decision, a decision presented to the
// player, and a selection being recorded while the narrative response to the
// chosen option is outstanding. Every transition is a pure function from a
// State to a new State; nothing here performs I/O or keeps hidden globals.
package session
