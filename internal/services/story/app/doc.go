// Package app runs the story engine for many sessions at once.
//
// Service loads a session's story fragment, applies one domain transition,
// and saves the result, holding a per-session lock only while it touches
// state. Calls to the decision generator and the narrator happen outside
// that lock: the session is marked with a soft lock first, and the result is
// applied to whatever state is current once the call returns.
//
// Server hosts the optional gRPC health endpoint for the story binary.
package app
