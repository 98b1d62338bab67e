// Package timeouts defines shared timeout constants used across services.
// Centralizing these values prevents drift between service boundaries and
// makes the durations discoverable.
package timeouts

import "time"

// Generation caps one decision-generation call to the model provider. The
// local fallback takes over once it elapses.
const Generation = 20 * time.Second

// Narrative caps one narrative-response call made after an option is chosen.
const Narrative = 20 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers and telemetry exporters wait for in-flight
// work during graceful shutdown.
const Shutdown = 5 * time.Second
