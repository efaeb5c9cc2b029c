// Package session turns unreliable, unordered, possibly-duplicated UDP
// exchanges with LIFX devices into a request/response abstraction.
//
// A Session owns one transport endpoint and a stable 32-bit source
// identifier. Every outgoing request gets a fresh sequence number
// (wrapping modulo 256); the (source, sequence) pair is the correlation
// key that matches device responses back to their pending request.
//
// # Request Lifecycle
//
// Send registers a pending request, transmits the encoded packet and
// waits for a matching response. Each attempt has its own wait budget;
// expiry triggers an idempotent resend of the identical bytes under the
// same sequence number, bounded by the retry limit. Exhausting retries
// yields ErrDeviceUnreachable. Requests that expect no response return as
// soon as the send succeeds.
//
// # Discovery
//
// Discover broadcasts a GetService packet to every subnet broadcast
// address and collects StateService responses in accept-any-responder
// mode, deduplicating repeated answers from the same device. Collection
// ends when the settle window elapses with no new responder, or when the
// overall timeout is reached. Discovered devices are upserted into the
// session's registry on the dispatch path.
//
// # Concurrency
//
// A single reader goroutine drains the endpoint and dispatches every
// inbound datagram without blocking on any request's resolution. Pending
// requests are timed and retried independently; cancelling one (via its
// context) releases only that request. Stale or unsolicited packets and
// decode anomalies are logged and dropped - normal network noise, never a
// failure of an in-flight request.
package session
