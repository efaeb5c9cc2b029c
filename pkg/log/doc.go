// Package log provides structured protocol logging for the LIFX LAN client.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at multiple layers (transport, wire, session).
// It is separate from operational logging (slog) - protocol capture provides
// a complete machine-readable event trace for debugging and analysis.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	logger := log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	logger, _ := log.NewFileLogger("/var/log/lifx/session.lifxlog")
//
//	// Both: use MultiLogger
//	logger := log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Events are captured at multiple layers:
//   - Transport: Raw datagrams in and out (PacketEvent with undecoded type)
//   - Wire: Decoded packet headers (PacketEvent)
//   - Session: Request and discovery lifecycle (StateChangeEvent)
//
// Decode anomalies and send failures have a dedicated error event type.
//
// # File Format
//
// Log files use CBOR encoding with .lifxlog extension. The lifx-log CLI
// tool provides viewing and statistics.
package log
