// Package observability provides logging and metrics support for the
// researcher identity service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for matches, upstream requests, and persistence
//   - Context helpers for propagating observability data
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    Output:    "stdout",
//	    AddSource: true,
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("request_id", reqID).Msg("match started")
//
// Add match context to logger:
//
//	logger = observability.WithMatchContext(logger, requestID, localRecordID)
//
// # Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics("researcher_identity")
//
// Record metrics:
//
//	metrics.RecordMatchCompleted("scored", 0.8, 1.2)
//	metrics.RecordUpstreamRequest("registry", "record", 0.3)
//
// # Context Helpers
//
// Store and retrieve request context:
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	ctx = observability.WithLocalRecordID(ctx, localRecordID)
//
//	reqID := observability.RequestIDFromContext(ctx)
//	recordID := observability.LocalRecordIDFromContext(ctx)
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - request_id: HTTP request identifier
//   - local_record_id: Local researcher record identifier
//   - identifier: Canonical researcher identifier
//   - query: Reconciliation search query
//   - source: Upstream source (registry, bibliography, scholar_web)
//   - confidence: Match confidence score
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
