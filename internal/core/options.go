package core

import (
	"oraclevault/internal/blob"
	"oraclevault/internal/oracle"
)

// ServiceOption customizes a Service at construction time.
type ServiceOption func(*Service)

// WithBlobStore sets the store holding payload and result bytes.
func WithBlobStore(store blob.Store) ServiceOption {
	return func(s *Service) {
		if store != nil {
			s.blobs = store
		}
	}
}

// WithOracleGateway sets the outbound oracle transport.
func WithOracleGateway(gateway oracle.Gateway) ServiceOption {
	return func(s *Service) {
		if gateway != nil {
			s.gateway = gateway
		}
	}
}

// WithVerifier sets the callback proof verifier.
func WithVerifier(verifier oracle.Verifier) ServiceOption {
	return func(s *Service) {
		if verifier != nil {
			s.verifier = verifier
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder sets the metrics recorder.
func WithMetricsRecorder(metrics MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer Tracer) ServiceOption {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithAuditRecorder sets the audit sink.
func WithAuditRecorder(recorder AuditRecorder) ServiceOption {
	return func(s *Service) {
		if recorder != nil {
			s.audit = recorder
		}
	}
}

// WithClock overrides the service time source.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithEventSink attaches a durable sink to the service event log.
func WithEventSink(sink EventSink) ServiceOption {
	return func(s *Service) {
		s.eventSink = sink
	}
}
