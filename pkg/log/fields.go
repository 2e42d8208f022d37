package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Collaboration
	FieldRoomID        = "room_id"
	FieldParticipantID = "participant_id"
	FieldTopic         = "topic"
	FieldDestination   = "destination"
	FieldVersion       = "version"
	FieldSessionID     = "session_id"

	// Service
	FieldService   = "service"
	FieldComponent = "component"

	// gRPC
	FieldGRPCMethod = "grpc_method"
	FieldGRPCCode   = "grpc_code"
)
