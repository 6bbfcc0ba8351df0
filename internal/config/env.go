package config

// Environment variables used by the relay.
const (
	// Geyser gRPC endpoint url - https scheme or host:port
	GRPC_ENDPOINT = "RELAY_GRPC_ENDPOINT"
	// Geyser x-token credential. Empty means unauthenticated
	GRPC_TOKEN = "RELAY_GRPC_TOKEN"
	// On-chain program whose create transactions are relayed
	PROGRAM_ID = "RELAY_PROGRAM_ID"

	// Tcp listen address for downstream subscribers. Default is 0.0.0.0:8725
	TCP_ADDR = "RELAY_TCP_ADDR"

	// Prometheus metrics listen address. Empty disables the listener
	METRICS_ADDR = "RELAY_METRICS_ADDR"

	// Log verbosity: debug, info, warn or error. Default is info
	LOG_LEVEL = "LOG_LEVEL"
)
