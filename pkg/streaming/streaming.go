// Package streaming is the Client contract a Stream partition's
// external mirror sink implements (see internal/stream's WithSink),
// plus the three cloud adapters that exercise it: adapters/kinesis,
// adapters/eventhubs and adapters/pubsub. Which one is live, if any,
// is a process-level choice (cmd/nexod's NEXO_STREAM_SINK_PROVIDER),
// not a per-stream one, so unlike pkg/messaging there is no
// per-adapter Config type here — each adapter takes exactly the
// arguments it needs to dial (a namespace, a project ID, ambient AWS
// credentials) and nothing more.
package streaming

import "context"

// Client abstracts the external streaming services a Stream partition
// can mirror published records onto.
type Client interface {
	// PutRecord writes a single record to streamName, ordered within
	// partitionKey where the backend supports ordering keys.
	PutRecord(ctx context.Context, streamName string, partitionKey string, data []byte) error

	// Close releases the client's underlying connection.
	Close() error
}
