// Package protocol names the command tags each engine recognizes on
// the wire, per SPEC_FULL.md §4. Tags are scoped per wire.Engine, so
// StoreSet and QueueCreate can share the byte value 1. Snapshot/
// Messages admin queries have no wire tag here: the admin surface is
// the separate HTTP listener in internal/admin, not this protocol.
package protocol

const (
	StoreSet byte = iota + 1
	StoreGet
	StoreDel
	StoreLen
)

const (
	QueueCreate byte = iota + 1
	QueueDelete
	QueueExists
	QueuePush
	QueueConsume
	QueueAck
	QueueNack
)

const (
	StreamCreate byte = iota + 1
	StreamDelete
	StreamPublish
	StreamJoin
	StreamLeave
	StreamFetch
	StreamCommit
)

// PubSubDisconnect has no wire tag: it is inferred from TCP connection
// close by internal/server, never sent as a framed command.
const (
	PubSubSubscribe byte = iota + 1
	PubSubUnsubscribe
	PubSubPublish
)
