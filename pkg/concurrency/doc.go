// Package concurrency provides the two goroutine-safety primitives the
// broker actually needs: SmartMutex/SmartRWMutex (observability-aware
// locks used by the Store key shards and the admin snapshot cache) and
// SafeGo (panic-recovering goroutine launch, used for cmd/nexod's
// listeners, the TCP server's accept watcher and read loops, and each
// queue's waker loop; other goroutines are started with a plain go).
package concurrency
