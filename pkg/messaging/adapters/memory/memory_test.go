package memory_test

import (
	"testing"

	"github.com/emanuel-epifani/nexo/pkg/messaging/adapters/memory"
	"github.com/emanuel-epifani/nexo/pkg/messaging/tests"
)

func TestMemoryBroker(t *testing.T) {
	broker := memory.New(memory.Config{MaxPerTopic: 100})
	defer broker.Close()

	tests.RunBrokerTests(t, broker)
}
