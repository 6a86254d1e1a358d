// Command nexod runs the Nexo broker: the four engine mailboxes, the
// TCP wire-protocol listener, and the admin HTTP surface, wired
// together from environment configuration per pkg/config.
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/emanuel-epifani/nexo/internal/admin"
	"github.com/emanuel-epifani/nexo/internal/clock"
	"github.com/emanuel-epifani/nexo/internal/dispatcher"
	"github.com/emanuel-epifani/nexo/internal/persist"
	"github.com/emanuel-epifani/nexo/internal/pubsub"
	"github.com/emanuel-epifani/nexo/internal/queue"
	"github.com/emanuel-epifani/nexo/internal/server"
	"github.com/emanuel-epifani/nexo/internal/store"
	"github.com/emanuel-epifani/nexo/internal/stream"
	"github.com/emanuel-epifani/nexo/internal/supervisor"
	"github.com/emanuel-epifani/nexo/pkg/concurrency"
	"github.com/emanuel-epifani/nexo/pkg/config"
	"github.com/emanuel-epifani/nexo/pkg/errors"
	"github.com/emanuel-epifani/nexo/pkg/events"
	eventsmem "github.com/emanuel-epifani/nexo/pkg/events/adapters/memory"
	"github.com/emanuel-epifani/nexo/pkg/logger"
	"github.com/emanuel-epifani/nexo/pkg/messaging"
	"github.com/emanuel-epifani/nexo/pkg/messaging/adapters/kafka"
	"github.com/emanuel-epifani/nexo/pkg/streaming"
	"github.com/emanuel-epifani/nexo/pkg/streaming/adapters/eventhubs"
	"github.com/emanuel-epifani/nexo/pkg/streaming/adapters/kinesis"
	gcppubsub "github.com/emanuel-epifani/nexo/pkg/streaming/adapters/pubsub"
)

// Config is the process-wide environment configuration, validated on
// startup per pkg/config.Load.
type Config struct {
	Env string `env:"NEXO_ENV" env-default:"dev"`

	TCPAddr  string `env:"NEXO_TCP_ADDR" env-default:":7654"`
	HTTPAddr string `env:"NEXO_HTTP_ADDR" env-default:":8080"`
	DataDir  string `env:"NEXO_DATA_DIR" env-default:"./data"`

	MailboxSize int    `env:"NEXO_MAILBOX_SIZE" env-default:"256"`
	Persistence string `env:"NEXO_PERSISTENCE" env-default:"file_async" validate:"oneof=memory file_sync file_async"`

	// KafkaDLQBrokers, when set, forwards every queue dead letter to a
	// Kafka topic named after the originating queue's DLQ.
	KafkaDLQBrokers []string `env:"NEXO_KAFKA_DLQ_BROKERS" env-separator:","`

	// StreamSinkProvider, when set, mirrors every stream publish onto an
	// external streaming service: "kinesis" (AWS, default credential
	// chain), "eventhubs" (Azure, needs StreamSinkEventHubNamespace and
	// StreamSinkEventHubName), or "gcppubsub" (needs StreamSinkGCPProject).
	StreamSinkProvider          string `env:"NEXO_STREAM_SINK_PROVIDER" validate:"omitempty,oneof=kinesis eventhubs gcppubsub"`
	StreamSinkEventHubNamespace string `env:"NEXO_STREAM_SINK_EVENTHUB_NAMESPACE"`
	StreamSinkEventHubName      string `env:"NEXO_STREAM_SINK_EVENTHUB_NAME"`
	StreamSinkGCPProject        string `env:"NEXO_STREAM_SINK_GCP_PROJECT"`

	// MQTTBrokerURL, when set, mirrors every pubsub publish onto an
	// external MQTT broker for interop with MQTT-native devices.
	MQTTBrokerURL string `env:"NEXO_MQTT_BRIDGE_URL"`

	Log logger.Config
}

func (c Config) persistMode() persist.Mode {
	switch c.Persistence {
	case "file_sync":
		return persist.FileSync
	case "memory":
		return persist.Memory
	default:
		return persist.FileAsync
	}
}

func main() {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger.Init(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.L().ErrorContext(ctx, "nexod exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config) error {
	c := clock.System{}
	mode := cfg.persistMode()

	queueOpts, closeQueueBridge := queueBridgeOptions(ctx, cfg)
	defer closeQueueBridge()
	streamOpts := streamBridgeOptions(ctx, cfg)
	pubsubOpts := pubsubBridgeOptions(cfg)

	storeEngine := store.New(c, cfg.MailboxSize)
	queueEngine := queue.New(c, cfg.MailboxSize, cfg.DataDir+"/queue", queueOpts...)
	streamEngine := stream.New(c, cfg.MailboxSize, cfg.DataDir+"/stream", streamOpts...)
	pubsubEngine, err := pubsub.New(c, cfg.MailboxSize, cfg.DataDir+"/pubsub", mode, pubsubOpts...)
	if err != nil {
		return err
	}

	bus := eventsmem.New()
	_ = bus.Subscribe(ctx, "connection.closed", func(ctx context.Context, e events.Event) error {
		closed, _ := e.Payload.(server.ConnectionClosed)
		logger.L().DebugContext(ctx, "connection closed",
			"source", e.Source,
			"pubsub_subscriptions", closed.PubSubSubscriptions,
			"stream_memberships", closed.StreamMemberships)
		return nil
	})

	engineCtx, cancelEngines := context.WithCancel(ctx)
	defer cancelEngines()
	go supervisor.Run(engineCtx, "store", storeEngine)
	go supervisor.Run(engineCtx, "queue", queueEngine)
	go supervisor.Run(engineCtx, "stream", streamEngine)
	go supervisor.Run(engineCtx, "pubsub", pubsubEngine)

	d := &dispatcher.Dispatcher{Store: storeEngine, Queue: queueEngine, Stream: streamEngine, PubSub: pubsubEngine}

	ln, err := net.Listen("tcp", cfg.TCPAddr)
	if err != nil {
		return err
	}
	srv := server.New(ln, d, bus)

	httpServer := &http.Server{Addr: cfg.HTTPAddr}
	if cfg.Env != "prod" {
		router := &admin.Router{Store: storeEngine, Queue: queueEngine, Stream: streamEngine, PubSub: pubsubEngine}
		httpServer.Handler = admin.NewEcho(router)
	}

	serveErrs := make(chan error, 2)
	concurrency.SafeGo(ctx, func() { serveErrs <- srv.Serve(ctx) })
	if httpServer.Handler != nil {
		concurrency.SafeGo(ctx, func() {
			logger.L().InfoContext(ctx, "admin http listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				serveErrs <- err
			}
		})
	}

	logger.L().InfoContext(ctx, "nexod started", "tcp_addr", cfg.TCPAddr, "data_dir", cfg.DataDir, "persistence", cfg.Persistence)

	select {
	case <-ctx.Done():
	case err := <-serveErrs:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	return nil
}

// queueBridgeOptions dials Kafka for dead-letter export when brokers
// are configured. The returned closer is always safe to call.
func queueBridgeOptions(ctx context.Context, cfg Config) ([]queue.Option, func()) {
	if len(cfg.KafkaDLQBrokers) == 0 {
		return nil, func() {}
	}
	kafkaBroker, err := kafka.New(kafka.Config{Brokers: cfg.KafkaDLQBrokers})
	if err != nil {
		logger.L().WarnContext(ctx, "kafka dlq bridge disabled: dial failed", "error", err)
		return nil, func() {}
	}
	var broker messaging.Broker = messaging.NewInstrumentedBroker(kafkaBroker)
	broker = messaging.NewResilientBroker(broker, messaging.ResilientBrokerConfig{
		CircuitBreakerEnabled: true,
		RetryEnabled:          true,
		RetryMaxAttempts:      3,
	})
	producer, err := broker.Producer("")
	if err != nil {
		logger.L().WarnContext(ctx, "kafka dlq bridge disabled: producer failed", "error", err)
		_ = broker.Close()
		return nil, func() {}
	}
	return []queue.Option{queue.WithDLQForward(producer)}, func() {
		_ = producer.Close()
		_ = broker.Close()
	}
}

func streamBridgeOptions(ctx context.Context, cfg Config) []stream.Option {
	sink, err := newStreamSink(ctx, cfg)
	if err != nil {
		logger.L().WarnContext(ctx, "stream sink disabled: dial failed", "provider", cfg.StreamSinkProvider, "error", err)
		return nil
	}
	if sink == nil {
		return nil
	}
	return []stream.Option{stream.WithSink(sink)}
}

func newStreamSink(ctx context.Context, cfg Config) (streaming.Client, error) {
	switch cfg.StreamSinkProvider {
	case "":
		return nil, nil
	case "kinesis":
		return kinesis.New(ctx)
	case "eventhubs":
		return eventhubs.New(cfg.StreamSinkEventHubNamespace, cfg.StreamSinkEventHubName)
	case "gcppubsub":
		return gcppubsub.New(ctx, cfg.StreamSinkGCPProject)
	default:
		return nil, errors.InvalidArgument("unknown stream sink provider: "+cfg.StreamSinkProvider, nil)
	}
}

func pubsubBridgeOptions(cfg Config) []pubsub.Option {
	if cfg.MQTTBrokerURL == "" {
		return nil
	}
	opts := mqtt.NewClientOptions().AddBroker(cfg.MQTTBrokerURL).SetClientID("nexod")
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		logger.L().Warn("mqtt bridge disabled: connect failed", "error", token.Error())
		return nil
	}
	return []pubsub.Option{pubsub.WithMQTTBridge(client)}
}
