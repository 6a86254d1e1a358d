package pubsub

import (
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/emanuel-epifani/nexo/pkg/logger"
)

// MQTTPublisher is the slice of mqtt.Client this engine needs, so a
// test can fake it without standing up a broker connection.
type MQTTPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithMQTTBridge mirrors every publish onto an external MQTT broker,
// letting MQTT-native devices subscribe through a standard client
// instead of this engine's own wire protocol.
func WithMQTTBridge(client MQTTPublisher) Option {
	return func(e *Engine) { e.mqttBridge = client }
}

func (e *Engine) mirrorToMQTT(topic string, payload []byte, retain bool) {
	if e.mqttBridge == nil {
		return
	}
	token := e.mqttBridge.Publish(topic, 0, retain, payload)
	go func() {
		if token.Wait() && token.Error() != nil {
			logger.L().Warn("mqtt bridge publish failed", "topic", topic, "error", token.Error())
		}
	}()
}
