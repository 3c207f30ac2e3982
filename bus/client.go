// Package bus defines the publish/subscribe contract the Bridge depends
// on, and provides an MQTT-backed implementation of it.
package bus

// MessageHandler receives one message delivered on a subscribed topic.
type MessageHandler func(topic string, payload []byte)

// Client is the thin publish/subscribe contract the Bridge is built
// against. The bridge never depends on a concrete MQTT library directly;
// it only ever sees this interface, so the transport can be swapped or
// faked in tests.
type Client interface {
	// Publish sends payload to topic. retained publications are kept by
	// the broker and delivered to new subscribers immediately.
	Publish(topic string, payload []byte, retained bool) error
	// Subscribe registers handler for every message delivered on topic
	// (which may be a wildcard pattern).
	Subscribe(topic string, handler MessageHandler) error
	// Unsubscribe removes a prior Subscribe registration.
	Unsubscribe(topic string) error
	// Disconnect closes the connection. It publishes nothing itself; the
	// configured will is not sent on a clean disconnect.
	Disconnect()
}
