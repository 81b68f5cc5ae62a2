// Package mqtt is the protocol engine boundary for mqttscope.
//
// It exposes a narrow Transport interface (open, close, subscribe,
// unsubscribe, publish) and reports what happens on the wire through an
// Events value (connected, message, error, closed, reconnecting). Sessions
// depend only on Transport, so they can be driven by a fake in tests.
//
// The production implementation wraps paho.mqtt.golang.
//
// # Architecture
//
//	session.Session → Transport (PahoTransport) → paho client → broker
//	broker → paho client → Events callbacks → session.Session
//
// Every connect attempt gets a fresh Transport. The session attaches its
// generation to the Events it hands to the Dialer, so callbacks from a torn
// down attempt can be recognised and ignored.
//
// # Transport Kinds
//
//   - tcp → mqtt://host:port
//   - tls → mqtts://host:port
//   - ws  → ws://host:port/mqtt
//   - wss → wss://host:port/mqtt
//
// # Protocol Versions
//
// paho.mqtt.golang speaks MQTT 3.1 and 3.1.1 (protocol levels 3 and 4).
// Callers map a requested 5.0 down to 3.1.1 before dialling.
//
// # Usage
//
//	t, err := mqtt.Dial(mqtt.Options{
//	    URL:            "mqtt://localhost:1883",
//	    ClientID:       "mqttscope-1a2b3c4d",
//	    CleanSession:   true,
//	    KeepAlive:      60 * time.Second,
//	    ConnectTimeout: 30 * time.Second,
//	}, mqtt.Events{
//	    OnMessage: func(m mqtt.InboundMessage) { fmt.Println(m.Topic) },
//	})
//	if err != nil {
//	    return err
//	}
//	if err := t.Connect(ctx); err != nil {
//	    return err
//	}
//	defer t.Disconnect(time.Second)
package mqtt
