package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementThroughput = "mqtt_throughput"
	measurementConnection = "mqtt_connection"
)

// Throughput is one sampling interval of aggregate traffic.
type Throughput struct {
	Time     time.Time
	Received uint64 // messages received during the interval
	Sent     uint64 // messages sent during the interval
	Retained int    // messages held by the store at sample time
	Topics   int    // distinct topics seen so far
}

// WriteThroughput records one throughput sample.
func (c *Client) WriteThroughput(t Throughput) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(throughputPoint(t))
}

// WriteConnectionState records a state transition of one connection.
func (c *Client) WriteConnectionState(connectionID, state string, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(connectionStatePoint(connectionID, state, at))
}

// WriteConnectionTraffic records running totals for one connection.
func (c *Client) WriteConnectionTraffic(connectionID string, received, sent uint64, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(connectionTrafficPoint(connectionID, received, sent, at))
}

func throughputPoint(t Throughput) *write.Point {
	return write.NewPoint(
		measurementThroughput,
		map[string]string{},
		map[string]interface{}{
			"received":          t.Received,
			"sent":              t.Sent,
			"total":             t.Received + t.Sent,
			"retained_messages": t.Retained,
			"topics":            t.Topics,
		},
		t.Time,
	)
}

func connectionStatePoint(connectionID, state string, at time.Time) *write.Point {
	return write.NewPoint(
		measurementConnection,
		map[string]string{"connection_id": connectionID},
		map[string]interface{}{
			"state":     state,
			"connected": state == "connected",
		},
		at,
	)
}

func connectionTrafficPoint(connectionID string, received, sent uint64, at time.Time) *write.Point {
	return write.NewPoint(
		measurementConnection,
		map[string]string{"connection_id": connectionID},
		map[string]interface{}{
			"received_total": received,
			"sent_total":     sent,
		},
		at,
	)
}
