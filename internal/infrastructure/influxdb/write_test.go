package influxdb

import (
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

func fields(p *write.Point) map[string]interface{} {
	out := make(map[string]interface{})
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

func tags(p *write.Point) map[string]string {
	out := make(map[string]string)
	for _, tag := range p.TagList() {
		out[tag.Key] = tag.Value
	}
	return out
}

func TestThroughputPoint(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := throughputPoint(Throughput{Time: at, Received: 5, Sent: 2, Retained: 300, Topics: 12})

	if p.Name() != "mqtt_throughput" {
		t.Errorf("Name() = %q", p.Name())
	}
	if !p.Time().Equal(at) {
		t.Errorf("Time() = %v, want %v", p.Time(), at)
	}

	f := fields(p)
	if f["received"] != uint64(5) || f["sent"] != uint64(2) || f["total"] != uint64(7) {
		t.Errorf("traffic fields = %v", f)
	}
	if f["retained_messages"] != int64(300) || f["topics"] != int64(12) {
		t.Errorf("store fields = %v", f)
	}
}

func TestConnectionStatePoint(t *testing.T) {
	p := connectionStatePoint("conn-1", "connected", time.Now())

	if p.Name() != "mqtt_connection" {
		t.Errorf("Name() = %q", p.Name())
	}
	if got := tags(p)["connection_id"]; got != "conn-1" {
		t.Errorf("connection_id tag = %q", got)
	}

	f := fields(p)
	if f["state"] != "connected" || f["connected"] != true {
		t.Errorf("fields = %v", f)
	}

	f = fields(connectionStatePoint("conn-1", "reconnecting", time.Now()))
	if f["connected"] != false {
		t.Errorf("reconnecting should not be connected: %v", f)
	}
}

func TestConnectionTrafficPoint(t *testing.T) {
	f := fields(connectionTrafficPoint("conn-2", 10, 3, time.Now()))
	if f["received_total"] != uint64(10) || f["sent_total"] != uint64(3) {
		t.Errorf("fields = %v", f)
	}
}

func TestWrites_NotConnectedAreNoops(t *testing.T) {
	var c *Client
	c.WriteThroughput(Throughput{Received: 1})
	c.WriteConnectionState("x", "connected", time.Now())
	c.WriteConnectionTraffic("x", 1, 1, time.Now())

	if err := c.Close(); err != nil {
		t.Errorf("Close() on nil client = %v", err)
	}
}
