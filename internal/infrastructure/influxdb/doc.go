// Package influxdb exports mqttscope traffic metrics to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched non-blocking writes and health checks.
//
// # Measurements
//
//   - mqtt_throughput: per-interval received/sent counts, retained message
//     count and distinct topic count
//   - mqtt_connection: per-connection state transitions and running totals,
//     tagged with connection_id
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteThroughput(influxdb.Throughput{Time: now, Received: 42})
//
// Export is optional: with influxdb.enabled false, Connect returns
// ErrDisabled and the caller runs without a metrics sink.
package influxdb
