// Package influxdb forwards Thingy Gateway telemetry to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. The gateway only
// writes: every accepted sensor batch and button event becomes a point in
// the configured bucket for dashboards and alerting elsewhere. Historical
// queries are out of scope for the gateway itself.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	registry.AddObserver(client)
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are non-blocking and
// batched according to batch_size and flush_interval; write errors are
// delivered asynchronously through SetOnError.
package influxdb
