// Package influxdb records Board Sync activity in InfluxDB.
//
// It wraps the official influxdb-client-go v2 non-blocking write API and
// exposes Metrics, an observer that turns discovery passes and sync runs
// into points:
//
//	discovery_pass  tags: kind            fields: endpoints, resolved, failed, boards, duration_ms, errors
//	sync_run        tags: board, mode, outcome  fields: rows, pending, installed, failed, duration_ms
//	module_install  tags: board, module, outcome fields: count
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	metrics := influxdb.NewMetrics(client)
//	registry.SetObserver(metrics)
//	orchestrator.SetObserver(metrics)
//
// Writes are batched according to batch_size and flush_interval; errors are
// delivered asynchronously through SetOnError.
package influxdb
