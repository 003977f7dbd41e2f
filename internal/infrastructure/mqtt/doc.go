// Package mqtt connects Board Sync Core to an MQTT broker.
//
// The broker is optional. When enabled, Core mirrors every board and sync
// event onto the bus so that other services (dashboards, provisioning
// scripts, CI rigs) can follow what happens to attached boards, and it
// accepts rescan requests from those services.
//
// # Topics
//
//	boardsync/event/{type}/{board}   JSON-encoded events.Event, QoS from config
//	boardsync/command/rescan         {"full": true|false}, empty payload = incremental
//	boardsync/system/status          retained online/offline status, also the LWT
//
// # Behaviour
//
//   - Auto-reconnect with exponential backoff; subscriptions are restored
//   - Handlers run with panic recovery; returned errors are logged
//   - Publishing never blocks the caller for longer than the publish timeout
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	sink := mqtt.NewEventPublisher(client, byte(cfg.MQTT.QoS))
//	err = mqtt.SubscribeRescan(client, registry.TryRescan)
package mqtt
