// Package mqtt provides MQTT client connectivity for Thingy Gateway.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS and retained messages
//   - Wildcard subscriptions restored after reconnect
//   - A retained gateway status with Last Will and Testament
//   - The gateway topic scheme (Topics)
//
// # Topic Scheme
//
//	{prefix}/{device}/sensors             device → gateway   sample batch
//	{prefix}/{device}/sensors/button      device → gateway   button event
//	{prefix}/{device}/actuators/led/set   operator → gateway LED command
//	{prefix}/{device}/actuators/led       gateway → devices  retained LED state
//	{prefix}/{device}/setup               gateway → device   retained setup
//	{prefix}/gateway/status               gateway            retained online/offline
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Gateway.ID)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().AllSensors(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
package mqtt
