package main

import (
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/devsmilefactory/moversfinder-sub010/core/model"
)

func newMQTTClient(broker, clientID string) (paho.Client, error) {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	opts.AutoReconnect = true
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return cli, nil
}

// mqttStatusPublisher publishes payloads on the rides status topic.
type mqttStatusPublisher struct {
	cli   paho.Client
	topic string
}

func (p *mqttStatusPublisher) PublishStatus(payload model.StatusChangePayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	token := p.cli.Publish(p.topic, 1, false, data)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout on %s", p.topic)
	}
	return token.Error()
}
