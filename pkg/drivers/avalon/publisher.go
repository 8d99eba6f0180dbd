package avalon

import (
	"context"
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"stargo/pkg/stargo"
)

const publishQueue = 32

// createMQTTClient initializes and connects a new MQTT client.
func createMQTTClient(cfg MQTTConfig) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.SetClientID("stargo-alpaca")
	opts.AddBroker(cfg.Host)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)

	mqttClient := mqtt.NewClient(opts)
	if token := mqttClient.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %v", token.Error())
	}
	return mqttClient, nil
}

type message struct {
	topic    string
	retained bool
	payload  any
}

// publisher forwards mount notifications to MQTT. The mount calls the
// Listener methods with its lock held, so they only enqueue; Run does the
// network I/O.
type publisher struct {
	root    string
	queue   chan message
	publish func(topic string, retained bool, payload []byte) error
	logger  log.FieldLogger
}

func newPublisher(root string, publish func(topic string, retained bool, payload []byte) error, logger log.FieldLogger) *publisher {
	return &publisher{
		root:    root,
		queue:   make(chan message, publishQueue),
		publish: publish,
		logger:  logger,
	}
}

// mqttPublish publishes through client and waits for the broker.
func mqttPublish(client mqtt.Client) func(string, bool, []byte) error {
	return func(topic string, retained bool, payload []byte) error {
		if token := client.Publish(topic, 0, retained, payload); token.Wait() && token.Error() != nil {
			return token.Error()
		}
		return nil
	}
}

func (p *publisher) enqueue(topic string, retained bool, payload any) {
	select {
	case p.queue <- message{topic: p.root + "/" + topic, retained: retained, payload: payload}:
	default:
		p.logger.Warnf("Publish queue full, dropping %s update", topic)
	}
}

func (p *publisher) Parked(parked bool) {
	p.enqueue("parked", true, parked)
}

func (p *publisher) StatusUpdated(st stargo.Status) {
	p.enqueue("status", true, st)
}

// Run publishes queued messages until ctx is cancelled.
func (p *publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-p.queue:
			data, err := json.Marshal(msg.payload)
			if err != nil {
				p.logger.Errorf("Failed to encode %s: %v", msg.topic, err)
				continue
			}
			if err := p.publish(msg.topic, msg.retained, data); err != nil {
				p.logger.Errorf("Failed to publish %s: %v", msg.topic, err)
			}
		}
	}
}

// auxPort is the device hosted on the controller's auxiliary port. Its
// state is reported through the publisher when one is configured.
type auxPort struct {
	pub    *publisher
	logger log.FieldLogger
	active bool
}

func (a *auxPort) Activate(on bool) error {
	a.active = on
	a.logger.Infof("Auxiliary port active: %v", on)
	if a.pub != nil {
		a.pub.enqueue("aux", true, on)
	}
	return nil
}

func (a *auxPort) ReadStatus() error {
	if a.pub != nil {
		a.pub.enqueue("aux", true, a.active)
	}
	return nil
}
