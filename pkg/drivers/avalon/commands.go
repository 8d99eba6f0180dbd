package avalon

import (
	"encoding/json"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// command is an action request received on <root>/commands.
type command struct {
	ID         string `json:"id,omitempty"`
	Action     string `json:"action"`
	Parameters string `json:"parameters"`
}

type commandResult struct {
	ID     string `json:"id,omitempty"`
	Action string `json:"action"`
	Value  string `json:"value,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (d *Driver) subscribeCommands(client mqtt.Client, root string) {
	topic := root + "/commands"
	if token := client.Subscribe(topic, 0, d.commandHandler); token.Wait() && token.Error() != nil {
		d.logger.Errorf("Failed to subscribe to commands topic: %v", token.Error())
		return
	}
	d.logger.Infof("Listening for commands on %s", topic)
}

func (d *Driver) commandHandler(_ mqtt.Client, msg mqtt.Message) {
	var cmd command
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		d.logger.Errorf("Invalid command on %s: %v", msg.Topic(), err)
		return
	}
	d.respond(d.runCommand(cmd))
}

func (d *Driver) runCommand(cmd command) commandResult {
	result := commandResult{ID: cmd.ID, Action: cmd.Action}
	value, err := d.Action(cmd.Action, cmd.Parameters)
	if err != nil {
		result.Error = err.Error()
	} else {
		result.Value = value
	}
	return result
}

func (d *Driver) respond(result commandResult) {
	d.mu.Lock()
	pub := d.pub
	d.mu.Unlock()
	if pub == nil {
		return
	}
	pub.enqueue("responses", false, result)
}
