package publish

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Command is a remote instruction received on the command topic.
type Command struct {
	Command string `json:"command"`
	Text    string `json:"text,omitempty"`
}

// Response acknowledges a command on the response topic.
type Response struct {
	Command string    `json:"command"`
	OK      bool      `json:"ok"`
	Error   string    `json:"error,omitempty"`
	Status  any       `json:"status,omitempty"`
	Time    time.Time `json:"time"`
}

// Handlers are invoked for incoming commands. Nil handlers reject the
// command.
type Handlers struct {
	OnPause  func(paused bool) error
	OnVoice  func(enabled bool) error
	OnSay    func(text string) error
	OnStop   func() error
	OnStatus func() any
}

// ErrUnsupportedCommand is reported for commands without a handler.
var ErrUnsupportedCommand = errors.New("publish: unsupported command")

type controller struct {
	handlers Handlers
	queue    chan Command
	done     chan struct{}
	wg       sync.WaitGroup
}

// Listen subscribes to the command topic and dispatches commands to h
// on a dedicated goroutine. Commands arriving while the queue is full are
// dropped.
func (p *Publisher) Listen(h Handlers) error {
	if !p.Enabled() {
		return nil
	}

	ctl := &controller{
		handlers: h,
		queue:    make(chan Command, 16),
		done:     make(chan struct{}),
	}

	p.mu.Lock()
	if p.control != nil {
		p.mu.Unlock()
		return fmt.Errorf("publish: already listening")
	}
	p.control = ctl
	p.mu.Unlock()

	ctl.wg.Add(1)
	go p.process(ctl)

	return p.subscribe(ctl)
}

func (p *Publisher) subscribe(ctl *controller) error {
	topic := p.cfg.Topic("command")
	token := p.client.Subscribe(topic, p.cfg.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		p.onMessage(ctl, msg)
	})
	if !token.WaitTimeout(p.cfg.ConnectTimeout) {
		return fmt.Errorf("subscribe %s: %w", topic, ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	p.logger.Info("listening for commands", "topic", topic)
	return nil
}

// resubscribe restores the command subscription after a reconnect.
func (p *Publisher) resubscribe() {
	p.mu.RLock()
	ctl := p.control
	p.mu.RUnlock()
	if ctl == nil {
		return
	}
	go func() {
		if err := p.subscribe(ctl); err != nil {
			p.logger.Warn("resubscribe failed", "error", err)
		}
	}()
}

func (p *Publisher) onMessage(ctl *controller, msg mqtt.Message) {
	var cmd Command
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		p.logger.Warn("invalid command payload", "topic", msg.Topic(), "error", err)
		return
	}
	cmd.Command = strings.ToLower(strings.TrimSpace(cmd.Command))

	select {
	case ctl.queue <- cmd:
	case <-ctl.done:
	default:
		p.logger.Warn("command queue full, dropping", "command", cmd.Command)
	}
}

func (p *Publisher) process(ctl *controller) {
	defer ctl.wg.Done()
	for {
		select {
		case <-ctl.done:
			return
		case cmd := <-ctl.queue:
			p.mu.Lock()
			p.commands++
			p.mu.Unlock()

			resp := p.dispatch(ctl.handlers, cmd)
			if err := p.publish(p.cfg.Topic("response"), false, resp); err != nil {
				p.logger.Debug("response not published", "command", cmd.Command, "error", err)
			}
		}
	}
}

func (p *Publisher) dispatch(h Handlers, cmd Command) Response {
	resp := Response{Command: cmd.Command, Time: time.Now()}

	var err error
	switch cmd.Command {
	case "pause", "resume":
		if h.OnPause == nil {
			err = ErrUnsupportedCommand
			break
		}
		err = h.OnPause(cmd.Command == "pause")
	case "voice_on", "voice_off":
		if h.OnVoice == nil {
			err = ErrUnsupportedCommand
			break
		}
		err = h.OnVoice(cmd.Command == "voice_on")
	case "say":
		if h.OnSay == nil {
			err = ErrUnsupportedCommand
			break
		}
		if strings.TrimSpace(cmd.Text) == "" {
			err = errors.New("publish: say requires text")
			break
		}
		err = h.OnSay(cmd.Text)
	case "stop":
		if h.OnStop == nil {
			err = ErrUnsupportedCommand
			break
		}
		err = h.OnStop()
	case "status":
		if h.OnStatus == nil {
			err = ErrUnsupportedCommand
			break
		}
		resp.Status = h.OnStatus()
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedCommand, cmd.Command)
	}

	if err != nil {
		resp.Error = err.Error()
		p.logger.Warn("command failed", "command", cmd.Command, "error", err)
		return resp
	}
	resp.OK = true
	p.logger.Info("command handled", "command", cmd.Command)
	return resp
}

func (c *controller) stop(client mqtt.Client, topic string) {
	close(c.done)
	c.wg.Wait()
	if client != nil && client.IsConnected() {
		client.Unsubscribe(topic).WaitTimeout(time.Second)
	}
}
