// Package ingest принимает захваты из MQTT и публикует отчеты анализа
package ingest

import (
	"fmt"
	"sort"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/tworjaga/flipper-rf-lab/internal/config"
)

// MessageHandler обработчик входящего сообщения
type MessageHandler func(topic string, payload []byte) error

type subscription struct {
	topic    string
	qos      byte
	callback mqtt.MessageHandler
}

// Client обертка клиента MQTT.
// Сессия брокера чистая, поэтому после переподключения подписки
// восстанавливаются из subs
type Client struct {
	client mqtt.Client
	logger *zap.Logger

	mu   sync.Mutex
	subs map[string]subscription
}

func newClient(client mqtt.Client, logger *zap.Logger) *Client {
	return &Client{client: client, logger: logger, subs: make(map[string]subscription)}
}

// NewClient подключается к брокеру
func NewClient(cfg config.MQTTConfig, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	})

	c := newClient(nil, logger)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		c.resubscribe()
	})

	c.client = mqtt.NewClient(opts)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	logger.Info("connected to mqtt broker", zap.String("broker", cfg.Broker))
	return c, nil
}

// Subscribe подписывает обработчик; ошибки обработчика журналируются
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	callback := func(_ mqtt.Client, msg mqtt.Message) {
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.logger.Warn("failed to handle mqtt message",
				zap.String("topic", msg.Topic()),
				zap.Error(err),
			)
		}
	}
	c.mu.Lock()
	c.subs[topic] = subscription{topic: topic, qos: qos, callback: callback}
	c.mu.Unlock()
	return c.subscribe(topic, qos, callback)
}

func (c *Client) subscribe(topic string, qos byte, callback mqtt.MessageHandler) error {
	token := c.client.Subscribe(topic, qos, callback)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, token.Error())
	}
	return nil
}

// resubscribe повторяет все подписки после (пере)подключения
func (c *Client) resubscribe() {
	c.mu.Lock()
	subs := make([]subscription, 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	c.mu.Unlock()
	sort.Slice(subs, func(i, j int) bool { return subs[i].topic < subs[j].topic })

	for _, sub := range subs {
		if err := c.subscribe(sub.topic, sub.qos, sub.callback); err != nil {
			c.logger.Error("failed to restore subscription", zap.String("topic", sub.topic), zap.Error(err))
			continue
		}
		c.logger.Info("mqtt subscription restored", zap.String("topic", sub.topic))
	}
}

func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}
	return nil
}

// Disconnect ждет до 250 мс завершения отправки
func (c *Client) Disconnect() {
	c.client.Disconnect(250)
}

func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}
