package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"DHAdmin/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ConfigExchange is the topic exchange config events are published to.
const ConfigExchange = "dhadmin.config"

const publishTimeout = 3 * time.Second

// amqpChannel is the subset of *amqp.Channel the publisher uses.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher 将配置变更发布到 RabbitMQ，供数字人运行端订阅
type AMQPPublisher struct {
	conn *amqp.Connection
	ch   amqpChannel
	mu   sync.Mutex
}

// DialAMQP connects to url and declares the config exchange.
func DialAMQP(url string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	p, err := newAMQPPublisher(ch)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	logger.Info("[Events] RabbitMQ publisher ready", logger.String("exchange", ConfigExchange))
	return p, nil
}

func newAMQPPublisher(ch amqpChannel) (*AMQPPublisher, error) {
	if err := ch.ExchangeDeclare(ConfigExchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPPublisher{ch: ch}, nil
}

// RoutingKey returns config.<kind>.<projectId>.
func RoutingKey(evt ConfigSaved) string {
	return fmt.Sprintf("config.%s.%s", evt.Kind, evt.ProjectID)
}

func (p *AMQPPublisher) PublishConfigSaved(ctx context.Context, evt ConfigSaved) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	pubctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	// amqp channel 不能并发使用
	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(pubctx, ConfigExchange, RoutingKey(evt), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    evt.SavedAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Close(); err != nil {
		return err
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
