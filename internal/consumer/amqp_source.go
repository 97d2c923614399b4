package consumer

import (
	"github.com/tanmiacare/go-notification-engine/internal/shared/rabbitmq"
)

// AMQPSource adapts the shared RabbitMQ client to the consumer's Source
type AMQPSource struct {
	client *rabbitmq.RabbitMQClient
}

// NewAMQPSource wraps a connected RabbitMQ client
func NewAMQPSource(client *rabbitmq.RabbitMQClient) *AMQPSource {
	return &AMQPSource{client: client}
}

func (s *AMQPSource) DeclareExchange(name, kind string) error {
	return s.client.DeclareExchange(name, kind)
}

func (s *AMQPSource) DeclareQueue(name string) error {
	return s.client.DeclareQueue(name)
}

func (s *AMQPSource) BindQueue(queue, routingKey, exchange string) error {
	return s.client.BindQueue(queue, routingKey, exchange)
}

func (s *AMQPSource) Consume(queue string) (<-chan Message, error) {
	deliveries, err := s.client.Consume(queue)
	if err != nil {
		return nil, err
	}

	out := make(chan Message)
	go func() {
		defer close(out)
		for d := range deliveries {
			msg := d
			out <- &amqpMessage{msg: &msg}
		}
	}()
	return out, nil
}

type amqpMessage struct {
	msg *rabbitmq.Message
}

func (m *amqpMessage) Payload() []byte { return m.msg.Body }

func (m *amqpMessage) Ack() error { return m.msg.Ack(false) }

func (m *amqpMessage) Nack(requeue bool) error { return m.msg.Nack(false, requeue) }
