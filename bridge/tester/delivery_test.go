package tester

import amqp "github.com/rabbitmq/amqp091-go"

type noopAcknowledger struct{}

func (noopAcknowledger) Ack(tag uint64, multiple bool) error                { return nil }
func (noopAcknowledger) Nack(tag uint64, multiple, requeue bool) error      { return nil }
func (noopAcknowledger) Reject(tag uint64, requeue bool) error              { return nil }

func fakeDelivery(body string) amqp.Delivery {
	return amqp.Delivery{Acknowledger: noopAcknowledger{}, Body: []byte(body)}
}
