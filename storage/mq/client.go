package mq

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"EventGate/config"
)

const (
	// CheckInExchange 签到领域事件交换机
	CheckInExchange = "checkin.events"
	// CheckInOutcomeRoutingKey 签到结果事件路由键
	CheckInOutcomeRoutingKey = "checkin.outcome"
	// CheckInOutcomeQueue worker 消费的队列
	CheckInOutcomeQueue = "checkin.outcomes"
)

var (
	conn     *amqp.Connection
	connOnce sync.Once
	connErr  error
)

func Init() error {
	connOnce.Do(func() {
		url := config.Cfg.GetRabbitMQURL()
		conn, connErr = amqp.Dial(url)
		if connErr != nil {
			return
		}

		ch, err := conn.Channel()
		if err != nil {
			connErr = err
			return
		}
		defer ch.Close()

		connErr = declareTopology(ch)
	})

	return connErr
}

// declareTopology 声明交换机和队列，服务端与 worker 双方幂等声明
func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(
		CheckInExchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(
		CheckInOutcomeQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := ch.QueueBind(
		CheckInOutcomeQueue,
		CheckInOutcomeRoutingKey,
		CheckInExchange,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	return nil
}

func Connection() *amqp.Connection {
	return conn
}

func Close(ctx context.Context) error {
	if conn == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- conn.Close()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
