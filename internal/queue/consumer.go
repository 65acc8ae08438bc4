package queue

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const authLogFile = "logs/auth.log"

// StartAuthLogConsumer connects to RabbitMQ, declares the auth event queues
// and appends each event to logs/auth.log in a single-line format. It runs a
// reconnect loop with exponential backoff and never returns under normal
// operation; processing errors are logged and the offending message is
// rejected so the server keeps running.
func StartAuthLogConsumer() {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(brokerURL())
		if err != nil {
			log.Printf("auth-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeAuthEvents(conn); err != nil {
			log.Printf("auth-consumer: consume loop ended: %v; reconnecting", err)
		}
		_ = conn.Close()
		time.Sleep(2 * time.Second)
	}
}

func consumeAuthEvents(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	var wg sync.WaitGroup
	errc := make(chan error, 2)
	for _, queueName := range []string{UserRegisteredQueue, UserLoginQueue} {
		if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", queueName, err)
		}
		deliveries, err := ch.Consume(queueName, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("consume %s: %w", queueName, err)
		}
		wg.Add(1)
		go func(queueName string, deliveries <-chan amqp.Delivery) {
			defer wg.Done()
			for d := range deliveries {
				if err := appendAuthLog(queueName, d.Body); err != nil {
					log.Printf("auth-consumer: %s: %v", queueName, err)
					_ = d.Reject(false)
					continue
				}
				_ = d.Ack(false)
			}
			errc <- fmt.Errorf("%s: delivery channel closed", queueName)
		}(queueName, deliveries)
	}

	err = <-errc
	_ = ch.Close()
	wg.Wait()
	return err
}

// appendAuthLog writes one line per event: timestamp, queue, then the
// event's own fields in a stable order.
func appendAuthLog(queueName string, body []byte) error {
	var fields map[string]interface{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(authLogFile), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(authLogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer func() { _ = f.Close() }()

	line := fmt.Sprintf("%s %s user_id=%v email=%v role=%v",
		time.Now().UTC().Format(time.RFC3339), queueName,
		fields["user_id"], fields["email"], fields["role"])
	if m, ok := fields["method"]; ok {
		line += fmt.Sprintf(" method=%v", m)
	}
	_, err = fmt.Fprintln(f, line)
	return err
}
