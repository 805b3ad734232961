// Package kafka prepares the audit-topic before the producer starts
package kafka

import (
	"context"
	"errors"
	"log"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// WaitKafkaReady - timeout given to kafka-service for getting fully functional
func WaitKafkaReady(brokerAddr string) {
	for {
		conn, err := kafkago.Dial("tcp", brokerAddr)
		if err == nil {
			if errConn := conn.Close(); errConn != nil {
				log.Println("Failed to close connection after testing Kafka readyness:", errConn)
			}
			break
		}
		log.Println("Kafka not ready, retrying in 10s...")
		time.Sleep(10 * time.Second)
	}
	log.Println("Kafka is ready!")
}

// EnsureAuditTopic - creates the audit topic if it doesn't exist yet
func EnsureAuditTopic(ctx context.Context, brokerAddr, topic string, delay time.Duration) {
	client := &kafkago.Client{
		Addr:    kafkago.TCP(brokerAddr),
		Timeout: 10 * time.Second,
	}

	req := kafkago.CreateTopicsRequest{
		Topics: []kafkago.TopicConfig{{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}},
	}

	for {
		select {
		case <-ctx.Done():
			log.Println("EnsureAuditTopic canceled or timed out")
			return
		default:
		}

		resp, err := client.CreateTopics(ctx, &req)
		if err != nil {
			log.Printf("Failed to run topic creation request: %v\nWait %v before next try...", err, delay)
			time.Sleep(delay)
			continue
		}

		topicErr := resp.Errors[topic]
		if topicErr == nil || errors.Is(topicErr, kafkago.TopicAlreadyExists) {
			log.Printf("Audit topic %q is ready", topic)
			return
		}

		log.Printf("Topic %q creation error: %v\nWait %v before next try...", topic, topicErr, delay)
		time.Sleep(delay)
	}
}
