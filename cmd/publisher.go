package cmd

import (
	"fmt"
	"io"

	"storefront/config"
	"storefront/domain/shared"
	"storefront/infrastructure/messaging"
	"storefront/infrastructure/persistence/mysql"
	"storefront/pkg/logger"

	"go.uber.org/zap"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewOutboxPublisher 按 outbox.publisher 选择投递目标：log（默认）、kafka、amqp
func NewOutboxPublisher(cfg config.OutboxConfig) (shared.OutboxPublisher, io.Closer, error) {
	switch cfg.Publisher {
	case "", "log":
		return &mysql.LoggingOutboxPublisher{}, nopCloser{}, nil
	case "kafka":
		p, err := messaging.NewKafkaPublisher(cfg.Kafka)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Outbox publishing to Kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
		return p, p, nil
	case "amqp":
		p, err := messaging.NewAMQPPublisher(cfg.AMQP)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Outbox publishing to AMQP", zap.String("exchange", cfg.AMQP.Exchange))
		return p, p, nil
	default:
		return nil, nil, fmt.Errorf("unknown outbox publisher %q", cfg.Publisher)
	}
}
