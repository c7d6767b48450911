package kafka

import (
	"errors"

	"PPSocial/logger"
	"PPSocial/tools/errs"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"
)

// EnsureTopic 不存在就创建；已存在且分区不足时扩分区（Kafka 只能增加分区）
func EnsureTopic(admin sarama.ClusterAdmin, c Config) error {
	c.setDefaults()
	descs, err := admin.DescribeTopics([]string{c.Topic})
	if err != nil {
		return errs.WrapMsg(err, "describe topic", "topic", c.Topic)
	}
	if len(descs) == 1 && descs[0].Err == sarama.ErrNoError {
		cur := int32(len(descs[0].Partitions))
		if c.Partitions > cur {
			if err := admin.CreatePartitions(c.Topic, c.Partitions, nil, false); err != nil {
				return errs.WrapMsg(err, "expand partitions", "topic", c.Topic, "from", cur, "to", c.Partitions)
			}
			logger.Info("kafka topic partitions expanded", zap.String("topic", c.Topic), zap.Int32("from", cur), zap.Int32("to", c.Partitions))
		}
		return nil
	}

	minISR := "1"
	if c.ReplicationFactor >= 3 {
		minISR = "2"
	}
	td := &sarama.TopicDetail{
		NumPartitions:     c.Partitions,
		ReplicationFactor: c.ReplicationFactor,
		ConfigEntries: map[string]*string{
			"cleanup.policy":                 strPtr("delete"),
			"min.insync.replicas":            strPtr(minISR),
			"unclean.leader.election.enable": strPtr("false"),
			"compression.type":               strPtr("producer"),
		},
	}
	if err := admin.CreateTopic(c.Topic, td, false); err != nil {
		var te *sarama.TopicError
		if (errors.As(err, &te) && te.Err == sarama.ErrTopicAlreadyExists) || errors.Is(err, sarama.ErrTopicAlreadyExists) {
			return nil
		}
		return errs.WrapMsg(err, "create topic", "topic", c.Topic)
	}
	logger.Info("kafka topic created", zap.String("topic", c.Topic), zap.Int32("partitions", c.Partitions))
	return nil
}

func strPtr(s string) *string { return &s }
