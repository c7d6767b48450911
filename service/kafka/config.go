package kafka

import (
	"strings"
	"time"

	"PPSocial/tools/errs"

	"github.com/Shopify/sarama"
)

type Config struct {
	Brokers             []string
	Topic               string
	Version             string // 例如 "2.8.0"
	Partitions          int32
	ReplicationFactor   int16
	ProducerRetries     int
	ProducerCompression string // none/snappy/lz4/zstd
	AutoCreateTopic     bool
}

func (c *Config) setDefaults() {
	if c.Partitions <= 0 {
		c.Partitions = 8
	}
	if c.ReplicationFactor <= 0 {
		c.ReplicationFactor = 1
	}
	if c.ProducerRetries <= 0 {
		c.ProducerRetries = 5
	}
}

func BuildBaseConfig(c Config) (*sarama.Config, error) {
	c.setDefaults()
	cfg := sarama.NewConfig()
	if c.Version != "" {
		v, err := sarama.ParseKafkaVersion(c.Version)
		if err != nil {
			return nil, errs.WrapMsg(err, "kafka version", "version", c.Version)
		}
		cfg.Version = v
	}

	cfg.Producer.Return.Successes = false
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = c.ProducerRetries
	// 同一会话的事件落到同一分区，保持顺序
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	switch strings.ToLower(c.ProducerCompression) {
	case "snappy":
		cfg.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		cfg.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		cfg.Producer.Compression = sarama.CompressionZSTD
	default:
		cfg.Producer.Compression = sarama.CompressionNone
	}

	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second
	return cfg, nil
}
