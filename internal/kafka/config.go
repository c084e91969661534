package kafka

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

// parseURI reads kafka://host:port[,host:port]/topic?key=value into a topic
// and a config map. Query parameters are passed through as librdkafka
// properties and override the defaults.
func parseURI(uri *url.URL, defaults kafka.ConfigMap) (string, kafka.ConfigMap, error) {
	topic := strings.TrimPrefix(uri.Path, "/")
	if topic == "" {
		return "", nil, fmt.Errorf("topic must be specified in URL path")
	}

	brokers := uri.Host
	if brokers == "" {
		return "", nil, fmt.Errorf("brokers must be specified in URL host")
	}

	config := kafka.ConfigMap{
		"bootstrap.servers": brokers,
	}
	for k, v := range defaults {
		config[k] = v
	}

	for key, values := range uri.Query() {
		if len(values) > 0 {
			config[key] = values[0]
		}
	}
	return topic, config, nil
}
