package common

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/Ashutoshbind15/dev-iterate-sub000/cmd/worker/internal/forward"
	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/queue"
)

const (
	BackendAzure = "azure"
	BackendKafka = "kafka"
)

const defaultKafkaGroup = "judgestore-analysis"

func GetAzureQueueClient() (*queue.AzureQueuer, error) {
	name := os.Getenv("AZURE_STORAGE_ACCOUNT_ANALYSIS_QUEUE")
	if name == "" {
		name = "analysis"
	}

	return queue.NewAzureQueuer(queue.AzureConfig{
		AccountName: os.Getenv("AZURE_STORAGE_ACCOUNT_NAME"),
		AccountKey:  os.Getenv("AZURE_STORAGE_ACCOUNT_KEY"),
		ServiceURL:  os.Getenv("AZURE_STORAGE_ACCOUNT_QUEUES_URL"),
		QueueName:   name,
	})
}

func GetKafkaQueueClient() (*queue.KafkaQueuer, error) {
	group := os.Getenv("KAFKA_GROUP_ID")
	if group == "" {
		group = defaultKafkaGroup
	}

	var brokers []string
	for _, b := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}

	return queue.NewKafkaQueuer(queue.KafkaConfig{
		ClientID: "judgestore-worker",
		Topic:    os.Getenv("KAFKA_TOPIC"),
		GroupID:  group,
		Brokers:  brokers,
	})
}

func GetQueueClient(backend string) (queue.Queuer, error) {
	switch backend {
	case BackendAzure:
		return GetAzureQueueClient()
	case BackendKafka:
		return GetKafkaQueueClient()
	default:
		return nil, fmt.Errorf("unknown queue backend %q", backend)
	}
}

// GetTarget parses the webhook url. Credentials come as "user:password".
func GetTarget(webhookURL string, basicAuth string) (forward.Target, error) {
	if webhookURL == "" {
		return forward.Target{}, errors.New("webhook url not set")
	}

	u, err := url.Parse(webhookURL)
	if err != nil {
		return forward.Target{}, fmt.Errorf("invalid webhook url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return forward.Target{}, fmt.Errorf("webhook url must be http or https, got %q", u.Scheme)
	}

	target := forward.Target{URL: u}
	if basicAuth != "" {
		username, password, ok := strings.Cut(basicAuth, ":")
		if !ok {
			return forward.Target{}, errors.New("basic auth must be user:password")
		}
		target.Username = username
		target.Password = password
	}

	return target, nil
}
