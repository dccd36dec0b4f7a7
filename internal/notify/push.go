// Package notify publishes push payloads for the applicant-facing service
// worker. Delivery is fire-and-forget: a notification failure never fails
// the operation it announces.
package notify

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/sirupsen/logrus"
)

// Payload matches what the service worker reads off the push event.
type Payload struct {
	Title   string `json:"title"`
	Body    string `json:"body"`
	IconURL string `json:"iconUrl,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, payload Payload)
}

type SNSPublisher struct {
	client   *sns.Client
	topicARN string
	logger   *logrus.Logger
}

func NewSNSPublisher(client *sns.Client, topicARN string, logger *logrus.Logger) *SNSPublisher {
	return &SNSPublisher{client: client, topicARN: topicARN, logger: logger}
}

func (p *SNSPublisher) Publish(ctx context.Context, payload Payload) {
	if p.topicARN == "" {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		p.logger.WithError(err).Error("failed to encode push payload")
		return
	}

	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		Subject:  aws.String(payload.Title),
	})
	if err != nil {
		p.logger.WithError(err).WithField("title", payload.Title).Error("failed to publish push notification")
	}
}

// NopPublisher drops every payload. Used when no topic is configured and in
// tests.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Payload) {}
