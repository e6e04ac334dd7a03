package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"customsdesk-backend/models"

	"cloud.google.com/go/pubsub"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type notificationEvent struct {
	Type         string              `json:"type"`
	Notification models.Notification `json:"notification"`
}

// PubSubPublisher publishes every notification as a JSON event.
type PubSubPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

func NewPubSubPublisher(ctx context.Context, projectID, topicName string) (*PubSubPublisher, error) {
	if projectID == "" || topicName == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID and PUBSUB_TOPIC are required")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}

	t := client.Topic(topicName)
	ok, err := t.Exists(ctx)
	if err != nil {
		client.Close()
		return nil, err
	}
	if !ok {
		if t, err = client.CreateTopic(ctx, topicName); err != nil {
			client.Close()
			return nil, fmt.Errorf("create topic %q: %w", topicName, err)
		}
	}
	return &PubSubPublisher{client: client, topic: t}, nil
}

func (p *PubSubPublisher) Name() string { return "pubsub" }

func (p *PubSubPublisher) Dispatch(ctx context.Context, n models.Notification) error {
	data, err := json.Marshal(notificationEvent{Type: "notification." + string(n.Kind), Notification: n})
	if err != nil {
		return err
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"kind":     string(n.Kind),
			"module":   n.Module,
			"priority": string(n.Priority),
		},
	})
	_, err = result.Get(ctx)
	return err
}

func (p *PubSubPublisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}

// messageSender is the part of the twilio REST client SMSNotifier uses.
type messageSender interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// SMSNotifier texts high priority notifications to the operator's phone.
type SMSNotifier struct {
	api  messageSender
	from string
	to   string
}

func NewSMSNotifier(accountSID, authToken, from, to string) *SMSNotifier {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &SMSNotifier{api: client.Api, from: from, to: to}
}

func (s *SMSNotifier) Name() string { return "sms" }

func (s *SMSNotifier) Dispatch(_ context.Context, n models.Notification) error {
	if n.Priority != models.NotificationHigh {
		return nil
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(s.to)
	params.SetFrom(s.from)
	params.SetBody(smsBody(n))

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("send sms to %s: %w", s.to, err)
	}
	if resp.Sid == nil {
		return errors.New("sms sent but no SID returned")
	}
	return nil
}

func smsBody(n models.Notification) string {
	body := n.Title
	if n.Message != "" {
		body += ": " + n.Message
	}
	if r := []rune(body); len(r) > 320 {
		body = string(r[:317]) + "..."
	}
	return body
}
