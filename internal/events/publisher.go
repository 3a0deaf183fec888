// Package events publishes History state changes to Kafka so downstream
// consumers can follow ZNS delivery without polling the database.
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"zns-gateway/internal/models"
)

// Writer is the subset of *kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// HistoryEvent is the JSON value of every published message. The Kafka key is
// the History id, so all updates of one row land on one partition.
type HistoryEvent struct {
	HistoryID    uint         `json:"history_id"`
	CompanyID    uint         `json:"company_id"`
	MessageID    string       `json:"message_id,omitempty"`
	TemplateCode string       `json:"template_code,omitempty"`
	Phone        string       `json:"phone"`
	Model        string       `json:"model,omitempty"`
	ResID        uint         `json:"res_id,omitempty"`
	State        models.State `json:"state"`
	ErrorMessage string       `json:"error_message,omitempty"`
	IsTest       bool         `json:"is_test"`
	OccurredAt   time.Time    `json:"occurred_at"`
}

type Publisher struct {
	writer Writer
	log    *logrus.Logger
}

// NewKafkaPublisher writes asynchronously so a slow broker never delays a send.
func NewKafkaPublisher(brokers []string, topic string, log *logrus.Logger) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.WithError(err).WithField("count", len(msgs)).Error("failed to publish history events")
			}
		},
	}
	return NewPublisher(w, log)
}

func NewPublisher(w Writer, log *logrus.Logger) *Publisher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Publisher{writer: w, log: log}
}

func (p *Publisher) Publish(ctx context.Context, ev HistoryEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(ev.HistoryID), 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "state", Value: []byte(ev.State)},
		},
	})
}

// HistoryChanged publishes the row's new state. Publishing errors are logged,
// never returned to the send path.
func (p *Publisher) HistoryChanged(ctx context.Context, h *models.History) {
	ev := HistoryEvent{
		HistoryID:    h.ID,
		CompanyID:    h.CompanyID,
		MessageID:    h.RemoteID(),
		TemplateCode: h.TemplateCode,
		Phone:        h.Phone,
		Model:        h.Model,
		ResID:        h.ResID,
		State:        h.State,
		ErrorMessage: h.ErrorMessage,
		IsTest:       h.IsTest,
		OccurredAt:   time.Now().UTC(),
	}
	if err := p.Publish(ctx, ev); err != nil {
		p.log.WithError(err).WithField("history_id", h.ID).Warn("failed to publish history event")
	}
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
