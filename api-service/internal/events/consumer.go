package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	CatalogTopic = "catalog-events"

	// TypeBarcodeUpdated announces that a barcode now maps to a different
	// product, or to none.
	TypeBarcodeUpdated = "catalog.barcode_updated"
)

type BarcodeUpdated struct {
	Barcode string `json:"barcode"`
}

// Handler processes one decoded envelope payload.
type Handler func(ctx context.Context, payload json.RawMessage) error

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer dispatches messages to handlers by their event_type header.
// Messages without a handler are skipped; a failing handler is logged and
// the message is not retried.
type Consumer struct {
	reader   messageReader
	handlers map[string]Handler
	log      *zap.Logger
}

func NewConsumer(topic, groupID string, log *zap.Logger, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return newConsumer(reader, log)
}

func newConsumer(reader messageReader, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{reader: reader, handlers: make(map[string]Handler), log: log}
}

// Handle registers h for eventType. Call before Run.
func (c *Consumer) Handle(eventType string, h Handler) {
	c.handlers[eventType] = h
}

// Run reads until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			c.log.Warn("error reading message", zap.Error(err))
			continue
		}
		if err := c.dispatch(ctx, m); err != nil {
			c.log.Warn("failed to process message",
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.Error(err))
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func (c *Consumer) dispatch(ctx context.Context, m kafka.Message) error {
	eventType := headerValue(m, "event_type")

	var env struct {
		Type    string          `json:"event_type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if eventType == "" {
		eventType = env.Type
	}

	h, ok := c.handlers[eventType]
	if !ok {
		c.log.Debug("no handler for event", zap.String("type", eventType))
		return nil
	}
	if err := h(ctx, env.Payload); err != nil {
		return fmt.Errorf("handle %s: %w", eventType, err)
	}
	return nil
}

func headerValue(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// Invalidator drops one cached barcode resolution.
type Invalidator interface {
	Delete(ctx context.Context, barcode string) error
}

// InvalidateOnBarcodeUpdate evicts the cached resolution named by a
// catalog.barcode_updated event.
func InvalidateOnBarcodeUpdate(cache Invalidator, log *zap.Logger) Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(ctx context.Context, payload json.RawMessage) error {
		var e BarcodeUpdated
		if err := json.Unmarshal(payload, &e); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		if e.Barcode == "" {
			return errors.New("barcode is empty")
		}
		if err := cache.Delete(ctx, e.Barcode); err != nil {
			return err
		}
		log.Info("evicted cached resolution", zap.String("barcode", e.Barcode))
		return nil
	}
}
