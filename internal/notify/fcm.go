package notify

import (
	"context"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FCMSender sends data-only multicast messages via Firebase Cloud Messaging.
type FCMSender struct {
	client *messaging.Client
	link   string // web-push click-through target
	logger *slog.Logger
}

// NewFCMSender builds a sender from a service account credentials file.
// Returns (nil, nil) when credentialsFile is empty so callers can fall back
// to a LogSender in development.
func NewFCMSender(ctx context.Context, credentialsFile, link string, logger *slog.Logger) (*FCMSender, error) {
	if credentialsFile == "" {
		return nil, nil
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init messaging client: %w", err)
	}
	return &FCMSender{client: client, link: link, logger: logger}, nil
}

// SendMulticast implements Sender. tokens must already be batched to the
// provider limit; the dispatcher guarantees that.
func (s *FCMSender) SendMulticast(ctx context.Context, tokens []string, data map[string]string) (BatchResult, error) {
	msg := &messaging.MulticastMessage{
		Tokens: tokens,
		Data:   data,
	}
	if s.link != "" {
		msg.Webpush = &messaging.WebpushConfig{
			FCMOptions: &messaging.WebpushFCMOptions{Link: s.link},
		}
	}

	resp, err := s.client.SendEachForMulticast(ctx, msg)
	if err != nil {
		return BatchResult{}, fmt.Errorf("fcm multicast: %w", err)
	}

	br := BatchResult{
		SuccessCount: resp.SuccessCount,
		FailureCount: resp.FailureCount,
	}
	for _, r := range resp.Responses {
		if r.Error != nil {
			br.Errors = append(br.Errors, r.Error.Error())
		}
	}
	return br, nil
}

// LogSender is a development stand-in that logs instead of sending.
// Every token counts as a success.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a log-only sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// SendMulticast implements Sender.
func (s *LogSender) SendMulticast(_ context.Context, tokens []string, data map[string]string) (BatchResult, error) {
	s.logger.Info("FCM send (log only)",
		"tokens", len(tokens), "title", data["title"], "topic", data["topic"])
	return BatchResult{SuccessCount: len(tokens)}, nil
}
