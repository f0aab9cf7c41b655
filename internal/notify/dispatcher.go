package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
)

// Sender delivers one data-only multicast batch (≤500 tokens).
type Sender interface {
	SendMulticast(ctx context.Context, tokens []string, data map[string]string) (BatchResult, error)
}

// BatchResult is the per-batch outcome from the push provider.
type BatchResult struct {
	SuccessCount int
	FailureCount int
	Errors       []string
}

// Resolver returns the deduplicated device tokens subscribed to a topic.
type Resolver interface {
	Resolve(ctx context.Context, topic Topic) ([]string, error)
}

// Dispatcher fans a payload out to all recipients of a topic, batching
// tokens under the provider limit and aggregating the outcome.
type Dispatcher struct {
	resolver Resolver
	sender   Sender
	logger   *slog.Logger
}

// NewDispatcher wires a resolver and sender into a dispatcher.
func NewDispatcher(resolver Resolver, sender Sender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{resolver: resolver, sender: sender, logger: logger}
}

// Dispatch resolves recipients and sends title/body/data to all of them.
// Zero recipients is an observable non-error outcome (zero-valued result,
// provider never called). Per-batch provider errors are counted as failures
// for the whole batch, not retried; partial failure is a normal result.
// Only recipient resolution can fail the call.
func (d *Dispatcher) Dispatch(ctx context.Context, topic Topic, title, body string, data map[string]any) (DispatchResult, error) {
	tokens, err := d.resolver.Resolve(ctx, topic)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("resolve recipients for %s: %w", topic, err)
	}

	if len(tokens) == 0 {
		d.logger.Info("No recipients for topic", "topic", topic)
		return DispatchResult{Errors: []string{}}, nil
	}

	payload := buildPayload(topic, title, body, data)

	result := DispatchResult{RecipientCount: len(tokens)}
	var errs []string

	for start := 0; start < len(tokens); start += maxBatchSize {
		end := min(start+maxBatchSize, len(tokens))
		batch := tokens[start:end]

		br, err := d.sender.SendMulticast(ctx, batch, payload)
		if err != nil {
			// Whole batch lost; count every token as failed.
			d.logger.Warn("Batch send failed", "topic", topic, "batch_size", len(batch), "error", err)
			result.FailureCount += len(batch)
			errs = append(errs, err.Error())
			continue
		}
		result.SuccessCount += br.SuccessCount
		result.FailureCount += br.FailureCount
		errs = append(errs, br.Errors...)
	}

	result.Errors = dedupeErrors(errs, maxErrors)
	return result, nil
}

// buildPayload assembles the data-only message map. All values are strings;
// the web client rebuilds the visible notification from them.
func buildPayload(topic Topic, title, body string, data map[string]any) map[string]string {
	payload := map[string]string{
		"topic": string(topic),
		"title": title,
		"body":  body,
		"icon":  notificationIcon,
	}
	for k, v := range data {
		payload[k] = coerceString(v)
	}
	return payload
}

func coerceString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		// JSON numbers decode as float64; render integers without a dot.
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// dedupeErrors removes repeated messages, preserving first-seen order, and
// caps the list.
func dedupeErrors(errs []string, limit int) []string {
	out := make([]string, 0, len(errs))
	seen := make(map[string]struct{}, len(errs))
	for _, e := range errs {
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out
}
