// Command kadroctl is the Kadro operations CLI.
//
// Usage:
//
//	kadroctl send --topic admin_custom_message --title "Duyuru" --body "..."
//	kadroctl send --topic stats_updated
//	kadroctl tick
//	kadroctl events show timed:match_day_morning:2026-08-30
//	kadroctl purge <key>
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kadrohq/kadro-server/internal/attendance"
	"github.com/kadrohq/kadro-server/internal/config"
	"github.com/kadrohq/kadro-server/internal/db"
	"github.com/kadrohq/kadro-server/internal/notify"
	"github.com/kadrohq/kadro-server/internal/schedule"
	"github.com/kadrohq/kadro-server/internal/store"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "kadroctl",
		Short: "Kadro operations CLI",
	}

	root.AddCommand(sendCmd())
	root.AddCommand(tickCmd())
	root.AddCommand(eventsCmd())
	root.AddCommand(purgeCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// send command
// --------------------------------------------------------------------------

func sendCmd() *cobra.Command {
	var topic, eventID, title, body string
	var data []string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Emit a notification event",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !notify.ValidTopic(topic) {
				return fmt.Errorf("unknown topic %q (valid: %v)", topic, notify.Topics)
			}
			if eventID == "" {
				eventID = fmt.Sprintf("%s:%s", topic, uuid.NewString())
			}

			payload := make(map[string]any, len(data))
			for _, kv := range data {
				k, v, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("bad --data entry %q, want key=value", kv)
				}
				payload[k] = v
			}

			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				emitter, err := buildEmitter(ctx, cfg, pool, dryRun)
				if err != nil {
					return err
				}

				res, err := emitter.Emit(ctx, notify.Event{
					Topic:         notify.Topic(topic),
					EventID:       eventID,
					Title:         title,
					Body:          body,
					Data:          payload,
					CreatedByUID:  "system",
					CreatedByName: "kadroctl",
				})
				if err != nil {
					return err
				}
				if res.Duplicate {
					logger.Info("Duplicate, nothing sent", "event_id", res.EventID)
					return nil
				}
				logger.Info("Event sent",
					"event_id", res.EventID,
					"recipients", res.Dispatch.RecipientCount,
					"success", res.Dispatch.SuccessCount,
					"failure", res.Dispatch.FailureCount)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&topic, "topic", "", "Notification topic (required)")
	cmd.Flags().StringVar(&eventID, "event-id", "", "Event id (random when omitted)")
	cmd.Flags().StringVar(&title, "title", "", "Notification title")
	cmd.Flags().StringVar(&body, "body", "", "Notification body")
	cmd.Flags().StringArrayVar(&data, "data", nil, "Extra payload entries, key=value")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log instead of sending via FCM")
	_ = cmd.MarkFlagRequired("topic")
	return cmd
}

// --------------------------------------------------------------------------
// tick command
// --------------------------------------------------------------------------

func tickCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run one scheduler evaluation pass by hand",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				loc, err := time.LoadLocation(cfg.Timezone)
				if err != nil {
					return fmt.Errorf("load timezone: %w", err)
				}

				emitter, err := buildEmitter(ctx, cfg, pool, dryRun)
				if err != nil {
					return err
				}

				var watcher *schedule.StatsWatcher
				if cfg.StatsPollURL != "" {
					watcher = schedule.NewStatsWatcher(cfg.StatsPollURL, logger)
				}

				s := schedule.New(emitter, attendance.New(pool.Pool), watcher, loc, logger)
				s.Tick(ctx)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log instead of sending via FCM")
	return cmd
}

// --------------------------------------------------------------------------
// events command
// --------------------------------------------------------------------------

func eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect the event ledger",
	}

	show := &cobra.Command{
		Use:   "show <event-id>",
		Short: "Print one ledger entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				ledger := notify.NewLedger(store.NewPostgres(pool.Pool))
				rec, err := ledger.Get(ctx, notify.NormalizeEventID(args[0]))
				if err != nil {
					return err
				}
				if rec == nil {
					return fmt.Errorf("no such event")
				}
				logger.Info("Event",
					"event_id", rec.EventID,
					"topic", rec.Topic,
					"status", rec.Status,
					"created_by", rec.CreatedByName,
					"created_at", rec.CreatedAt,
					"recipients", rec.RecipientCount,
					"success", rec.SuccessCount,
					"failure", rec.FailureCount,
					"last_error", rec.LastError)
				return nil
			})
		},
	}

	cmd.AddCommand(show)
	return cmd
}

// --------------------------------------------------------------------------
// purge command
// --------------------------------------------------------------------------

func purgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge <state-key>",
		Short: "Delete one state key (event or day node)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				if err := store.NewPostgres(pool.Pool).Delete(ctx, args[0]); err != nil {
					return err
				}
				logger.Info("Deleted", "key", args[0])
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// helpers
// --------------------------------------------------------------------------

// run loads config, connects to the database, and invokes fn with signal
// handling.
func run(fn func(ctx context.Context, cfg *config.Config, pool *db.Pool) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, cfg, pool)
}

// buildEmitter assembles the full emission path. dryRun (or a missing FCM
// credential) swaps the sender for a log-only one.
func buildEmitter(ctx context.Context, cfg *config.Config, pool *db.Pool, dryRun bool) (*notify.Emitter, error) {
	var sender notify.Sender
	if !dryRun {
		fcm, err := notify.NewFCMSender(ctx, cfg.FCMCredentialsFile, cfg.WebPushLink, logger)
		if err != nil {
			return nil, err
		}
		if fcm != nil {
			sender = fcm
		}
	}
	if sender == nil {
		sender = notify.NewLogSender(logger)
	}

	ledger := notify.NewLedger(store.NewPostgres(pool.Pool))
	dispatcher := notify.NewDispatcher(notify.NewPGResolver(pool.Pool), sender, logger)
	return notify.NewEmitter(ledger, dispatcher, logger), nil
}
