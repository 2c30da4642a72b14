package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"aisentinel/bot"
	"aisentinel/dashboard"
	"aisentinel/digest"
	"aisentinel/events"
	"aisentinel/scheduler"
	"aisentinel/storage"
)

const collectJob = "collect"

func (a *app) serveCmd() *cobra.Command {
	var noBot, noSchedule bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard, the collection schedule and the Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context(), !noBot, !noSchedule)
		},
	}
	cmd.Flags().BoolVar(&noBot, "no-bot", false, "do not start the Telegram bot")
	cmd.Flags().BoolVar(&noSchedule, "no-schedule", false, "do not schedule collection and digests")
	return cmd
}

func (a *app) serve(ctx context.Context, withBot, withSchedule bool) error {
	cfg := a.cfg

	// Initialize storage
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	// Initialize components
	textAnalyzer := a.analyzer()
	respCache := a.responseCache(ctx)
	defer respCache.Close()
	bus := a.eventBus()
	if bus != nil {
		defer bus.Close()
	}
	runner := a.pipeline(store, textAnalyzer, bus)

	// Initialize scheduler
	sched, err := scheduler.New(cfg.Timezone)
	if err != nil {
		return err
	}
	slog.Info("scheduler initialized", "timezone", cfg.Timezone)

	// Create bot, if a token is configured
	var telegramBot *bot.Bot
	if withBot && cfg.Telegram.Token != "" {
		api, err := bot.NewAPI(cfg.Telegram.Token, "", nil)
		if err != nil {
			return err
		}
		slog.Info("telegram connected", "bot", api.Self.UserName)

		var digestRunner *digest.Runner
		telegramBot = bot.New(api, bot.Config{
			ChatID:     cfg.Telegram.ChatID,
			DigestTime: cfg.Telegram.DigestTime,
			TopN:       cfg.Telegram.TopN,
		}, bot.Deps{
			Mentions:        &mentionSourceAdapter{store: store},
			Analyzer:        textAnalyzer,
			SettingsStore:   store,
			StatsProvider:   &statsAdapter{store: store},
			ScheduleUpdater: sched,
			DigestFunc: func() {
				runDigest(ctx, digestRunner, telegramBot)
			},
		})
		digestRunner = digest.NewRunner(&mentionSourceAdapter{store: store}, telegramBot, digest.Config{})

		// Load settings from DB (override config defaults)
		if err := telegramBot.LoadSettings(); err != nil {
			slog.Warn("failed to load saved settings", "error", err)
		}

		if withSchedule {
			if err := sched.AddDaily(bot.DigestJob, telegramBot.DigestTime(), func() {
				runDigest(ctx, digestRunner, telegramBot)
			}); err != nil {
				return err
			}
		}
	} else if withBot {
		slog.Warn("telegram token not set, bot and digest disabled")
	}

	// Schedule collection
	if withSchedule {
		if err := sched.AddCron(collectJob, cfg.Collect.Schedule, func() {
			if _, err := runner.Run(ctx); err != nil {
				slog.Error("scheduled collection failed", "error", err)
			}
		}); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
		if next, ok := sched.Next(collectJob); ok {
			slog.Info("scheduler started", "collect_schedule", cfg.Collect.Schedule, "next_collection", humanize.Time(next))
		}
	}

	web, err := dashboard.New(store, textAnalyzer, a.technical(respCache), dashboard.Config{
		DefaultTop: cfg.Dashboard.DefaultTop,
		WindowDays: cfg.Dashboard.WindowDays,
	})
	if err != nil {
		return err
	}
	var live *events.Tally
	if bus != nil {
		live = events.NewTally()
		web.SetLive(live)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return web.ListenAndServe(gctx, cfg.Dashboard.Addr)
	})
	if telegramBot != nil {
		g.Go(func() error {
			slog.Info("bot starting", "chat_id", telegramBot.ChatID())
			return telegramBot.Run(gctx)
		})
	}
	if bus != nil {
		g.Go(func() error {
			return bus.Subscribe(gctx, func(evt events.MentionScored) {
				slog.Debug("mention scored", "key", evt.Key, "tool", evt.Tool, "label", evt.Label)
				live.Record(evt)
			})
		})
	}

	err = g.Wait()
	slog.Info("shutdown complete")
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// runDigest syncs the digest with the bot's current settings and sends it.
func runDigest(ctx context.Context, r *digest.Runner, b *bot.Bot) {
	r.UpdateConfig(digest.Config{ChatID: b.ChatID(), TopN: b.TopN()})
	if err := r.Run(ctx); err != nil {
		slog.Error("digest run failed", "error", err)
	}
}

var _ bot.SettingsStore = (*storage.Store)(nil)
