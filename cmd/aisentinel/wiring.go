package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"aisentinel/artificialanalysis"
	"aisentinel/bot"
	"aisentinel/cache"
	"aisentinel/events"
	"aisentinel/hn"
	"aisentinel/mention"
	"aisentinel/pipeline"
	"aisentinel/reddit"
	"aisentinel/scraper"
	"aisentinel/sentiment"
	"aisentinel/storage"
	"aisentinel/twitter"
)

const scrapeMaxChars = 4000

func (a *app) analyzer() sentiment.Analyzer {
	return sentiment.New(sentiment.Options{
		UseCustomModel: a.cfg.Sentiment.UseCustomModel,
		ModelDir:       a.cfg.Sentiment.ModelDir,
		Lexicon:        a.cfg.Sentiment.LexiconFallback,
		BatchSize:      a.cfg.Sentiment.BatchSize,
	})
}

func (a *app) collectors() []mention.Collector {
	c := a.cfg
	httpClient := &http.Client{Timeout: time.Duration(c.Collect.FetchTimeoutSec) * time.Second}

	var articleScraper scraper.Scraper
	if c.Collect.FetchLinkedArticles {
		articleScraper = scraper.NewScraper(time.Duration(c.Collect.FetchTimeoutSec)*time.Second, scrapeMaxChars)
	}

	return []mention.Collector{
		twitter.NewCollector(httpClient, twitter.Config{
			BearerToken: c.Twitter.BearerToken,
			QueryTerms:  c.Collect.QueryTerms,
			Limit:       c.Collect.Limit,
			Pause:       time.Duration(c.Twitter.PauseSec) * time.Second,
		}),
		reddit.NewCollector(reddit.NewClient(httpClient, reddit.Credentials{
			ClientID:     c.Reddit.ClientID,
			ClientSecret: c.Reddit.ClientSecret,
			UserAgent:    c.Reddit.UserAgent,
		}), reddit.Config{
			Subreddits:      c.Reddit.Subreddits,
			QueryTerms:      c.Collect.QueryTerms,
			Limit:           c.Collect.Limit,
			IncludeComments: c.Reddit.IncludeComments,
			Pause:           time.Duration(c.Reddit.PauseSec * float64(time.Second)),
		}),
		hn.NewCollector(hn.NewClient(httpClient), articleScraper, hn.CollectorConfig{
			QueryTerms:  c.Collect.QueryTerms,
			Limit:       c.Collect.Limit,
			HitsPerPage: c.HackerNews.HitsPerPage,
		}),
	}
}

// responseCache connects to Redis when configured, falling back to memory.
func (a *app) responseCache(ctx context.Context) cache.Cache {
	if a.cfg.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, a.cfg.RedisURL, "aisentinel:")
		if err == nil {
			slog.Info("redis cache connected")
			return rc
		}
		slog.Warn("redis unavailable, using in-memory cache", "error", err)
	}
	return cache.NewMemory()
}

func (a *app) technical(c cache.Cache) *artificialanalysis.Client {
	aa := a.cfg.ArtificialAnalysis
	return artificialanalysis.NewClient(
		&http.Client{Timeout: time.Duration(aa.TimeoutSec) * time.Second},
		c,
		artificialanalysis.Config{
			APIKey:   aa.APIKey,
			CacheTTL: time.Duration(aa.CacheTTLMin) * time.Minute,
		},
	)
}

// eventBus connects to NATS when configured. A nil bus disables publishing.
func (a *app) eventBus() *events.NATSBus {
	if a.cfg.NATS.URL == "" {
		return nil
	}
	bus, err := events.NewNATSBus(events.NATSConfig{URL: a.cfg.NATS.URL, Subject: a.cfg.NATS.Subject})
	if err != nil {
		slog.Warn("nats unavailable, scored mentions will not be published", "error", err)
		return nil
	}
	return bus
}

func (a *app) pipeline(store *storage.Store, analyzer sentiment.Analyzer, bus *events.NATSBus) *pipeline.Runner {
	var pub pipeline.Publisher
	if bus != nil {
		pub = bus
	}
	return pipeline.NewRunner(a.collectors(), analyzer, store, pub, pipeline.Config{
		KeepUntagged:  a.cfg.Collect.KeepUntagged,
		BatchSize:     a.cfg.Sentiment.BatchSize,
		RetentionDays: a.cfg.Collect.RetentionDays,
	})
}

// --- Adapters to bridge package types ---

// mentionSourceAdapter bridges storage.Store to digest.MentionSource and
// bot.MentionSource
type mentionSourceAdapter struct {
	store *storage.Store
}

func (a *mentionSourceAdapter) MentionsSince(since time.Time) ([]mention.Mention, error) {
	return a.store.ListMentions(storage.Filter{Since: since})
}

// statsAdapter bridges storage.Store to bot.StatsProvider
type statsAdapter struct {
	store *storage.Store
}

func (a *statsAdapter) Stats() (bot.Stats, error) {
	var st bot.Stats
	n, err := a.store.CountMentions(storage.Filter{})
	if err != nil {
		return st, err
	}
	st.Mentions = n
	tools, err := a.store.Tools()
	if err != nil {
		return st, err
	}
	st.Tools = len(tools)
	runs, err := a.store.RecentRuns(1)
	if err != nil {
		return st, err
	}
	if len(runs) > 0 {
		st.LastRun = runs[0].StartedAt
		st.LastCollected = runs[0].Collected
		st.LastStored = runs[0].Stored
		st.LastError = runs[0].Error
	}
	return st, nil
}
