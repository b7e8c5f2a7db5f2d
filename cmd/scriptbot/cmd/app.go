package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/rustyeddy/scriptbot/binance"
	"github.com/rustyeddy/scriptbot/config"
	"github.com/rustyeddy/scriptbot/datafeed"
	"github.com/rustyeddy/scriptbot/keys"
	"github.com/rustyeddy/scriptbot/market"
	"github.com/rustyeddy/scriptbot/store"
	"github.com/rustyeddy/scriptbot/trade"
)

// maxPassphraseAttempts bounds interactive unlock attempts for the
// encrypted key file.
const maxPassphraseAttempts = 3

// app holds the wired process: the exchange client, caches and placer.
type app struct {
	cfg    *config.Config
	log    *zap.Logger
	client *binance.Client
	db     *store.Store
	feed   *datafeed.Feed
	rules  *datafeed.Constraints
	placer *trade.Placer
	stream *binance.Stream
}

// buildApp loads config and wires everything. withStream also creates the
// websocket kline stream for the given subscriptions.
func buildApp(ctx context.Context, streamKeys []binance.StreamKey) (*app, error) {
	cfg, err := config.LoadFromFile(cfgPath)
	if err != nil {
		return nil, err
	}
	log, err := cfg.Logging.NewLogger()
	if err != nil {
		return nil, err
	}

	apiKey, apiSecret := cfg.Exchange.APIKey, cfg.Exchange.APISecret
	if cfg.Exchange.KeyFile != "" {
		creds, err := unlockKeyFile(cfg.Exchange.KeyFile)
		if err != nil {
			return nil, err
		}
		apiKey, apiSecret = creds.APIKey, creds.APISecret
	}

	var clientOpts []binance.ClientOption
	if cfg.Exchange.BaseURL != "" {
		clientOpts = append(clientOpts, binance.WithBaseURL(cfg.Exchange.BaseURL))
	}
	client := binance.NewClient(log, apiKey, apiSecret, clientOpts...)
	if err := client.SyncTime(ctx); err != nil {
		log.Warn("clock sync failed, signed requests may be rejected", zap.Error(err))
	}

	db, err := store.Open(cfg.Data.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	var stream *binance.Stream
	var live datafeed.LiveSource
	if len(streamKeys) > 0 {
		var streamOpts []binance.StreamOption
		if cfg.Exchange.StreamURL != "" {
			streamOpts = append(streamOpts, binance.WithStreamURL(cfg.Exchange.StreamURL))
		}
		stream = binance.NewStream(log, streamKeys, streamOpts...)
		live = stream
	}

	feed := datafeed.NewFeed(log, client, live, db,
		datafeed.WithDataLimit(cfg.Data.DataLimit))
	if stream != nil {
		stream.OnClose = feed.HandleClosed
	}
	rules := datafeed.NewConstraints(log, client, db)

	placerOpts := []trade.Option{
		trade.WithTakerFee(cfg.Defaults.TakerFee),
		trade.WithOrderLog(db),
	}
	if cfg.Defaults.CrossMargin {
		placerOpts = append(placerOpts, trade.WithCrossMargin())
	}
	placer := trade.NewPlacer(log, feed, client, rules, client, placerOpts...)

	return &app{
		cfg:    cfg,
		log:    log,
		client: client,
		db:     db,
		feed:   feed,
		rules:  rules,
		placer: placer,
		stream: stream,
	}, nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
	a.log.Sync()
}

func (a *app) defaultInterval() market.Interval {
	return market.Interval(a.cfg.Defaults.Interval)
}

// preConfig is the slice of config needed before full wiring.
type preConfig struct {
	symbol   string
	interval market.Interval
}

func loadConfigDefaults() (preConfig, error) {
	cfg, err := config.LoadFromFile(cfgPath)
	if err != nil {
		return preConfig{}, err
	}
	return preConfig{
		symbol:   cfg.Defaults.Symbol,
		interval: market.Interval(cfg.Defaults.Interval),
	}, nil
}

// unlockKeyFile prompts for the passphrase, allowing a few attempts before
// giving up.
func unlockKeyFile(path string) (keys.Credentials, error) {
	reader := bufio.NewReader(os.Stdin)
	for attempt := 1; attempt <= maxPassphraseAttempts; attempt++ {
		fmt.Fprintf(os.Stderr, "Passphrase for %s: ", path)
		line, err := reader.ReadString('\n')
		if err != nil {
			return keys.Credentials{}, fmt.Errorf("read passphrase: %w", err)
		}
		creds, err := keys.Load(path, []byte(strings.TrimRight(line, "\r\n")))
		if err == nil {
			return creds, nil
		}
		fmt.Fprintln(os.Stderr, err)
	}
	return keys.Credentials{}, fmt.Errorf("unlock %s: too many failed attempts", path)
}
