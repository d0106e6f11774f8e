package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	appcfg "github.com/decentgg/bridgebot/internal/config"
	"github.com/decentgg/bridgebot/internal/dispatch"
	"github.com/decentgg/bridgebot/internal/gameproc"
	"github.com/decentgg/bridgebot/internal/msgcat"
	"github.com/decentgg/bridgebot/internal/obslog"
	"github.com/decentgg/bridgebot/internal/outbound"
	"github.com/decentgg/bridgebot/internal/presence"
	"github.com/decentgg/bridgebot/internal/protocol"
	"github.com/decentgg/bridgebot/internal/relay"
	"github.com/decentgg/bridgebot/internal/shortcuts"
	"github.com/decentgg/bridgebot/internal/single"
	"github.com/decentgg/bridgebot/internal/stats"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	if err := run(cfg); err != nil {
		obslog.L().Error("fatal", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *appcfg.AppConfig) error {
	logger := obslog.L()

	if err := single.Acquire(cfg.LockFilePath); err != nil {
		return err
	}
	defer single.Release(cfg.LockFilePath)

	cat, err := msgcat.New(cfg.MessageDir)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}

	store, err := shortcuts.NewStore(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("shortcut store init: %w", err)
	}

	client := gameproc.NewClient(cfg.GameClientPath, logger,
		gameproc.WithConnectTimeout(cfg.ConnectTimeout),
		gameproc.WithSendDelay(cfg.SendDelay),
	)
	gate := outbound.NewGate(client, cat, logger)
	lookup := stats.NewPlanckeClient(logger)
	dispatcher := dispatch.New(gate, store, lookup, cat, cfg.BotUsername, cfg.GuildChannel, logger)

	egress := relay.NewDiscordEgress(cfg.DiscordWebhookURL, cfg.DiscordWebhookURLOnline, logger)
	bridge := relay.NewBridge(gate, egress, cfg.GuildChannel, cfg.RelayChunkDelay, logger)
	ingress := relay.NewIngress(cfg.WebhookSecret, bridge, logger)
	tracker := presence.NewTracker(client, gate, egress,
		cfg.PresencePeriod, cfg.PresenceSettle, cfg.PresenceBackoff, logger)

	connLost := make(chan struct{}, 1)
	client.Subscribe(gate.HandleEvent)
	client.Subscribe(dispatcher.HandleEvent)
	client.Subscribe(bridge.HandleEvent)
	client.Subscribe(func(ev protocol.Event) {
		if ev.Kind == protocol.KindConnectionLost {
			select {
			case connLost <- struct{}{}:
			default:
			}
		}
	})

	if err := client.Start(context.Background()); err != nil {
		return fmt.Errorf("game client start: %w", err)
	}

	dispatcher.Start()
	bridge.Start()
	ingress.Start(cfg.ListenAddr)
	tracker.Start()
	logger.Info("bridge running")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		logger.Info("signal received, shutting down", zap.String("signal", s.String()))
	case <-client.Done():
		logger.Warn("game client exited, shutting down")
	case <-connLost:
		logger.Warn("connection to server lost, shutting down")
		gate.Send("Connection lost. Quitting...")
		time.Sleep(time.Second)
	}

	tracker.Stop()
	ingress.Stop()
	bridge.Stop()
	dispatcher.Stop()
	client.Stop()

	logger.Info("shutdown complete")
	return nil
}
