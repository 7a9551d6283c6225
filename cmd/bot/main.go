package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/carlmjohnson/versioninfo"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/jose-valero/guild-guard-bot/internal/adapters/alerthook"
	discordrouter "github.com/jose-valero/guild-guard-bot/internal/adapters/discord"
	"github.com/jose-valero/guild-guard-bot/internal/adapters/httpstatus"
	"github.com/jose-valero/guild-guard-bot/internal/app/service"
	"github.com/jose-valero/guild-guard-bot/internal/infra/config"
	"github.com/jose-valero/guild-guard-bot/internal/infra/storage"
)

func main() {
	_ = godotenv.Load()

	app := cli.App{
		Name:    "guild-guard",
		Usage:   "anti-nuke para servidores de Discord",
		Version: versioninfo.Short(),
		Action:  runBot,
	}
	app.Commands = []*cli.Command{
		{
			Name:   "run",
			Usage:  "conecta el bot y arranca la protección",
			Action: runBot,
		},
		{
			Name:   "check-config",
			Usage:  "valida el entorno y muestra la policy efectiva",
			Action: runCheckConfig,
		},
	}
	app.RunAndExitOnError()
}

func runCheckConfig(cctx *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(cfg.Policy)
	if err != nil {
		return err
	}
	fmt.Fprintf(cctx.App.Writer, "✅ config ok\n%s", out)
	return nil
}

func runBot(cctx *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := cfg.Logger(os.Stderr)
	slog.SetDefault(log)
	log.Info("starting guild guard", "version", versioninfo.Short())

	ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB (opcional): solo el journal de incidentes
	var (
		journal   service.IncidentJournal
		incidents httpstatus.IncidentSource
	)
	if cfg.DatabaseURL != "" {
		db, err := openJournalDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		repo := storage.NewIncidentRepo(db)
		journal, incidents = repo, repo
		log.Info("✅ DB lista y migrada")
	}

	var notifier service.Notifier
	if cfg.AlertWebhookURL != "" {
		notifier = alerthook.New(cfg.AlertWebhookURL)
	}

	auth := cfg.DiscordToken
	if !strings.HasPrefix(strings.ToLower(auth), "bot ") {
		auth = "Bot " + auth
	}
	s, err := discordgo.New(auth)
	if err != nil {
		return err
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans |
		discordgo.IntentsGuildWebhooks |
		discordgo.IntentsGuildInvites |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent

	platform := discordrouter.NewPlatform(s, log.With("component", "discord"), cfg.Policy.LogChannel)
	allow := append([]string{cfg.OwnerID}, cfg.AllowIDs...)
	guard := service.NewGuard(service.GuardDeps{
		Log:      log,
		Platform: platform,
		Store:    storage.NewMemStore(cfg.Policy.Windows(), allow...),
		Policy:   cfg.Policy,
		Notifier: notifier,
		Journal:  journal,
	})
	defer guard.Close()

	// handlers antes de Open para no perder los GuildCreate iniciales
	r := discordrouter.NewRouter(s, log.With("component", "router"), cfg.DiscordGuild, cfg.AdminRoleIDs, guard)
	r.Handlers()

	if err := s.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}
	defer s.Close()
	log.Info("✅ Conectado", "user", s.State.User.Username, "id", s.State.User.ID)

	if err := r.Register(); err != nil {
		return fmt.Errorf("registrando comandos: %w", err)
	}

	web := httpstatus.New(log.With("component", "http"), cfg.StatusToken, guard, incidents)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return guard.RunBackups(gctx, platform.GuildIDs) })
	g.Go(func() error { return guard.RunPurge(gctx) })
	g.Go(func() error { return web.Run(gctx, cfg.HTTPAddr) })

	err = g.Wait()
	log.Info("shutting down", "err", err)
	return err
}

func openJournalDB(ctx context.Context, url string) (*sql.DB, error) {
	db, err := storage.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := storage.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}
