package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codefionn/netshell/internal/auth"
	"github.com/codefionn/netshell/internal/config"
	"github.com/codefionn/netshell/internal/lockfile"
	"github.com/codefionn/netshell/internal/logger"
	"github.com/codefionn/netshell/internal/model"
	"github.com/codefionn/netshell/internal/pprof"
	"github.com/codefionn/netshell/internal/programs"
	"github.com/codefionn/netshell/internal/socketserver"
	"github.com/codefionn/netshell/internal/store"
	"github.com/codefionn/netshell/internal/template"
	"github.com/codefionn/netshell/internal/world"
)

var serveFlags struct {
	listen     string
	websocket  string
	db         string
	certFile   string
	keyFile    string
	selfSigned bool
	logLevel   string
	pprof      string
	templates  string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the game server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		applyServeFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := initLogger(cfg); err != nil {
			return err
		}
		defer closeLogger()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := serve(ctx, cfg); err != nil {
			logger.Error("Fatal error: %v", err)
			return err
		}
		return nil
	},
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.listen, "listen", "", "TLS listen address")
	f.StringVar(&serveFlags.websocket, "websocket", "", "websocket listen address (empty disables)")
	f.StringVar(&serveFlags.db, "db", "", "sqlite database path")
	f.StringVar(&serveFlags.certFile, "cert", "", "TLS certificate file")
	f.StringVar(&serveFlags.keyFile, "key", "", "TLS key file")
	f.BoolVar(&serveFlags.selfSigned, "self-signed", false, "generate an ephemeral certificate (development only)")
	f.StringVar(&serveFlags.logLevel, "log-level", "", "log level (debug, info, warn, error, none)")
	f.StringVar(&serveFlags.pprof, "pprof", "", "serve pprof on this address")
	f.StringVar(&serveFlags.templates, "templates", "", "directory of YAML system templates")
}

// applyServeFlags overrides config values with the flags that were set
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	set := func(name string, dst *string, v string) {
		if f.Changed(name) {
			*dst = v
		}
	}
	set("listen", &cfg.ListenAddr, serveFlags.listen)
	set("websocket", &cfg.WebSocketAddr, serveFlags.websocket)
	set("db", &cfg.DatabasePath, serveFlags.db)
	set("cert", &cfg.TLS.CertFile, serveFlags.certFile)
	set("key", &cfg.TLS.KeyFile, serveFlags.keyFile)
	set("log-level", &cfg.LogLevel, serveFlags.logLevel)
	set("pprof", &cfg.PprofAddr, serveFlags.pprof)
	set("templates", &cfg.TemplateDir, serveFlags.templates)
	if f.Changed("self-signed") {
		cfg.TLS.SelfSigned = serveFlags.selfSigned
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	lock := lockfile.ForDatabase(cfg.DatabasePath)
	if err := lock.TryAcquire(); err != nil {
		return err
	}
	defer lock.Release()

	db, err := store.OpenSQLite(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	templates, err := loadTemplates(cfg.TemplateDir)
	if err != nil {
		return err
	}

	w, err := world.Open(ctx, db, model.World{
		Name:               cfg.DefaultWorld.Name,
		PlayerTemplate:     cfg.DefaultWorld.PlayerTemplate,
		StartupCommandLine: cfg.DefaultWorld.StartupCommandLine,
	}, world.WithTemplates(templates))
	if err != nil {
		return fmt.Errorf("failed to open world: %w", err)
	}
	programs.Install(w)

	if cfg.PprofAddr != "" {
		prof := pprof.NewHandler(cfg.PprofAddr)
		if err := prof.Start(); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := prof.Stop(stopCtx); err != nil {
				logger.Warn("%v", err)
			}
		}()
	}

	srv, err := socketserver.NewServer(cfg, socketserver.Deps{
		Dispatcher: socketserver.NewDispatcher(auth.New(db), w),
		ConfigPath: watchPath(),
	})
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

func loadTemplates(dir string) (template.Provider, error) {
	static := template.NewStatic()
	if dir == "" {
		return static, nil
	}
	yamlDir, err := template.LoadYAMLDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}
	logger.Info("Loaded %d system templates from %s", len(yamlDir.Names()), dir)
	return template.Chain(yamlDir, static), nil
}

// watchPath is the config file to watch, or empty when there is none
func watchPath() string {
	if _, err := os.Stat(configPath); err != nil {
		return ""
	}
	return configPath
}
