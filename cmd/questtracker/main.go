package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/dukerupert/questtracker/internal/config"
	"github.com/dukerupert/questtracker/internal/logging"
)

var CLI struct {
	EnvFile string `help:"Environment file loaded before reading QUESTTRACKER_* variables." default:".env" type:"path"`

	Serve     ServeCmd     `cmd:"" help:"Run the HTTP API and background jobs." default:"1"`
	Process   ProcessCmd   `cmd:"" help:"Run the daily quest pass now."`
	VAPIDKeys VAPIDKeysCmd `cmd:"" name:"vapid-keys" help:"Generate a VAPID key pair for web push."`
	Migrate   MigrateCmd   `cmd:"" help:"Apply database migrations."`
	Backup    struct {
		Now     BackupNowCmd     `cmd:"" help:"Take a backup now."`
		List    BackupListCmd    `cmd:"" help:"List recent backups."`
		Restore BackupRestoreCmd `cmd:"" help:"Download and decrypt a backup to a file."`
	} `cmd:"" help:"Manage database backups."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("questtracker"),
		kong.Description("Family quest and reward tracker"),
		kong.UsageOnError(),
	)

	if err := config.LoadEnvFile(CLI.EnvFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	app := &appContext{
		cfg:    cfg,
		logger: logging.Setup(cfg.LogLevel, cfg.LogFormat, cfg.LogFile),
	}
	if err := ctx.Run(app); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
