package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dukerupert/questtracker/internal/config"
	"github.com/dukerupert/questtracker/internal/database"
	"github.com/dukerupert/questtracker/internal/email"
	"github.com/dukerupert/questtracker/internal/fcm"
	"github.com/dukerupert/questtracker/internal/lifecycle"
	"github.com/dukerupert/questtracker/internal/objectstore"
	"github.com/dukerupert/questtracker/internal/push"
	"github.com/dukerupert/questtracker/internal/quest"
	"github.com/dukerupert/questtracker/internal/recurrence"
	"github.com/dukerupert/questtracker/internal/server"
	"github.com/dukerupert/questtracker/internal/store"
)

type appContext struct {
	cfg    *config.Config
	logger *slog.Logger
}

// open opens the database and builds the server with whatever outside
// services are configured.
func (a *appContext) open(ctx context.Context) (*sql.DB, *server.Server, error) {
	db, err := database.Open(a.cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	deps := server.Deps{
		Blobs: objectstore.New(objectstore.Config{
			Endpoint:  a.cfg.S3Endpoint,
			Bucket:    a.cfg.S3Bucket,
			Region:    a.cfg.S3Region,
			AccessKey: a.cfg.S3AccessKey,
			SecretKey: a.cfg.S3SecretKey,
		}, a.logger),
		Mailer: email.NewClient(a.cfg.PostmarkToken, a.cfg.EmailFrom),
	}
	if deps.Blobs == nil {
		a.logger.Info("object storage disabled, proofs and backups are off")
	}

	fcmCfg := fcm.Config{
		CredentialsFile: a.cfg.FCMCredentialsFile,
		CredentialsJSON: a.cfg.FCMCredentialsJSON,
	}
	if fcmCfg.Enabled() {
		sender, err := fcm.NewSender(ctx, fcmCfg, a.logger)
		if err != nil {
			a.logger.Warn("fcm disabled", "error", err)
		} else {
			deps.Mobile = sender
		}
	}

	return db, server.New(db, a.cfg, deps, a.logger), nil
}

type ServeCmd struct{}

func (c *ServeCmd) Run(a *appContext) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, srv, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	group := lifecycle.New(a.logger)
	group.Add(ctx, "scheduler", srv.Scheduler())
	group.Add(ctx, "backup", srv.BackupManager())
	for i, rl := range srv.RateLimiters() {
		group.Add(ctx, fmt.Sprintf("ratelimit-%d", i), rl)
	}

	httpServer := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	err = group.Run(ctx,
		func(ctx context.Context) error {
			a.logger.Info("questtracker listening", "addr", httpServer.Addr, "base_url", a.cfg.BaseURL)
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve http: %w", err)
			}
			return nil
		},
		func(ctx context.Context) error {
			<-ctx.Done()
			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		},
	)
	srv.Notifier().Wait()
	return err
}

type ProcessCmd struct {
	Child int64  `help:"Only process this child." placeholder:"ID"`
	Date  string `help:"Treat this date (YYYY-MM-DD) as today." placeholder:"DATE"`
}

func (c *ProcessCmd) Run(a *appContext) error {
	ctx := context.Background()
	db, srv, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	defer srv.Notifier().Wait()

	run := func(childID int64) (*quest.PassResult, error) {
		if c.Date == "" {
			return srv.Quests().RunPass(ctx, childID)
		}
		day, err := recurrence.ParseDate(c.Date)
		if err != nil {
			return nil, err
		}
		return srv.Quests().RunPassOn(ctx, childID, day)
	}

	var children []int64
	if c.Child != 0 {
		children = append(children, c.Child)
	} else {
		families, err := store.NewFamilyStore(db).List()
		if err != nil {
			return err
		}
		users := store.NewUserStore(db)
		for _, f := range families {
			kids, err := users.ListChildren(f.ID)
			if err != nil {
				return err
			}
			for _, k := range kids {
				children = append(children, k.ID)
			}
		}
	}

	for _, id := range children {
		r, err := run(id)
		if err != nil {
			return fmt.Errorf("child %d: %w", id, err)
		}
		if !r.Ran {
			fmt.Printf("child %d: already processed for %s\n", id, r.Date)
			continue
		}
		fmt.Printf("child %d: %s missed=%d reset=%d declined=%d points +%d/-%d\n",
			id, r.Date, len(r.Missed), len(r.CompletedAndReset), len(r.Declined), r.PointsGained, r.PointsReduced)
	}
	return nil
}

type VAPIDKeysCmd struct{}

func (c *VAPIDKeysCmd) Run(a *appContext) error {
	pub, priv, err := push.GenerateVAPIDKeys()
	if err != nil {
		return err
	}
	fmt.Printf("QUESTTRACKER_VAPID_PUBLIC_KEY=%s\n", pub)
	fmt.Printf("QUESTTRACKER_VAPID_PRIVATE_KEY=%s\n", priv)
	return nil
}

type MigrateCmd struct{}

func (c *MigrateCmd) Run(a *appContext) error {
	db, err := database.Open(a.cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	v, err := database.Version(db)
	if err != nil {
		return err
	}
	fmt.Printf("%s is at schema version %d\n", a.cfg.DBPath, v)
	return nil
}

type BackupNowCmd struct{}

func (c *BackupNowCmd) Run(a *appContext) error {
	ctx := context.Background()
	db, srv, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	b, err := srv.BackupManager().RunNow(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("backup %d stored as %s (%s)\n", b.ID, b.ObjectKey, humanize.Bytes(uint64(b.SizeBytes)))
	return nil
}

type BackupListCmd struct {
	Limit int `help:"How many backups to show." default:"20"`
}

func (c *BackupListCmd) Run(a *appContext) error {
	ctx := context.Background()
	db, srv, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	list, err := srv.BackupManager().List(ctx, c.Limit)
	if err != nil {
		return err
	}
	for _, b := range list {
		size := "-"
		if b.SizeBytes > 0 {
			size = humanize.Bytes(uint64(b.SizeBytes))
		}
		fmt.Printf("%d\t%s (%s)\t%s\t%s\t%s\n", b.ID, b.CreatedAt.Format(time.RFC3339), humanize.Time(b.CreatedAt), b.Status, size, b.ErrorMessage)
	}
	return nil
}

type BackupRestoreCmd struct {
	ID int64  `arg:"" help:"Backup id."`
	To string `help:"Where to write the restored database." required:"" type:"path"`
}

func (c *BackupRestoreCmd) Run(a *appContext) error {
	if _, err := os.Stat(c.To); err == nil {
		return fmt.Errorf("%s already exists", c.To)
	}
	ctx := context.Background()
	db, srv, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := srv.BackupManager().Restore(ctx, c.ID, c.To); err != nil {
		return err
	}
	fmt.Printf("backup %d restored to %s; stop the server and replace %s to use it\n", c.ID, c.To, a.cfg.DBPath)
	return nil
}
