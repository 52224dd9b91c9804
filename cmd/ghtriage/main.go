// Command ghtriage runs the notification triage core headless: it
// polls the source, classifies groups, and logs the prioritized view
// and any alerts. A UI front-end consumes the same session API.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nhle/gh-triage/internal/alert"
	"github.com/nhle/gh-triage/internal/credential"
	"github.com/nhle/gh-triage/internal/diag"
	"github.com/nhle/gh-triage/internal/model"
	"github.com/nhle/gh-triage/internal/source/github"
	"github.com/nhle/gh-triage/internal/store"
	appsync "github.com/nhle/gh-triage/internal/sync"
)

// logNotifier writes alert requests to the structured log. A desktop
// front-end would substitute its own Notifier.
type logNotifier struct {
	log *slog.Logger
}

func (n *logNotifier) Notify(a alert.Alert) {
	n.log.Info("alert", "title", a.Title, "body", a.Body, "url", a.URL)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ghtriage: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := model.LoadConfig(model.DefaultConfigPath())
	if err != nil {
		return err
	}

	token := os.Getenv("GHTRIAGE_TOKEN")
	if token == "" {
		token, err = credential.Get(credential.TokenKey)
		if err != nil {
			return fmt.Errorf(
				"no token: set GHTRIAGE_TOKEN or store one under %q: %w",
				credential.TokenKey, err,
			)
		}
	}

	stream := diag.NewStream()
	log := stream.Logger(slog.NewTextHandler(os.Stderr, nil))

	kv, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer kv.Close()

	client := github.NewAdapter(cfg.Source.BaseURL, token)
	session := appsync.NewSession(cfg, kv, client, &logNotifier{log: log},
		func() {
			log.Warn("invalidating stored credentials")
			_ = credential.Delete(credential.TokenKey)
		}, log)

	session.Start()
	defer session.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-sig:
			return nil
		case res := <-session.Results():
			if res.Err != nil {
				if res.Unauthorized {
					log.Error("credentials rejected; exiting")
					return res.Err
				}
				continue
			}
			log.Info("refresh complete",
				"groups", len(res.Groups),
				"alerts", len(res.Alerts),
				"pages", res.LoadedPages,
				"has_more", res.HasMore,
			)
		}
	}
}
