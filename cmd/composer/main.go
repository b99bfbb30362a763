// Command composer runs the image-composition daemon: it loads the
// configuration file, wires up the blueprint store, package catalog and
// compose queue, and serves the REST API over a Unix domain socket until
// it receives SIGINT or SIGTERM.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/kean0048/lorax-for-legion/internal/api"
	"github.com/kean0048/lorax-for-legion/internal/blueprintstore"
	"github.com/kean0048/lorax-for-legion/internal/config"
	"github.com/kean0048/lorax-for-legion/internal/queue"
	"github.com/kean0048/lorax-for-legion/internal/rpmmd"
)

// buildVersion is overridden at link time (-ldflags "-X main.buildVersion=...").
var buildVersion = "devel"

func main() {
	configPath := flag.String("config", "/etc/lorax/composer.conf", "path to the composer configuration file")
	dnfJSONPath := flag.String("dnf-json", "/usr/libexec/lorax-composer/dnf-json", "path to the dnf-json helper")
	builderPath := flag.String("image-builder", "/usr/sbin/livemedia-creator", "path to the external image-builder executable")
	flag.Parse()

	logger := log.New(os.Stderr, "composer: ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("loading config: %v", err)
	}

	if err := os.MkdirAll(cfg.StateDir, 0755); err != nil {
		logger.Fatalf("creating state dir: %v", err)
	}
	if err := os.MkdirAll(cfg.ShareDir, 0755); err != nil {
		logger.Fatalf("creating share dir: %v", err)
	}

	store := blueprintstore.New(filepath.Join(cfg.StateDir, "blueprints"))

	catalog := rpmmd.New(rpmmd.DNFJSONBackend{Path: *dnfJSONPath}, cfg.Repos)

	builder := queue.ExecBuilder{Path: *builderPath}
	q, err := queue.New(cfg.StateDir, cfg.ShareDir, builder, queue.DefaultKickstartRenderer{}, logger)
	if err != nil {
		logger.Fatalf("opening compose queue: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go q.Run(ctx)
	go func() {
		if err := q.Watch(ctx); err != nil {
			logger.Printf("queue watcher stopped: %v", err)
		}
	}()

	server := api.NewServer(logger, store, catalog, q, buildVersion)

	if err := os.RemoveAll(cfg.SocketPath); err != nil {
		logger.Fatalf("clearing stale socket: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.SocketPath), 0755); err != nil {
		logger.Fatalf("creating socket dir: %v", err)
	}
	listener, err := net.Listen("unix", cfg.SocketPath)
	if err != nil {
		logger.Fatalf("listening on %s: %v", cfg.SocketPath, err)
	}

	// With an allow-list configured, the socket is opened to its group only
	// and the named users are expected to be members; otherwise any local
	// user may connect.
	socketMode := os.FileMode(0666)
	if len(cfg.AllowedUsers) > 0 {
		socketMode = 0660
	}
	if err := os.Chmod(cfg.SocketPath, socketMode); err != nil {
		logger.Fatalf("setting socket permissions: %v", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Println("shutting down")
		cancel()
		listener.Close()
	}()

	logger.Printf("serving api v0 on %s", cfg.SocketPath)
	if err := server.Serve(listener); err != nil {
		logger.Fatalf("serving api: %v", err)
	}
}
