package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"invifiles/internal/config"
	"invifiles/internal/httpserver"
	"invifiles/internal/lanaddr"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		addr    string
		port    int
		root    string
		cfgPath string
		webdav  bool
		qr      bool
	)
	cmd := &cobra.Command{
		Use:          "invifiles [dir]",
		Short:        "Share a directory over HTTP with thumbnails and browser uploads",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("addr") {
				cfg.Addr = addr
			}
			if flags.Changed("port") {
				cfg.Addr = fmt.Sprintf(":%d", port)
			}
			if flags.Changed("root") {
				cfg.Root = root
			}
			if len(args) == 1 {
				cfg.Root = args[0]
			}
			if flags.Changed("webdav") {
				cfg.WebDAV = webdav
			}
			if flags.Changed("qr") {
				cfg.QR = qr
			}
			if err := cfg.Finalize(); err != nil {
				return fmt.Errorf("config: %w", err)
			}
			return serve(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&addr, "addr", ":9000", "listen address")
	f.IntVarP(&port, "port", "p", 9000, "listen port (overrides the port in --addr)")
	f.StringVar(&root, "root", ".", "directory to share (a positional dir argument wins)")
	f.StringVarP(&cfgPath, "config", "c", "", "path to a YAML or JSON config file")
	f.BoolVar(&webdav, "webdav", false, "also expose the root over WebDAV at "+httpserver.DAVPrefix+"/")
	f.BoolVar(&qr, "qr", true, "print a QR code of the LAN URL on startup")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	srv, err := httpserver.New(httpserver.Options{Config: cfg})
	if err != nil {
		return fmt.Errorf("server init: %w", err)
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	hs := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	banner(cfg, ln.Addr().String())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- hs.Serve(ln) }()

	select {
	case <-ctx.Done():
		// Drop the listener and open connections right away so the port is
		// free for an immediate restart.
		log.Printf("shutting down invifiles")
		return hs.Close()
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func banner(cfg config.Config, listenAddr string) {
	local, err := lanaddr.URL("localhost", listenAddr)
	if err != nil {
		log.Printf("invifiles listening on %s (root=%s)", listenAddr, cfg.Root)
		return
	}
	log.Printf("invifiles is running at %s (root=%s)", local, cfg.Root)
	if cfg.WebDAV {
		log.Printf("webdav endpoint: %s", local+httpserver.DAVPrefix[1:]+"/")
	}

	ip, err := lanaddr.Discover()
	if err != nil {
		log.Printf("lan address unavailable: %v", err)
		return
	}
	lan, err := lanaddr.URL(ip.String(), listenAddr)
	if err != nil {
		return
	}
	log.Printf("on your network: %s", lan)
	if cfg.QR {
		lanaddr.PrintQR(os.Stdout, lan)
	}
	log.Printf("press Ctrl+C to stop the server and release the port")
}
