//go:build ignore
// +build ignore

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sofiworker/mpcap/api"
	"github.com/sofiworker/mpcap/capture"
	"github.com/sofiworker/mpcap/config"
	"github.com/sofiworker/mpcap/logging"
)

// A small capture daemon: config file + control API + per interface traces.
//
// Run with a mpcap.yaml in the working directory, for example:
//
//	trace_dir: /var/lib/mpcap
//	listen: ":8652"
//	logging:
//	  level: info
//	captures:
//	  - interface: eth0
//	    max_file_size: 10MB
//	    max_packets: 10000
//	    manifest: true
func main() {
	settings, err := config.LoadSettings()
	if err != nil {
		log.Fatalf("load settings: %v", err)
	}

	logger, err := logging.New(&settings.Logging)
	if err != nil {
		log.Fatalf("init logging: %v", err)
	}
	logging.SetDefault(logger)

	opts := []capture.Option{capture.WithLogger(logger)}
	if settings.TraceDir != "" {
		opts = append(opts, capture.WithTraceDir(settings.TraceDir))
	}
	mgr := capture.NewManager(opts...)
	defer mgr.Close()

	for _, spec := range settings.Captures {
		_, err := mgr.Enable(spec.Interface, capture.Config{
			Path:        spec.Path,
			MaxPackets:  spec.MaxPackets,
			MaxFileSize: spec.MaxFileSize,
			SnapLen:     spec.SnapLen,
			PacketType:  spec.PacketType,
			ThreadSafe:  spec.ThreadSafe,
			Manifest:    spec.Manifest,
		})
		if err != nil {
			logger.Errorw("enable capture failed", "interface", spec.Interface, "error", err)
		}
	}

	var server *api.Server
	if settings.Listen != "" {
		server = api.NewServer(mgr, api.WithLogger(logger))
		go func() {
			if err := server.ListenAndServe(settings.Listen); err != nil {
				logger.Errorw("api server stopped", "error", err)
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Infow("shutting down")
	if server != nil {
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Errorw("api shutdown failed", "error", err)
		}
	}
	if err := mgr.Close(); err != nil {
		logger.Errorw("close captures failed", "error", err)
	}
	_ = logger.Sync()
}
