// Command shapematchd serves the shape-matching Detector over HTTP:
// add_source, add_template, match, match_class, and draw as REST
// endpoints, for remote or multi-client use.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"shapematch/internal/detector"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8090", "listen address")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync()
	sugar := logger.Sugar()

	det := detector.New(sugar)
	srv := NewServer(*addr, det, sugar)
	srv.Start()
	sugar.Infow("shapematchd listening", "addr", *addr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-srv.Notify():
		if err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	case <-sig:
		sugar.Info("shutting down")
		if err := srv.Shutdown(); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
			os.Exit(1)
		}
	}
}
