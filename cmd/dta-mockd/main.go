// Command dta-mockd serves the mock Digital Therapy Assistant backend for
// local development: the login endpoint plus canned CBT and burnout
// session sockets.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/maremivazquez1/dta-client/internal/mockserver"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	secret := []byte(os.Getenv("DTA_MOCK_SECRET"))
	if len(secret) == 0 {
		secret = []byte("dta-mock-secret")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := mockserver.New(secret, logger)

	go func() {
		if err := server.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()
	logger.Info("Mock backend started", zap.String("port", port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exited")
}
