package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/AzielCF/az-audit/config"
	"github.com/AzielCF/az-audit/ui/rest"
	"github.com/AzielCF/az-audit/ui/rest/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "Serve the audit API over http",
	Run:   restServer,
}

func init() {
	rootCmd.AddCommand(restCmd)
}

func restServer(_ *cobra.Command, _ []string) {
	fiberConfig := fiber.Config{
		Network:               "tcp",
		AppName:               "Az-Audit",
		DisableStartupMessage: false,
		ServerHeader:          "Hidden",
	}
	if len(config.AppTrustedProxies) > 0 {
		fiberConfig.EnableTrustedProxyCheck = true
		fiberConfig.TrustedProxies = config.AppTrustedProxies
		fiberConfig.ProxyHeader = fiber.HeaderXForwardedHost
	}

	app := fiber.New(fiberConfig)

	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(config.AppCorsAllowedOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.Recovery())
	if config.AppDebug {
		app.Use(logger.New())
	}

	if len(config.AppBasicAuthCredential) > 0 {
		account := make(map[string]string)
		for _, credential := range config.AppBasicAuthCredential {
			parts := strings.SplitN(credential, ":", 2)
			if len(parts) != 2 {
				logrus.Fatalf("invalid basic auth credential: %s", credential)
			}
			account[parts[0]] = parts[1]
		}
		app.Use(basicauth.New(basicauth.Config{Users: account}))
	}

	group := app.Group(config.AppBasePath)
	rest.InitRestApp(group)
	rest.InitRestCache(group, cacheUsecase)
	rest.InitRestDetection(group, detectionUsecase)
	rest.InitRestMonitoring(group)

	// Background workers: cache refresh/sweep and periodic scans.
	ctx, cancel := context.WithCancel(context.Background())
	cacheUsecase.Start(ctx)
	detectionUsecase.StartPeriodicScans(ctx)

	go func() {
		if err := app.Listen(":" + config.AppPort); err != nil {
			logrus.Fatalf("rest server stopped: %v", err)
		}
	}()
	logrus.Infof("[APP] Serving audit API on port %s", config.AppPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("[APP] Shutting down...")
	cancel()
	cacheUsecase.Stop()
	if valkeyClient != nil {
		valkeyClient.Close()
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logrus.WithError(err).Warn("[APP] Forced shutdown")
	}
}
