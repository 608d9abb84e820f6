package cmd

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/AzielCF/az-audit/config"
	"github.com/AzielCF/az-audit/core/database"
	"github.com/AzielCF/az-audit/detectors"
	domainCache "github.com/AzielCF/az-audit/domains/cache"
	domainDetection "github.com/AzielCF/az-audit/domains/detection"
	domainDirectory "github.com/AzielCF/az-audit/domains/directory"
	"github.com/AzielCF/az-audit/infrastructure/directory"
	"github.com/AzielCF/az-audit/infrastructure/valkey"
	"github.com/AzielCF/az-audit/pkg/httpretry"
	"github.com/AzielCF/az-audit/pkg/utils"
	"github.com/AzielCF/az-audit/repository"
	"github.com/AzielCF/az-audit/usecase"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Usecases
	cacheUsecase     domainCache.ICacheUsecase
	directoryUsecase domainDirectory.IDirectoryUsecase
	detectionUsecase domainDetection.IDetectionUsecase

	detectorRegistry *usecase.Registry
	valkeyClient     *valkey.Client
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "az-audit",
	Short: "Tenant directory audit service",
	Long: `az-audit polls a remote tenant directory API, caches what it sees, and
runs a set of pluggable detectors that flag configuration problems like
dormant admin accounts or wasted licenses.`,
}

func init() {
	// Load environment variables first
	utils.LoadConfig(".")

	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	initFlags()

	cobra.OnInitialize(initEnvConfig, initApp)
}

// initEnvConfig loads configuration from environment variables
func initEnvConfig() {
	if envPort := viper.GetString("app_port"); envPort != "" {
		config.AppPort = envPort
	}
	if envDebug := viper.GetBool("app_debug"); envDebug {
		config.AppDebug = envDebug
	}
	if envBasicAuth := viper.GetString("app_basic_auth"); envBasicAuth != "" {
		config.AppBasicAuthCredential = strings.Split(envBasicAuth, ",")
	}
	if envBasePath := viper.GetString("app_base_path"); envBasePath != "" {
		config.AppBasePath = envBasePath
	}
	if envTrustedProxies := viper.GetString("app_trusted_proxies"); envTrustedProxies != "" {
		config.AppTrustedProxies = strings.Split(envTrustedProxies, ",")
	}
	if envCors := viper.GetString("app_cors_allowed_origins"); envCors != "" {
		config.AppCorsAllowedOrigins = strings.Split(envCors, ",")
	}

	// Database settings
	if envDriver := viper.GetString("db_driver"); envDriver != "" {
		config.DBDriver = envDriver
	}
	if envName := viper.GetString("db_name"); envName != "" {
		config.DBName = envName
	}
	if envHost := viper.GetString("db_host"); envHost != "" {
		config.DBHost = envHost
	}
	if envPort := viper.GetInt("db_port"); envPort != 0 {
		config.DBPort = envPort
	}
	if envUser := viper.GetString("db_user"); envUser != "" {
		config.DBUser = envUser
	}
	if envPassword := viper.GetString("db_password"); envPassword != "" {
		config.DBPassword = envPassword
	}

	// Valkey settings
	if viper.IsSet("valkey_enabled") {
		config.ValkeyEnabled = viper.GetBool("valkey_enabled")
	}
	if envAddr := viper.GetString("valkey_address"); envAddr != "" {
		config.ValkeyAddress = envAddr
	}
	if envPassword := viper.GetString("valkey_password"); envPassword != "" {
		config.ValkeyPassword = envPassword
	}
	if viper.IsSet("valkey_db") {
		config.ValkeyDB = viper.GetInt("valkey_db")
	}

	// Directory API settings
	if envURL := viper.GetString("directory_base_url"); envURL != "" {
		config.DirectoryBaseURL = strings.TrimRight(envURL, "/")
	}
	if envToken := viper.GetString("directory_token"); envToken != "" {
		config.DirectoryToken = envToken
	}
}

func initFlags() {
	rootCmd.PersistentFlags().StringVarP(
		&config.AppPort,
		"port", "p",
		config.AppPort,
		"change port number with --port <number> | example: --port=8080",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&config.AppDebug,
		"debug", "d",
		config.AppDebug,
		"hide or displaying log with --debug <true/false> | example: --debug=true",
	)
	rootCmd.PersistentFlags().StringSliceVarP(
		&config.AppBasicAuthCredential,
		"basic-auth", "b",
		config.AppBasicAuthCredential,
		"basic auth credential | -b=yourUsername:yourPassword",
	)
	rootCmd.PersistentFlags().StringVarP(
		&config.AppBasePath,
		"base-path", "",
		config.AppBasePath,
		`base path for subpath deployment --base-path <string> | example: --base-path="/audit"`,
	)

	rootCmd.PersistentFlags().StringVarP(
		&config.DBDriver,
		"db-driver", "",
		config.DBDriver,
		`database driver for cache and detection tables --db-driver <sqlite|postgres>`,
	)
	rootCmd.PersistentFlags().StringVarP(
		&config.DBName,
		"db-name", "",
		config.DBName,
		`database file path (sqlite) or database name (postgres) --db-name <string>`,
	)

	rootCmd.PersistentFlags().StringVarP(
		&config.DirectoryBaseURL,
		"directory-base-url", "",
		config.DirectoryBaseURL,
		`base URL of the tenant directory API --directory-base-url <url>`,
	)
	rootCmd.PersistentFlags().StringVarP(
		&config.DirectoryToken,
		"directory-token", "",
		config.DirectoryToken,
		`bearer token for the directory API --directory-token <string>`,
	)
}

func initApp() {
	if config.AppDebug {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}

	if err := os.MkdirAll(config.PathStorages, 0o755); err != nil {
		logrus.Fatalf("failed to create storage directory: %v", err)
	}

	db, err := database.NewDatabase()
	if err != nil {
		logrus.Fatalf("failed to open database: %v", err)
	}

	ctx := context.Background()

	// Cache store: valkey when enabled, gorm otherwise.
	var cacheStore repository.ICacheStore
	if config.ValkeyEnabled {
		valkeyClient, err = valkey.NewClient(valkey.Config{
			Address:   config.ValkeyAddress,
			Password:  config.ValkeyPassword,
			DB:        config.ValkeyDB,
			KeyPrefix: config.ValkeyKeyPrefix,
		})
		if err != nil {
			logrus.Fatalf("failed to connect to valkey: %v", err)
		}
		cacheStore = repository.NewCacheValkeyStore(valkeyClient)
		logrus.Info("[APP] Using valkey cache store")
	} else {
		gormCache := repository.NewCacheGormStore(db)
		if err := gormCache.InitSchema(ctx); err != nil {
			logrus.Fatalf("failed to migrate cache schema: %v", err)
		}
		cacheStore = gormCache
	}

	detectionStore := repository.NewDetectionGormStore(db)
	if err := detectionStore.InitSchema(ctx); err != nil {
		logrus.Fatalf("failed to migrate detection schema: %v", err)
	}

	cacheUsecase = usecase.NewCacheService(cacheStore, usecase.CacheOptions{
		TypeTTLs: usecase.TypeTTLs(),
	})

	retryClient := httpretry.NewClient(config.DirectoryTimeout,
		httpretry.WithMaxRetries(config.RetryMaxRetries),
		httpretry.WithBaseDelay(config.RetryBaseDelay),
	)
	directoryClient := directory.NewClient(config.DirectoryBaseURL, config.DirectoryToken, retryClient)
	directoryUsecase = usecase.NewDirectoryService(directoryClient, cacheUsecase)

	detectorRegistry = usecase.NewRegistry()
	registerDetectors(detectorRegistry)

	detectionUsecase = usecase.NewDetectionService(detectorRegistry, detectionStore, config.DetectionCacheTTL)
}

func registerDetectors(registry *usecase.Registry) {
	all := []domainDetection.Detector{
		detectors.NewAdminNoMFADetector(directoryUsecase),
		detectors.NewInactiveAccountsDetector(directoryUsecase),
		detectors.NewDisabledLicensedDetector(directoryUsecase),
		detectors.NewLicenseCapacityDetector(directoryUsecase),
	}
	for _, d := range all {
		if err := registry.Add(d); err != nil {
			logrus.Fatalf("failed to register detector: %v", err)
		}
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Fatalln(err)
	}
}
