package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"earn_usdc/internal/app/port"
	"earn_usdc/internal/app/service"
	"earn_usdc/internal/app/view"
	"earn_usdc/internal/config"
	"earn_usdc/internal/domain/entity"
	"earn_usdc/internal/infrastructure/configloader"
	"earn_usdc/internal/infrastructure/contract"
	"earn_usdc/internal/infrastructure/httpclient"
	networkclient "earn_usdc/internal/infrastructure/network/client"
	"earn_usdc/internal/infrastructure/restapi"
	"earn_usdc/internal/infrastructure/wallet"
	"earn_usdc/internal/infrastructure/walletloader"
	"earn_usdc/internal/pkg/logger"
	"earn_usdc/internal/pkg/metrics"
	"earn_usdc/internal/pkg/notify"
	"earn_usdc/internal/pkg/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

func main() {
	app := cli.NewApp()
	app.Name = "earn"
	app.Usage = "Local dashboard for the EarnUSDC yield contract on Base"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Value:   utils.GetEnv("CONFIG_PATH", "config/config.yml"),
			Usage:   "path to the YAML configuration",
		},
		&cli.BoolFlag{
			Name:  "connect",
			Usage: "connect the wallet on startup",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "earn: %v\n", err)
		os.Exit(1)
	}
}

func run(cliCtx *cli.Context) error {
	cfgPath := cliCtx.String("config")
	cfg, err := configloader.Load(cfgPath)
	if err != nil {
		return err
	}

	zapLogger, err := logger.InitZap(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer zapLogger.Sync() //nolint:errcheck // stderr sync errors are expected

	logger.Info("Configuration loaded", "path", cfgPath)
	appLogger := logger.NewSlogAdapter()
	metrics.MustRegisterMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clients := networkclient.NewProvider(cfg.ConnectTimeout(), appLogger)
	defer clients.Close()

	provider, err := openWallet(ctx, cfg, clients, appLogger)
	if err != nil {
		return err
	}

	network := config.BaseNetwork
	network.RPCURLs = cfg.RPCURLs()

	abiClient := httpclient.NewABIClient(time.Duration(cfg.RpcClient.ABIRequestTimeoutMs)*time.Millisecond, zapLogger.Named("ABIClient"))
	abiLoader := contract.NewABILoader(
		abiClient,
		cfg.Contract.ABIURL,
		cfg.Contract.ABIFile,
		time.Duration(cfg.Contract.ABICacheMinutes)*time.Minute,
		appLogger,
	)
	gateway := contract.NewGateway(contract.GatewayConfig{
		EarnAddress:     common.HexToAddress(cfg.Contract.EarnAddress),
		TokenAddress:    common.HexToAddress(cfg.Contract.TokenAddress),
		CallTimeout:     cfg.CallTimeout(),
		RateLimit:       cfg.RpcClient.RateLimit,
		BurstLimit:      cfg.RpcClient.BurstLimit,
		LogPollInterval: time.Duration(cfg.Polling.LogPollIntervalSeconds) * time.Second,
	}, abiLoader, appLogger)

	bus := notify.NewBus(64)
	state := service.NewStateService(gateway, bus, cfg.BalanceInterval(), cfg.RateInterval(), appLogger)
	txs := service.NewTransactionService(bus, gateway, cfg.ReceiptTimeout(), appLogger)
	relay := service.NewEventRelay(bus, appLogger)
	application := service.NewApp(provider, gateway, state, txs, relay, bus, network, appLogger)
	defer application.Close()

	if err := application.Initialize(ctx); err != nil {
		var envErr *entity.EnvironmentError
		if !errors.As(err, &envErr) {
			return fmt.Errorf("%s: %w", config.ErrInitialization, err)
		}
		logger.Warn("No wallet available, the dashboard is read-only", "reason", envErr.Reason)
	}

	page, err := view.NewPage()
	if err != nil {
		return err
	}
	toaster := view.NewToaster(bus, config.ToastDuration)
	defer toaster.Close()
	controller := view.NewController(application, gateway, state, txs, toaster, appLogger)

	if provider != nil && (cfg.Wallet.AutoConnect || cliCtx.Bool("connect")) {
		if err := controller.Connect(ctx); err != nil {
			logger.Error("Automatic wallet connection failed", "error", err)
		}
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := restapi.NewDashboardHandler(controller, page, bus, appLogger)
	router := restapi.SetupRouter(handler, zapLogger.Named("http"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		zapLogger.Info("Dashboard listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server forced to shut down", "error", err)
	}
	logger.Info("Dashboard stopped")
	return nil
}

// openWallet loads the signing key and opens the local wallet. It returns a nil provider when
// no key file is configured.
func openWallet(ctx context.Context, cfg *configloader.Config, clients *networkclient.Provider, appLogger port.Logger) (port.WalletProvider, error) {
	if cfg.Wallet.KeyFile == "" {
		return nil, nil
	}
	key, err := walletloader.NewKeyFileLoader(cfg.Wallet.KeyFile, appLogger.Info).LoadKey()
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet key: %w", err)
	}
	local, err := wallet.Open(ctx, key, cfg.Wallet.RPCURL, clients, appLogger)
	if err != nil {
		return nil, err
	}
	return local, nil
}
