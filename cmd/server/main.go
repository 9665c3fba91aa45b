package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradebot/internal/api"
	"tradebot/internal/bot"
	"tradebot/internal/config"
	"tradebot/internal/exchange"
	"tradebot/internal/feed"
	"tradebot/internal/models"
	"tradebot/internal/repository"
	"tradebot/internal/websocket"
	"tradebot/pkg/crypto"

	_ "github.com/lib/pq"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация базы данных
	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	log.Println("Connected to database successfully")

	ctx := context.Background()

	store := repository.NewStore(db)
	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Инициализация репозиториев
	candleRepo := repository.NewCandleRepository(store)
	positionRepo := repository.NewPositionRepository(store)
	orderRepo := repository.NewOrderRepository(store)
	tradeRepo := repository.NewTradeRepository(store)

	// Шлюз биржи
	creds, err := gatewayCredentials(cfg)
	if err != nil {
		log.Fatalf("Failed to decrypt exchange credentials: %v", err)
	}
	gw, err := exchange.NewGateway(cfg.Feed.Exchange, creds)
	if err != nil {
		log.Fatalf("Failed to create exchange gateway: %v", err)
	}

	// WebSocket hub
	hub := websocket.NewHub()
	go hub.Run()

	// runCtx - родительский контекст фоновых циклов,
	// отменяется при shutdown
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	// Уведомления операторам: лог + broadcast подключенным клиентам
	alerts := make(chan feed.Alert, 16)
	go func() {
		for a := range alerts {
			log.Printf("ALERT [%s]: %s: %v", a.Key, a.Message, a.Err)
			hub.BroadcastAlert(a)
		}
	}()

	// Лента рыночных данных
	acq := feed.NewAcquisition(gw, cfg.Feed.PaginationCeiling)
	manager := feed.NewManager(func(key models.SeriesKey) (*feed.TickerDaemon, error) {
		d, err := feed.NewTickerDaemon(key, acq, candleRepo, alerts, feed.DaemonConfig{
			BackfillDepth:         cfg.Feed.BackfillDepth,
			FailureAlertThreshold: cfg.Feed.FailureThreshold,
		})
		if err != nil {
			return nil, err
		}
		d.SetOnTick(hub.BroadcastTick)
		return d, nil
	})

	for _, key := range cfg.Series() {
		if err := manager.Start(runCtx, key); err != nil {
			log.Printf("Failed to start daemon %s: %v", key, err)
		}
	}

	// Периодический снимок состояний демонов для UI
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				hub.BroadcastDaemons(manager.List())
			}
		}
	}()

	// Риск-менеджмент и цикл принятия решений
	pc, err := bot.NewPositionControl(bot.RiskParams{
		Target:   cfg.Risk.Target,
		StopLoss: cfg.Risk.StopLoss,
	})
	if err != nil {
		log.Fatalf("Failed to create position control: %v", err)
	}

	oc, err := bot.NewOrderControl(bot.SizingFractions{
		Entry: cfg.Risk.EntryFraction,
		Add:   cfg.Risk.AddFraction,
		Exit:  cfg.Risk.ExitFraction,
	})
	if err != nil {
		log.Fatalf("Failed to create order control: %v", err)
	}

	tracker := bot.NewTracker(gw, &broadcastingTradeStore{repo: tradeRepo, hub: hub}, cfg.Risk.OrderTimeout)

	engine, err := bot.NewEngine(
		gw,
		candleRepo,
		positionRepo,
		orderRepo,
		pc,
		oc,
		tracker,
		bot.SMACrossSignal(10, 30),
		repository.ErrPositionNotFound,
		bot.EngineConfig{
			Symbols:   cfg.Feed.Symbols,
			Interval:  cfg.Feed.Interval,
			Lookback:  cfg.Risk.Lookback,
			Cadence:   cfg.Risk.Cadence,
			OrderType: cfg.Risk.OrderType,
		},
	)
	if err != nil {
		log.Fatalf("Failed to create bot engine: %v", err)
	}

	go func() {
		if err := engine.Run(runCtx); err != nil && runCtx.Err() == nil {
			log.Printf("Bot engine stopped: %v", err)
		}
	}()

	// Настройка зависимостей для API
	deps := &api.Dependencies{
		RunCtx:           runCtx,
		Manager:          manager,
		Candles:          candleRepo,
		Positions:        positionRepo,
		Orders:           orderRepo,
		Trades:           tradeRepo,
		Hub:              hub,
		AuthUser:         cfg.Security.APIUser,
		AuthPasswordHash: cfg.Security.APIPasswordHash,
	}

	router := api.SetupRoutes(deps)

	// HTTP сервер
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск сервера в отдельной горутине
	go func() {
		log.Printf("Starting server on %s", server.Addr)
		if cfg.Server.UseHTTPS {
			if err := server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Server failed: %v", err)
			}
		} else {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Server failed: %v", err)
			}
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	cancelRun()
	manager.StopAll()
	hub.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// broadcastingTradeStore пишет сделки в БД и рассылает их
// подключенным WebSocket клиентам
type broadcastingTradeStore struct {
	repo *repository.TradeRepository
	hub  *websocket.Hub
}

func (s *broadcastingTradeStore) InsertBatch(trades []models.TradeRecord) error {
	if err := s.repo.InsertBatch(trades); err != nil {
		return err
	}
	if len(trades) > 0 {
		s.hub.BroadcastTrades(trades[0].OrderID, trades)
	}
	return nil
}

// gatewayCredentials возвращает реквизиты биржи из конфигурации
//
// При заданном ENCRYPTION_KEY значения в окружении считаются
// зашифрованными AES-256-GCM и расшифровываются при старте.
func gatewayCredentials(cfg *config.Config) (exchange.Credentials, error) {
	creds := exchange.Credentials{
		APIKey:     cfg.Feed.APIKey,
		Secret:     cfg.Feed.APISecret,
		Passphrase: cfg.Feed.Passphrase,
	}
	if cfg.Security.EncryptionKey == "" {
		return creds, nil
	}

	key := []byte(cfg.Security.EncryptionKey)
	for _, field := range []*string{&creds.APIKey, &creds.Secret, &creds.Passphrase} {
		if *field == "" {
			continue
		}
		plain, err := crypto.Decrypt(*field, key)
		if err != nil {
			return exchange.Credentials{}, err
		}
		*field = plain
	}
	return creds, nil
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Проверка подключения
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
