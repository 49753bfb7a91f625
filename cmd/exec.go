package cmd

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"pulacatraca/config"
	"pulacatraca/handlers"
	"pulacatraca/internal/harness"
	"pulacatraca/internal/services/gateway"
	"pulacatraca/monitoring"
	"pulacatraca/security"
	"pulacatraca/services"
	"pulacatraca/utils"

	_ "pulacatraca/migrations"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"
	"github.com/redis/go-redis/v9"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL)
	defer redisClient.Close()

	// Initialize PubNub
	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey

	pn := pubnub.NewPubNub(pnConfig)
	publisher := services.NewPubNubPublisher(pn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Payment gateway: PagBank when a token is configured, the
	// in-memory sandbox otherwise.
	factory := gateway.NewFactory()

	var gw gateway.PaymentGateway
	var sandbox *gateway.Sandbox
	var webhooks handlers.WebhookVerifier

	if cfg.PagBankConfig.Token != "" {
		pagbankGW, err := factory.CreateGateway(ctx, gateway.ProviderPagBank, &cfg.PagBankConfig)
		if err != nil {
			return err
		}
		gw = pagbankGW
		if v, ok := pagbankGW.(handlers.WebhookVerifier); ok {
			webhooks = v
		}
	} else {
		slog.Info("no PagBank token configured, using sandbox gateway")
		sandbox = gateway.NewSandbox()
		gw = sandbox
	}
	defer gw.Close(ctx)

	// Initialize services
	notifier := services.NewNotifyService(publisher, cfg.NotifyDebounce)
	defer notifier.Stop()

	ticketStore := services.NewPBTicketStore(app)
	profileStore := services.NewPBProfileStore(app)
	checkinLog := services.NewPBCheckinLog(app)

	checkinService := services.NewCheckinService(ticketStore, profileStore, checkinLog, publisher, notifier, redisClient, cfg)
	paymentService := services.NewPaymentService(ctx, redisClient, publisher, gw)

	// Initialize handlers
	checkinHandler := handlers.NewCheckinHandler(app, checkinService, checkinLog, cfg.HistoryLimit)
	paymentHandler := handlers.NewPaymentHandler(app, paymentService, webhooks)
	adminHandler := handlers.NewAdminHandler(app, checkinService, redisClient)

	limiter := security.NewRateLimiter(redisClient, cfg.ValidateRateLimit, cfg.ValidateRateWindow)
	monitor := monitoring.NewMonitor(redisClient)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Metrics endpoint on its own port
	if cfg.EnableMetrics {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(":"+cfg.MetricsPort, mux); err != nil {
				slog.Error("metrics server", "error", err)
			}
		}()
	}

	// Gateway test harness, development only
	if cfg.Environment == "development" {
		harnessServer := harness.NewServer(paymentService, sandbox)
		go func() {
			if err := harnessServer.Start(":" + cfg.HarnessPort); err != nil && err != http.ErrServerClosed {
				slog.Error("harness server", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			harnessServer.Shutdown(context.Background())
		}()
	}

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		syncOrganizerEvents(app, redisClient)

		// Check-in endpoints
		e.Router.POST("/api/v1/checkin/validate", limiter.AntiBotGuard(limiter.ValidateRateLimit(checkinHandler.ValidateTicket)))
		e.Router.GET("/api/v1/checkin/history", checkinHandler.GetCheckinHistory)
		e.Router.GET("/api/v1/checkin/stats", checkinHandler.GetCheckinStats)

		// Payment endpoints
		e.Router.POST("/api/v1/payment/pix-qr", paymentHandler.GenPixQr)
		e.Router.GET("/api/v1/payment/{chargeId}/status", paymentHandler.CheckChargeStatus)
		e.Router.POST("/api/v1/payment/webhook", paymentHandler.ReceiveWebhook)

		// Admin endpoints
		e.Router.GET("/api/v1/admin/checkin-dashboard", adminHandler.GetCheckinDashboard)
		e.Router.POST("/api/v1/admin/reissue-code", adminHandler.ReissueCode)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		setupEventHooks(app, redisClient, monitor)

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

// syncOrganizerEvents rebuilds the organizer:events sets in Redis from
// the events collection at startup.
func syncOrganizerEvents(app *pocketbase.PocketBase, redisClient *redis.Client) {
	ctx := context.Background()

	records, err := app.FindAllRecords("events")
	if err != nil {
		log.Printf("Error fetching events: %v", err)
		return
	}

	byOrganizer := map[string][]any{}
	for _, record := range records {
		organizerID := record.GetString("organizer")
		if organizerID == "" {
			continue
		}
		byOrganizer[organizerID] = append(byOrganizer[organizerID], record.Id)
	}

	for organizerID, eventIDs := range byOrganizer {
		key := "organizer:events:" + organizerID
		redisClient.Del(ctx, key)
		redisClient.SAdd(ctx, key, eventIDs...)
	}

	log.Printf("Synced %d events across %d organizers to Redis", len(records), len(byOrganizer))
}

func setupEventHooks(app *pocketbase.PocketBase, redisClient *redis.Client, monitor *monitoring.Monitor) {
	// The hooks are middlewares: e.Next() runs the default save/delete
	// action, and the Redis sync happens only once that succeeded. The
	// sync itself is advisory and never fails the request.
	app.OnRecordCreateRequest("events").BindFunc(func(e *core.RecordRequestEvent) error {
		if err := e.Next(); err != nil {
			return err
		}

		organizerID := e.Record.GetString("organizer")
		if organizerID != "" {
			ctx := e.Request.Context()
			if err := redisClient.SAdd(ctx, "organizer:events:"+organizerID, e.Record.Id).Err(); err != nil {
				slog.Error("Failed to add event to organizer set",
					"eventID", e.Record.Id,
					"error", err,
				)
			}
		}
		return nil
	})

	app.OnRecordUpdateRequest("events").BindFunc(func(e *core.RecordRequestEvent) error {
		if err := e.Next(); err != nil {
			return err
		}

		if e.Record.GetString("status") == "ended" {
			monitor.ResetEventGauge(e.Request.Context(), e.Record.Id)
			slog.Info("Event ended, cleared live check-in counter", "eventID", e.Record.Id)
		}
		return nil
	})

	app.OnRecordDeleteRequest("events").BindFunc(func(e *core.RecordRequestEvent) error {
		if err := e.Next(); err != nil {
			return err
		}

		ctx := e.Request.Context()

		organizerID := e.Record.GetString("organizer")
		if organizerID != "" {
			if err := redisClient.SRem(ctx, "organizer:events:"+organizerID, e.Record.Id).Err(); err != nil {
				slog.Error("Failed to remove event from organizer set",
					"eventID", e.Record.Id,
					"error", err,
				)
			}
		}
		monitor.ResetEventGauge(ctx, e.Record.Id)
		return nil
	})
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
