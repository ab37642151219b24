package cmd

import (
	"context"
	"log"
	"log/slog"
	"net/mail"
	"os"
	"os/signal"
	"syscall"
	"time"

	"expo-tickets/config"
	"expo-tickets/handlers"
	"expo-tickets/internal/gateway"
	"expo-tickets/internal/manifest"
	"expo-tickets/internal/status"
	"expo-tickets/internal/store"
	"expo-tickets/models"
	"expo-tickets/monitoring"
	"expo-tickets/security"
	"expo-tickets/services"
	"expo-tickets/utils"

	_ "expo-tickets/migrations"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	pubnub "github.com/pubnub/go"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL)
	defer redisClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PubNub (purchase lifecycle events)
	var publisher services.EventPublisher = services.NopPublisher{}
	if cfg.PubNubPublishKey != "" && cfg.PubNubSubscribeKey != "" {
		pnConfig := pubnub.NewConfig()
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey
		pnConfig.UUID = cfg.PubNubUUID

		publisher = services.NewPubNubPublisher(pubnub.NewPubNub(pnConfig))
	}

	// Initialize the payment gateway
	var gw gateway.Gateway
	if cfg.Pesapal.ConsumerKey != "" {
		g, err := gateway.NewFactory().CreateGateway(ctx, gateway.ProviderPesapal, &cfg.Pesapal)
		if err != nil {
			return err
		}
		gw = g
		defer gw.Close(context.Background())
	} else {
		slog.Warn("pesapal credentials missing, only free purchases will complete")
	}

	// Initialize stores and services
	recordStore := store.NewRecordStore(app)
	manifests := manifest.NewStore(redisClient, cfg.ManifestTTL)

	intakeService := services.NewIntakeService(recordStore, manifests, cfg.Currency)
	orchestrator := services.NewOrchestratorService(recordStore, gw, publisher, cfg.PaymentCallback, cfg.EventName)

	// Feed verified gateway notifications through the same reconcile path
	// as return redirects.
	if gw != nil {
		ipnCh := make(chan *status.PaymentStatus, 1)
		gw.SetNotificationChannel(ipnCh)

		go func() {
			for {
				select {
				case record := <-ipnCh:
					slog.Info("gateway notification received",
						"reference", record.MerchantReference,
						"status", record.PaymentStatus)
					orchestrator.ReconcileNotification(ctx, record)
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// Initialize handlers
	purchaseHandler := handlers.NewPurchaseHandler(app, recordStore, intakeService)
	paymentHandler := handlers.NewPaymentHandler(app, orchestrator)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Monitoring
	if cfg.EnableMetrics {
		monitoring.NewMonitor(redisClient)

		limiter := security.NewRateLimiter(redisClient, cfg.OpsRateLimit, cfg.OpsRateWindow)
		monitoring.StartOpsServer(cfg.MetricsPort, cfg.OpsTokenHash, limiter, map[string]monitoring.HealthCheck{
			"redis": monitoring.RedisCheck(redisClient),
		})
	}

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// The mail client needs bootstrapped settings, so the materializer
		// is wired here rather than at construction time.
		sender := mail.Address{
			Name:    app.Settings().Meta.SenderName,
			Address: app.Settings().Meta.SenderAddress,
		}
		materializer := services.NewMaterializerService(
			recordStore, manifests, publisher, app.NewMailClient(), sender, cfg.EventName,
		)
		ticketHandler := handlers.NewTicketHandler(app, recordStore, materializer)

		go runManifestJanitor(ctx, cfg.JanitorInterval, manifests, recordStore)

		// Category endpoints
		e.Router.GET("/api/categories", ticketHandler.ListCategories)

		// Purchase endpoints
		e.Router.POST("/api/purchases", purchaseHandler.CreatePurchase)
		e.Router.GET("/api/purchases/{reference}", purchaseHandler.GetPurchase)

		// Payment endpoints
		e.Router.POST("/api/purchases/{reference}/pay", paymentHandler.InitiatePayment)
		e.Router.GET("/api/payments/callback", paymentHandler.PaymentCallback)

		// Ticket endpoints
		e.Router.POST("/api/purchases/{reference}/tickets", ticketHandler.MaterializeTickets)
		e.Router.GET("/api/purchases/{reference}/tickets.pdf", ticketHandler.GetPurchaseTicketsPDF)
		e.Router.GET("/api/tickets/{id}/artifact.png", ticketHandler.GetTicketArtifact)

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

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

// runManifestJanitor reclaims attendee manifests whose purchase reached a
// terminal state. Manifests with no purchase row at all are left for the
// Redis TTL.
func runManifestJanitor(ctx context.Context, interval time.Duration, manifests *manifest.Store, recordStore *store.RecordStore) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepManifests(ctx, manifests, recordStore)
		}
	}
}

func sweepManifests(ctx context.Context, manifests *manifest.Store, recordStore *store.RecordStore) {
	refs, err := manifests.References(ctx)
	if err != nil {
		slog.Error("manifest sweep failed", "err", err)
		return
	}

	for _, ref := range refs {
		purchase, err := recordStore.PurchaseByReference(ctx, ref)
		if err != nil {
			continue
		}

		switch purchase.PaymentStatus {
		case models.PaymentStatusFailed:
			if err := manifests.Delete(ctx, ref); err != nil {
				slog.Warn("manifest cleanup failed", "reference", ref, "err", err)
			}
		case models.PaymentStatusPaid:
			// Keep the manifest until the tickets actually exist, otherwise
			// a paid-but-unmaterialized purchase loses its attendee list.
			tickets, err := recordStore.TicketsByReference(ctx, ref)
			if err != nil || len(tickets) == 0 {
				continue
			}
			if err := manifests.Delete(ctx, ref); err != nil {
				slog.Warn("manifest cleanup failed", "reference", ref, "err", err)
			}
		}
	}
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
