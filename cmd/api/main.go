package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/helixbytes/contact-api/internal/config"
	"github.com/helixbytes/contact-api/internal/handler"
	"github.com/helixbytes/contact-api/internal/middleware"
	pgRepo "github.com/helixbytes/contact-api/internal/repository/postgres"
	"github.com/helixbytes/contact-api/internal/service"
	"github.com/helixbytes/contact-api/pkg/database"
)

func main() {
	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	// Применяем миграции
	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к Redis (коарс-лимит на уровне HTTP)
	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Инициализируем репозитории
	submissionRepo := pgRepo.NewSubmissionRepo(db)
	rateLimitRepo := pgRepo.NewRateLimitRepo(db)

	// Инициализируем email-сервис
	var emailService service.EmailService
	switch cfg.Email.Provider {
	case "noop":
		log.Println("Email provider: noop (письма не отправляются)")
		emailService = &service.NoopEmailService{}
	default:
		emailService, err = service.NewResendEmailService(cfg.Email.ResendAPIKey, cfg.Email.From, cfg.Email.TeamRecipient)
		if err != nil {
			log.Printf("Failed to initialize ResendEmailService: %v", err)
			os.Exit(1)
		}
	}

	// Инициализируем проверку attestation-токенов
	var appCheckVerifier service.AppCheckVerifier
	if cfg.AppCheck.Enabled {
		appCheckVerifier, err = service.NewAppCheckService(cfg.AppCheck)
		if err != nil {
			log.Printf("Failed to initialize AppCheckService: %v", err)
			os.Exit(1)
		}
	} else {
		log.Println("App Check отключен, attestation-токены не проверяются")
		appCheckVerifier = &service.NoopAppCheckVerifier{}
	}

	// Инициализируем сервисы пайплайна
	contactService, err := service.NewContactService(
		submissionRepo,
		rateLimitRepo,
		emailService,
		cfg.Contact.RateLimitMax,
		time.Duration(cfg.Contact.RateLimitWindowMinutes)*time.Minute,
		time.Duration(cfg.Contact.VerificationTTLHours)*time.Hour,
		cfg.Contact.PublicBaseURL,
	)
	if err != nil {
		log.Printf("Failed to initialize ContactService: %v", err)
		os.Exit(1)
	}

	verificationService, err := service.NewVerificationService(submissionRepo)
	if err != nil {
		log.Printf("Failed to initialize VerificationService: %v", err)
		os.Exit(1)
	}

	cleanupService, err := service.NewCleanupService(
		submissionRepo,
		rateLimitRepo,
		time.Duration(cfg.Contact.SubmissionRetentionDays)*24*time.Hour,
		time.Duration(cfg.Contact.CounterRetentionHours)*time.Hour,
	)
	if err != nil {
		log.Printf("Failed to initialize CleanupService: %v", err)
		os.Exit(1)
	}

	// Инициализируем обработчики
	contactHandler := handler.NewContactHandler(contactService, appCheckVerifier, cfg.AppCheck.Mode)
	verificationHandler := handler.NewVerificationHandler(verificationService, cfg.Contact.StatusPageURL)

	// Создаем контекст с отменой для корректного завершения работы горутин
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Фоновые sweeper'ы: раз в сутки каждый, со смещением стартов, чтобы
	// не выполнялись одновременно
	startSweeper(ctx, "unverified-submissions", 1*time.Hour, cleanupService.SweepUnverifiedSubmissions)
	startSweeper(ctx, "rate-limit-counters", 7*time.Hour, cleanupService.SweepRateLimitCounters)

	// Настраиваем роутер
	router := gin.Default()
	router.HandleMethodNotAllowed = true // иначе не-POST на submit вернет 404 вместо 405

	router.Use(middleware.SecurityHeaders())

	// Настройка CORS: точный allow-list, без wildcard в проде
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Contact.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-App-Check"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	rateLimiter := middleware.NewRateLimiter(redisClient)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.Use(rateLimiter.LimitByIP(middleware.DefaultContactRateLimitConfig()))
	{
		api.POST("/contact", contactHandler.Submit)
		api.GET("/contact/verify", verificationHandler.Verify)
	}

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Запускаем сервер в горутине
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Server started on port %s", cfg.Server.Port)

	// После получения сигнала SIGINT или SIGTERM вызываем cancel() для завершения горутин
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	cancel()

	// Создаем контекст с таймаутом для graceful shutdown сервера
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited properly")
}

// startSweeper запускает ежедневный sweep в фоне. Первый запуск происходит
// через initialDelay — так два sweeper'а разнесены по времени суток.
func startSweeper(ctx context.Context, name string, initialDelay time.Duration, sweep func(context.Context) (int64, error)) {
	go func() {
		log.Printf("[Cleanup] Sweeper '%s' запланирован, первый запуск через %s", name, initialDelay)

		select {
		case <-time.After(initialDelay):
		case <-ctx.Done():
			return
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for {
			runCtx, runCancel := context.WithTimeout(ctx, 10*time.Minute)
			if _, err := sweep(runCtx); err != nil {
				log.Printf("[Cleanup] Sweeper '%s' завершился с ошибкой: %v", name, err)
			}
			runCancel()

			select {
			case <-ticker.C:
			case <-ctx.Done():
				log.Printf("[Cleanup] Sweeper '%s' остановлен", name)
				return
			}
		}
	}()
}
