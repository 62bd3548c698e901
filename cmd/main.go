package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/medcenter-kg/booking-core/internal/config"
	"github.com/medcenter-kg/booking-core/internal/db"
	"github.com/medcenter-kg/booking-core/internal/handler"
	"github.com/medcenter-kg/booking-core/internal/middleware"
	"github.com/medcenter-kg/booking-core/internal/model"
	"github.com/medcenter-kg/booking-core/internal/notify"
	"github.com/medcenter-kg/booking-core/internal/repository"
	"github.com/medcenter-kg/booking-core/internal/service"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// .env нужен только для локальной разработки.
	_ = godotenv.Load()

	// 1. Конфигурация из env.
	appCfg, err := config.LoadAppConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("load app config")
	}
	dbCfg, err := config.LoadDBConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("load db config")
	}

	// 2. Подключение к БД через GORM.
	gormDB, err := db.NewGormDB(dbCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init db")
	}

	// 3. Миграции моделей.
	if err := model.AutoMigrate(gormDB); err != nil {
		log.Fatal().Err(err).Msg("auto migrate")
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("sql DB")
	}
	defer sqlDB.Close()

	clinicNow := func() time.Time { return time.Now().In(appCfg.ClinicTimeZone) }

	// 4. Репозитории (реализации на GORM).
	slotRepo := repository.NewGormSlotRepository(gormDB)
	templateRepo := repository.NewGormTemplateRepository(gormDB)
	appointmentRepo := repository.NewGormAppointmentRepository(gormDB)
	patientRepo := repository.NewGormPatientRepository(gormDB)
	doctorRepo := repository.NewGormDoctorRepository(gormDB)

	// 5. Сервисы ядра.
	notifier := notify.NewLogNotifier(log)
	genSvc := service.NewGenerationService(templateRepo, slotRepo, log, clinicNow)
	templateSvc := service.NewTemplateService(templateRepo, doctorRepo, genSvc, log)
	bookingSvc := service.NewBookingService(gormDB, appointmentRepo, patientRepo, notifier, log, clinicNow)

	// 6. HTTP-маршруты.
	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{appCfg.CORSOrigin}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Accept-Language", "Authorization"}
	router.Use(cors.New(corsConfig))

	lazyRegen := middleware.NewLazyRegen(genSvc, log, appCfg.LazyRegenInterval)
	handler.SetupRoutes(router, handler.Handlers{
		Doctors:   handler.NewDoctorHandler(doctorRepo, slotRepo),
		Bookings:  handler.NewBookingHandler(bookingSvc),
		Templates: handler.NewTemplateHandler(templateSvc),
		Admin:     handler.NewAdminHandler(genSvc, slotRepo, bookingSvc),
	}, appCfg.JWTSecret, lazyRegen.Handler())

	// 7. Фоновый обход: продление горизонта + истечение прошедших слотов.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go runSweeper(sweepCtx, genSvc, appCfg.SweepInterval, log)

	srv := &http.Server{
		Addr:    appCfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", appCfg.HTTPAddr).Msg("booking core listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http serve")
		}
	}()

	// 8. Грейсфул-шатдаун по сигналу.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down...")
	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
}

// runSweeper гоняет регенерацию и истечение слотов по тикеру. Оба
// прохода идемпотентны, гонка с ленивыми вызовами из HTTP безопасна.
func runSweeper(ctx context.Context, gen *service.GenerationService, interval time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := gen.RegenerateDue(ctx); err != nil {
				log.Error().Err(err).Msg("periodic regeneration")
			}
			if _, err := gen.ExpirePast(ctx); err != nil {
				log.Error().Err(err).Msg("expire sweep")
			}
		}
	}
}
