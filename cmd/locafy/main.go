package main

import (
	bookinghandler "locafy/internal/bookings/handler"
	"locafy/internal/bookings/notifier"
	bookingrepo "locafy/internal/bookings/repository"
	bookingservice "locafy/internal/bookings/service"
	bookingvalidator "locafy/internal/bookings/validator"
	reviewhandler "locafy/internal/reviews/handler"
	reviewrepo "locafy/internal/reviews/repository"
	reviewservice "locafy/internal/reviews/service"
	reviewvalidator "locafy/internal/reviews/validator"
	servicehandler "locafy/internal/services/handler"
	servicerepo "locafy/internal/services/repository"
	serviceservice "locafy/internal/services/service"
	servicevalidator "locafy/internal/services/validator"
	userhandler "locafy/internal/users/handler"
	userrepo "locafy/internal/users/repository"
	userservice "locafy/internal/users/service"
	uservalidator "locafy/internal/users/validator"
	"locafy/pkg/app"
	"locafy/pkg/auth"
	"locafy/pkg/config"
	mongodb "locafy/pkg/db/mongo"
	"locafy/pkg/kafka"
	kafka_config "locafy/pkg/kafka/config"
	kafkamiddleware "locafy/pkg/kafka/middleware"
	"locafy/pkg/mail"
	"locafy/pkg/storage"
)

const ServiceName = "locafy"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()
	cfg.SetCloudinary()

	cfg.Log.Info("Starting Locafy API")
	serverApp := app.NewApplication(cfg)

	tokens := auth.NewTokenManager(cfg.JWTSecret)
	mailer := newMailer(cfg)
	images := storage.NewImageStore(cfg.Client.Cloudinary)

	users := userrepo.NewMongoUserRepository(cfg)
	services := servicerepo.NewMongoServiceRepository(cfg)
	bookings := bookingrepo.NewMongoBookingRepository(cfg)
	reviews := reviewrepo.NewMongoReviewRepository(cfg)

	userService := userservice.NewUserService(
		users,
		userrepo.NewMongoOTPRepository(cfg),
		tokens,
		mailer,
		uservalidator.NewUserValidator(),
		cfg,
	)
	serviceService := serviceservice.NewServiceService(
		services,
		reviews,
		users,
		images,
		servicevalidator.NewServiceValidator(),
		cfg,
	)
	bookingService := bookingservice.NewBookingService(
		bookings,
		users,
		services,
		newNotifier(cfg, serverApp, mailer),
		bookingvalidator.NewBookingValidator(),
		cfg,
	)
	reviewService := reviewservice.NewReviewService(
		reviews,
		bookings,
		services,
		mongodb.NewTransactionManager(cfg.Client.Mongo),
		images,
		reviewvalidator.NewReviewValidator(),
		cfg,
	)

	serverApp.SetApp(
		userhandler.NewUserHandler(userService, tokens, cfg.Log),
		servicehandler.NewServiceHandler(serviceService, tokens, cfg.Log),
		bookinghandler.NewBookingHandler(bookingService, tokens, cfg.Log),
		reviewhandler.NewReviewHandler(reviewService, tokens, cfg.Log),
	)
	serverApp.Run()
}

func newMailer(cfg *config.Config) mail.Mailer {
	if cfg.SMTPHost == "" {
		cfg.Log.Warn("SMTP_HOST not set, emails are logged instead of sent")
		return mail.NewLogMailer(cfg.Log)
	}
	return mail.NewSMTPMailer(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	}, cfg.Log)
}

// newNotifier always emails the counterparty and, when Kafka is enabled, also
// publishes a booking event.
func newNotifier(cfg *config.Config, serverApp *app.Application, mailer mail.Mailer) notifier.Notifier {
	notifiers := notifier.Multi{notifier.NewEmailNotifier(mailer)}
	if !cfg.KafkaEnabled {
		return notifiers
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.Log, cfg.BookingEventsTopic, cfg.BookingEventsDLQ)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	producer.Use(kafkamiddleware.LoggingProducerMiddleware(cfg.Log))
	serverApp.OnShutdown("kafka producer", producer.Close)

	cfg.Log.Info("Booking events enabled", "topic", cfg.BookingEventsTopic)
	return append(notifiers, notifier.NewEventNotifier(producer, ServiceName))
}
