package main

import (
	"context"

	bookhandler "libris/internal/books/handler"
	bookrepository "libris/internal/books/repository"
	bookservice "libris/internal/books/service"
	bookvalidator "libris/internal/books/validator"
	loanhandler "libris/internal/loans/handler"
	loanrepository "libris/internal/loans/repository"
	loanservice "libris/internal/loans/service"
	loanvalidator "libris/internal/loans/validator"
	"libris/internal/notifier"
	"libris/pkg/app"
	"libris/pkg/config"
	"libris/pkg/kafka"
	"libris/pkg/mail"
)

const ServiceName = "library"

func main() {
	cfg := config.Load(ServiceName)
	cfg.Log.Info("Starting Library service")

	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	serverApp := app.NewApplication(cfg)

	loanEvents := initLoanEvents(cfg, serverApp)
	bookService, loanService, loanValidator := initServices(cfg, loanEvents)
	initNotifier(cfg, serverApp, loanService)

	serverApp.SetApp(
		bookhandler.NewBookHandler(bookService, cfg.Log),
		loanhandler.NewLoanHandler(loanService, loanValidator, cfg.Log),
	)
	serverApp.Run()
}

func initServices(cfg *config.Config, events loanservice.EventPublisher) (bookservice.BookService, loanservice.LoanService, *loanvalidator.LoanValidator) {
	bookRepo := bookrepository.NewMongoBookRepository(cfg)
	bookService := bookservice.NewBookService(
		bookRepo,
		bookvalidator.NewBookValidator(cfg.Log),
		cfg,
	)

	loanRepo := loanrepository.NewMongoLoanRepository(cfg)
	lockRepo := loanrepository.NewLoanLockRepository(cfg)
	loanValidator := loanvalidator.NewLoanValidator(cfg.Log)
	loanService := loanservice.NewLoanService(
		loanRepo,
		lockRepo,
		bookService,
		loanValidator,
		events,
		cfg,
	)

	ensureIndexes(cfg, bookRepo, loanRepo, lockRepo)

	cfg.Log.Info("Services initialized", "database", cfg.MongoDatabaseName)
	return bookService, loanService, loanValidator
}

// ensureIndexes creates the unique isbn index, the loan query indexes
// and the lock TTL index. Startup aborts if any of them cannot be
// created; the isbn uniqueness guarantee depends on it.
func ensureIndexes(cfg *config.Config, bookRepo bookrepository.BookRepository, loanRepo loanrepository.LoanRepository, lockRepo loanrepository.LoanLockRepository) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.MongoConnTimeout)
	defer cancel()

	if err := bookRepo.EnsureIndexes(ctx); err != nil {
		cfg.Log.Fatal("Failed to create book indexes", "error", err)
	}
	if err := loanRepo.EnsureIndexes(ctx); err != nil {
		cfg.Log.Fatal("Failed to create loan indexes", "error", err)
	}
	if err := lockRepo.EnsureIndexes(ctx); err != nil {
		cfg.Log.Fatal("Failed to create loan lock indexes", "error", err)
	}
}

// initLoanEvents wires the Kafka publisher when a loan topic is
// configured. Without one the service runs fine, just silently.
func initLoanEvents(cfg *config.Config, serverApp *app.Application) loanservice.EventPublisher {
	if cfg.KafkaLoanTopic == "" {
		cfg.Log.Info("Kafka loan events disabled")
		return nil
	}

	producer, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaLoanTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}

	events := kafka.NewLoanEvents(producer, cfg.Log)
	serverApp.OnShutdown(func() {
		if err := events.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
	})

	cfg.Log.Info("Kafka loan events enabled", "topic", cfg.KafkaLoanTopic)
	return events
}

// initNotifier starts the late loan mail job when SMTP is configured.
func initNotifier(cfg *config.Config, serverApp *app.Application, loanService loanservice.LoanService) {
	if cfg.SMTPHost == "" {
		cfg.Log.Info("Late loan notifier disabled, no SMTP host configured")
		return
	}

	mailer := mail.NewMailer(mail.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
		Subject:  cfg.MailSubject,
	}, cfg.Log)

	lateNotifier := notifier.New(loanService, mailer, cfg.OverdueSchedule, cfg.MailMessage, cfg.Log)
	if err := lateNotifier.Start(); err != nil {
		cfg.Log.Fatal("Failed to start late loan notifier", "error", err)
	}
	serverApp.OnShutdown(lateNotifier.Stop)
}
