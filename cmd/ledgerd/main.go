package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"qiyana_splitledger/internal/config"
	"qiyana_splitledger/internal/events"
	"qiyana_splitledger/internal/locks"
	"qiyana_splitledger/internal/metrics"
	"qiyana_splitledger/internal/repositories/directory"
	"qiyana_splitledger/internal/repositories/ledgerstore"
	"qiyana_splitledger/internal/repositories/sqlconnect"
	"qiyana_splitledger/internal/services"
	"qiyana_splitledger/pkg/cron"
	"qiyana_splitledger/pkg/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		utils.Logger.Fatal("Invalid configuration: ", err)
	}

	utils.InitLogger(cfg.Env, cfg.LogLevel)

	err = sqlconnect.ConnectDb(cfg.DB)
	if err != nil {
		utils.Logger.Fatal("DB connection failed: ", err)
	}
	defer sqlconnect.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store := ledgerstore.NewSQLStore(sqlconnect.DB, sqlconnect.Dialect)
	dir := directory.NewSQL(sqlconnect.DB, sqlconnect.Dialect)
	if err := store.Migrate(ctx); err != nil {
		utils.Logger.Fatal("Ledger migration failed: ", err)
	}
	if err := dir.Migrate(ctx); err != nil {
		utils.Logger.Fatal("Directory migration failed: ", err)
	}
	cancel()

	opts := []services.Option{services.WithTimeout(cfg.OpTimeout)}

	if cfg.Redis.Addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := locks.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		cancel()
		if err != nil {
			utils.Logger.Fatal("Redis connection failed: ", err)
		}
		defer client.Close()
		opts = append(opts,
			services.WithLocker(locks.NewRedis(client, cfg.LockTTL)),
			services.WithGate(locks.NewRedisGate(client, cfg.LockTTL)),
		)
		utils.Logger.Infof("Using Redis locks at %s", cfg.Redis.Addr)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		publisher := events.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer publisher.Close()
		opts = append(opts, services.WithPublisher(publisher))
		utils.Logger.Infof("Publishing ledger events to %s", cfg.Kafka.Topic)
	}

	ledger := services.NewLedger(store, dir, dir, dir, opts...)

	jobs := &cron.Jobs{Ledger: ledger, Contacts: dir}
	if cfg.SMTP.Enabled() {
		jobs.Mailer = utils.NewMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Email, cfg.SMTP.Password)
	}
	scheduler, err := cron.StartCronJobs(jobs, cfg.NettingSchedule, cfg.ReminderSchedule)
	if err != nil {
		utils.Logger.Fatal("Scheduler failed to start: ", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		utils.Logger.Infof("Metrics server is running on %s", cfg.MetricsAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Logger.Fatal("Error starting the metrics server: ", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	utils.Logger.Info("Shutting down")

	<-scheduler.Stop().Done()

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		utils.Logger.WithError(err).Warn("Metrics server did not shut down cleanly")
	}
}
