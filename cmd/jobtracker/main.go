package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/YKarmar/jobsync/internal/analyzer"
	"github.com/YKarmar/jobsync/internal/client"
	"github.com/YKarmar/jobsync/internal/config"
	"github.com/YKarmar/jobsync/internal/exporter"
	"github.com/YKarmar/jobsync/internal/linker"
	"github.com/YKarmar/jobsync/internal/lock"
	"github.com/YKarmar/jobsync/internal/logger"
	"github.com/YKarmar/jobsync/internal/scheduler"
	"github.com/YKarmar/jobsync/internal/store"
	"github.com/YKarmar/jobsync/internal/syncer"
)

// 锁的TTL在单次运行超时之外再留出余量
const lockMargin = time.Minute

func main() {
	configPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	once := flag.Bool("once", false, "只同步一次后退出")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, *once); err != nil {
		log.Error("jobtracker exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger, once bool) error {
	// 2. 打开数据库
	db, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	// 3. 单邮箱同步锁：配置了Redis则跨进程互斥
	var locker lock.Locker = lock.NewMemoryLocker()
	if cfg.Redis.Addr != "" {
		rl, err := lock.NewRedisLocker(lock.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Sync.RunTimeout+lockMargin)
		if err != nil {
			return fmt.Errorf("%w: %w", syncer.ErrConfiguration, err)
		}
		defer rl.Close()
		locker = rl
	}

	// 4. 邮件客户端与分类器
	emailClient := client.NewMCPEmailClient(client.MCPEmailConfig{
		Email:       cfg.Mailbox.Email,
		Host:        cfg.Mailbox.Host,
		MCPEndpoint: cfg.MCP.Endpoint,
		APIKey:      cfg.MCP.APIKey,
		Since:       config.ParseDateLoose(cfg.Fetch.Start, time.Now().AddDate(0, 0, -30)),
		MaxEmails:   cfg.Fetch.MaxEmails,
		Folders:     cfg.Mailbox.Folders,
	})
	classifier := analyzer.NewJobAnalyzer(analyzer.LLMConfig{
		APIBase:     cfg.LLM.APIBase,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})

	apps := db.Applications()
	s := syncer.New(syncer.Deps{
		Mailbox:      emailClient,
		Classifier:   classifier,
		Applications: apps,
		Linker:       linker.New(db.EmailLinks()),
		SyncLog:      db.SyncLog(),
		Locker:       locker,
	}, syncer.Config{
		MinConfidence: *cfg.Sync.MinConfidence,
		RunTimeout:    cfg.Sync.RunTimeout,
	}, log)

	mb := syncer.Mailbox{
		ID:           cfg.Mailbox.ID,
		AccessToken:  cfg.Mailbox.AccessToken,
		RefreshToken: cfg.Mailbox.RefreshToken,
	}

	report := func(summary *syncer.Summary) {
		if summary != nil {
			exporter.Digest(os.Stdout, summary)
		}
		all, err := apps.ListByMailbox(ctx, mb.ID)
		if err != nil {
			log.Warn("list applications failed", zap.Error(err))
			return
		}
		exporter.PrintStatistics(os.Stdout, all)
		if err := exporter.NewCSVExporter(cfg.Export.File).ExportApplications(all); err != nil {
			log.Warn("export CSV failed", zap.String("file", cfg.Export.File), zap.Error(err))
			return
		}
		log.Info("applications exported", zap.String("file", cfg.Export.File), zap.Int("count", len(all)))
	}

	// 5. 单次运行
	if once {
		summary, err := s.Run(ctx, mb)
		if err != nil && !errors.Is(err, syncer.ErrRunTimeout) {
			return err
		}
		report(summary)
		return err
	}

	// 6. 定时运行，直到收到退出信号
	sched, err := scheduler.New(scheduler.Config{
		Interval:   cfg.Sync.Interval,
		MaxHistory: scheduler.DefaultConfig().MaxHistory,
	}, s, mb, log)
	if err != nil {
		return err
	}
	sched.OnRun = func(rec scheduler.RunRecord) {
		if rec.Summary != nil {
			report(rec.Summary)
		}
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	log.Info("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return sched.Stop(stopCtx)
}
