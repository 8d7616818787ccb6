// Package main 数据修复迁移命令
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/tkshop-backend/internal/common/config"
	"github.com/dumeirei/tkshop-backend/internal/common/database"
	"github.com/dumeirei/tkshop-backend/internal/common/logger"
	"github.com/dumeirei/tkshop-backend/internal/models"
	"github.com/dumeirei/tkshop-backend/internal/repository"
	commissionService "github.com/dumeirei/tkshop-backend/internal/service/commission"
	depositService "github.com/dumeirei/tkshop-backend/internal/service/deposit"
	"github.com/dumeirei/tkshop-backend/internal/service/migration"
	"github.com/dumeirei/tkshop-backend/internal/service/settlement"
	walletService "github.com/dumeirei/tkshop-backend/internal/service/wallet"
)

func main() {
	configPath := flag.StringP("config", "c", "", "配置文件路径")
	dryRun := flag.Bool("dry-run", false, "只统计影响行数，事务回滚且不记录版本")
	list := flag.Bool("list", false, "列出迁移及执行状态")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(&cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.GetLogger()

	db, err := database.Init(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()
	if err := models.AutoMigrate(db); err != nil {
		log.Fatal("Failed to migrate schema", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := newRunner(db, cfg, log)
	if *list {
		if err := printStatus(ctx, runner); err != nil {
			log.Fatal("Failed to list migrations", zap.Error(err))
		}
		return
	}

	start := time.Now()
	reports, err := runner.Run(ctx, *dryRun)
	printReports(reports)
	if err != nil {
		log.Fatal("Migration failed", zap.Error(err))
	}
	log.Info("migrations finished",
		zap.Bool("dry_run", *dryRun),
		zap.Int("count", len(reports)),
		zap.Duration("latency", time.Since(start)),
	)
}

// newRunner 组装迁移执行器，0005 需要结算引擎重新结算部分完成的凭证
// Redis 与 MQTT 不参与，事件由 api-gateway 的定时任务补投
func newRunner(db *gorm.DB, cfg *config.Config, log *zap.Logger) *migration.Runner {
	sellerRepo := repository.NewSellerRepository(db)
	depositRepo := repository.NewDepositRepository(db)
	receiptRepo := repository.NewReceiptRepository(db)
	eventRepo := repository.NewSettlementEventRepository(db)

	deposits := depositService.NewService(db, depositRepo, sellerRepo)
	wallets := walletService.NewService(db, sellerRepo, repository.NewTransactionRepository(db))
	commissions := commissionService.NewService(db, repository.NewCommissionRepository(db), sellerRepo,
		repository.NewAdminRepository(db), commissionService.Options{Rate: cfg.Business.Commission.Rate})
	dispatcher := settlement.NewDispatcher(eventRepo, commissions, nil, nil, log)
	engine := settlement.NewEngine(db, receiptRepo, depositRepo, eventRepo, deposits, wallets, dispatcher, settlement.Options{
		Logger:       log,
		EntryTimeout: cfg.Business.Settlement.EntryTimeoutDuration(),
	})
	return migration.NewRunner(db, migration.Builtin(receiptRepo, engine), log)
}

func printStatus(ctx context.Context, runner *migration.Runner) error {
	statuses, err := runner.List(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED\tAFFECTED\tAPPLIED AT")
	for _, s := range statuses {
		appliedAt := "-"
		if s.AppliedAt != nil {
			appliedAt = s.AppliedAt.Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%d\t%s\n", s.Version, s.Name, s.Applied, s.Affected, appliedAt)
	}
	return w.Flush()
}

func printReports(reports []migration.Report) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tRESULT\tAFFECTED")
	for _, r := range reports {
		result := "applied"
		switch {
		case r.Skipped:
			result = "skipped"
		case r.DryRun:
			result = "dry-run"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", r.Version, r.Name, result, r.Affected)
	}
	_ = w.Flush()
}
