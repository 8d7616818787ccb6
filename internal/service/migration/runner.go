// Package migration 版本化数据修复
// 每个迁移在独立事务中执行，已执行的版本记录在 data_migrations
package migration

import (
	"context"
	stderrors "errors"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/tkshop-backend/internal/common/logger"
	"github.com/dumeirei/tkshop-backend/internal/models"
)

// errDryRun 触发回滚
var errDryRun = stderrors.New("migration: dry run rollback")

// Migration 一个数据迁移
type Migration struct {
	Version string
	Name    string
	// Up 在事务内修复数据并返回影响行数，dryRun 时事务会回滚
	Up func(ctx context.Context, tx *gorm.DB, dryRun bool) (int64, error)
	// AfterCommit 提交后执行的后续动作，dry run 时不执行
	AfterCommit func(ctx context.Context, db *gorm.DB) error
}

// Report 单个迁移的执行结果
type Report struct {
	Version  string `json:"version"`
	Name     string `json:"name"`
	Affected int64  `json:"affected"`
	Applied  bool   `json:"applied"`
	Skipped  bool   `json:"skipped"`
	DryRun   bool   `json:"dry_run"`
}

// Status 迁移状态
type Status struct {
	Version   string     `json:"version"`
	Name      string     `json:"name"`
	Applied   bool       `json:"applied"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
	Affected  int64      `json:"affected"`
}

// Runner 迁移执行器
type Runner struct {
	db         *gorm.DB
	migrations []Migration
	log        *zap.Logger
}

// NewRunner 创建执行器，迁移按版本号排序
func NewRunner(db *gorm.DB, migrations []Migration, log *zap.Logger) *Runner {
	if log == nil {
		log = logger.GetLogger()
	}
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })
	return &Runner{db: db, migrations: sorted, log: log.Named("migration")}
}

// Run 执行所有未执行的迁移
func (r *Runner) Run(ctx context.Context, dryRun bool) ([]Report, error) {
	if err := r.db.WithContext(ctx).AutoMigrate(&models.DataMigration{}); err != nil {
		return nil, err
	}
	applied, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}

	reports := make([]Report, 0, len(r.migrations))
	for _, m := range r.migrations {
		report := Report{Version: m.Version, Name: m.Name, DryRun: dryRun}
		if _, ok := applied[m.Version]; ok {
			report.Skipped = true
			reports = append(reports, report)
			continue
		}

		affected, err := r.apply(ctx, m, dryRun)
		if err != nil {
			r.log.Error("migration failed", zap.String("version", m.Version), zap.Error(err))
			return reports, err
		}
		report.Affected = affected
		report.Applied = !dryRun
		reports = append(reports, report)

		r.log.Info("migration executed",
			zap.String("version", m.Version),
			zap.String("name", m.Name),
			zap.Int64("affected", affected),
			zap.Bool("dry_run", dryRun),
		)

		if !dryRun && m.AfterCommit != nil {
			if err := m.AfterCommit(ctx, r.db.WithContext(ctx)); err != nil {
				r.log.Error("migration post step failed", zap.String("version", m.Version), zap.Error(err))
				return reports, err
			}
		}
	}
	return reports, nil
}

func (r *Runner) apply(ctx context.Context, m Migration, dryRun bool) (int64, error) {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := m.Up(ctx, tx, dryRun)
		if err != nil {
			return err
		}
		affected = n
		if dryRun {
			return errDryRun
		}
		return tx.Create(&models.DataMigration{
			Version:      m.Version,
			Name:         m.Name,
			AffectedRows: n,
			AppliedAt:    time.Now(),
		}).Error
	})
	if stderrors.Is(err, errDryRun) {
		err = nil
	}
	return affected, err
}

func (r *Runner) applied(ctx context.Context) (map[string]models.DataMigration, error) {
	var rows []models.DataMigration
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make(map[string]models.DataMigration, len(rows))
	for _, row := range rows {
		result[row.Version] = row
	}
	return result, nil
}

// List 列出所有迁移及执行状态
func (r *Runner) List(ctx context.Context) ([]Status, error) {
	if err := r.db.WithContext(ctx).AutoMigrate(&models.DataMigration{}); err != nil {
		return nil, err
	}
	applied, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}
	statuses := make([]Status, len(r.migrations))
	for i, m := range r.migrations {
		statuses[i] = Status{Version: m.Version, Name: m.Name}
		if row, ok := applied[m.Version]; ok {
			at := row.AppliedAt
			statuses[i].Applied = true
			statuses[i].AppliedAt = &at
			statuses[i].Affected = row.AffectedRows
		}
	}
	return statuses, nil
}
