package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"talent-search-go/internal/analytics"
	"talent-search-go/internal/config"
	"talent-search-go/internal/search"
	"talent-search-go/internal/storage/models"
	"talent-search-go/internal/tracing"
	"talent-search-go/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var mysqlTracer = otel.Tracer("talent-search-go/storage/mysql")

// GormTracingPlugin 是一个GORM插件，用于向OpenTelemetry中添加数据库操作的追踪点
type GormTracingPlugin struct {
	tracer         trace.Tracer
	dbName         string
	disableErrSkip bool
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册GORM回调以启用追踪
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("CREATE")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after()); err != nil {
		return err
	}

	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after()); err != nil {
		return err
	}

	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after()); err != nil {
		return err
	}

	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after()); err != nil {
		return err
	}

	if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("RAW")); err != nil {
		return err
	}
	if err := cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after()); err != nil {
		return err
	}

	return nil
}

// before 返回在GORM操作之前执行的回调函数
func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		if p.disableErrSkip && db.Statement.SkipHooks {
			return
		}

		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}

		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		spanName := fmt.Sprintf("%s %s", operation, tableName)
		opts := []trace.SpanStartOption{
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		}

		newCtx, span := p.tracer.Start(ctx, spanName, opts...)

		// 将span保存在DB上下文中，以便在after回调中使用
		db.Statement.Context = context.WithValue(newCtx, gormSpanKey{}, span)
	}
}

type gormSpanKey struct{}

// after 返回在GORM操作之后执行的回调函数
func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value(gormSpanKey{}).(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(
			attribute.Int64("db.rows_affected", db.Statement.RowsAffected),
			attribute.String("db.statement", tracing.SafeSQL(db.Statement.SQL.String())),
		)

		// ErrRecordNotFound 是业务逻辑正常情况的一部分，不应作为错误处理
		if db.Error != nil {
			if db.Error == gorm.ErrRecordNotFound {
				span.SetAttributes(attribute.String("error.type", "record_not_found"))
				span.SetStatus(codes.Ok, "record not found")
			} else {
				tracing.RecordErrorWithInfo(span, db.Error, tracing.ErrorTypeDB,
					attribute.String("db.sql.table", db.Statement.Table))
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}

// NewGormTracingPlugin 创建一个新的GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer:         mysqlTracer,
		dbName:         dbName,
		disableErrSkip: true,
	}
}

// 编译期检查：MySQL同时充当索引同步的计数来源和分析事件存储
var (
	_ search.CandidateCounter = (*MySQL)(nil)
	_ analytics.EventStore    = (*MySQL)(nil)
)

// MySQL 提供关系数据库功能
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	// 构建DSN，添加超时设置
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	var logLevel logger.LogLevel
	switch cfg.LogLevel {
	case 1:
		logLevel = logger.Silent
	case 2:
		logLevel = logger.Error
	case 3:
		logLevel = logger.Warn
	case 4:
		logLevel = logger.Info
	default:
		logLevel = logger.Warn
	}

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logLevel),
		PrepareStmt:                              true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	if err := db.Use(NewGormTracingPlugin(cfg.Database)); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	m := &MySQL{
		db:  db,
		cfg: cfg,
	}

	if err := m.autoMigrateSchema(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	log.Println("成功连接到MySQL并自动迁移数据库结构")
	return m, nil
}

// autoMigrateSchema 使用GORM自动迁移数据库表结构
func (m *MySQL) autoMigrateSchema() error {
	currentLogger := m.db.Logger

	// 迁移期间关闭SQL日志打印
	silentDB := m.db.Session(&gorm.Session{Logger: m.db.Logger.LogMode(logger.Silent)})

	err := silentDB.AutoMigrate(
		&models.Candidate{},
		&models.AnalyticsEvent{},
	)

	m.db = m.db.Session(&gorm.Session{Logger: currentLogger})

	if err != nil {
		return fmt.Errorf("GORM自动迁移失败: %w", err)
	}
	return nil
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

// UpsertCandidate 写入或更新候选人记录。重复写入同一候选人是幂等的，
// 内容变化会清空 synced_at，使其重新进入待同步集合。
func (m *MySQL) UpsertCandidate(ctx context.Context, candidate *models.Candidate) error {
	if candidate == nil || candidate.CandidateID == "" {
		return fmt.Errorf("候选人记录缺少CandidateID")
	}
	return m.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "candidate_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "email", "location", "availability", "visa_status",
				"years_experience", "skills_json", "experience_summary",
				"resume_object_key", "text_md5", "synced_at",
			}),
		}).Create(candidate).Error
}

// BatchUpsertCandidates 批量写入候选人记录
func (m *MySQL) BatchUpsertCandidates(ctx context.Context, candidates []models.Candidate) error {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.BatchUpsertCandidates",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		semconv.DBSystemMySQL,
		attribute.String("db.name", m.cfg.Database),
		attribute.String("db.sql.table", "candidates"),
		attribute.Int("batch.size", len(candidates)),
	)

	if len(candidates) == 0 {
		span.SetStatus(codes.Ok, "no candidates to upsert")
		return nil
	}

	err := m.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "candidate_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "email", "location", "availability", "visa_status",
				"years_experience", "skills_json", "experience_summary",
				"resume_object_key", "text_md5", "synced_at",
			}),
		}).Create(&candidates).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetCandidateByID 通过ID获取候选人
func (m *MySQL) GetCandidateByID(ctx context.Context, candidateID string) (*models.Candidate, error) {
	var candidate models.Candidate
	if err := m.db.WithContext(ctx).Where("candidate_id = ?", candidateID).First(&candidate).Error; err != nil {
		return nil, err
	}
	return &candidate, nil
}

// ListCandidates 分页列出候选人
func (m *MySQL) ListCandidates(ctx context.Context, offset, limit int) ([]models.Candidate, error) {
	var candidates []models.Candidate
	err := m.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("查询候选人列表失败: %w", err)
	}
	return candidates, nil
}

// ListUnsyncedCandidates 列出尚未写入搜索索引的候选人
func (m *MySQL) ListUnsyncedCandidates(ctx context.Context, limit int) ([]models.Candidate, error) {
	var candidates []models.Candidate
	err := m.db.WithContext(ctx).
		Where("synced_at IS NULL").
		Order("created_at ASC").
		Limit(limit).
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("查询待同步候选人失败: %w", err)
	}
	return candidates, nil
}

// CountCandidates 返回候选人总数
func (m *MySQL) CountCandidates(ctx context.Context) (int64, error) {
	var count int64
	if err := m.db.WithContext(ctx).Model(&models.Candidate{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("统计候选人数量失败: %w", err)
	}
	return count, nil
}

// CountUnsynced 返回尚未同步到索引的候选人数量
func (m *MySQL) CountUnsynced(ctx context.Context) (int64, error) {
	var count int64
	err := m.db.WithContext(ctx).Model(&models.Candidate{}).
		Where("synced_at IS NULL").
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("统计待同步候选人数量失败: %w", err)
	}
	return count, nil
}

// MarkCandidatesSynced 记录候选人已写入搜索索引
func (m *MySQL) MarkCandidatesSynced(ctx context.Context, candidateIDs []string) error {
	if len(candidateIDs) == 0 {
		return nil
	}
	now := time.Now()
	err := m.db.WithContext(ctx).Model(&models.Candidate{}).
		Where("candidate_id IN ?", candidateIDs).
		Update("synced_at", &now).Error
	if err != nil {
		return fmt.Errorf("标记候选人同步状态失败: %w", err)
	}
	return nil
}

// InsertAnalyticsEvent 追加写入一条查询事件
func (m *MySQL) InsertAnalyticsEvent(ctx context.Context, event *types.AnalyticsEvent) error {
	if event == nil {
		return fmt.Errorf("事件不能为空")
	}
	row := models.AnalyticsEvent{
		QueryText:   event.QueryText,
		Mode:        string(event.Mode),
		ResultCount: event.ResultCount,
		ActorID:     event.ActorID,
		OccurredAt:  event.Timestamp,
	}
	if event.Filters != "" {
		row.FiltersJSON = []byte(event.Filters)
	}
	return m.db.WithContext(ctx).Create(&row).Error
}

// ListAnalyticsEvents 按时间升序返回指定时间之后的查询事件
func (m *MySQL) ListAnalyticsEvents(ctx context.Context, since time.Time) ([]types.AnalyticsEvent, error) {
	var rows []models.AnalyticsEvent
	err := m.db.WithContext(ctx).
		Where("occurred_at >= ?", since).
		Order("occurred_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("查询分析事件失败: %w", err)
	}

	events := make([]types.AnalyticsEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, types.AnalyticsEvent{
			QueryText:   row.QueryText,
			Mode:        types.SearchMode(row.Mode),
			Filters:     string(row.FiltersJSON),
			ResultCount: row.ResultCount,
			ActorID:     row.ActorID,
			Timestamp:   row.OccurredAt,
		})
	}
	return events, nil
}
