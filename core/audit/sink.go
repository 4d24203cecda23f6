package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kochabx/authgate/log"
)

// LogSink 以结构化日志输出事件
type LogSink struct {
	logger *log.Logger
}

// NewLogSink 创建日志 Sink，logger 为 nil 时使用 log.G
func NewLogSink(logger *log.Logger) *LogSink {
	if logger == nil {
		logger = log.G
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Emit(_ context.Context, e Event) error {
	ev := s.logger.Info().
		Str("audit_id", e.ID).
		Str("event", string(e.Type)).
		Str("user_id", e.UserID).
		Str("session_id", e.SessionID).
		Str("ip", e.IP).
		Bool("success", e.Success).
		Str("reason", e.Reason)
	for k, v := range e.Metadata {
		ev = ev.Str("meta_"+k, v)
	}
	ev.Msg("audit")
	return nil
}

// Record 审计事件的数据库行
type Record struct {
	ID        string            `gorm:"primaryKey;size:36"`
	Time      time.Time         `gorm:"column:occurred_at;index"`
	Type      string            `gorm:"size:32;index"`
	UserID    string            `gorm:"size:128;index"`
	SessionID string            `gorm:"size:36"`
	IP        string            `gorm:"size:64"`
	Method    string            `gorm:"size:16"`
	Path      string            `gorm:"size:255"`
	Success   bool
	Reason    string            `gorm:"size:255"`
	Metadata  map[string]string `gorm:"serializer:json"`
}

// TableName 表名
func (Record) TableName() string { return "audit_events" }

func recordOf(e Event) *Record {
	return &Record{
		ID:        e.ID,
		Time:      e.Time,
		Type:      string(e.Type),
		UserID:    e.UserID,
		SessionID: e.SessionID,
		IP:        e.IP,
		Method:    e.Method,
		Path:      e.Path,
		Success:   e.Success,
		Reason:    e.Reason,
		Metadata:  e.Metadata,
	}
}

func (r *Record) event() Event {
	return Event{
		ID:        r.ID,
		Time:      r.Time,
		Type:      Type(r.Type),
		UserID:    r.UserID,
		SessionID: r.SessionID,
		IP:        r.IP,
		Method:    r.Method,
		Path:      r.Path,
		Success:   r.Success,
		Reason:    r.Reason,
		Metadata:  r.Metadata,
	}
}

// DBSink 写入数据库（gorm）
type DBSink struct {
	db *gorm.DB
}

// NewDBSink 创建数据库 Sink 并迁移表结构
func NewDBSink(db *gorm.DB) (*DBSink, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrate audit_events: %w", err)
	}
	return &DBSink{db: db}, nil
}

func (s *DBSink) Name() string { return "db" }

func (s *DBSink) Emit(ctx context.Context, e Event) error {
	return s.db.WithContext(ctx).Create(recordOf(e)).Error
}

// Query 按时间倒序查询，userID 为空时不过滤
func (s *DBSink) Query(ctx context.Context, userID string, limit int) ([]Event, error) {
	q := s.db.WithContext(ctx).Order("occurred_at desc")
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []Record
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Event, len(rows))
	for i := range rows {
		out[i] = rows[i].event()
	}
	return out, nil
}

// Publisher 消息发布接口，由 store/kafka.Client 实现
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// KafkaSink 以 JSON 发布到 Kafka，key 为用户 ID
type KafkaSink struct {
	pub   Publisher
	topic string
}

// NewKafkaSink 创建 Kafka Sink
func NewKafkaSink(pub Publisher, topic string) *KafkaSink {
	if topic == "" {
		topic = "authgate.audit"
	}
	return &KafkaSink{pub: pub, topic: topic}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Emit(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.pub.Publish(ctx, s.topic, []byte(e.UserID), value)
}

var (
	_ Sink = (*LogSink)(nil)
	_ Sink = (*DBSink)(nil)
	_ Sink = (*KafkaSink)(nil)
)
