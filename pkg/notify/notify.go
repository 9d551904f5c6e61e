package notify

// User-facing notifications. Validation warnings and transport errors are
// reported through here rather than as Go errors, so a failed request never
// takes the session down.

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yumyai/structable/logger"
)

type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// TTL for transient success messages.
const SuccessTTL = time.Second

type Notification struct {
	ID      uuid.UUID
	Level   Level
	Title   string
	Message string
	TTL     time.Duration
}

func New(level Level, title, message string, ttl time.Duration) Notification {
	return Notification{
		ID:      uuid.New(),
		Level:   level,
		Title:   title,
		Message: message,
		TTL:     ttl,
	}
}

type Sink interface {
	Notify(n Notification)
}

// ChannelSink buffers notifications for a presentation consumer. When the
// buffer is full the oldest notification is dropped; stale toasts are of no
// use anyway.
type ChannelSink struct {
	ch chan Notification
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 16
	}
	return &ChannelSink{ch: make(chan Notification, buffer)}
}

func (s *ChannelSink) Notify(n Notification) {
	for {
		select {
		case s.ch <- n:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

func (s *ChannelSink) C() <-chan Notification {
	return s.ch
}

// LogSink writes notifications to the application logger.
type LogSink struct{}

func (LogSink) Notify(n Notification) {
	fields := []zap.Field{
		zap.String("id", n.ID.String()),
		zap.String("title", n.Title),
	}
	switch n.Level {
	case LevelWarn:
		logger.Warn(n.Message, fields...)
	case LevelError:
		logger.Error(n.Message, fields...)
	default:
		logger.Info(n.Message, fields...)
	}
}
