// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
)

var base atomic.Pointer[slog.Logger]

func init() {
	base.Store(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
}

// SetLogger replaces the logger behind repository and websocket events.
// The server installs the request-aware middleware logger here at startup.
func SetLogger(l *slog.Logger) {
	if l != nil {
		base.Store(l)
	}
}

func logger() *slog.Logger { return base.Load() }

// RepoLogger tags store events with the table they touched. Writes log at
// debug; failures at error.
type RepoLogger struct {
	table string
}

// NewRepoLogger returns a RepoLogger for table.
func NewRepoLogger(table string) *RepoLogger {
	return &RepoLogger{table: table}
}

func (l *RepoLogger) emit(ctx context.Context, level slog.Level, op string, attrs []any) {
	logger().Log(ctx, level, "store "+op, append([]any{"table", l.table, "op", op}, attrs...)...)
}

func (l *RepoLogger) LogCreate(ctx context.Context, attrs ...any) {
	l.emit(ctx, slog.LevelDebug, "create", attrs)
}

func (l *RepoLogger) LogDelete(ctx context.Context, attrs ...any) {
	l.emit(ctx, slog.LevelDebug, "delete", attrs)
}

func (l *RepoLogger) LogError(ctx context.Context, err error, op string) {
	l.emit(ctx, slog.LevelError, op, []any{"error", err})
}

// WSLogger records hint socket lifecycles.
type WSLogger struct {
	hub string
}

// NewWSLogger returns a WSLogger for hub.
func NewWSLogger(hub string) *WSLogger {
	return &WSLogger{hub: hub}
}

func (l *WSLogger) LogConnect(ctx context.Context, userID string) {
	logger().InfoContext(ctx, "websocket connect", "hub", l.hub, "user_id", anonymousIfEmpty(userID))
}

func (l *WSLogger) LogDisconnect(ctx context.Context, userID, reason string) {
	logger().InfoContext(ctx, "websocket disconnect", "hub", l.hub, "user_id", anonymousIfEmpty(userID), "reason", reason)
}

func anonymousIfEmpty(userID string) string {
	if userID == "" {
		return "anonymous"
	}
	return userID
}
