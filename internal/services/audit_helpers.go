package services

import (
	"context"

	"go.uber.org/zap"
)

// recordAudit logs the supplied entry while tolerating audit failures.
func recordAudit(audit *AuditService, log *zap.Logger, ctx context.Context, entry AuditEntry) {
	if audit == nil {
		return
	}
	if err := audit.Log(context.WithoutCancel(ctx), entry); err != nil && log != nil {
		log.Warn("audit write failed", zap.String("action", entry.Action), zap.Error(err))
	}
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
