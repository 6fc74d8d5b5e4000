// Package inbox is the ingestion pipeline: validation, PII classification,
// admission control, thread resolution, deduplication, envelope encryption,
// persistence, audit and channel dispatch, with real-time fan-out of
// message/typing/read events to live subscribers.
package inbox

import (
	"strings"
	"time"

	"inboxd/pkg/fanout"
	"inboxd/pkg/logger"
	"inboxd/pkg/models"
	"inboxd/pkg/ratelimit"
	"inboxd/pkg/security"
)

// Service orchestrates the pipeline. All state it mutates lives behind the
// repository except the rate buckets and the fan-out hub, which are
// process-local.
type Service struct {
	repo   Repository
	limits *ratelimit.Table
	box    *security.Box
	hub    *fanout.Hub

	defaultTenant string
	now           func() time.Time
}

// Options configures a Service. Zero-value fields fall back to sane
// defaults; Repo is required.
type Options struct {
	Repo          Repository
	Limits        *ratelimit.Table
	Box           *security.Box
	Hub           *fanout.Hub
	DefaultTenant string
}

// NewService wires the pipeline.
func NewService(opts Options) *Service {
	s := &Service{
		repo:          opts.Repo,
		limits:        opts.Limits,
		box:           opts.Box,
		hub:           opts.Hub,
		defaultTenant: opts.DefaultTenant,
		now:           time.Now,
	}
	if s.limits == nil {
		s.limits = ratelimit.NewTable(nil)
	}
	if s.box == nil {
		s.box = security.NewBox("")
	}
	if s.hub == nil {
		s.hub = fanout.NewHub(0)
	}
	if s.defaultTenant == "" {
		s.defaultTenant = "default"
	}
	return s
}

// Hub exposes the fan-out hub for the stream handler.
func (s *Service) Hub() *fanout.Hub { return s.hub }

// NormalizeAddress canonicalizes a recipient address for keying and
// membership checks: trimmed and lowercased.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// audit appends a record to the repository and mirrors it to the file
// sink. Failures are logged and swallowed; audit must never abort the
// pipeline.
func (s *Service) audit(e *models.AuditEntry) {
	if e.At.IsZero() {
		e.At = s.now().UTC()
	}
	if err := s.repo.AppendAudit(e); err != nil {
		logger.Warn("audit_append_failed", "action", e.Action, "entity", e.EntityID, "error", err)
	}
	if logger.Audit != nil {
		logger.Audit.Info(e.Action,
			"actor", e.ActorAddress,
			"entity_type", e.EntityType,
			"entity", e.EntityID,
			"tenant", e.TenantID,
			"meta", e.Meta)
	}
}
