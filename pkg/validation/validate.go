package validation

import (
	"errors"
	"fmt"
	"strings"

	"inboxd/pkg/models"
)

const (
	maxLangLen      = 10
	maxKeyLen       = 256
	maxDedupeKeyLen = 256
)

// ApplyDefaults fills the schema defaults on a raw payload before
// validation: type=message, importance=normal, channel=chat, lang=en,
// piiClass=none.
func ApplyDefaults(p *models.Payload) {
	if p.Type == "" {
		p.Type = models.TypeMessage
	}
	if p.Importance == "" {
		p.Importance = models.ImportanceNormal
	}
	if p.Channel == "" {
		p.Channel = models.ChannelChat
	}
	if p.Lang == "" {
		p.Lang = "en"
	}
	if p.PiiClass == "" {
		p.PiiClass = models.PiiNone
	}
}

// ValidatePayload checks a defaulted payload against the ingestion schema.
// All violations are collected and joined so a caller sees every problem
// at once.
func ValidatePayload(p *models.Payload) error {
	var errs []string
	if strings.TrimSpace(p.Content.Key) == "" {
		errs = append(errs, "content.key is required")
	}
	if len(p.Content.Key) > maxKeyLen {
		errs = append(errs, fmt.Sprintf("content.key exceeds %d bytes", maxKeyLen))
	}
	if !p.Type.Valid() {
		errs = append(errs, fmt.Sprintf("invalid type: %s", p.Type))
	}
	if !p.Importance.Valid() {
		errs = append(errs, fmt.Sprintf("invalid importance: %s", p.Importance))
	}
	if !p.Channel.Valid() {
		errs = append(errs, fmt.Sprintf("invalid channel: %s", p.Channel))
	}
	if !p.PiiClass.Valid() {
		errs = append(errs, fmt.Sprintf("invalid piiClass: %s", p.PiiClass))
	}
	if p.Status != "" && !p.Status.Valid() {
		errs = append(errs, fmt.Sprintf("invalid status: %s", p.Status))
	}
	if n := len(p.Lang); n < 2 || n > maxLangLen {
		errs = append(errs, fmt.Sprintf("lang must be 2..%d characters", maxLangLen))
	}
	if len(p.DedupeKey) > maxDedupeKeyLen {
		errs = append(errs, fmt.Sprintf("dedupeKey exceeds %d bytes", maxDedupeKeyLen))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
