// Package pii scans message content for personally identifying patterns
// and assigns a coarse sensitivity level used for redaction and
// encryption decisions downstream.
package pii

import (
	"regexp"
	"sort"
	"strings"

	"inboxd/pkg/models"
)

var (
	emailRe = regexp.MustCompile(`(?i)[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}`)
	phoneRe = regexp.MustCompile(`\+?\d[\d\s\-()]{8,}`)
	// Wallet-like identifiers: raw 64-hex (optionally workchain-prefixed)
	// or base64url-style bech32-like addresses.
	walletHexRe  = regexp.MustCompile(`(?i)(0:)?[a-f0-9]{64}`)
	walletAddrRe = regexp.MustCompile(`EQ[A-Za-z0-9_-]{30,48}`)
)

const (
	TagEmail  = "email"
	TagPhone  = "phone"
	TagWallet = "wallet"
)

// Classification is the outcome of a content scan: the detected tags and
// the (possibly escalated) PII level.
type Classification struct {
	Tags  []string
	Level models.PiiClass
}

// Classify walks every string leaf of the argument map and tests each
// against the known PII patterns. The level starts from the caller-supplied
// base and only ever escalates: email/phone raise to personal, wallet
// identifiers to sensitive.
func Classify(args map[string]any, base models.PiiClass) Classification {
	if base == "" {
		base = models.PiiNone
	}
	var strs []string
	collectStrings(args, &strs)

	tags := make(map[string]struct{})
	level := base
	for _, raw := range strs {
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		if emailRe.MatchString(v) {
			tags[TagEmail] = struct{}{}
			level = level.Escalate(models.PiiPersonal)
		}
		if phoneRe.MatchString(v) {
			tags[TagPhone] = struct{}{}
			level = level.Escalate(models.PiiPersonal)
		}
		if walletHexRe.MatchString(v) || walletAddrRe.MatchString(v) {
			tags[TagWallet] = struct{}{}
			level = level.Escalate(models.PiiSensitive)
		}
	}

	out := make([]string, 0, len(tags))
	for t := range tags {
		out = append(out, t)
	}
	sort.Strings(out)
	return Classification{Tags: out, Level: level}
}

// collectStrings appends every string leaf found in value, recursing into
// maps and slices.
func collectStrings(value any, bucket *[]string) {
	switch v := value.(type) {
	case string:
		*bucket = append(*bucket, v)
	case []any:
		for _, e := range v {
			collectStrings(e, bucket)
		}
	case map[string]any:
		for _, e := range v {
			collectStrings(e, bucket)
		}
	}
}

// Mask obscures all but the first and last visible characters of a value,
// for PII-safe diagnostics.
func Mask(value string, visible int) string {
	if len(value) <= visible {
		return strings.Repeat("*", len(value))
	}
	middle := len(value) - visible*2
	if middle < 3 {
		middle = 3
	}
	return value[:visible] + strings.Repeat("*", middle) + value[len(value)-visible:]
}
