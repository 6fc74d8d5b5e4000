package validation

import (
	"strings"
	"testing"

	"inboxd/pkg/models"
)

func TestApplyDefaults(t *testing.T) {
	p := models.Payload{Content: models.Content{Key: "k"}}
	ApplyDefaults(&p)
	if p.Type != models.TypeMessage || p.Importance != models.ImportanceNormal ||
		p.Channel != models.ChannelChat || p.Lang != "en" || p.PiiClass != models.PiiNone {
		t.Fatalf("unexpected defaults: %+v", p)
	}
}

func TestApplyDefaultsKeepsExplicit(t *testing.T) {
	p := models.Payload{
		Content: models.Content{Key: "k"},
		Channel: models.ChannelPush,
		Lang:    "de",
	}
	ApplyDefaults(&p)
	if p.Channel != models.ChannelPush || p.Lang != "de" {
		t.Fatalf("explicit fields overwritten: %+v", p)
	}
}

func TestValidatePayloadRequiresContentKey(t *testing.T) {
	p := models.Payload{}
	ApplyDefaults(&p)
	err := ValidatePayload(&p)
	if err == nil || !strings.Contains(err.Error(), "content.key") {
		t.Fatalf("expected content.key error, got %v", err)
	}
}

// TestValidatePayloadCollectsAllViolations verifies every problem is
// reported at once, joined in one error.
func TestValidatePayloadCollectsAllViolations(t *testing.T) {
	p := models.Payload{
		Type:       "bogus",
		Importance: "bogus",
		Channel:    "bogus",
		PiiClass:   "bogus",
		Lang:       "x",
	}
	err := ValidatePayload(&p)
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, frag := range []string{"content.key", "invalid type", "invalid importance", "invalid channel", "invalid piiClass", "lang"} {
		if !strings.Contains(err.Error(), frag) {
			t.Fatalf("error %q missing fragment %q", err.Error(), frag)
		}
	}
}

func TestValidatePayloadValid(t *testing.T) {
	p := models.Payload{Content: models.Content{Key: "chat.message"}}
	ApplyDefaults(&p)
	if err := ValidatePayload(&p); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}
}
