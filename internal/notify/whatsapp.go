package notify

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// LinkBuilder produces shareable WhatsApp click-to-chat links for absentee
// notifications. Only the absentee-listing path consumes this; the matching
// and session core never touches it.
type LinkBuilder struct {
	// Template supports {name} and {date} placeholders.
	Template string
}

const defaultTemplate = "Hello {name}, you were marked absent on {date}. Please contact the administrator if this is a mistake."

func NewLinkBuilder(template string) *LinkBuilder {
	if template == "" {
		template = defaultTemplate
	}
	return &LinkBuilder{Template: template}
}

// AbsenceLink builds a wa.me link for the given contact number. The number is
// normalised to digits only, as wa.me rejects + and separators.
func (b *LinkBuilder) AbsenceLink(phone, name string, day time.Time) string {
	msg := strings.NewReplacer(
		"{name}", name,
		"{date}", day.Format("02 Jan 2006"),
	).Replace(b.Template)

	return chatLink(phone, msg)
}

// MarkLink builds a wa.me link announcing a login/logout transition.
func (b *LinkBuilder) MarkLink(phone, name, transition string, at time.Time) string {
	verb := "logged in"
	if transition == "logged_out" {
		verb = "logged out"
	}
	msg := fmt.Sprintf("%s %s at %s on %s.", name, verb, at.Format("15:04"), at.Format("02 Jan 2006"))
	return chatLink(phone, msg)
}

func chatLink(phone, msg string) string {
	return fmt.Sprintf("https://wa.me/%s?text=%s", normalisePhone(phone), url.QueryEscape(msg))
}

func normalisePhone(phone string) string {
	var sb strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
