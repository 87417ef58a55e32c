// Package queue defines message payloads exchanged over the message broker.
package queue

// MailRequested is published whenever the application needs a message
// delivered out-of-band: password-reset links, email-verification links and
// phone verification codes all travel through the mail.outbound queue so
// the HTTP request never blocks on a delivery provider.
type MailRequested struct {
	To       string `json:"to"`                 // destination address or phone number
	Channel  string `json:"channel"`            // "email" or "sms"
	Template string `json:"template"`           // e.g. "password_reset", "email_verification", "phone_code"
	Token    string `json:"token,omitempty"`    // action token embedded in the link, when applicable
	Code     string `json:"code,omitempty"`     // one-time code, when applicable
	QueuedAt string `json:"queued_at"`          // RFC3339 timestamp of enqueue
}
