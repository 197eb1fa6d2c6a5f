// Package inbox supplies unread payment-notification emails to the
// reconciliation engine.
package inbox

// Message is one email reduced to the parts payment extraction needs.
type Message struct {
	Subject string
	Body    string
}
