package connectors

import "github.com/qinyiguo/DMS2.0/internal"

// MailConnector fetches report mail from a dealer-facing mailbox.
type MailConnector interface {
	FetchInbox(label string, max int) ([]internal.FetchedMailMessage, error)
}
