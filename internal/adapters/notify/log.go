// Package notify carries user-facing session messages. The production chat
// layer plugs in here; the built-in adapter just logs, so the daemon stays
// fully functional without a chat transport.
package notify

import (
	"context"
	"log"

	"github.com/nextpie/sessiond/internal/domain"
	"github.com/nextpie/sessiond/internal/ports"
)

type LogNotifier struct{}

var _ ports.Notifier = LogNotifier{}

func (LogNotifier) Notify(_ context.Context, id domain.AccountID, message string) {
	log.Printf("[INFO] notify %s: %s", id, message)
}

type LogPresence struct{}

var _ ports.Presence = LogPresence{}

func (LogPresence) Set(status string) {
	log.Printf("[INFO] presence: watching %s", status)
}
