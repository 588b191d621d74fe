package notification

import (
	"context"
	"fmt"
	"log"

	"finsync/internal/shared/messages"
)

// Service sends operator alerts. A Service without a messenger only logs.
type Service struct {
	messenger Messenger
	topic     string
	texts     *messages.Messages
}

// NewService creates a new notification service. messenger may be nil;
// nil texts means the built-in ones.
func NewService(messenger Messenger, topic string, texts *messages.Messages) *Service {
	if texts == nil {
		texts = messages.Default()
	}
	return &Service{messenger: messenger, topic: topic, texts: texts}
}

// Enabled reports whether alerts are actually delivered.
func (s *Service) Enabled() bool {
	return s.messenger != nil && s.topic != ""
}

// SyncFailed alerts that a sync run ended in failure.
func (s *Service) SyncFailed(ctx context.Context, configID int64, configName, runID, errMsg string) {
	title, body := s.texts.SyncFailed.Render(map[string]string{"config": configName, "error": errMsg})
	s.send(ctx, Alert{
		Kind:  KindSyncFailed,
		Title: title,
		Body:  body,
		Data: map[string]string{
			"syncConfigId": fmt.Sprint(configID),
			"syncRunId":    runID,
		},
	})
}

// DuplicateAccount alerts that a newly seen account looks like an existing one
// and is waiting for a merge.
func (s *Service) DuplicateAccount(ctx context.Context, accountID, accountName string) {
	title, body := s.texts.DuplicateAccount.Render(map[string]string{"account": accountName})
	s.send(ctx, Alert{
		Kind:  KindDuplicateAccount,
		Title: title,
		Body:  body,
		Data:  map[string]string{"accountId": accountID},
	})
}

// send never fails the caller; delivery problems are logged.
func (s *Service) send(ctx context.Context, a Alert) {
	if !s.Enabled() {
		log.Printf("Notification (not delivered): %s: %s", a.Title, a.Body)
		return
	}
	if err := s.messenger.SendToTopic(ctx, s.topic, a.Title, a.Body, a.payload()); err != nil {
		log.Printf("Warning: failed to send %s notification: %v", a.Kind, err)
	}
}
