package gmailapi

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/cloudidian/mailsort/internal/logging"
)

// LabelManager resolves category labels to Gmail label ids and applies
// them to messages. The name-to-id cache is scoped to one job run so a
// label deleted mid-run costs at most one failed apply per job.
type LabelManager struct {
	svc   *Service
	cache map[string]string
}

// NewLabelManager creates a job-scoped label manager over svc.
func (s *Service) NewLabelManager() *LabelManager {
	return &LabelManager{svc: s, cache: make(map[string]string)}
}

// ResolveOrCreate returns the id of the label with the given name,
// creating it when no existing label matches. Matching is
// case-insensitive because Gmail rejects duplicate names that differ
// only in case.
func (m *LabelManager) ResolveOrCreate(ctx context.Context, name string) (string, error) {
	key := strings.ToLower(name)
	if id, ok := m.cache[key]; ok {
		return id, nil
	}

	s := m.svc
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}
	start := time.Now()
	resp, err := retryCall(ctx, s, func() (*gmail.ListLabelsResponse, error) {
		return s.api.listLabels(ctx)
	})
	s.record(ctx, "labels.list", start, err)
	if err != nil {
		return "", fmt.Errorf("listing labels: %w", err)
	}
	for _, label := range resp.Labels {
		if strings.EqualFold(label.Name, name) {
			m.cache[key] = label.Id
			return label.Id, nil
		}
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}
	start = time.Now()
	created, err := retryCall(ctx, s, func() (*gmail.Label, error) {
		return s.api.createLabel(ctx, &gmail.Label{
			Name:                  name,
			LabelListVisibility:   "labelShow",
			MessageListVisibility: "show",
		})
	})
	s.record(ctx, "labels.create", start, err)
	if err != nil {
		return "", fmt.Errorf("creating label %q: %w", name, err)
	}

	s.logger.Info("created label",
		logging.Operation("labels.create"),
		slog.String("label", name))
	m.cache[key] = created.Id
	return created.Id, nil
}

// Apply attaches the label to the message and reports whether it took
// effect. Failures are logged and returned as false rather than as an
// error so one bad message never aborts a job.
func (m *LabelManager) Apply(ctx context.Context, messageID, labelID string) bool {
	s := m.svc
	if err := s.limiter.Wait(ctx); err != nil {
		return false
	}
	start := time.Now()
	err := retryCall0(ctx, s, func() error {
		return s.api.modifyMessage(ctx, messageID, &gmail.ModifyMessageRequest{
			AddLabelIds: []string{labelID},
		})
	})
	s.record(ctx, "messages.modify", start, err)
	if err != nil {
		s.logger.Warn("applying label failed",
			logging.Operation("messages.modify"),
			logging.MessageID(messageID),
			logging.Err(err))
		return false
	}
	return true
}

// retryCall0 adapts an error-only operation to retryCall.
func retryCall0(ctx context.Context, s *Service, fn func() error) error {
	_, err := retryCall(ctx, s, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
