package gmailapi

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/cloudidian/mailsort/internal/logging"
	"github.com/cloudidian/mailsort/internal/model"
)

// MessageDetail is the classification-relevant view of one message.
type MessageDetail struct {
	ID       string
	Subject  string
	Sender   string
	Snippet  string
	Body     string
	LabelIDs []string
}

// buildQuery maps an email scope onto a Gmail search query. The recent
// scope covers the last seven days relative to the service clock.
func (s *Service) buildQuery(scope model.EmailScope) string {
	switch scope {
	case model.ScopeUnread:
		return "is:unread"
	case model.ScopeInbox:
		return "in:inbox"
	case model.ScopeRecent:
		cutoff := s.now().AddDate(0, 0, -7)
		return "after:" + cutoff.Format("2006/01/02")
	default:
		return ""
	}
}

// List returns up to maxResults message ids matching the scope, oldest
// pagination order preserved as the provider returns it. Paging stops
// when the provider runs out of results or the cap is reached.
func (s *Service) List(ctx context.Context, scope model.EmailScope, maxResults int) ([]string, error) {
	query := s.buildQuery(scope)
	ids := make([]string, 0, maxResults)
	pageToken := ""

	for len(ids) < maxResults {
		remaining := int64(maxResults - len(ids))
		size := s.pageSize
		if remaining < size {
			size = remaining
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		start := time.Now()
		resp, err := retryCall(ctx, s, func() (*gmail.ListMessagesResponse, error) {
			return s.api.listMessages(ctx, query, pageToken, size)
		})
		s.record(ctx, "messages.list", start, err)
		if err != nil {
			return nil, fmt.Errorf("listing messages: %w", err)
		}

		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
			if len(ids) == maxResults {
				break
			}
		}

		pageToken = resp.NextPageToken
		if pageToken == "" || len(ids) >= maxResults {
			break
		}
		if s.pageDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.pageDelay):
			}
		}
	}

	s.logger.Debug("listed messages",
		logging.Operation("messages.list"),
		slog.String(logging.KeyScope, string(scope)),
		slog.Int("count", len(ids)))
	return ids, nil
}

// Detail fetches the full message and extracts the fields needed for
// classification. A message deleted between listing and fetching is
// reported as absent with a nil detail, not as an error.
func (s *Service) Detail(ctx context.Context, id string) (*MessageDetail, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	msg, err := retryCall(ctx, s, func() (*gmail.Message, error) {
		return s.api.getMessage(ctx, id)
	})
	s.record(ctx, "messages.get", start, err)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching message %s: %w", id, err)
	}

	detail := &MessageDetail{
		ID:       msg.Id,
		Snippet:  msg.Snippet,
		LabelIDs: msg.LabelIds,
	}
	if msg.Payload != nil {
		detail.Subject = headerValue(msg.Payload.Headers, "Subject")
		detail.Sender = headerValue(msg.Payload.Headers, "From")
		detail.Body = extractBody(msg.Payload)
	}
	return detail, nil
}

// headerValue returns the first header with the given name, matched
// case-insensitively per RFC 5322.
func headerValue(headers []*gmail.MessagePartHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}
