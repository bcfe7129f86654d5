package jobs

import (
	"context"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/cloudidian/mailsort/internal/gmailapi"
	"github.com/cloudidian/mailsort/internal/model"
)

// TokenSourcer hands out refreshing OAuth token sources per user.
// Implemented by auth.CredentialProvider.
type TokenSourcer interface {
	TokenSource(ctx context.Context, userID string) (oauth2.TokenSource, error)
}

// GmailOpener opens Gmail-backed mailboxes. All mailboxes share one
// rate limiter so concurrent jobs draw from a single provider quota.
type GmailOpener struct {
	tokens  TokenSourcer
	limiter *rate.Limiter
	opts    []gmailapi.Option
}

// NewGmailOpener builds the opener. The gmailapi options are applied
// to every service it opens.
func NewGmailOpener(tokens TokenSourcer, limiter *rate.Limiter, opts ...gmailapi.Option) *GmailOpener {
	return &GmailOpener{tokens: tokens, limiter: limiter, opts: opts}
}

// Open resolves the user's credentials into a live mailbox.
func (o *GmailOpener) Open(ctx context.Context, userID string) (Mailbox, error) {
	ts, err := o.tokens.TokenSource(ctx, userID)
	if err != nil {
		return nil, err
	}
	svc, err := gmailapi.NewService(ctx, ts, o.limiter, o.opts...)
	if err != nil {
		return nil, err
	}
	return &gmailMailbox{svc: svc}, nil
}

// gmailMailbox adapts gmailapi.Service to the Mailbox interface.
type gmailMailbox struct {
	svc *gmailapi.Service
}

func (m *gmailMailbox) List(ctx context.Context, scope model.EmailScope, maxResults int) ([]string, error) {
	return m.svc.List(ctx, scope, maxResults)
}

func (m *gmailMailbox) Detail(ctx context.Context, id string) (*gmailapi.MessageDetail, error) {
	return m.svc.Detail(ctx, id)
}

func (m *gmailMailbox) NewLabelManager() LabelApplier {
	return m.svc.NewLabelManager()
}
