package gmailapi

import (
	"context"
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	"github.com/cloudidian/mailsort/internal/model"
)

// fakeAPI is a scriptable in-memory Gmail backend.
type fakeAPI struct {
	messages map[string]*gmail.Message
	labels   []*gmail.Label

	pages     [][]string
	listCalls int
	listErrs  []error

	getErrs map[string][]error

	createCalls int
	createErr   error

	modified  map[string][]string
	modifyErr error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		messages: make(map[string]*gmail.Message),
		getErrs:  make(map[string][]error),
		modified: make(map[string][]string),
	}
}

func (f *fakeAPI) listMessages(_ context.Context, _, pageToken string, _ int64) (*gmail.ListMessagesResponse, error) {
	call := f.listCalls
	f.listCalls++
	if call < len(f.listErrs) && f.listErrs[call] != nil {
		return nil, f.listErrs[call]
	}

	page := 0
	if pageToken != "" {
		fmt.Sscanf(pageToken, "page-%d", &page)
	}
	if page >= len(f.pages) {
		return &gmail.ListMessagesResponse{}, nil
	}
	resp := &gmail.ListMessagesResponse{}
	for _, id := range f.pages[page] {
		resp.Messages = append(resp.Messages, &gmail.Message{Id: id})
	}
	if page+1 < len(f.pages) {
		resp.NextPageToken = fmt.Sprintf("page-%d", page+1)
	}
	return resp, nil
}

func (f *fakeAPI) getMessage(_ context.Context, id string) (*gmail.Message, error) {
	if errs := f.getErrs[id]; len(errs) > 0 {
		err := errs[0]
		f.getErrs[id] = errs[1:]
		if err != nil {
			return nil, err
		}
	}
	msg, ok := f.messages[id]
	if !ok {
		return nil, &googleapi.Error{Code: 404}
	}
	return msg, nil
}

func (f *fakeAPI) listLabels(_ context.Context) (*gmail.ListLabelsResponse, error) {
	return &gmail.ListLabelsResponse{Labels: f.labels}, nil
}

func (f *fakeAPI) createLabel(_ context.Context, label *gmail.Label) (*gmail.Label, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	created := &gmail.Label{Id: fmt.Sprintf("Label_%d", f.createCalls), Name: label.Name}
	f.labels = append(f.labels, created)
	return created, nil
}

func (f *fakeAPI) modifyMessage(_ context.Context, id string, req *gmail.ModifyMessageRequest) error {
	if f.modifyErr != nil {
		return f.modifyErr
	}
	f.modified[id] = append(f.modified[id], req.AddLabelIds...)
	return nil
}

func testService(f *fakeAPI, opts ...Option) *Service {
	base := []Option{
		WithPageDelay(0),
		WithRetryBackoff(time.Millisecond, time.Millisecond),
	}
	return newService(f, rate.NewLimiter(rate.Inf, 1), append(base, opts...)...)
}

func pageOf(prefix string, n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s-%d", prefix, i)
	}
	return ids
}

func TestListPaginatesAcrossPages(t *testing.T) {
	f := newFakeAPI()
	f.pages = [][]string{pageOf("a", 100), pageOf("b", 100), pageOf("c", 50)}

	svc := testService(f)
	ids, err := svc.List(context.Background(), model.ScopeAll, 500)

	require.NoError(t, err)
	assert.Len(t, ids, 250)
	assert.Equal(t, "a-0", ids[0])
	assert.Equal(t, "c-49", ids[249])
	assert.Equal(t, 3, f.listCalls)
}

func TestListTruncatesToMaxResults(t *testing.T) {
	f := newFakeAPI()
	f.pages = [][]string{pageOf("a", 100), pageOf("b", 100)}

	svc := testService(f)
	ids, err := svc.List(context.Background(), model.ScopeAll, 150)

	require.NoError(t, err)
	assert.Len(t, ids, 150)
	// The second page request asks for only the remaining 50, and no
	// third request is made.
	assert.Equal(t, 2, f.listCalls)
}

func TestListRetriesTransientErrors(t *testing.T) {
	f := newFakeAPI()
	f.pages = [][]string{{"m-1"}}
	f.listErrs = []error{
		&googleapi.Error{Code: 503},
		&googleapi.Error{Code: 429},
	}

	svc := testService(f)
	ids, err := svc.List(context.Background(), model.ScopeUnread, 10)

	require.NoError(t, err)
	assert.Equal(t, []string{"m-1"}, ids)
	assert.Equal(t, 3, f.listCalls)
}

func TestListGivesUpAfterThreeAttempts(t *testing.T) {
	f := newFakeAPI()
	f.pages = [][]string{{"m-1"}}
	f.listErrs = []error{
		&googleapi.Error{Code: 503},
		&googleapi.Error{Code: 503},
		&googleapi.Error{Code: 503},
	}

	svc := testService(f)
	_, err := svc.List(context.Background(), model.ScopeUnread, 10)

	require.Error(t, err)
	assert.Equal(t, 3, f.listCalls)
}

func TestListDoesNotRetryPermanentErrors(t *testing.T) {
	f := newFakeAPI()
	f.pages = [][]string{{"m-1"}}
	f.listErrs = []error{&googleapi.Error{Code: 400}}

	svc := testService(f)
	_, err := svc.List(context.Background(), model.ScopeUnread, 10)

	require.Error(t, err)
	assert.Equal(t, 1, f.listCalls)
}

func TestBuildQuery(t *testing.T) {
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	svc := testService(newFakeAPI(), WithClock(func() time.Time { return now }))

	tests := []struct {
		scope model.EmailScope
		want  string
	}{
		{model.ScopeUnread, "is:unread"},
		{model.ScopeInbox, "in:inbox"},
		{model.ScopeRecent, "after:2025/03/08"},
		{model.ScopeAll, ""},
	}
	for _, tt := range tests {
		t.Run(string(tt.scope), func(t *testing.T) {
			assert.Equal(t, tt.want, svc.buildQuery(tt.scope))
		})
	}
}

func encodeBody(s string) *gmail.MessagePartBody {
	return &gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte(s))}
}

func TestDetailExtractsFields(t *testing.T) {
	f := newFakeAPI()
	f.messages["m-1"] = &gmail.Message{
		Id:       "m-1",
		Snippet:  "snippet text",
		LabelIds: []string{"INBOX", "UNREAD"},
		Payload: &gmail.MessagePart{
			Headers: []*gmail.MessagePartHeader{
				{Name: "subject", Value: "Quarterly report"},
				{Name: "From", Value: "boss@example.com"},
			},
			Body: encodeBody("please review the attached deck"),
		},
	}

	svc := testService(f)
	detail, err := svc.Detail(context.Background(), "m-1")

	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, "Quarterly report", detail.Subject)
	assert.Equal(t, "boss@example.com", detail.Sender)
	assert.Equal(t, "please review the attached deck", detail.Body)
	assert.Equal(t, []string{"INBOX", "UNREAD"}, detail.LabelIDs)
}

func TestDetailMultipartPrefersPlainText(t *testing.T) {
	f := newFakeAPI()
	f.messages["m-1"] = &gmail.Message{
		Id: "m-1",
		Payload: &gmail.MessagePart{
			MimeType: "multipart/alternative",
			Parts: []*gmail.MessagePart{
				{MimeType: "text/html", Body: encodeBody("<p>html body</p>")},
				{MimeType: "text/plain; charset=utf-8", Body: encodeBody("plain body")},
			},
		},
	}

	svc := testService(f)
	detail, err := svc.Detail(context.Background(), "m-1")

	require.NoError(t, err)
	assert.Equal(t, "plain body", detail.Body)
}

func TestDetailNestedMultipart(t *testing.T) {
	f := newFakeAPI()
	f.messages["m-1"] = &gmail.Message{
		Id: "m-1",
		Payload: &gmail.MessagePart{
			MimeType: "multipart/mixed",
			Parts: []*gmail.MessagePart{
				{
					MimeType: "multipart/alternative",
					Parts: []*gmail.MessagePart{
						{MimeType: "text/plain", Body: encodeBody("nested plain")},
					},
				},
				{MimeType: "application/pdf", Body: &gmail.MessagePartBody{AttachmentId: "att-1"}},
			},
		},
	}

	svc := testService(f)
	detail, err := svc.Detail(context.Background(), "m-1")

	require.NoError(t, err)
	assert.Equal(t, "nested plain", detail.Body)
}

func TestDetailBodyWalkIsDocumentOrder(t *testing.T) {
	// A text/plain part nested inside an earlier sibling wins over a
	// text/plain part appearing later at the top level.
	f := newFakeAPI()
	f.messages["m-1"] = &gmail.Message{
		Id: "m-1",
		Payload: &gmail.MessagePart{
			MimeType: "multipart/mixed",
			Parts: []*gmail.MessagePart{
				{
					MimeType: "multipart/alternative",
					Parts: []*gmail.MessagePart{
						{MimeType: "text/plain", Body: encodeBody("nested first")},
					},
				},
				{MimeType: "text/plain", Body: encodeBody("sibling later")},
			},
		},
	}

	svc := testService(f)
	detail, err := svc.Detail(context.Background(), "m-1")

	require.NoError(t, err)
	assert.Equal(t, "nested first", detail.Body)
}

func TestDetailAbsentMessage(t *testing.T) {
	svc := testService(newFakeAPI())

	detail, err := svc.Detail(context.Background(), "gone")

	require.NoError(t, err)
	assert.Nil(t, detail)
}

func TestDetailRetriesThenSucceeds(t *testing.T) {
	f := newFakeAPI()
	f.messages["m-1"] = &gmail.Message{Id: "m-1", Snippet: "hi"}
	f.getErrs["m-1"] = []error{&googleapi.Error{Code: 500}}

	svc := testService(f)
	detail, err := svc.Detail(context.Background(), "m-1")

	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, "hi", detail.Snippet)
}

func TestResolveOrCreateFindsExistingCaseInsensitive(t *testing.T) {
	f := newFakeAPI()
	f.labels = []*gmail.Label{{Id: "Label_7", Name: "cloudidian/work"}}

	m := testService(f).NewLabelManager()
	id, err := m.ResolveOrCreate(context.Background(), "Cloudidian/Work")

	require.NoError(t, err)
	assert.Equal(t, "Label_7", id)
	assert.Zero(t, f.createCalls)
}

func TestResolveOrCreateCreatesOnce(t *testing.T) {
	f := newFakeAPI()
	m := testService(f).NewLabelManager()

	id1, err := m.ResolveOrCreate(context.Background(), "Cloudidian/Finance")
	require.NoError(t, err)
	id2, err := m.ResolveOrCreate(context.Background(), "Cloudidian/Finance")
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, f.createCalls)
}

func TestApply(t *testing.T) {
	f := newFakeAPI()
	m := testService(f).NewLabelManager()

	assert.True(t, m.Apply(context.Background(), "m-1", "Label_1"))
	assert.Equal(t, []string{"Label_1"}, f.modified["m-1"])

	f.modifyErr = &googleapi.Error{Code: 400}
	assert.False(t, m.Apply(context.Background(), "m-2", "Label_1"))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(&googleapi.Error{Code: 429}))
	assert.True(t, IsTransient(&googleapi.Error{Code: 503}))
	assert.True(t, IsTransient(&googleapi.Error{
		Code:   403,
		Errors: []googleapi.ErrorItem{{Reason: "rateLimitExceeded"}},
	}))
	assert.False(t, IsTransient(&googleapi.Error{Code: 403}))
	assert.False(t, IsTransient(&googleapi.Error{Code: 404}))
	assert.False(t, IsTransient(fmt.Errorf("boom")))
}
