// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cloud.google.com/go/functions/metadata"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/cardinalhq/gcputil/pkg/slack"
)

var eventTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func eventContext() context.Context {
	return metadata.NewContext(context.Background(), &metadata.Metadata{
		EventID:   "evt-1",
		Timestamp: eventTime,
	})
}

type recordingAlerter struct {
	calls     int
	now, when time.Time
	err       error
}

func (r *recordingAlerter) SendFailAlert(_ context.Context, now, eventTime time.Time) error {
	r.calls++
	r.now, r.when = now, eventTime
	return r.err
}

func TestMessageDecodesBase64(t *testing.T) {
	var msg Message
	require.NoError(t, json.Unmarshal([]byte(`{"data":"aGVsbG8="}`), &msg))
	assert.Equal(t, "hello", string(msg.Data))
}

func TestProcessTriggerFresh(t *testing.T) {
	alerter := &recordingAlerter{}
	payload, err := ProcessTrigger(eventContext(), Message{Data: []byte("hello")}, TriggerOptions{
		Alerter: alerter,
		Now:     func() time.Time { return eventTime.Add(10 * time.Minute) },
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", string(payload))
	assert.Zero(t, alerter.calls)
}

func TestProcessTriggerEmptyPayload(t *testing.T) {
	payload, err := ProcessTrigger(eventContext(), Message{}, TriggerOptions{
		Now: func() time.Time { return eventTime },
	})
	require.NoError(t, err)
	assert.Nil(t, payload)
}

func TestProcessTriggerExpired(t *testing.T) {
	alerter := &recordingAlerter{err: errors.New("slack down")}
	now := eventTime.Add(31 * time.Minute)
	payload, err := ProcessTrigger(eventContext(), Message{Data: []byte("x")}, TriggerOptions{
		Alerter: alerter,
		Now:     func() time.Time { return now },
	})
	assert.Nil(t, payload)

	var expired *TriggerExpiredError
	require.ErrorAs(t, err, &expired)
	assert.Equal(t, "evt-1", expired.EventID)
	assert.Equal(t, DefaultTriggerTimeout, expired.Timeout)
	assert.Equal(t, 31*time.Minute, expired.Lapsed)

	assert.Equal(t, 1, alerter.calls)
	assert.Equal(t, now, alerter.now)
	assert.Equal(t, eventTime, alerter.when)
}

func TestProcessTriggerCustomTimeout(t *testing.T) {
	_, err := ProcessTrigger(eventContext(), Message{}, TriggerOptions{
		Timeout: time.Minute,
		Now:     func() time.Time { return eventTime.Add(2 * time.Minute) },
	})
	var expired *TriggerExpiredError
	assert.ErrorAs(t, err, &expired)
}

func TestProcessTriggerNoMetadata(t *testing.T) {
	_, err := ProcessTrigger(context.Background(), Message{}, TriggerOptions{})
	assert.Error(t, err)
}

func TestRetriggerSelf(t *testing.T) {
	srv, client := newFakePubSub(t, "loop")
	p := NewPublisher(client)
	t.Setenv("MY_PROJECT", "test-project")
	t.Setenv("MY_TOPIC", "loop")

	out, err := RetriggerSelf(context.Background(), p, "next", TriggerEnv{ProjectVar: "MY_PROJECT", TopicVar: "MY_TOPIC"})
	require.NoError(t, err)
	assert.False(t, out.Awaited)

	p.Stop()
	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "next", string(msgs[0].Data))
}

type secretStore map[string]string

func (s secretStore) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	v, ok := s[req.GetName()]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "secret %s not found", req.GetName())
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    req.GetName(),
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(v)},
	}, nil
}

func TestSecretWebhookAlerter(t *testing.T) {
	var body []byte
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()

	uri := "projects/host/secrets/alert-hook/versions/latest"
	t.Setenv(DefaultWebhookURIVar, uri)
	alerter := &SecretWebhookAlerter{
		Secrets: secretStore{uri: `{"hook":"` + hook.URL + `"}`},
		Slack:   slack.NewClient(),
		Env: slack.Environment{Getenv: func(k string) string {
			return map[string]string{"K_SERVICE": "worker", "_GOOGLE_PROJECT": "proj"}[k]
		}},
	}

	err := alerter.SendFailAlert(context.Background(), eventTime.Add(time.Hour), eventTime)
	require.NoError(t, err)
	assert.Contains(t, string(body), "`worker` exceeded its retry threshold in `proj`")
}

func TestSecretWebhookAlerterMissingVar(t *testing.T) {
	t.Setenv(DefaultWebhookURIVar, "")
	alerter := &SecretWebhookAlerter{Secrets: secretStore{}, Slack: slack.NewClient()}
	assert.Error(t, alerter.SendFailAlert(context.Background(), eventTime, eventTime))
}

func TestSecretWebhookAlerterMissingSecret(t *testing.T) {
	t.Setenv(DefaultWebhookURIVar, "projects/host/secrets/nope/versions/latest")
	alerter := &SecretWebhookAlerter{Secrets: secretStore{}, Slack: slack.NewClient()}
	err := alerter.SendFailAlert(context.Background(), eventTime, eventTime)
	assert.Equal(t, codes.NotFound, status.Code(errors.Unwrap(err)))
}
