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

package secrets

import (
	"context"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeAccessor struct {
	payloads  map[string][]byte
	requested []string
}

func (f *fakeAccessor) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.requested = append(f.requested, req.GetName())
	data, ok := f.payloads[req.GetName()]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "Secret [%s] not found or has no versions.", req.GetName())
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    req.GetName(),
		Payload: &secretmanagerpb.SecretPayload{Data: data},
	}, nil
}

const testSecret = `{"field1": "value1", "field2": 2}`

func newFake() *fakeAccessor {
	return &fakeAccessor{payloads: map[string][]byte{
		"projects/my-project/secrets/my-secret/versions/latest": []byte(testSecret),
		"projects/my-project/secrets/broken/versions/latest":    []byte("not json"),
	}}
}

func TestVersionURI(t *testing.T) {
	assert.Equal(t, "projects/p/secrets/s/versions/latest", VersionURI("p", "s", ""))
	assert.Equal(t, "projects/p/secrets/s/versions/3", VersionURI("p", "s", "3"))
}

func TestGetPlaintext(t *testing.T) {
	fake := newFake()

	text, err := GetString(context.Background(), fake, "my-project", "my-secret")
	require.NoError(t, err)
	assert.Equal(t, testSecret, text)

	data, err := GetByURI(context.Background(), fake, "projects/my-project/secrets/my-secret/versions/latest")
	require.NoError(t, err)
	assert.Equal(t, []byte(testSecret), data)

	assert.Equal(t, []string{
		"projects/my-project/secrets/my-secret/versions/latest",
		"projects/my-project/secrets/my-secret/versions/latest",
	}, fake.requested)
}

func TestGetJSON(t *testing.T) {
	fake := newFake()

	got, err := Get(context.Background(), fake, "my-project", "my-secret")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"field1": "value1", "field2": float64(2)}, got)

	var typed struct {
		Field1 string `json:"field1"`
		Field2 int    `json:"field2"`
	}
	require.NoError(t, GetJSON(context.Background(), fake, "my-project", "my-secret", &typed))
	assert.Equal(t, "value1", typed.Field1)
	assert.Equal(t, 2, typed.Field2)
}

func TestGetJSONInvalid(t *testing.T) {
	_, err := Get(context.Background(), newFake(), "my-project", "broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")
}

func TestGetMissingSecretKeepsStatus(t *testing.T) {
	_, err := GetByName(context.Background(), newFake(), "my-project", "absent")
	require.Error(t, err)
	assert.Equal(t, codes.NotFound, status.Code(err))
}
