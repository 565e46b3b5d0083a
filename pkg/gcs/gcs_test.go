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

package gcs

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/fsouza/fake-gcs-server/fakestorage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeServer(t *testing.T, objects ...fakestorage.Object) *fakestorage.Server {
	t.Helper()
	server, err := fakestorage.NewServerWithOptions(fakestorage.Options{
		InitialObjects: objects,
		NoListener:     true,
	})
	require.NoError(t, err)
	t.Cleanup(server.Stop)
	return server
}

func TestReadObject(t *testing.T) {
	server := newFakeServer(t, fakestorage.Object{
		ObjectAttrs: fakestorage.ObjectAttrs{BucketName: "reports", Name: "daily/colors.txt"},
		Content:     []byte("my favorite color is blue"),
	})
	client := server.Client()

	data, err := Read(context.Background(), client, "reports", "daily/colors.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("my favorite color is blue"), data)

	text, err := ReadString(context.Background(), client, "reports", "daily/colors.txt")
	require.NoError(t, err)
	assert.Equal(t, "my favorite color is blue", text)
}

func TestReadMissingObject(t *testing.T) {
	server := newFakeServer(t)
	server.CreateBucketWithOpts(fakestorage.CreateBucketOpts{Name: "reports"})

	_, err := Read(context.Background(), server.Client(), "reports", "nope.txt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrObjectNotExist))
	assert.Contains(t, err.Error(), "gs://reports/nope.txt")
}

func TestWriteRoundTrip(t *testing.T) {
	server := newFakeServer(t)
	server.CreateBucketWithOpts(fakestorage.CreateBucketOpts{Name: "uploads"})
	client := server.Client()

	attrs, err := Write(context.Background(), client, "uploads", "notes.txt", []byte("hello"))
	require.NoError(t, err)
	require.NotNil(t, attrs)
	assert.Equal(t, "notes.txt", attrs.Name)
	assert.Equal(t, int64(5), attrs.Size)

	obj, err := server.GetObject("uploads", "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), obj.Content)
	assert.Equal(t, DefaultContentType, obj.ContentType)
}

func TestWriteContentType(t *testing.T) {
	server := newFakeServer(t)
	server.CreateBucketWithOpts(fakestorage.CreateBucketOpts{Name: "uploads"})

	_, err := Write(context.Background(), server.Client(), "uploads", "data.json", []byte(`{"a":1}`),
		WithContentType("application/json"))
	require.NoError(t, err)

	obj, err := server.GetObject("uploads", "data.json")
	require.NoError(t, err)
	assert.Equal(t, "application/json", obj.ContentType)
}

func TestWriteCreatesMissingBucket(t *testing.T) {
	server := newFakeServer(t)
	client := server.Client()

	_, err := Write(context.Background(), client, "fresh-bucket", "a.txt", []byte("x"),
		WithCreateBucket("my-project", ""))
	require.NoError(t, err)

	attrs, err := client.Bucket("fresh-bucket").Attrs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh-bucket", attrs.Name)

	data, err := Read(context.Background(), client, "fresh-bucket", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestCreateBucket(t *testing.T) {
	server := newFakeServer(t)

	attrs, err := CreateBucket(context.Background(), server.Client(), "my-project", "brand-new", "")
	require.NoError(t, err)
	assert.Equal(t, "brand-new", attrs.Name)
}

func TestURI(t *testing.T) {
	assert.Equal(t, "gs://b/path/to/o.json", URI("b", "path/to/o.json"))
}
