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

// Package secrets reads secret versions from Secret Manager.
package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// LatestVersion is the alias for the newest enabled version of a secret.
const LatestVersion = "latest"

var tracer = otel.Tracer("github.com/cardinalhq/gcputil/pkg/secrets")

// Accessor is the part of the Secret Manager client used here.
// *secretmanager.Client implements it.
type Accessor interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
}

// VersionURI formats projects/{project}/secrets/{name}/versions/{version}.
// An empty version means LatestVersion.
func VersionURI(project, name, version string) string {
	if version == "" {
		version = LatestVersion
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/%s", project, name, version)
}

// GetByURI returns the payload of the secret version at uri. The executing
// account needs secret version accessor permission on the secret.
func GetByURI(ctx context.Context, client Accessor, uri string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "secrets.GetByURI", trace.WithAttributes(attribute.String("secret", uri)))
	defer span.End()

	slog.Info("Getting secret", slog.String("uri", uri))
	resp, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: uri})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return resp.GetPayload().GetData(), nil
}

// GetByName returns the payload of the latest version of project's secret name.
func GetByName(ctx context.Context, client Accessor, project, name string) ([]byte, error) {
	return GetByURI(ctx, client, VersionURI(project, name, LatestVersion))
}

// GetString returns the latest version of the secret as text.
func GetString(ctx context.Context, client Accessor, project, name string) (string, error) {
	data, err := GetByName(ctx, client, project, name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GetJSON decodes the latest version of a JSON secret into v.
func GetJSON(ctx context.Context, client Accessor, project, name string, v any) error {
	data, err := GetByName(ctx, client, project, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("secret %s is not valid JSON: %w", VersionURI(project, name, LatestVersion), err)
	}
	return nil
}

// Get returns a JSON object secret as a map.
func Get(ctx context.Context, client Accessor, project, name string) (map[string]any, error) {
	var out map[string]any
	if err := GetJSON(ctx, client, project, name, &out); err != nil {
		return nil, err
	}
	return out, nil
}
