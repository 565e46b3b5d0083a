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

// Package gcpauth builds credentials for the Google Cloud clients, including
// service account impersonation.
package gcpauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"
	"google.golang.org/api/impersonate"
	"google.golang.org/api/option"
)

// DefaultScope is broad enough for every API this module talks to.
const DefaultScope = "https://www.googleapis.com/auth/cloud-platform"

// ErrNoAccount is returned when no service account is given to impersonate.
var ErrNoAccount = errors.New("service account email is required")

// Config selects the credentials handed to every client constructor. With
// neither field set, Application Default Credentials are used.
type Config struct {
	// CredentialsFile is a service account key or ADC JSON file.
	CredentialsFile string
	// ImpersonateServiceAccount is the email of the account to act as.
	ImpersonateServiceAccount string
	Scopes                    []string
}

func scopesOrDefault(scopes []string) []string {
	if len(scopes) == 0 {
		return []string{DefaultScope}
	}
	return scopes
}

// TokenSource returns a token source acting as account. The caller needs the
// Service Account Token Creator role on account.
func TokenSource(ctx context.Context, account string, scopes ...string) (oauth2.TokenSource, error) {
	return tokenSource(ctx, account, scopes)
}

func tokenSource(ctx context.Context, account string, scopes []string, opts ...option.ClientOption) (oauth2.TokenSource, error) {
	if account == "" {
		return nil, ErrNoAccount
	}
	slog.Info("Impersonating service account",
		slog.String("account", account),
		slog.Any("scopes", scopesOrDefault(scopes)))
	ts, err := impersonate.CredentialsTokenSource(ctx, impersonate.CredentialsConfig{
		TargetPrincipal: account,
		Scopes:          scopesOrDefault(scopes),
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating impersonated token source: %w", err)
	}
	return ts, nil
}

// AccessToken returns a short lived access token for account.
func AccessToken(ctx context.Context, account string, scopes ...string) (string, error) {
	ts, err := TokenSource(ctx, account, scopes...)
	if err != nil {
		return "", err
	}
	tok, err := ts.Token()
	if err != nil {
		slog.Error("Could not create access token. Ensure the caller has the "+
			"\"Service Account Token Creator\" role on the target account",
			slog.String("account", account),
			slog.Any("error", err))
		return "", err
	}
	return tok.AccessToken, nil
}

// ClientOptions turns cfg into options for storage, bigquery, pubsub and
// secretmanager client constructors.
func ClientOptions(ctx context.Context, cfg Config) ([]option.ClientOption, error) {
	var source []option.ClientOption
	if cfg.CredentialsFile != "" {
		source = append(source, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.ImpersonateServiceAccount == "" {
		return source, nil
	}

	ts, err := tokenSource(ctx, cfg.ImpersonateServiceAccount, cfg.Scopes, source...)
	if err != nil {
		return nil, err
	}
	return []option.ClientOption{option.WithTokenSource(ts)}, nil
}
