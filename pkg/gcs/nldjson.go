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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"cloud.google.com/go/storage"
)

// NLDJSONContentType is the MIME type used for newline-delimited JSON.
const NLDJSONContentType = "application/x-ndjson"

// UploadDateField is the column WriteNLDJSON fills when asked to stamp rows.
const UploadDateField = "upload_date"

var now = time.Now

// ReadNLDJSON reads a newline-delimited JSON object and returns one map per row.
func ReadNLDJSON(ctx context.Context, client *storage.Client, bucket, object string) ([]map[string]any, error) {
	data, err := Read(ctx, client, bucket, object)
	if err != nil {
		return nil, err
	}
	rows, err := DecodeNLDJSON(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", URI(bucket, object), err)
	}
	return rows, nil
}

// WriteNLDJSON encodes rows as newline-delimited JSON, the format BigQuery
// load jobs expect, and uploads it. With addDate every row gets an
// upload_date column holding today's date. The caller's maps are not modified.
func WriteNLDJSON(ctx context.Context, client *storage.Client, bucket, object string, rows []map[string]any, addDate bool, opts ...WriteOption) (*storage.ObjectAttrs, error) {
	data, err := EncodeNLDJSON(rows, addDate)
	if err != nil {
		return nil, err
	}
	opts = append([]WriteOption{WithContentType(NLDJSONContentType)}, opts...)
	return Write(ctx, client, bucket, object, data, opts...)
}

// EncodeNLDJSON renders rows one JSON object per line.
func EncodeNLDJSON(rows []map[string]any, addDate bool) ([]byte, error) {
	slog.Debug("Generating JSON NLD", slog.Int("rows", len(rows)))

	today := now().Format(time.DateOnly)
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, row := range rows {
		if addDate {
			stamped := make(map[string]any, len(row)+1)
			for k, v := range row {
				stamped[k] = v
			}
			stamped[UploadDateField] = today
			row = stamped
		}
		if err := enc.Encode(row); err != nil {
			return nil, fmt.Errorf("encode row %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// DecodeNLDJSON parses newline-delimited JSON. Blank lines are ignored.
func DecodeNLDJSON(data []byte) ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	rows := []map[string]any{}
	for {
		var row map[string]any
		err := dec.Decode(&row)
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", len(rows), err)
		}
		rows = append(rows, row)
	}
}
