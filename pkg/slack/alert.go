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

package slack

import (
	"context"
	"fmt"
	"os"
	"time"
)

// DefaultProjectVar holds the GCP project of a deployed function.
const DefaultProjectVar = "_GOOGLE_PROJECT"

const unknownFunction = "UNKNOWN (running locally?)"

// Environment describes the Cloud Function an alert is about.
type Environment struct {
	// ProjectVar names the variable holding the project ID.
	ProjectVar string
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

func (e Environment) getenv(key string) string {
	if e.Getenv != nil {
		return e.Getenv(key)
	}
	return os.Getenv(key)
}

// FunctionName is K_SERVICE, falling back to FUNCTION_NAME for older runtimes.
func (e Environment) FunctionName() string {
	if name := e.getenv("K_SERVICE"); name != "" {
		return name
	}
	if name := e.getenv("FUNCTION_NAME"); name != "" {
		return name
	}
	return unknownFunction
}

// Project returns the project ID from ProjectVar.
func (e Environment) Project() string {
	v := e.ProjectVar
	if v == "" {
		v = DefaultProjectVar
	}
	return e.getenv(v)
}

// SendError reports an error that did not necessarily crash the function.
func (c *Client) SendError(ctx context.Context, webhook, message string, env Environment) error {
	title := fmt.Sprintf(":exclamation: *Cloud Function Encountered Error* :exclamation: @here\n"+
		"\t- *Project*: `%s`\n\t- *Function*: `%s`", env.Project(), env.FunctionName())
	return c.SendMessage(ctx, webhook, Message{Title: title, Text: message, Color: AlertColor})
}

// SendFailAlert reports a function that gave up retrying, linking to its
// logs between eventTime and now.
func (c *Client) SendFailAlert(ctx context.Context, webhook string, now, eventTime time.Time, env Environment) error {
	name := env.FunctionName()
	project := env.Project()
	text := fmt.Sprintf("`%s` exceeded its retry threshold in `%s`\nSee logs here: <%s|Logs Explorer>",
		name, project, LogsURL(name, project, eventTime, now))
	return c.SendMessage(ctx, webhook, Message{
		Title: ":exclamation: *Cloud Function Failed* :exclamation: @here",
		Text:  text,
		Color: AlertColor,
	})
}

// LogsURL links to Logs Explorer filtered to a function and time window.
func LogsURL(function, project string, from, to time.Time) string {
	const layout = "20060102T150405Z"
	return "https://console.cloud.google.com/logs/query;query=" +
		"resource.type%3D%22cloud_function%22%0A" +
		"resource.labels.function_name%3D%22" + function + "%22;" +
		"timeRange=" + from.UTC().Format(layout) + "%2F" + to.UTC().Format(layout) +
		"?project=" + project
}
