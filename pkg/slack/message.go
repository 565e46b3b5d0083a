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
	"log/slog"
)

// Message is a titled post with one colored attachment holding either Text
// or one section per entry in Blocks. Title and text may use Slack mrkdwn.
type Message struct {
	Title  string
	Text   string
	Color  string
	Blocks []string
}

type textObject struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type sectionBlock struct {
	Type string     `json:"type"`
	Text textObject `json:"text"`
}

type attachment struct {
	Color  string         `json:"color"`
	Blocks []sectionBlock `json:"blocks"`
}

type payload struct {
	Blocks      []sectionBlock `json:"blocks"`
	Attachments []attachment   `json:"attachments"`
}

func section(text string) sectionBlock {
	return sectionBlock{Type: "section", Text: textObject{Type: "mrkdwn", Text: text}}
}

// truncate cuts s to MaxTextLength runes.
func truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= MaxTextLength {
		return s
	}
	return string(runes[:MaxTextLength]) + "\n..."
}

func (m Message) payload() (payload, error) {
	color := m.Color
	if color == "" {
		color = DefaultColor
	}

	att := attachment{Color: color}
	switch {
	case m.Text != "":
		att.Blocks = []sectionBlock{section(truncate(m.Text))}
	case len(m.Blocks) > 0:
		att.Blocks = make([]sectionBlock, 0, len(m.Blocks))
		for _, b := range m.Blocks {
			att.Blocks = append(att.Blocks, section(truncate(b)))
		}
	default:
		return payload{}, ErrEmptyMessage
	}

	return payload{
		Blocks:      []sectionBlock{section(m.Title)},
		Attachments: []attachment{att},
	}, nil
}

// SendMessage posts msg to webhook, a URL of the form
// https://hooks.slack.com/services/{app_id}/{channel_id}/{hash}.
func (c *Client) SendMessage(ctx context.Context, webhook string, msg Message) error {
	p, err := msg.payload()
	if err != nil {
		return err
	}
	slog.Debug("Sending Slack message", slog.String("title", msg.Title))
	return c.Post(ctx, webhook, p)
}
