package feishu

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"

	"github.com/botdeck/botdeck/internal/biz/domain"
)

// toMessageEvent flattens a receive event. Messages sent by an app are
// attributed to selfID so the router's self filter applies. Non-text
// message types are skipped.
func toMessageEvent(event *larkim.P2MessageReceiveV1, selfID string) (*domain.MessageEvent, bool) {
	if event == nil || event.Event == nil || event.Event.Message == nil {
		return nil, false
	}
	raw := event.Event.Message
	if raw.ChatId == nil || raw.MessageType == nil || raw.Content == nil {
		return nil, false
	}

	mentions := make(map[string]string)
	for _, m := range raw.Mentions {
		if m != nil && m.Key != nil && m.Name != nil {
			mentions[*m.Key] = *m.Name
		}
	}

	var body string
	switch *raw.MessageType {
	case "text":
		body = parseTextContent(*raw.Content, mentions)
	case "post":
		body = parsePostContent(*raw.Content, mentions)
	default:
		return nil, false
	}

	ev := &domain.MessageEvent{
		ThreadID:  *raw.ChatId,
		Body:      body,
		Timestamp: time.Now(),
	}
	if raw.MessageId != nil {
		ev.MessageID = *raw.MessageId
	}
	if raw.ChatType != nil {
		ev.IsGroup = *raw.ChatType == "group"
	}
	if raw.CreateTime != nil {
		if ms, err := strconv.ParseInt(*raw.CreateTime, 10, 64); err == nil {
			ev.Timestamp = time.UnixMilli(ms)
		}
	}

	if s := event.Event.Sender; s != nil {
		if s.SenderId != nil && s.SenderId.OpenId != nil {
			ev.SenderID = *s.SenderId.OpenId
		}
		if s.SenderType != nil && *s.SenderType == "app" {
			ev.SenderID = selfID
		}
	}
	return ev, true
}

// parseTextContent extracts the text of a text message and replaces
// mention placeholders (@_user_1) with names
func parseTextContent(content string, mentions map[string]string) string {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}
	return replaceMentions(parsed.Text, mentions)
}

// parsePostContent flattens a rich text message to plain lines
func parsePostContent(content string, mentions map[string]string) string {
	var parsed struct {
		Title   string `json:"title"`
		Content [][]struct {
			Tag    string `json:"tag"`
			Text   string `json:"text,omitempty"`
			UserID string `json:"user_id,omitempty"`
		} `json:"content"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}

	var lines []string
	if parsed.Title != "" {
		lines = append(lines, parsed.Title)
	}
	for _, line := range parsed.Content {
		var b strings.Builder
		for _, elem := range line {
			switch elem.Tag {
			case "text":
				b.WriteString(elem.Text)
			case "at":
				if name, ok := mentions[elem.UserID]; ok {
					b.WriteString("@" + name)
				} else if elem.UserID != "" {
					b.WriteString("@" + elem.UserID)
				}
			}
		}
		if b.Len() > 0 {
			lines = append(lines, b.String())
		}
	}
	return replaceMentions(strings.Join(lines, "\n"), mentions)
}

func replaceMentions(text string, mentions map[string]string) string {
	for key, name := range mentions {
		text = strings.ReplaceAll(text, key, "@"+name)
	}
	return text
}
