package ai

import (
	"bytes"
	"strings"

	"github.com/tidwall/gjson"
)

// replyKeys are the object keys a reply is looked up under, in order.
var replyKeys = []string{"reply", "textResponse", "text", "output", "message"}

const (
	nestedKey       = "data"
	maxExtractDepth = 4
)

// ExtractReply pulls the reply text out of a webhook response body. Bodies
// that are not JSON are taken as plain text.
func ExtractReply(body []byte) (string, bool) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return "", false
	}
	if !gjson.ValidBytes(body) {
		text := strings.TrimSpace(string(body))
		return text, text != ""
	}
	return Extract(gjson.ParseBytes(body))
}

// Extract applies the reply strategies in order: a plain string, a known key,
// the same lookups nested under "data", then the first element of an array.
func Extract(value gjson.Result) (string, bool) {
	return extract(value, 0)
}

func extract(value gjson.Result, depth int) (string, bool) {
	if depth > maxExtractDepth || !value.Exists() {
		return "", false
	}

	switch {
	case value.Type == gjson.String:
		text := strings.TrimSpace(value.String())
		return text, text != ""

	case value.IsObject():
		for _, key := range replyKeys {
			field := value.Get(key)
			if field.Type != gjson.String {
				continue
			}
			if text := strings.TrimSpace(field.String()); text != "" {
				return text, true
			}
		}
		if nested := value.Get(nestedKey); nested.Exists() {
			return extract(nested, depth+1)
		}

	case value.IsArray():
		items := value.Array()
		if len(items) > 0 {
			return extract(items[0], depth+1)
		}
	}

	return "", false
}
