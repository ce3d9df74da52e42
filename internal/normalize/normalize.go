// Package normalize turns noisy generator/oracle replies into structured data.
// Upstream models are asked for raw JSON but routinely return markdown fences,
// conversational refusals, citation debris, or lightly corrupted JSON; this
// package either repairs the text or collapses it to "no data". It never
// returns an error and performs no I/O.
package normalize

import (
	"encoding/json"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Replies that do not look like JSON and contain one of these phrases are
// conversational refusals, not data. Matched against the lowercased text.
var refusalPhrases = []string{
	"i am sorry", "i cannot", "unable to find", "could not find",
	"no verifiable matches", "no football matches", "data is not available",
	"not possible to fulfill", "no odds were provided",
	"challenging", "absence of readily available",
	"due to the nature", "unable to provide", "not possible to provide", "as an ai",
	"appropriate response is `null`", "the response will be `null`",
	"based on the available information",
	"ai prediction:",
	"ai rationale:",
}

// Prose longer than this that trails off in "null" is treated as a refusal
// even without a known phrase.
const refusalLengthThreshold = 50

var (
	fenceRe        = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	endsWithNullRe = regexp.MustCompile("`?null`?\\.?\\s*$")

	// Known corruption patterns, applied in order:
	// search-grounding citation markers pasted into the payload,
	citationRe = regexp.MustCompile(`tapped from search result \[\d+(,\s*\d+)*\]`)
	// a stray token wedged between a closing quote and the next delimiter,
	rogueTokenRe = regexp.MustCompile(`"\s+\w+\s*([,}\]])`)
	// an hour:minute:second timestamp with a truncated sub-second fragment,
	truncatedTimeRe = regexp.MustCompile(`(\d{2}:\d{2}:\d{2}):\d{2}(Z)`)
	// and two objects merged without a separator after a timestamp field.
	mergedObjectsRe = regexp.MustCompile(`(Z")\s*\w+\s+(\w+):`)
)

// Clean sanitizes raw reply text into parseable JSON. ok=false means the
// reply explicitly carried no data (literal null or a recognized refusal);
// such replies are not an error.
func Clean(raw string) (text string, ok bool) {
	text = strings.TrimSpace(raw)
	lower := strings.ToLower(text)

	if lower == "null" {
		return "", false
	}

	looksLikeJSON := strings.HasPrefix(lower, "{") || strings.HasPrefix(lower, "[")
	if !looksLikeJSON {
		for _, phrase := range refusalPhrases {
			if strings.Contains(lower, phrase) {
				return "", false
			}
		}
		if len(text) > refusalLengthThreshold && endsWithNullRe.MatchString(lower) {
			return "", false
		}
	}

	if m := fenceRe.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	} else {
		// No fence: drop any preamble before the first object or array.
		objIdx := strings.Index(text, "{")
		arrIdx := strings.Index(text, "[")
		start := objIdx
		if start == -1 || (arrIdx != -1 && arrIdx < start) {
			start = arrIdx
		}
		if start == -1 {
			return "", false
		}
		text = text[start:]
	}

	text = citationRe.ReplaceAllString(text, "")
	text = rogueTokenRe.ReplaceAllString(text, `"$1`)
	text = truncatedTimeRe.ReplaceAllString(text, "$1$2")
	text = mergedObjectsRe.ReplaceAllString(text, `$1}, {"$2":`)

	if strings.EqualFold(strings.TrimSpace(text), "null") {
		return "", false
	}
	return text, true
}

// Decode normalizes raw into *T. raw may already be a structured value
// (passed through unchanged), a string reply, or []byte. Anything that cannot
// be repaired decodes to nil; Decode never panics.
func Decode[T any](raw any, logger *zap.Logger) *T {
	switch v := raw.(type) {
	case nil:
		return nil
	case T:
		return &v
	case *T:
		return v
	case []byte:
		return decodeText[T](string(v), logger)
	case json.RawMessage:
		return decodeText[T](string(v), logger)
	case string:
		return decodeText[T](v, logger)
	default:
		if logger != nil {
			logger.Error("normalize: reply is neither text nor structured",
				zap.Any("reply", raw))
		}
		return nil
	}
}

func decodeText[T any](raw string, logger *zap.Logger) *T {
	text, ok := Clean(raw)
	if !ok {
		return nil
	}
	var out T
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		if logger != nil {
			logger.Error("normalize: unparseable reply",
				zap.Error(err),
				zap.String("original", raw),
				zap.String("sanitized", text))
		}
		return nil
	}
	return &out
}
