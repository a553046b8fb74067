package transliterate

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxTextLength is the longest accepted input, in characters after trimming.
const MaxTextLength = 200

// Result is the fixed response shape.
type Result struct {
	Arabic        string `json:"arabic"`
	Pronunciation string `json:"pronunciation"`
}

// ParseRequest extracts and validates the "text" field of a request body.
//
// The body must be valid JSON. A non-object body, or an object whose text
// is missing or not a string, is treated as missing text. The text is
// trimmed and NFC-normalized before its length is checked, so composed and
// decomposed spellings of a name count the same.
func ParseRequest(body []byte) (string, error) {
	if !json.Valid(body) {
		return "", badRequest(MsgInvalidJSON)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", badRequest(MsgMissingText)
	}
	raw, ok := fields["text"]
	if !ok {
		return "", badRequest(MsgMissingText)
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return "", badRequest(MsgMissingText)
	}
	return Clean(text)
}

// Clean trims and NFC-normalizes text and enforces the length limit.
func Clean(text string) (string, error) {
	text = norm.NFC.String(strings.TrimSpace(text))
	if text == "" {
		return "", badRequest(MsgMissingText)
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return "", badRequest(MsgTextTooLong)
	}
	return text, nil
}

// BuildPrompt embeds text in the fixed instruction sent upstream.
func BuildPrompt(text string) string {
	return "Transliterate the following English personal name(s) into Arabic script.\n" +
		"Return strict JSON only, no extra text, with keys: arabic (string), pronunciation (string).\n" +
		"Follow Arabic phonetics (kh=خ, gh=غ, sh=ش, th(thing)=ث, th(this)=ذ, j=ج, ch=تش, q=ق).\n" +
		"Keep spacing between first/middle/last names.\n" +
		`Input: "` + text + `"`
}

// normalize decodes the model's own JSON answer. Anything unparseable, and
// any non-string field, yields empty strings.
func normalize(raw string) Result {
	var answer map[string]any
	if err := json.Unmarshal([]byte(raw), &answer); err != nil {
		return Result{}
	}
	var res Result
	if s, ok := answer["arabic"].(string); ok {
		res.Arabic = s
	}
	if s, ok := answer["pronunciation"].(string); ok {
		res.Pronunciation = s
	}
	return res
}
