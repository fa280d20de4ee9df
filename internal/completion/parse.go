package completion

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Parse strategy names recorded on classification records.
const (
	ParseJSON  = "json"
	ParseLines = "lines"
)

// ErrUnparsable is returned when no strategy recognizes the response.
var ErrUnparsable = errors.New("completion response could not be parsed")

// Response is the parsed completion output. Category fields hold whatever
// the model wrote; they are resolved to codes downstream.
type Response struct {
	IABCategory             string
	IABCode                 string
	IABSubcategory          string
	IABSubcode              string
	IABSecondaryCategory    string
	IABSecondaryCode        string
	IABSecondarySubcategory string
	IABSecondarySubcode     string
	Tone                    string
	Intent                  string
	Audience                string
	Keywords                []string
	BuyingIntent            string
	AdSuggestions           string
}

// Parse tries each strategy in order and returns the first result with at
// least one category field, along with the strategy name.
func Parse(text string) (*Response, string, error) {
	if r, ok := parseJSON(text); ok {
		return r, ParseJSON, nil
	}
	if r, ok := parseLines(text); ok {
		return r, ParseLines, nil
	}
	return nil, "", ErrUnparsable
}

func (r *Response) hasCategory() bool {
	return r.IABCategory != "" || r.IABCode != "" || r.IABSubcategory != "" || r.IABSubcode != "" ||
		r.IABSecondaryCategory != "" || r.IABSecondaryCode != ""
}

// flexString accepts a JSON string, number, bool or null.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*f = ""
	case string:
		*f = flexString(strings.TrimSpace(t))
	case float64:
		*f = flexString(strconv.FormatFloat(t, 'f', -1, 64))
	case bool:
		*f = flexString(strconv.FormatBool(t))
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			if s, ok := p.(string); ok && strings.TrimSpace(s) != "" {
				parts = append(parts, strings.TrimSpace(s))
			}
		}
		*f = flexString(strings.Join(parts, ", "))
	default:
		return fmt.Errorf("unexpected value %s", b)
	}
	return nil
}

// flexList accepts a JSON list of strings or a comma separated string.
type flexList []string

func (f *flexList) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*f = nil
	case string:
		*f = splitList(t)
	case []any:
		out := make([]string, 0, len(t))
		for _, p := range t {
			if s, ok := p.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		*f = out
	default:
		return fmt.Errorf("unexpected keywords value %s", b)
	}
	return nil
}

type jsonResponse struct {
	IABCategory             flexString `json:"iab_category"`
	IABCode                 flexString `json:"iab_code"`
	IABSubcategory          flexString `json:"iab_subcategory"`
	IABSubcode              flexString `json:"iab_subcode"`
	IABSecondaryCategory    flexString `json:"iab_secondary_category"`
	IABSecondaryCode        flexString `json:"iab_secondary_code"`
	IABSecondarySubcategory flexString `json:"iab_secondary_subcategory"`
	IABSecondarySubcode     flexString `json:"iab_secondary_subcode"`
	Tone                    flexString `json:"tone"`
	Intent                  flexString `json:"intent"`
	Audience                flexString `json:"audience"`
	Keywords                flexList   `json:"keywords"`
	BuyingIntent            flexString `json:"buying_intent"`
	AdSuggestions           flexString `json:"ad_suggestions"`
}

func parseJSON(text string) (*Response, bool) {
	obj := firstObject(text)
	if obj == "" {
		return nil, false
	}
	var j jsonResponse
	if err := json.Unmarshal([]byte(obj), &j); err != nil {
		return nil, false
	}
	r := &Response{
		IABCategory:             string(j.IABCategory),
		IABCode:                 string(j.IABCode),
		IABSubcategory:          string(j.IABSubcategory),
		IABSubcode:              string(j.IABSubcode),
		IABSecondaryCategory:    string(j.IABSecondaryCategory),
		IABSecondaryCode:        string(j.IABSecondaryCode),
		IABSecondarySubcategory: string(j.IABSecondarySubcategory),
		IABSecondarySubcode:     string(j.IABSecondarySubcode),
		Tone:                    string(j.Tone),
		Intent:                  string(j.Intent),
		Audience:                string(j.Audience),
		Keywords:                []string(j.Keywords),
		BuyingIntent:            string(j.BuyingIntent),
		AdSuggestions:           string(j.AdSuggestions),
	}
	return r, r.hasCategory()
}

// firstObject returns the first balanced {...} in text, skipping braces
// inside string literals. Code fences around it are irrelevant.
func firstObject(text string) string {
	start := strings.IndexByte(text, '{')
	for start >= 0 {
		depth := 0
		inString, escaped := false, false
		for i := start; i < len(text); i++ {
			c := text[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return text[start : i+1]
				}
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			return ""
		}
		start += next + 1
	}
	return ""
}

var (
	lineRe       = regexp.MustCompile(`^\s*(?:[-*•]\s*)?\**([A-Za-z][A-Za-z /]*?)\**\s*:\s*(.*?)\s*$`)
	labelCodeRe  = regexp.MustCompile(`^\[?\s*(.*?)\s*\(([^()]+)\)\s*\]?$`)
	bracketTrim  = strings.NewReplacer("[", "", "]", "")
	lineSplitter = regexp.MustCompile(`\s*[,;]\s*`)
)

// parseLines reads "Key: value" lines such as "- IAB Category: Sports (ROOT3)".
func parseLines(text string) (*Response, bool) {
	r := &Response{}
	for _, line := range strings.Split(text, "\n") {
		m := lineRe.FindStringSubmatch(line)
		if m == nil || m[2] == "" {
			continue
		}
		key := strings.ToLower(strings.Join(strings.Fields(m[1]), " "))
		val := m[2]
		switch key {
		case "iab category", "category", "primary category":
			r.IABCategory, r.IABCode = labelAndCode(val)
		case "iab subcategory", "subcategory":
			r.IABSubcategory, r.IABSubcode = labelAndCode(val)
		case "secondary iab category", "secondary category":
			r.IABSecondaryCategory, r.IABSecondaryCode = labelAndCode(val)
		case "secondary iab subcategory", "secondary subcategory":
			r.IABSecondarySubcategory, r.IABSecondarySubcode = labelAndCode(val)
		case "tone":
			r.Tone = unbracket(val)
		case "user intent", "intent":
			r.Intent = unbracket(val)
		case "audience":
			r.Audience = unbracket(val)
		case "keywords":
			r.Keywords = splitList(unbracket(val))
		case "buying intent score", "buying intent":
			r.BuyingIntent = unbracket(val)
		case "suggested ad campaign types", "ad suggestions":
			r.AdSuggestions = unbracket(val)
		}
	}
	return r, r.hasCategory()
}

// labelAndCode splits "Label (CODE)"; text without a parenthesized part is
// returned as the label.
func labelAndCode(v string) (label, code string) {
	v = strings.TrimSpace(v)
	if m := labelCodeRe.FindStringSubmatch(v); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	return unbracket(v), ""
}

func unbracket(v string) string {
	return strings.TrimSpace(bracketTrim.Replace(v))
}

func splitList(s string) []string {
	var out []string
	for _, p := range lineSplitter.Split(strings.TrimSpace(s), -1) {
		p = strings.Trim(strings.TrimSpace(p), `"'`)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
