package logger

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Field redaction applied by Debug, Info, Warn and Error when RedactPII is
// on. Values are rewritten before they reach the zap core, so every encoder
// sees the masked form.

var (
	emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

	// NAME=value pairs whose name looks like a credential, as found in
	// misdirected config or env files.
	secretAssignRegex = regexp.MustCompile(`(?i)\b([A-Z0-9_]*(?:PASSWORD|SECRET|TOKEN|API_?KEY)[A-Z0-9_]*)=[^\s,;&]+`)
)

func sanitizeKVs(kv []interface{}) []interface{} {
	out := make([]interface{}, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		if i == len(kv)-1 {
			out = append(out, kv[i])
			break
		}
		key := fmt.Sprintf("%v", kv[i])
		out = append(out, key, redactPIIValue(strings.ToLower(key), kv[i+1]))
	}
	return out
}

// redactPIIValue masks one field value. Secret-named keys are dropped
// entirely; strings, errors and string slices have emails, credential
// assignments and signed URL parameters masked.
func redactPIIValue(key string, val interface{}) interface{} {
	if isSecretKey(key) {
		return "[REDACTED]"
	}
	switch v := val.(type) {
	case string:
		return redactString(key, v)
	case error:
		return redactString(key, v.Error())
	case []string:
		out := make([]string, len(v))
		for i, s := range v {
			out[i] = redactString(key, s)
		}
		return out
	default:
		return val
	}
}

func redactString(key, s string) string {
	if strings.Contains(key, "email") {
		return RedactEmail(s)
	}
	if strings.Contains(s, "://") {
		s = RedactURL(s)
	}
	s = secretAssignRegex.ReplaceAllString(s, "$1=[REDACTED]")
	return emailRegex.ReplaceAllStringFunc(s, RedactEmail)
}

func isSecretKey(key string) bool {
	switch {
	case strings.Contains(key, "token"),
		strings.Contains(key, "secret"),
		strings.Contains(key, "password"),
		strings.Contains(key, "api_key"),
		strings.Contains(key, "apikey"),
		strings.Contains(key, "authorization"),
		strings.Contains(key, "signature"):
		return true
	default:
		return false
	}
}

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" → "jo***@example.com"
// Short local parts (≤2 chars) are fully masked: "ab@example.com" → "***@example.com"
func RedactEmail(email string) string {
	name, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return "***@***"
	}
	if len(name) > 2 {
		return name[:2] + "***@" + domain
	}
	return "***@" + domain
}

// RedactURL masks credential-bearing parts of a URL: userinfo passwords and
// query parameters such as presigned S3 signatures or api keys. Strings that
// do not parse as an absolute URL are returned unchanged.
//
//	"https://b.s3.amazonaws.com/t.tsv?X-Amz-Signature=abc" → "https://b.s3.amazonaws.com/t.tsv?X-Amz-Signature=REDACTED"
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}
	changed := false
	if _, hasPw := u.User.Password(); hasPw {
		u.User = url.UserPassword(u.User.Username(), "REDACTED")
		changed = true
	}
	q := u.Query()
	for name := range q {
		lower := strings.ToLower(name)
		if isSecretKey(lower) || lower == "key" || lower == "sig" || strings.HasSuffix(lower, "-signature") || strings.HasSuffix(lower, "-credential") {
			q.Set(name, "REDACTED")
			changed = true
		}
	}
	if !changed {
		return raw
	}
	u.RawQuery = q.Encode()
	return u.String()
}
