package service

import "strings"

// NormalizeResponse strips wrapping artifacts from a raw model response and
// returns the candidate JSON payload. Truncated payloads are structurally
// repaired on a best-effort basis; the result may still fail to parse, in
// which case the validator's salvage path takes over.
func NormalizeResponse(raw string) (string, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = stripCodeFences(cleaned)

	start := strings.Index(cleaned, "{")
	if start == -1 {
		return "", newAnalysisError(KindMalformedResponse, "no JSON object in response")
	}

	end := strings.LastIndex(cleaned, "}")
	if end > start {
		return cleaned[start : end+1], nil
	}

	// No closing brace: the response was cut off mid-object.
	return repairTruncated(cleaned[start:]), nil
}

// stripCodeFences removes a leading fenced-code-block marker (with or
// without a language tag) and a trailing fence.
func stripCodeFences(s string) string {
	if strings.HasPrefix(s, "```") {
		s = s[3:]
		// Drop a language tag such as "json" up to the first newline.
		if nl := strings.IndexByte(s, '\n'); nl != -1 {
			firstLine := strings.TrimSpace(s[:nl])
			if firstLine != "" && !strings.ContainsAny(firstLine, "{}") {
				s = s[nl+1:]
			}
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// repairTruncated completes a cut-off JSON object: close an unterminated
// string literal, then balance any open brackets and braces.
func repairTruncated(s string) string {
	var sb strings.Builder
	sb.WriteString(s)

	if countUnescapedQuotes(s)%2 == 1 {
		sb.WriteByte('"')
	}

	openBraces, openBrackets := 0, 0
	inString := false
	escaped := false
	for _, r := range sb.String() {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = inString
		case '"':
			inString = !inString
		case '{':
			if !inString {
				openBraces++
			}
		case '}':
			if !inString {
				openBraces--
			}
		case '[':
			if !inString {
				openBrackets++
			}
		case ']':
			if !inString {
				openBrackets--
			}
		}
	}

	for i := 0; i < openBrackets; i++ {
		sb.WriteByte(']')
	}
	for i := 0; i < openBraces; i++ {
		sb.WriteByte('}')
	}
	return sb.String()
}

func countUnescapedQuotes(s string) int {
	count := 0
	escaped := false
	for _, r := range s {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '"':
			count++
		}
	}
	return count
}
