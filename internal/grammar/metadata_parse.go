package grammar

import "strings"

// parseMetadataPayload parses a `{KEYWORD [default] [key=value, ...]}`
// payload into a RawMetadata. Parameter names are not validated against
// the keyword's schema here, and MetadataBinder does not validate them
// either: it reads the parameters each keyword uses and ignores any other
// names. This stage only has to recognize the brace/token grammar itself.
func parseMetadataPayload(payload string, lineNum, gonganID int) (*RawMetadata, error) {
	payload = strings.TrimSpace(payload)
	if !strings.HasPrefix(payload, "{") || !strings.HasSuffix(payload, "}") {
		return nil, newError(KindUnexpectedToken, lineNum, 1, gonganID, "metadata payload must be enclosed in braces: %q", payload)
	}
	body := strings.TrimSpace(payload[1 : len(payload)-1])
	if body == "" {
		return nil, newError(KindMissingKeyword, lineNum, 2, gonganID, "empty metadata payload")
	}

	tokens, err := tokenizeMetadataBody(body, lineNum, gonganID)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, newError(KindMissingKeyword, lineNum, 2, gonganID, "metadata payload has no keyword")
	}

	meta := &RawMetadata{
		Keyword:    strings.ToUpper(tokens[0]),
		Params:     map[string]string{},
		ListParams: map[string][]string{},
		Line:       lineNum,
	}

	rest := tokens[1:]
	for i, tok := range rest {
		eq := strings.IndexByte(tok, '=')
		if eq < 0 {
			if i == 0 && meta.Default == "" {
				meta.Default = unquote(tok)
				continue
			}
			return nil, newError(KindUnrecognizedParam, lineNum, 2, gonganID, "unrecognized bare parameter %q", tok)
		}
		key := strings.ToLower(strings.TrimSpace(tok[:eq]))
		val := strings.TrimSpace(tok[eq+1:])
		if key == "" {
			return nil, newError(KindUnrecognizedParam, lineNum, 2, gonganID, "empty parameter name in %q", tok)
		}
		if _, dup := meta.Params[key]; dup {
			return nil, newError(KindDuplicateKey, lineNum, 2, gonganID, "duplicate key %q", key)
		}
		if _, dup := meta.ListParams[key]; dup {
			return nil, newError(KindDuplicateKey, lineNum, 2, gonganID, "duplicate key %q", key)
		}
		if strings.HasPrefix(val, "[") {
			list, err := parseBracketedList(val, lineNum, gonganID)
			if err != nil {
				return nil, err
			}
			meta.ListParams[key] = list
		} else {
			meta.Params[key] = unquote(val)
		}
	}
	return meta, nil
}

// tokenizeMetadataBody splits a metadata body into space/comma-separated
// tokens, without splitting inside quoted strings or bracketed lists.
func tokenizeMetadataBody(body string, lineNum, gonganID int) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	depth := 0
	inQuote := false
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '"' :
			inQuote = !inQuote
			cur.WriteByte(c)
		case inQuote:
			cur.WriteByte(c)
		case c == '[':
			depth++
			cur.WriteByte(c)
		case c == ']':
			depth--
			if depth < 0 {
				return nil, newError(KindMalformedList, lineNum, i+1, gonganID, "unbalanced ']' in %q", body)
			}
			cur.WriteByte(c)
		case depth > 0:
			cur.WriteByte(c)
		case c == ' ' || c == '\t' || c == ',':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	if inQuote {
		return nil, newError(KindUnexpectedToken, lineNum, len(body), gonganID, "unterminated quoted string in %q", body)
	}
	if depth != 0 {
		return nil, newError(KindMalformedList, lineNum, len(body), gonganID, "unbalanced '[' in %q", body)
	}
	flush()
	return tokens, nil
}

// parseBracketedList parses "[a, b, c]" or "[\"a\", \"b\"]" into its
// unquoted elements.
func parseBracketedList(val string, lineNum, gonganID int) ([]string, error) {
	if !strings.HasSuffix(val, "]") {
		return nil, newError(KindMalformedList, lineNum, 1, gonganID, "malformed list %q", val)
	}
	inner := strings.TrimSpace(val[1 : len(val)-1])
	if inner == "" {
		return nil, nil
	}
	var items []string
	for _, part := range strings.Split(inner, ",") {
		items = append(items, unquote(strings.TrimSpace(part)))
	}
	return items, nil
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
