package formula

import "strings"

// References returns the unique field identifiers a formula reads, in first
// appearance order. Function names and literal keywords never count as
// references. A formula that fails to tokenize yields no references; edge
// derivation treats that the same as a formula with none.
func References(formula string) []string {
	tokens, err := tokenize(strings.TrimSpace(formula))
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var out []string
	for idx, tok := range tokens {
		if tok.kind != tokenIdentifier {
			continue
		}
		if isFunction(strings.ToUpper(tok.raw)) {
			continue
		}
		// A call to an unknown name is still a call, not a field read.
		if idx+1 < len(tokens) && tokens[idx+1].kind == tokenLParen {
			continue
		}
		if _, dup := seen[tok.raw]; dup {
			continue
		}
		seen[tok.raw] = struct{}{}
		out = append(out, tok.raw)
	}
	return out
}
