package optionserve

import (
	"sort"
	"strings"

	"github.com/goliatone/go-formflow/pkg/metadata"
)

// Search narrows options by a case-insensitive substring match on value or
// label. Prefix matches rank first; ties keep alphabetical label order.
func Search(options []metadata.Option, query string, limit int, opts Options) []metadata.Option {
	limit = clampLimit(limit, opts)
	if limit == 0 {
		return nil
	}

	query = strings.TrimSpace(query)
	if query == "" {
		if opts.EmptySearchMode == EmptySearchTop {
			if len(options) <= limit {
				return append([]metadata.Option{}, options...)
			}
			return append([]metadata.Option{}, options[:limit]...)
		}
		return nil
	}

	q := strings.ToLower(query)
	matches := make([]matchedOption, 0, 32)
	for _, option := range options {
		value := strings.ToLower(option.Value)
		label := strings.ToLower(option.Label)
		if !strings.Contains(value, q) && !strings.Contains(label, q) {
			continue
		}
		matches = append(matches, matchedOption{
			option:   option,
			isPrefix: strings.HasPrefix(value, q) || strings.HasPrefix(label, q),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].isPrefix != matches[j].isPrefix {
			return matches[i].isPrefix
		}
		return matches[i].option.Label < matches[j].option.Label
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}

	out := make([]metadata.Option, 0, len(matches))
	for _, match := range matches {
		out = append(out, match.option)
	}
	return out
}

type matchedOption struct {
	option   metadata.Option
	isPrefix bool
}
