package app

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxTagsPerDocument = 30
	maxTagLength       = 50
)

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
}

// normalizeTags trims, lowercases and de-duplicates tags, keeping first-seen order.
func normalizeTags(raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	tags := make([]string, 0, len(raw))
	for _, t := range raw {
		tag := strings.ToLower(strings.TrimSpace(t))
		if tag == "" {
			continue
		}
		if utf8.RuneCountInString(tag) > maxTagLength {
			return nil, fmt.Errorf("%w: tag %q exceeds %d characters", ErrInvalidInput, tag, maxTagLength)
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	if len(tags) > maxTagsPerDocument {
		return nil, fmt.Errorf("%w: at most %d tags per document", ErrInvalidInput, maxTagsPerDocument)
	}
	return tags, nil
}

// SplitList parses a comma separated query value.
func SplitList(values ...string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
