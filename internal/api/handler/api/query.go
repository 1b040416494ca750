package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/newthinker/stratboard/internal/core"
)

// intParam reads an optional positive integer query parameter.
func intParam(q url.Values, key string) (int, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, core.WrapError(core.ErrInvalidInput, fmt.Errorf("%s must be a positive integer, got %q", key, raw))
	}
	return n, nil
}

// listParam splits a comma separated parameter, dropping blanks and
// duplicates while keeping order.
func listParam(q url.Values, key string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(q.Get(key), ",") {
		part = strings.TrimSpace(part)
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		out = append(out, part)
	}
	return out
}
