package scraper

import "regexp"

// endpointPattern matches ip:port substrings in free text. Octet ranges
// are deliberately not validated; list sources already constrain the
// shape, and downstream checks reject anything unreachable anyway.
var endpointPattern = regexp.MustCompile(`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}:\d{2,5}`)

// Extract returns the unique ip:port substrings found in text, in order
// of first appearance
func Extract(text string) []string {
	matches := endpointPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	endpoints := make([]string, 0, len(matches))
	for _, match := range matches {
		if _, ok := seen[match]; ok {
			continue
		}
		seen[match] = struct{}{}
		endpoints = append(endpoints, match)
	}
	return endpoints
}
