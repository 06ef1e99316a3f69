// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ident

import "regexp"

type exclusion struct {
	pattern *regexp.Regexp
	reason  string
}

// exclusions lists DOI families that resolve to something other than a
// downloadable paper. Matching is case-insensitive on the bare DOI.
var exclusions = []exclusion{
	// Peer-review commentary.
	{regexp.MustCompile(`(?i)^10\.5194/[a-z]+-\d{4}-\d+-(rc|cc|ac|ec)\d+$`), "peer-review commentary DOI"},
	{regexp.MustCompile(`(?i)^10\.7554/elife\.\d+\.sa\d+$`), "peer-review commentary DOI"},
	{regexp.MustCompile(`(?i)^10\.3410/f\.`), "peer-review commentary DOI"},
	{regexp.MustCompile(`(?i)/(peer[-_]?)?review[-_]?report`), "peer-review commentary DOI"},

	// Book chapters.
	{regexp.MustCompile(`(?i)^10\.1007/978-`), "book chapter DOI"},
	{regexp.MustCompile(`(?i)^10\.1016/b978-`), "book chapter DOI"},
	{regexp.MustCompile(`(?i)^10\.1201/978`), "book chapter DOI"},
	{regexp.MustCompile(`(?i)^10\.4324/978`), "book chapter DOI"},
	{regexp.MustCompile(`(?i)^10\.1002/978`), "book chapter DOI"},
	{regexp.MustCompile(`(?i)^10\.1017/cbo`), "book chapter DOI"},
	{regexp.MustCompile(`(?i)^10\.5040/978`), "book chapter DOI"},

	// Datasets.
	{regexp.MustCompile(`(?i)^10\.5281/zenodo\.`), "dataset DOI"},
	{regexp.MustCompile(`(?i)^10\.6084/m9\.figshare\.`), "dataset DOI"},
	{regexp.MustCompile(`(?i)^10\.5061/dryad\.`), "dataset DOI"},
	{regexp.MustCompile(`(?i)^10\.7910/dvn/`), "dataset DOI"},
	{regexp.MustCompile(`(?i)^10\.17632/`), "dataset DOI"},
	{regexp.MustCompile(`(?i)^10\.1594/pangaea\.`), "dataset DOI"},
}

// excludedDOI returns the exclusion reason for doi, or "".
func excludedDOI(doi string) string {
	for _, ex := range exclusions {
		if ex.pattern.MatchString(doi) {
			return ex.reason
		}
	}
	return ""
}
