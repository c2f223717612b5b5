// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// Discover returns the names of plugins in dir whose module file name
// (without ext) matches pattern. An empty pattern matches every module.
// Shadow copies and names that cannot identify a plugin are skipped; a
// missing directory yields no plugins.
func Discover(dir, pattern, ext string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, oops.In("plugin").
			With("pattern", pattern).
			Hint("invalid discovery pattern").
			Wrap(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, oops.In("plugin").
			With("dir", dir).
			Hint("failed to read plugin directory").
			Wrap(err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ext {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ext)
		if IsShadowName(name) || !ValidName(name) {
			continue
		}
		if g.Match(name) {
			names = append(names, name)
		}
	}

	sort.Strings(names)
	return names, nil
}

// IsShadowName reports whether a module base name belongs to a shadow copy.
func IsShadowName(name string) bool {
	return strings.Contains(name, ShadowSuffix)
}
