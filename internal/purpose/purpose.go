// Package purpose guesses what a directory or file is for from its name
// and contents.
package purpose

import (
	"path"
	"sort"
	"strings"
)

type namedPurpose struct {
	name    string
	purpose string
}

// Substring matches are tried in this order.
var directoryPurposes = []namedPurpose{
	{"auth", "Authentication and authorization logic"},
	{"models", "Data models and database schemas"},
	{"views", "UI views and templates"},
	{"controllers", "Request handlers and business logic"},
	{"services", "Business logic and external service integrations"},
	{"utils", "Shared utility functions and helpers"},
	{"helpers", "Helper functions and utilities"},
	{"tests", "Test files and test utilities"},
	{"test", "Test files and test utilities"},
	{"spec", "Test specifications"},
	{"docs", "Project documentation"},
	{"api", "API endpoints and route handlers"},
	{"components", "Reusable UI components"},
	{"lib", "Library code and shared modules"},
	{"src", "Source code root directory"},
	{"static", "Static assets (images, CSS, etc.)"},
	{"public", "Publicly accessible files"},
	{"config", "Configuration files and settings"},
	{"scripts", "Build and utility scripts"},
	{"middleware", "Middleware functions and handlers"},
	{"migrations", "Database migration files"},
	{"fixtures", "Test fixtures and sample data"},
	{"handlers", "WebSocket and event handlers"},
	{"proto", "Protocol buffer definitions"},
}

var contentHints = []struct {
	needles []string
	purpose string
}{
	{[]string{"test", "spec"}, "Test files and test utilities"},
	{[]string{"model"}, "Data models and schemas"},
	{[]string{"route", "endpoint"}, "API routes and endpoints"},
	{[]string{"component"}, "UI components"},
}

// Directory infers a purpose for the directory at rel (slash-separated)
// holding the given file basenames. The last path element is matched
// against known names, exactly and then as a substring; failing that, file
// names hint at the purpose. It returns "" when nothing matches.
func Directory(rel string, files []string) string {
	name := strings.ToLower(path.Base(rel))
	for _, p := range directoryPurposes {
		if name == p.name {
			return p.purpose
		}
	}
	for _, p := range directoryPurposes {
		if strings.Contains(name, p.name) {
			return p.purpose
		}
	}
	for _, hint := range contentHints {
		for _, f := range files {
			lower := strings.ToLower(f)
			for _, needle := range hint.needles {
				if strings.Contains(lower, needle) {
					return hint.purpose
				}
			}
		}
	}
	return ""
}

// Directories infers purposes for every non-root directory that holds
// files. Directories without a match are omitted; nil is returned when
// none match.
func Directories(dirs map[string][]string) map[string]string {
	keys := make([]string, 0, len(dirs))
	for d := range dirs {
		keys = append(keys, d)
	}
	sort.Strings(keys)

	var out map[string]string
	for _, d := range keys {
		files := dirs[d]
		if d == "." || d == "" || len(files) == 0 {
			continue
		}
		if p := Directory(d, files); p != "" {
			if out == nil {
				out = make(map[string]string)
			}
			out[d] = p
		}
	}
	return out
}

// File infers a purpose for a single file from its name, or "".
func File(p string) string {
	base := path.Base(p)
	stem := strings.ToLower(strings.TrimSuffix(base, path.Ext(base)))
	switch {
	case stem == "index" || stem == "main" || stem == "app":
		return "Application entry point"
	case strings.Contains(stem, "test") || strings.Contains(stem, "spec"):
		return "Test file"
	case strings.Contains(stem, "config") || strings.Contains(stem, "settings"):
		return "Configuration"
	case strings.Contains(stem, "route"):
		return "Route definitions"
	case strings.Contains(stem, "model"):
		return "Data model"
	case strings.Contains(stem, "util") || strings.Contains(stem, "helper"):
		return "Utility functions"
	case strings.Contains(stem, "middleware"):
		return "Middleware"
	}
	return ""
}
