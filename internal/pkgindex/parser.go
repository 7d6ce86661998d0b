// Package pkgindex decodes a repository's plain-text package index into
// model.PackageRecord values, grouped by name in source order.
//
// The index is RFC-822-like: blocks separated by blank lines, continuation
// lines indented with whitespace, comma-separated dependency lists with an
// optional "(op version)" pin.
package pkgindex

import (
	"strings"

	"github.com/a2-ai/rv/internal/model"
	"github.com/a2-ai/rv/internal/version"
)

// Parse decodes an index document into name -> ordered list of records.
// Records are appended in source order; a repeated package name simply
// grows its slice rather than overwriting a prior entry.
func Parse(content string) (map[string][]*model.PackageRecord, error) {
	out := make(map[string][]*model.PackageRecord)

	normalized := normalizeLineEndings(content)
	for _, block := range strings.Split(normalized, "\n\n") {
		rec, name, err := parseBlock(block)
		if err != nil {
			return nil, err
		}
		if name == "" {
			// A record without a Package key is skipped.
			continue
		}
		rec.Name = name
		out[name] = append(out[name], rec)
	}

	return out, nil
}

// normalizeLineEndings folds CRLF to LF and joins indented continuation
// lines onto the previous logical line.
func normalizeLineEndings(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var b strings.Builder
	for i, line := range strings.Split(s, "\n") {
		if i > 0 {
			if trimmed := strings.TrimLeft(line, " \t"); trimmed != line && trimmed != "" {
				b.WriteString(" " + trimmed)
				continue
			}
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	return b.String()
}

func parseBlock(block string) (*model.PackageRecord, string, error) {
	rec := &model.PackageRecord{Remotes: map[string]model.Source{}}
	name := ""

	for _, line := range strings.Split(block, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, value, ok := splitField(line)
		if !ok {
			continue
		}

		switch key {
		case "Package":
			name = strings.TrimSpace(value)
		case "Version":
			v, err := version.Parse(strings.TrimSpace(value))
			if err != nil {
				return nil, "", err
			}
			rec.Version = v
		case "Depends":
			for _, d := range parseDependencies(value) {
				if d.Name == "R" {
					if d.Req != nil {
						req := *d.Req
						rec.LanguageRequirement = &req
					}
					continue
				}
				rec.Depends = append(rec.Depends, d)
			}
		case "Imports":
			rec.Imports = parseDependencies(value)
		case "LinkingTo":
			rec.LinkingTo = parseDependencies(value)
		case "Suggests":
			rec.Suggests = parseDependencies(value)
		case "License":
			rec.License = strings.TrimSpace(value)
		case "MD5sum":
			rec.ContentDigest = strings.TrimSpace(value)
		case "NeedsCompilation":
			rec.NeedsCompilation = strings.TrimSpace(value) == "yes"
		case "Path":
			p := strings.TrimSpace(value)
			rec.PathPrefix = p
		case "Priority":
			if strings.TrimSpace(value) == "recommended" {
				rec.Recommended = true
			}
		case "Remotes":
			for _, part := range strings.Split(value, ",") {
				part = strings.TrimSpace(part)
				if part == "" {
					continue
				}
				rec.Remotes[part] = parseRemote(part)
			}
		default:
			// Unknown fields (e.g. SystemRequirements, Enhances) are ignored.
		}
	}

	return rec, name, nil
}

// splitField splits a "Key: value" line. Lines without a colon, or that
// don't look like a field header, are ignored rather than erroring, so the
// parser never panics on odd input.
func splitField(line string) (key, value string, ok bool) {
	idx := strings.Index(line, ": ")
	if idx < 0 {
		return "", "", false
	}
	return line[:idx], line[idx+2:], true
}

// parseDependencies parses a comma-separated dependency list such as
// "a, b (>= 1.0), c" into a mixed list of Simple and Pinned dependencies.
// Trailing/interior empty entries (a dangling comma) are dropped.
func parseDependencies(content string) []model.Dependency {
	var out []model.Dependency
	for _, part := range strings.Split(content, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if start := strings.IndexByte(part, '('); start >= 0 {
			name := strings.TrimSpace(part[:start])
			reqStr := strings.TrimSpace(part[start:])
			reqStr = strings.TrimPrefix(reqStr, "(")
			reqStr = strings.TrimSuffix(reqStr, ")")
			req, err := version.ParseRequirement(reqStr)
			if err != nil {
				// Malformed pin: keep the name, drop the constraint rather
				// than failing the whole index parse.
				out = append(out, model.Simple(name))
				continue
			}
			out = append(out, model.Pinned(name, req))
		} else {
			out = append(out, model.Simple(part))
		}
	}
	return out
}

// parseRemote interprets a "Remotes" field entry, such as
// "user/repo" or "url::https://...", into a Source. Entries without a
// recognised "kind::" prefix become a Git source at
// "https://github.com/" + entry, the overwhelmingly common shape in practice.
func parseRemote(entry string) model.Source {
	if strings.Contains(entry, "::") {
		parts := strings.SplitN(entry, "::", 2)
		kind, rest := parts[0], parts[1]
		switch kind {
		case "url":
			return model.URLSource(rest, "")
		case "local":
			return model.LocalSource(rest, "")
		case "github", "gitlab", "bitbucket", "git":
			return model.GitSource(rest, "", "", model.GitRef{})
		}
	}
	return model.GitSource("https://github.com/"+entry, "", "", model.GitRef{})
}
