/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package logstore

import (
	"bufio"
	"os"
	"regexp"
	"strings"

	"k8s.io/klog/v2"

	commonconfig "github.com/ccieblogger/netraven-sub003/pkg/config"
)

const redactedMark = "[REDACTED]"

// defaultRedactPatterns cover the usual places secrets leak into device
// output and log messages. Each pattern's first capture group survives;
// the remainder of the match is replaced.
var defaultRedactPatterns = []string{
	// the optional numeric token swallows IOS-style encoding markers
	// ("secret 5 $1$...") so the hash never survives
	`(?i)((?:password|passwd|secret)\s*[:=]?\s*)(?:\d+\s+)?\S+`,
	`(?i)(community\s+)\S+`,
	`(?i)(authentication-key\s+\d+\s+md5\s+)\S+`,
	`(?i)((?:tacacs-server|radius-server) key\s+)(?:\d+\s+)?\S+`,
}

// Redactor rewrites secret-bearing spans of log text. Redaction is
// unconditional at info severity and above; debug entries pass through so
// session transcripts stay usable for troubleshooting, and debug entries
// never reach durable sinks with secrets because session payloads are
// redacted at capture time as well.
type Redactor struct {
	patterns []*regexp.Regexp
}

// NewRedactor compiles the built-in patterns plus any extra ones listed in
// the configured patterns file, one regex per line, # comments allowed.
// A pattern that fails to compile is skipped with a log, never fatal.
func NewRedactor() *Redactor {
	r := &Redactor{}
	for _, raw := range defaultRedactPatterns {
		r.patterns = append(r.patterns, regexp.MustCompile(raw))
	}
	if path := commonconfig.GetRedactPatternsPath(); path != "" {
		r.loadExtra(path)
	}
	return r
}

func (r *Redactor) loadExtra(path string) {
	f, err := os.Open(path)
	if err != nil {
		klog.ErrorS(err, "failed to open redact patterns file", "path", path)
		return
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		pattern, err := regexp.Compile(raw)
		if err != nil {
			klog.ErrorS(err, "skipping invalid redact pattern", "pattern", raw)
			continue
		}
		r.patterns = append(r.patterns, pattern)
	}
}

// Apply rewrites every secret-bearing span of text.
func (r *Redactor) Apply(text string) string {
	for _, pattern := range r.patterns {
		text = pattern.ReplaceAllString(text, "${1}"+redactedMark)
	}
	return text
}

// ApplyEntry redacts an entry in place when its severity requires it.
func (r *Redactor) ApplyEntry(entry *Entry) {
	if severity(entry.Level) < severity(LevelInfo) {
		return
	}
	entry.Message = r.Apply(entry.Message)
	for key, value := range entry.Meta {
		entry.Meta[key] = r.Apply(value)
	}
}
