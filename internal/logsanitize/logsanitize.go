// Package logsanitize strips terminal escape sequences from byte
// payloads before they are written to a log handler, so a crash
// diagnostic or error-detail line never carries a raw escape sequence
// that an operator's own terminal would interpret.
//
// This is independent of internal/sanitize: that package polices the
// wire protocol (a narrow stripped set: DCS, OSC 52, cursor
// save/restore); this one polices the log stream (every non-SGR CSI
// sequence and every OSC sequence, the same way a production log
// sanitizer strips escape codes from untrusted process output before
// it reaches a log aggregator).
package logsanitize

import "strings"

const esc = 0x1b

// ForLog returns data with all non-color escape sequences removed and
// carriage returns normalized to newlines, suitable for inclusion in a
// structured log line.
func ForLog(data []byte) []byte {
	var out []byte
	i := 0
	n := len(data)

	for i < n {
		b := data[i]

		if b == esc && i+1 < n && data[i+1] == '[' {
			j := i + 2
			for j < n && data[j] >= 0x20 && data[j] <= 0x3f {
				j++
			}
			if j < n {
				final := data[j]
				if final == 'm' {
					out = append(out, data[i:j+1]...)
				}
				i = j + 1
				continue
			}
			i = n
			continue
		}

		if b == esc && i+1 < n && data[i+1] == ']' {
			j := i + 2
			for j < n && data[j] != 0x07 {
				if data[j] == esc && j+1 < n && data[j+1] == '\\' {
					j++
					break
				}
				j++
			}
			i = j + 1
			continue
		}

		if b == esc && i+1 < n {
			// Unrecognized escape family: skip the introducer and its
			// single following byte rather than emitting a bare ESC.
			i += 2
			continue
		}

		if b == '\r' {
			if i+1 < n && data[i+1] == '\n' {
				i++
				continue
			}
			out = append(out, '\n')
			i++
			continue
		}

		out = append(out, b)
		i++
	}

	return out
}

// ForLogString is a convenience wrapper for callers holding a string.
func ForLogString(s string) string {
	return string(ForLog([]byte(s)))
}

// TrimForLog bounds a log payload to maxLen runes after sanitizing, so
// a pathological burst of PTY output never blows up a single log line.
func TrimForLog(data []byte, maxLen int) string {
	sanitized := ForLogString(string(data))
	runes := []rune(sanitized)
	if len(runes) <= maxLen {
		return sanitized
	}
	return strings.TrimSpace(string(runes[:maxLen])) + "…"
}
