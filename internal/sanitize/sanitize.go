// Package sanitize strips dangerous terminal escape sequences from PTY
// output before it reaches the replay buffer or any attached client.
//
// Three escape families are neutralized: Device Control Strings (DCS),
// OSC 52 clipboard manipulation, and cursor save/restore state
// manipulation. Everything else — SGR colors, CSI cursor motion, OSC
// title sequences, bracketed paste — passes through untouched.
package sanitize

const (
	// DCSPlaceholder replaces a stripped Device Control String.
	DCSPlaceholder = "[DCS blocked]"

	// OSC52Placeholder replaces a stripped OSC 52 clipboard sequence.
	OSC52Placeholder = "[OSC52 blocked]"
)

const (
	esc  = 0x1b
	bel  = 0x07
	dcs8 = 0x90 // 8-bit DCS introducer
	st8  = 0x9c // 8-bit string terminator
)

// Sanitize scans data left to right and returns a copy with DCS, OSC 52,
// and cursor save/restore sequences removed or replaced. It is pure,
// stateless, and idempotent: Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(data []byte) []byte {
	out := make([]byte, 0, len(data))
	i := 0
	n := len(data)

	for i < n {
		b := data[i]

		if b == dcs8 {
			end := findTerminator8(data, i+1)
			out = append(out, DCSPlaceholder...)
			i = end
			continue
		}

		if b == esc && i+1 < n {
			switch data[i+1] {
			case 'P': // 7-bit DCS: ESC P ... ESC \
				end := findST7(data, i+2)
				out = append(out, DCSPlaceholder...)
				i = end
				continue
			case ']': // OSC: ESC ] ... BEL | ESC \
				end, body := findOSCBody(data, i+2)
				if isOSC52(body) {
					out = append(out, OSC52Placeholder...)
				} else {
					out = append(out, data[i:end]...)
				}
				i = end
				continue
			case '7', '8': // cursor save / restore
				i += 2
				continue
			case '[':
				end, final := findCSIFinal(data, i+2)
				if final == 's' || final == 'u' {
					i = end
					continue
				}
				out = append(out, data[i:end]...)
				i = end
				continue
			}
		}

		out = append(out, b)
		i++
	}

	return out
}

// findTerminator8 scans an 8-bit-introduced string for its ST (0x9c)
// terminator and returns the index just past it, or len(data) if the
// sequence runs off the end unterminated.
func findTerminator8(data []byte, start int) int {
	for j := start; j < len(data); j++ {
		if data[j] == st8 {
			return j + 1
		}
	}
	return len(data)
}

// findST7 scans a 7-bit string body for its ESC \ terminator.
func findST7(data []byte, start int) int {
	for j := start; j < len(data); j++ {
		if data[j] == esc && j+1 < len(data) && data[j+1] == '\\' {
			return j + 2
		}
	}
	return len(data)
}

// findOSCBody scans an OSC body for its BEL or ST terminator, returning
// the index just past the whole sequence and the body bytes (excluding
// the terminator) for classification.
func findOSCBody(data []byte, start int) (end int, body []byte) {
	for j := start; j < len(data); j++ {
		if data[j] == bel {
			return j + 1, data[start:j]
		}
		if data[j] == esc && j+1 < len(data) && data[j+1] == '\\' {
			return j + 2, data[start:j]
		}
	}
	return len(data), data[start:]
}

// isOSC52 reports whether an OSC body begins with the "52;" clipboard
// command prefix.
func isOSC52(body []byte) bool {
	return len(body) >= 3 && body[0] == '5' && body[1] == '2' && body[2] == ';'
}

// findCSIFinal scans a CSI sequence's parameter/intermediate bytes
// (0x20-0x3f) for its final byte (0x40-0x7e), returning the index just
// past the sequence and the final byte itself (0 if unterminated).
func findCSIFinal(data []byte, start int) (end int, final byte) {
	j := start
	for j < len(data) {
		b := data[j]
		if b >= 0x40 && b <= 0x7e {
			return j + 1, b
		}
		if b < 0x20 || b > 0x3f {
			// Not a valid CSI parameter/intermediate byte; treat the
			// sequence as ending here without a recognized final byte.
			return j, 0
		}
		j++
	}
	return len(data), 0
}
