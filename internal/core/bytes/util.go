package bytes

// PadLeft copies src into a zero-filled slice of exactly width bytes, right-justified
// so that any padding comes first. Input longer than width is truncated to its first
// width bytes.
func PadLeft(src []byte, width int) []byte {
	field := make([]byte, width)
	n := len(src)
	if n > width {
		n = width
	}
	copy(field[width-n:], src[:n])
	return field
}

// StripLeadingPadding returns a slice of b without the leading 0s.
func StripLeadingPadding(b []byte) []byte {
	for i := 0; i < len(b); i++ {
		if b[i] != 0 {
			return b[i:]
		}
	}
	return []byte{}
}
