package exfat

// AsciiFromUnicode narrows each UTF-16 code-unit to its low byte. This is
// lossy on purpose: any unit with a non-zero high byte loses it. Names are
// compared in this narrowed form, so it must not be replaced with a real
// decoder.
func AsciiFromUnicode(units []uint16) string {
	narrowed := make([]byte, len(units))
	for i, unit := range units {
		narrowed[i] = byte(unit)
	}

	return string(narrowed)
}
