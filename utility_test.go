package exfat

import (
	"testing"
)

func TestAsciiFromUnicode(t *testing.T) {
	units := []uint16{'a', 'b', 'c'}
	s := AsciiFromUnicode(units)

	if s != "abc" {
		t.Fatalf("Unicode not narrowed to ASCII correctly: [%s]", s)
	}
}

func TestAsciiFromUnicode_DropsHighByte(t *testing.T) {
	// U+0141 and U+2161 keep only 0x41 and 0x61.
	units := []uint16{0x0141, 0x2161, 'z'}
	s := AsciiFromUnicode(units)

	if s != "Aaz" {
		t.Fatalf("High bytes not dropped: [%s]", s)
	}
}

func TestAsciiFromUnicode_Empty(t *testing.T) {
	if AsciiFromUnicode(nil) != "" {
		t.Fatalf("Empty input should be an empty string.")
	}
}
