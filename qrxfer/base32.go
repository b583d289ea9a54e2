package qrxfer

// base32Alphabet is the RFC 4648 alphabet. Encoded text never carries '='.
const base32Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

// base32Decode maps a character to its 5-bit value, or -1.
// Lower case letters decode like their upper case forms.
var base32Decode = func() [256]int8 {
	var tab [256]int8
	for i := range tab {
		tab[i] = -1
	}
	for i := 0; i < len(base32Alphabet); i++ {
		c := base32Alphabet[i]
		tab[c] = int8(i)
		if c >= 'A' && c <= 'Z' {
			tab[c+('a'-'A')] = int8(i)
		}
	}
	return tab
}()

// EncodedLen returns the length of the base32 text for n input bytes,
// ceil(8n/5).
func EncodedLen(n int) int {
	return (n*8 + 4) / 5
}

// DecodedLen returns the number of whole bytes carried by n base32
// characters, floor(5n/8). For every n produced by EncodedLen this is
// the original byte count, so the unpadded encoding is unambiguous.
func DecodedLen(n int) int {
	return n * 5 / 8
}

// EncodeBase32 encodes data as one big-endian bit stream, five bits per
// character. A final group of fewer than five bits is shifted left and
// zero-filled; no padding character is appended.
func EncodeBase32(data []byte) string {
	out := make([]byte, 0, EncodedLen(len(data)))

	// acc holds the low `bits` bits that have not been emitted yet.
	var acc uint32
	bits := 0
	for _, b := range data {
		acc = acc<<8 | uint32(b)
		bits += 8
		for bits >= 5 {
			bits -= 5
			out = append(out, base32Alphabet[(acc>>uint(bits))&0x1F])
		}
		acc &= 1<<uint(bits) - 1
	}

	if bits > 0 {
		out = append(out, base32Alphabet[(acc<<uint(5-bits))&0x1F])
	}

	return string(out)
}

// DecodeBase32 decodes base32 text produced by EncodeBase32.
//
// Decoding is case-insensitive and skips characters outside the alphabet.
// A byte is emitted each time eight bits have accumulated; the zero fill
// of the final group (at most four bits) never reaches eight and is
// dropped.
func DecodeBase32(text string) []byte {
	out := make([]byte, 0, DecodedLen(len(text)))

	var acc uint32
	bits := 0
	for i := 0; i < len(text); i++ {
		v := base32Decode[text[i]]
		if v < 0 {
			continue
		}
		acc = acc<<5 | uint32(v)
		bits += 5
		if bits >= 8 {
			bits -= 8
			out = append(out, byte(acc>>uint(bits)))
			acc &= 1<<uint(bits) - 1
		}
	}

	return out
}
