package tokenizer

// GPT-2 vocab files store byte-level tokens as printable unicode strings:
// printable latin-1 bytes map to themselves, every other byte to 256+n.

var (
	byteToRune [256]rune
	runeToByte map[rune]byte
)

func init() {
	runeToByte = make(map[rune]byte, 256)
	n := 0
	for b := 0; b < 256; b++ {
		printable := (b >= '!' && b <= '~') || (b >= 0xA1 && b <= 0xAC) || (b >= 0xAE && b <= 0xFF)
		r := rune(b)
		if !printable {
			r = rune(256 + n)
			n++
		}
		byteToRune[b] = r
		runeToByte[r] = byte(b)
	}
}

// unicodeToBytes maps a vocab token back to the raw bytes it stands for.
func unicodeToBytes(token string) ([]byte, bool) {
	out := make([]byte, 0, len(token))
	for _, r := range token {
		b, ok := runeToByte[r]
		if !ok {
			return nil, false
		}
		out = append(out, b)
	}
	return out, true
}

// bytesToUnicode is the inverse of unicodeToBytes.
func bytesToUnicode(raw []byte) string {
	out := make([]rune, len(raw))
	for i, b := range raw {
		out[i] = byteToRune[b]
	}
	return string(out)
}
