package hex

// Halfbyte maps an ASCII character into its hexadecimal value. Characters not being a valid
// hex digit are mapped into 0xFF.
var Halfbyte = func() (table [256]byte) {
	for i := range table {
		table[i] = Un(byte(i))
	}

	return table
}()

// Un returns the value of a hex digit, or 0xFF for anything else.
func Un(char byte) byte {
	switch {
	case '0' <= char && char <= '9':
		return char - '0'
	case 'a' <= char && char <= 'f':
		return char - 'a' + 10
	case 'A' <= char && char <= 'F':
		return char - 'A' + 10
	}
	return 0xFF
}
