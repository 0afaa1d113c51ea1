package validator

// ensures source code fits within maxBytes when measured as UTF-8 bytes
func ValidateSourceSize(source string, maxBytes int) bool {
	return len(source) <= maxBytes
}
