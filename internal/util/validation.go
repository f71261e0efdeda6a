package util

// videoIDLength is the exact length of a valid video identifier.
const videoIDLength = 11

// ValidateVideoID checks that id is a well-formed 11-character video
// identifier drawn from [A-Za-z0-9_-]. The fixed-length, fixed-alphabet
// whitelist blocks injection through the identifier into downstream URL
// construction; it is intentionally not a general sanitizer.
func ValidateVideoID(id string) error {
	if id == "" {
		return ErrMissingVideoID
	}
	if len(id) != videoIDLength {
		return ErrInvalidVideoID
	}
	for i := 0; i < len(id); i++ {
		if !isVideoIDChar(id[i]) {
			return ErrInvalidVideoID
		}
	}
	return nil
}

func isVideoIDChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '_' || c == '-':
		return true
	}
	return false
}
