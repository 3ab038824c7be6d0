package strutils

const (
	minPlayerIDLength = 3
	maxPlayerIDLength = 50
)

// Player ids are 3-50 characters of [a-zA-Z0-9_], as the collaborators accept them
func PlayerIDIsValid(playerID string) bool {
	if len(playerID) < minPlayerIDLength || len(playerID) > maxPlayerIDLength {
		return false
	}

	for _, char := range playerID {
		switch {
		case char >= 'a' && char <= 'z':
		case char >= 'A' && char <= 'Z':
		case char >= '0' && char <= '9':
		case char == '_':
		default:
			return false
		}
	}

	return true
}
