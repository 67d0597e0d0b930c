package session

import (
	"fmt"
	"regexp"
)

// Session names become directory names under the state root and flow into
// socket, database, and log paths, so the charset stays strictly
// filesystem-safe: lowercase alphanumerics, hyphen, underscore.
const namePattern = `^[a-z0-9_-]{1,64}$`

var nameRe = regexp.MustCompile(namePattern)

// ValidateName rejects names that cannot safely identify a session on disk.
func ValidateName(name string) error {
	if !nameRe.MatchString(name) {
		return fmt.Errorf("invalid session name %q: use 1-64 characters of [a-z0-9_-]", name)
	}
	return nil
}
