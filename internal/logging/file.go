package logging

import "os"

// openAppend opens (creating if necessary) path for append-only writing,
// matching spec.md 6's "Append-only text file proxy.log. No rotation."
func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}
