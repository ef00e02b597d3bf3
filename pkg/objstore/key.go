package objstore

import (
	"strings"
)

// JSONExt is appended to every object name.
const JSONExt = ".json"

// JoinKey generates the object key "<prefix>/<name>.json".
// Leading and trailing slashes of prefix are normalised away.
//
// Example:
//
//	JoinKey("/batches/eco/", "5f1c") // batches/eco/5f1c.json
func JoinKey(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name + JSONExt
	}
	return prefix + "/" + name + JSONExt
}

// ContentType returns the content type stored for key.
func ContentType(key string) string {
	if strings.HasSuffix(key, JSONExt) {
		return "application/json"
	}
	return "application/octet-stream"
}
