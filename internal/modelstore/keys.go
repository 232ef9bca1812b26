package modelstore

import (
	"fmt"
	"strings"
)

// Entry name suffixes. Every saved key owns exactly these three entries.
const (
	ModelSuffix       = "_model.json"
	PerformanceSuffix = "_performance.json"
	MetadataSuffix    = "_metadata.json"
)

var (
	keyEncoder = strings.NewReplacer(
		"%", "%25",
		"_", "%5F",
		"/", "%2F",
		`\`, "%5C",
		" ", "_",
	)
	keyDecoder = strings.NewReplacer(
		"_", " ",
		"%5F", "_",
		"%2F", "/",
		"%5C", `\`,
		"%25", "%",
	)
)

// EncodeKey turns a product key into a name safe for any backend. Spaces
// become underscores; literal underscores and path separators are escaped
// so the mapping stays reversible.
func EncodeKey(key string) string {
	return keyEncoder.Replace(key)
}

// DecodeKey inverts EncodeKey.
func DecodeKey(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty entry name")
	}
	key := keyDecoder.Replace(name)
	if EncodeKey(key) != name {
		return "", fmt.Errorf("entry name %q is not an encoded product key", name)
	}
	return key, nil
}

func entryNames(key string) (model, performance, metadata string) {
	enc := EncodeKey(key)
	return enc + ModelSuffix, enc + PerformanceSuffix, enc + MetadataSuffix
}
