package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// GenerateKey joins a prefix and id with the cache separator.
func GenerateKey(prefix string, id string) string {
	return prefix + ":" + id
}

// GenerateKeyWithParams appends each param to the prefix. Params are
// formatted with %v, so keep them to scalars.
func GenerateKeyWithParams(prefix string, params ...interface{}) string {
	key := prefix
	for _, p := range params {
		key = fmt.Sprintf("%s:%v", key, p)
	}
	return key
}

// HashKey collapses a long key into a fixed-width MD5 hex digest.
func HashKey(key string) string {
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

// BuildPattern returns the glob that matches every key under a prefix.
func BuildPattern(prefix string) string {
	return prefix + "*"
}
