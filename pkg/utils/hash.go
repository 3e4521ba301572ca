package utils

import (
	"crypto/md5"
	"fmt"
)

// Md5 returns hex encoded md5 sum of s
func Md5(s string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s)))
}
