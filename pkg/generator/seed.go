package generator

import (
	"crypto/sha256"
	"encoding/binary"
)

// seedFor はキーから決定論的なシード値を作ります。同じ subject・カテゴリ・バリエーションは同じシードになるのだ。
func seedFor(key string) int64 {
	hash := sha256.Sum256([]byte(key))
	// Gemini のシードは非負の int32 に収める
	return int64(binary.BigEndian.Uint32(hash[:4]) & 0x7FFFFFFF)
}
