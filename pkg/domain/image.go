package domain

import (
	"bytes"
	"encoding/base64"
	"net/http"
	"strings"
)

const dataURIPrefix = "data:"

// NormalizeImageData は画像データを生バイト列に揃えます。
// "data:image/png;base64,..." 形式のテキストはプレフィックスを除去してデコードし、
// それ以外はそのまま返すのだ。戻り値の MIME タイプは推定値です。
func NormalizeImageData(data []byte) ([]byte, string, error) {
	trimmed := bytes.TrimSpace(data)
	if !bytes.HasPrefix(trimmed, []byte(dataURIPrefix)) {
		return data, DetectMimeType(data), nil
	}

	comma := bytes.IndexByte(trimmed, ',')
	if comma < 0 {
		return nil, "", &ValidationError{Field: "image_data", Reason: "data URI without payload"}
	}
	header := string(trimmed[len(dataURIPrefix):comma])
	payload := trimmed[comma+1:]

	mimeType := header
	isBase64 := false
	if idx := strings.Index(header, ";"); idx >= 0 {
		mimeType = header[:idx]
		isBase64 = strings.Contains(header[idx:], "base64")
	}

	if !isBase64 {
		raw := append([]byte(nil), payload...)
		return raw, fallbackMime(mimeType, raw), nil
	}

	raw := make([]byte, base64.StdEncoding.DecodedLen(len(payload)))
	n, err := base64.StdEncoding.Decode(raw, payload)
	if err != nil {
		return nil, "", &ValidationError{Field: "image_data", Reason: "invalid base64 payload: " + err.Error()}
	}
	raw = raw[:n]
	return raw, fallbackMime(mimeType, raw), nil
}

// NormalizeImageString は文字列で受け取った画像データを正規化します。
func NormalizeImageString(s string) ([]byte, string, error) {
	return NormalizeImageData([]byte(s))
}

// DetectMimeType は先頭バイトから MIME タイプを推定します。
func DetectMimeType(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	mt := http.DetectContentType(data)
	if idx := strings.Index(mt, ";"); idx >= 0 {
		mt = mt[:idx]
	}
	return mt
}

func fallbackMime(declared string, raw []byte) string {
	if declared = strings.TrimSpace(declared); declared != "" {
		return declared
	}
	return DetectMimeType(raw)
}
