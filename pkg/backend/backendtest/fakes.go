// Package backendtest はバックエンドのテストダブルを提供します。
package backendtest

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"

	"github.com/shouni/go-trait-kit/pkg/backend"
)

// TextCall は FakeText が受け取った1回分の呼び出しです。
type TextCall struct {
	SystemInstruction string
	Prompt            string
}

// FakeText は固定の応答を返す TextGenerator です。
type FakeText struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	Calls     []TextCall
}

func (f *FakeText) GenerateText(_ context.Context, systemInstruction, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, TextCall{SystemInstruction: systemInstruction, Prompt: prompt})
	if f.Err != nil {
		return "", f.Err
	}
	if len(f.Responses) == 0 {
		return "", fmt.Errorf("backendtest: no response queued")
	}
	resp := f.Responses[0]
	if len(f.Responses) > 1 {
		f.Responses = f.Responses[1:]
	}
	return resp, nil
}

// CallCount は呼び出し回数を返します。
func (f *FakeText) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// FakeImage はリクエストを記録し、Respond の結果を返す ImageGenerator です。
// Respond が nil の場合はプロンプトから作ったバイト列を返します。
type FakeImage struct {
	mu       sync.Mutex
	Respond  func(ctx context.Context, req backend.ImageRequest) (*imagedom.ImageResponse, error)
	Requests []backend.ImageRequest
}

func (f *FakeImage) GenerateImage(ctx context.Context, req backend.ImageRequest) (*imagedom.ImageResponse, error) {
	f.mu.Lock()
	f.Requests = append(f.Requests, req)
	respond := f.Respond
	f.mu.Unlock()

	if respond != nil {
		return respond(ctx, req)
	}
	return &imagedom.ImageResponse{Data: PNGBytes(req.Prompt), MimeType: "image/png"}, nil
}

// RequestCount は受け取ったリクエスト数を返します。
func (f *FakeImage) RequestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Requests)
}

// LastRequest は最後に受け取ったリクエストを返します。
func (f *FakeImage) LastRequest() backend.ImageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Requests) == 0 {
		return backend.ImageRequest{}
	}
	return f.Requests[len(f.Requests)-1]
}

// PNGBytes は PNG シグネチャで始まり、十分な長さを持つダミー画像バイト列を返します。
func PNGBytes(seed string) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	for buf.Len() < 256 {
		buf.WriteString(seed)
		buf.WriteByte('.')
	}
	return buf.Bytes()
}
