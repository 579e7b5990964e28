package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"

	"github.com/shouni/go-trait-kit/pkg/domain"
)

// RetryPolicy は外部呼び出しの再試行方針です。
// MaxAttempts が 1 以下なら再試行せず、タイムアウトは即座に失敗として返ります。
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	RetryOnTimeout  bool
}

// NoRetry は再試行しないポリシーです。
var NoRetry = RetryPolicy{MaxAttempts: 1}

// Guard は呼び出しごとに期限を付け、ポリシーに従って再試行します。
type Guard struct {
	Timeout time.Duration
	Policy  RetryPolicy
}

func (g Guard) newBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if g.Policy.InitialInterval > 0 {
		exp.InitialInterval = g.Policy.InitialInterval
	}
	if g.Policy.MaxInterval > 0 {
		exp.MaxInterval = g.Policy.MaxInterval
	}
	retries := 0
	if g.Policy.MaxAttempts > 1 {
		retries = g.Policy.MaxAttempts - 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)
}

// Do は op を期限付きで実行します。
// 期限切れは domain.ErrTimeout でラップされ、ErrNoImage や親コンテキストの終了は再試行しません。
func (g Guard) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		callCtx := ctx
		cancel := context.CancelFunc(func() {})
		if g.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, g.Timeout)
		}
		defer cancel()

		err := op(callCtx)
		if err == nil {
			return nil
		}

		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %s exceeded %s: %w", domain.ErrTimeout, name, g.Timeout, err)
			if !g.Policy.RetryOnTimeout {
				return backoff.Permanent(err)
			}
		}
		if errors.Is(err, domain.ErrNoImage) {
			return backoff.Permanent(err)
		}

		slog.Warn("外部呼び出しに失敗しました", "call", name, "attempt", attempt, "error", err)
		return err
	}, g.newBackOff(ctx))
	return err
}

// GuardedText は TextGenerator に期限と再試行を付与します。
type GuardedText struct {
	next  TextGenerator
	guard Guard
}

// NewGuardedText は next を Guard で包みます。
func NewGuardedText(next TextGenerator, guard Guard) *GuardedText {
	return &GuardedText{next: next, guard: guard}
}

func (g *GuardedText) Simulated() bool { return IsSimulated(g.next) }

func (g *GuardedText) GenerateText(ctx context.Context, systemInstruction, prompt string) (string, error) {
	var out string
	err := g.guard.Do(ctx, "text", func(ctx context.Context) error {
		text, err := g.next.GenerateText(ctx, systemInstruction, prompt)
		if err != nil {
			return err
		}
		out = text
		return nil
	})
	return out, err
}

// GuardedImage は ImageGenerator に期限と再試行を付与します。
type GuardedImage struct {
	next  ImageGenerator
	guard Guard
}

// NewGuardedImage は next を Guard で包みます。
func NewGuardedImage(next ImageGenerator, guard Guard) *GuardedImage {
	return &GuardedImage{next: next, guard: guard}
}

func (g *GuardedImage) Simulated() bool { return IsSimulated(g.next) }

func (g *GuardedImage) GenerateImage(ctx context.Context, req ImageRequest) (*imagedom.ImageResponse, error) {
	var out *imagedom.ImageResponse
	err := g.guard.Do(ctx, "image", func(ctx context.Context) error {
		resp, err := g.next.GenerateImage(ctx, req)
		if err != nil {
			return err
		}
		out = resp
		return nil
	})
	return out, err
}
