package runtime

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestChannelRoundTrip(t *testing.T) {
	ctx := NewBase()
	defer ctx.Close()
	tok := ctx.Runtime().Cancel()

	ch := NewChannel(0).Value().Channel
	go func() {
		_ = ch.Send(tok, NewInt(42))
	}()
	got, err := ch.Recv(tok)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if got.Value().Int != 42 {
		t.Fatalf("recv = %d, want 42", got.Value().Int)
	}
}

func TestBlockedRecvUnblocksOnCancel(t *testing.T) {
	tok := NewCancelToken()
	ch := NewChannel(0).Value().Channel

	done := make(chan error, 1)
	go func() {
		_, err := ch.Recv(tok)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	tok.Cancel()

	select {
	case err := <-done:
		if !errors.Is(err, ErrCancelled) {
			t.Fatalf("recv = %v, want ErrCancelled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("recv did not unblock on cancellation")
	}
}

func TestClosedChannel(t *testing.T) {
	tok := NewCancelToken()
	ch := NewChannel(1).Value().Channel
	if err := ch.Send(tok, NewInt(1)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := ch.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := ch.Close(); !errors.Is(err, ErrChannelClosed) {
		t.Fatalf("double close = %v, want ErrChannelClosed", err)
	}
	// The buffer drains before closure is observed.
	if got, err := ch.Recv(tok); err != nil || got.Value().Int != 1 {
		t.Fatalf("drain = %v, %v", got, err)
	}
	if _, err := ch.Recv(tok); !errors.Is(err, ErrChannelClosed) {
		t.Fatalf("recv on closed = %v, want ErrChannelClosed", err)
	}
	if err := ch.Send(tok, NewInt(2)); !errors.Is(err, ErrChannelClosed) {
		t.Fatalf("send on closed = %v, want ErrChannelClosed", err)
	}
}

func TestBlockedSendUnblocksOnClose(t *testing.T) {
	tok := NewCancelToken()
	ch := NewChannel(0).Value().Channel

	done := make(chan error, 1)
	go func() {
		done <- ch.Send(tok, NewInt(1))
	}()
	time.Sleep(10 * time.Millisecond)
	if err := ch.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, ErrChannelClosed) {
			t.Fatalf("send = %v, want ErrChannelClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("send did not unblock on close")
	}
}

func TestSendRacingCloseDoesNotPanic(t *testing.T) {
	tok := NewCancelToken()
	for i := 0; i < 100; i++ {
		ch := NewChannel(1).Value().Channel
		var wg sync.WaitGroup
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := ch.Send(tok, NewInt(1)); err != nil && !errors.Is(err, ErrChannelClosed) {
					t.Errorf("send = %v, want nil or ErrChannelClosed", err)
				}
			}()
		}
		if err := ch.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
		wg.Wait()
		if err := ch.Send(tok, NewInt(2)); !errors.Is(err, ErrChannelClosed) {
			t.Fatalf("send after close = %v, want ErrChannelClosed", err)
		}
	}
}

func TestChannelBuiltinsThroughEffects(t *testing.T) {
	ctx := NewBase()
	defer ctx.Close()

	mk := builtin(t, ctx, "channel")
	mkEff, err := Apply(ctx, mk, Unit())
	if err != nil {
		t.Fatalf("channel: %v", err)
	}
	chh, err := RunEffect(ctx, mkEff)
	if err != nil {
		t.Fatalf("run channel: %v", err)
	}
	if chh.Value().Tag != TagChannel {
		t.Fatalf("channel builtin made %s", chh.Value().Tag)
	}

	send := builtin(t, ctx, "send")
	recv := builtin(t, ctx, "recv")
	sendEff, err := ApplyAll(ctx, send, []*Handle{chh, NewText("ping")})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	go func() {
		_, _ = RunEffect(ctx, sendEff)
	}()

	recvEff, err := Apply(ctx, recv, chh)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	got, err := RunEffect(ctx, recvEff)
	if err != nil {
		t.Fatalf("run recv: %v", err)
	}
	if got.Value().Text != "ping" {
		t.Fatalf("recv = %q, want ping", got.Value().Text)
	}
}
