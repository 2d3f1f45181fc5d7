package runtime

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestNetServerStartStop(t *testing.T) {
	srv, err := NewNetServer(":0", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	addr, err := srv.Start()
	if err != nil {
		t.Skipf("cannot bind UDP in this environment: %v", err)
	}
	if !strings.Contains(addr, ":") {
		t.Errorf("bound address = %q", addr)
	}
	if err := srv.Stop(); err != nil {
		t.Errorf("stop: %v", err)
	}
}

func TestNetGetWrapsTransportFailure(t *testing.T) {
	ctx := NewBase()
	defer ctx.Close()

	get := builtin(t, ctx, "netGet")
	eff, err := Apply(ctx, get, NewText("https://127.0.0.1:1/nothing"))
	if err != nil {
		t.Fatalf("netGet: %v", err)
	}
	_, err = RunEffect(ctx, eff)
	var fe *FailError
	if !errors.As(err, &fe) {
		t.Fatalf("transport failure surfaced as %v, want *FailError", err)
	}
}

func TestNetGetRejectsNonText(t *testing.T) {
	ctx := NewBase()
	defer ctx.Close()

	get := builtin(t, ctx, "netGet")
	eff, err := Apply(ctx, get, NewInt(1))
	if err != nil {
		t.Fatalf("netGet: %v", err)
	}
	if _, err := RunEffect(ctx, eff); !errors.Is(err, ErrBadOperand) {
		t.Fatalf("run = %v, want ErrBadOperand", err)
	}
}
