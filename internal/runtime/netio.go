package runtime

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/http"
	"time"

	http3 "github.com/quic-go/quic-go/http3"
)

// NetServer wraps the http3.Server lifecycle behind the net.serve builtin.
type NetServer struct {
	srv  *http3.Server
	pc   net.PacketConn
	addr string
	stop func() error
}

// NewNetServer builds a server bound to addr with the given handler and a
// self-signed certificate. Pass ":0" for an ephemeral UDP port.
func NewNetServer(addr string, h http.Handler) (*NetServer, error) {
	cfg, err := selfSignedTLS()
	if err != nil {
		return nil, err
	}
	s := &http3.Server{Addr: addr, TLSConfig: cfg, Handler: h}
	return &NetServer{srv: s, addr: addr}, nil
}

// Start begins serving and returns the bound address.
func (s *NetServer) Start() (string, error) {
	var err error
	s.pc, err = net.ListenPacket("udp", s.addr)
	if err != nil {
		return "", err
	}
	bound := s.pc.LocalAddr().String()
	done := make(chan struct{})
	go func() {
		_ = s.srv.Serve(s.pc)
		close(done)
	}()
	s.stop = func() error {
		_ = s.pc.Close()
		select {
		case <-done:
		case <-time.After(time.Second):
		}
		return nil
	}
	return bound, nil
}

// Stop shuts the server down.
func (s *NetServer) Stop() error {
	if s.stop != nil {
		return s.stop()
	}
	return nil
}

// netServeBuiltin serves HTTP/3 on the given port, answering each request
// by applying the handler closure to the request path. The effect blocks
// until the runtime's cancellation token trips.
func netServeBuiltin(ctx *Context, args []*Handle) (*Handle, error) {
	portH, handler := args[0], args[1]
	return NewOp(func(ctx *Context) (*Handle, error) {
		pv := portH.Value()
		if pv.Tag != TagInt {
			return nil, ErrBadOperand
		}
		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := Apply(ctx, handler, NewText(r.URL.Path))
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			rv := res.Value()
			if rv.Tag != TagText {
				http.Error(w, "handler returned non-text", http.StatusInternalServerError)
				return
			}
			io.WriteString(w, rv.Text)
		})
		srv, err := NewNetServer(fmt.Sprintf(":%d", pv.Int), h)
		if err != nil {
			return nil, wrapTransport(err)
		}
		if _, err := srv.Start(); err != nil {
			return nil, wrapTransport(err)
		}
		<-ctx.rt.cancel.Done()
		_ = srv.Stop()
		return Unit(), nil
	}), nil
}

// netGetBuiltin fetches a URL over HTTP/3 and yields the response body.
func netGetBuiltin(ctx *Context, args []*Handle) (*Handle, error) {
	urlH := args[0]
	return NewOp(func(ctx *Context) (*Handle, error) {
		uv := urlH.Value()
		if uv.Tag != TagText {
			return nil, ErrBadOperand
		}
		tr := &http3.Transport{TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true,
			MinVersion:         tls.VersionTLS12,
		}}
		defer tr.Close()
		client := &http.Client{Transport: tr, Timeout: 10 * time.Second}
		resp, err := client.Get(uv.Text)
		if err != nil {
			return nil, wrapTransport(err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, wrapTransport(err)
		}
		return NewText(string(body)), nil
	}), nil
}

// wrapTransport converts a host or transport error into the domain
// failure observable by user code.
func wrapTransport(err error) error {
	return &FailError{Payload: NewText(err.Error())}
}

// selfSignedTLS builds an in-memory certificate for local serving.
func selfSignedTLS() (*tls.Config, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "lumen"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
