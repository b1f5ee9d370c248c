// Package playerctl is the typed client of the signloop control RPC.
// It speaks JSON-RPC 2.0 over HTTP to a running daemon and is what the
// signloop control commands are built on.
package playerctl

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"

	"github.com/signloop/signloop/common"
)

// DEF_RPC_TIMEOUT bounds one control call end to end.
const DEF_RPC_TIMEOUT = 15 * time.Second

type Client struct {
	addr string
	ch   *jhttp.Channel
	cli  *jrpc2.Client
}

// NewClient connects to the daemon's control endpoint. Empty addr or
// secret fall back to the SIGNLOOP_ADDR and SIGNLOOP_RPC_SECRET
// environment variables, then to the default loopback address.
func NewClient(addr, secret string) (*Client, error) {
	if addr == "" {
		addr = os.Getenv(common.AddrEnv)
	}
	if addr == "" {
		addr = common.DEF_ADDR
	}
	if secret == "" {
		secret = os.Getenv(common.SecretEnv)
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}

	hc := &http.Client{
		Timeout: DEF_RPC_TIMEOUT,
		Transport: &authTransport{
			secret: secret,
			base:   http.DefaultTransport,
		},
	}
	ch := jhttp.NewChannel(strings.TrimSuffix(addr, "/")+"/rpc", &jhttp.ChannelOptions{
		Client: hc,
	})
	return &Client{
		addr: addr,
		ch:   ch,
		cli:  jrpc2.NewClient(ch, nil),
	}, nil
}

// Addr returns the resolved control endpoint base address.
func (c *Client) Addr() string {
	return c.addr
}

// Close stops the RPC client and its channel.
func (c *Client) Close() error {
	c.cli.Close()
	return nil
}

// invoke calls one method and decodes its result.
func invoke[T any](c *Client, method common.Method, params any) (*T, error) {
	ctx, cancel := context.WithTimeout(context.Background(), DEF_RPC_TIMEOUT)
	defer cancel()
	var out T
	if err := c.cli.CallResult(ctx, string(method), params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// authTransport adds the Bearer token to every request. The request is
// cloned first; RoundTrippers must not mutate their input.
type authTransport struct {
	secret string
	base   http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.secret == "" {
		return t.base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+t.secret)
	return t.base.RoundTrip(r)
}
