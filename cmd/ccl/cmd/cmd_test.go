package cmd

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/msto63/cclbridge/internal/relay"
	"github.com/msto63/cclbridge/pkg/ccl"
	"github.com/msto63/cclbridge/pkg/ccl/ccltest"
)

const userBody = `{"REPLY":{"STATUS":"SUCCESS","VALUE":"{\"REPLY\":{\"NAME\":\"Jane\",\"ID\":42}}"}}`

// runCLI executes the root command with fresh flag state
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgFile, relayAddr, timeout, verbose, userJSON = "", "", 0, false, false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "[general]\nlog_level = \"error\"\n\n[webservice]\nbase_url = \"" + baseURL + "\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func webService(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCallCommand(t *testing.T) {
	ws := webService(t, `{"REPLY":{"STATUS":"SUCCESS","VALUE":"hello"}}`)

	out, err := runCLI(t, "call", "SUB", "--config", writeConfig(t, ws.URL))
	if err != nil {
		t.Fatalf("call error = %v", err)
	}
	if strings.TrimSpace(out) != "hello" {
		t.Errorf("output = %q, want hello", out)
	}
}

func TestFetchCommand(t *testing.T) {
	ws := webService(t, "raw body")

	out, err := runCLI(t, "fetch", "PROG", `"X"`, "--config", writeConfig(t, ws.URL))
	if err != nil {
		t.Fatalf("fetch error = %v", err)
	}
	if strings.TrimSpace(out) != "raw body" {
		t.Errorf("output = %q", out)
	}
}

func TestFetchCommand_NoFacility(t *testing.T) {
	out, err := runCLI(t, "fetch", "PROG", "--config", writeConfig(t, ""))
	if err != nil {
		t.Fatalf("fetch error = %v", err)
	}
	if !strings.Contains(out, "no request facility available") {
		t.Errorf("output = %q", out)
	}
}

func TestUserCommand(t *testing.T) {
	ws := webService(t, userBody)

	out, err := runCLI(t, "user", "--config", writeConfig(t, ws.URL))
	if err != nil {
		t.Fatalf("user error = %v", err)
	}
	for _, want := range []string{"Current user", "NAME", "Jane", "ID", "42"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %q", want, out)
		}
	}
}

func TestUserCommand_JSON(t *testing.T) {
	ws := webService(t, userBody)

	out, err := runCLI(t, "user", "--json", "--config", writeConfig(t, ws.URL))
	if err != nil {
		t.Fatalf("user error = %v", err)
	}
	if !strings.Contains(out, `"NAME": "Jane"`) {
		t.Errorf("output = %q", out)
	}
}

func TestCallCommand_ThroughRelay(t *testing.T) {
	facility := ccltest.NewFacility().
		Respond(ccl.HelperProgram, ccltest.OK(`{"REPLY":{"STATUS":"SUCCESS","VALUE":"relayed"}}`))
	srv := relay.New(relay.DefaultConfig(), ccl.NewAdapter(facility))

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})

	out, err := runCLI(t, "call", "SUB", "--relay", lis.Addr().String(), "--config", writeConfig(t, ""))
	if err != nil {
		t.Fatalf("call error = %v", err)
	}
	if strings.TrimSpace(out) != "relayed" {
		t.Errorf("output = %q", out)
	}
}

func TestCallCommand_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not allowed", http.StatusMethodNotAllowed)
	}))
	t.Cleanup(srv.Close)

	out, err := runCLI(t, "call", "SUB", "--config", writeConfig(t, srv.URL))
	if !ccl.IsStatus(err, ccl.StatusMethodNotAllowed) {
		t.Fatalf("call error = %v, want status 405", err)
	}
	if !strings.Contains(out, "A 405 error occurred in XMLCclRequest") {
		t.Errorf("output = %q", out)
	}
}

func TestRenderReply(t *testing.T) {
	if got := renderReply("User", ccl.Reply{}); !strings.Contains(got, "no user information") {
		t.Errorf("renderReply(empty) = %q", got)
	}
	got := renderReply("User", ccl.Reply{"B": "2", "A": "1"})
	if strings.Index(got, "A") > strings.Index(got, "B") {
		t.Errorf("renderReply() keys not sorted: %q", got)
	}
}
