package httpgw

import (
	"bufio"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"strconv"
	"strings"
	"time"
)

// hopByHopHeaders are stripped before forwarding upstream, per RFC 7230 §6.1
// plus the proxy's own Proxy-Connection header.
var hopByHopHeaders = []string{
	"Proxy-Connection",
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailers",
	"Transfer-Encoding",
	"Upgrade",
	// Content-Length is always re-derived from BodyLen below: Go's
	// http.ReadRequest already de-chunks the client's body, so the
	// original header (if any) no longer matches what we send.
	"Content-Length",
}

// upstreamForwarder is the Terminator's dependency on the forwarding step,
// satisfied by *Forwarder in production and swappable in tests.
type upstreamForwarder interface {
	Forward(w http.ResponseWriter, freq *forwardRequest) error
}

// Forwarder sends an inspected (or pass-through) request to the real
// upstream host over TLS and streams the response back to the client,
// per spec §4.4.
type Forwarder struct {
	Logger *slog.Logger
}

// forwardRequest is everything the Terminator has assembled for one
// inner HTTP request by the time it's ready to go upstream.
type forwardRequest struct {
	Method string
	URL    string // path + query, no scheme/host
	Proto  string
	Host   string // SNI / Host header target
	Port   int
	Header http.Header
	Body   io.Reader // nil for no body
	// BodyLen, when >= 0, is sent as Content-Length and disables
	// chunked Transfer-Encoding. When negative, a non-nil Body is sent
	// chunked and a nil Body gets no length header. Content-Length and
	// Transfer-Encoding in Header are never forwarded.
	BodyLen int64
}

// Forward dials host:port over TLS, writes freq as an HTTP/1.1 request,
// and copies the upstream response into w. It returns an error only when
// no response was received at all (caller maps that to a 502); once
// headers have been written to w, forwarding failures are logged and the
// connection is simply closed.
func (f *Forwarder) Forward(w http.ResponseWriter, freq *forwardRequest) error {
	addr := net.JoinHostPort(freq.Host, strconv.Itoa(freq.Port))
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: freq.Host, MinVersion: tls.VersionTLS12})
	if err != nil {
		return fmt.Errorf("dial upstream %s: %w", addr, err)
	}
	defer func() { _ = conn.Close() }()
	_ = conn.SetDeadline(time.Now().Add(60 * time.Second))

	if err := writeUpstreamRequest(conn, freq); err != nil {
		return fmt.Errorf("write upstream request: %w", err)
	}

	br := bufio.NewReaderSize(conn, 32*1024)
	resp, err := http.ReadResponse(br, nil)
	if err != nil {
		return fmt.Errorf("read upstream response: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	for k, vv := range resp.Header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	if isEventStream(resp.Header.Get("Content-Type")) {
		streamSSE(w, resp.Body, f.Logger)
		return nil
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		f.Logger.Warn("upstream response copy failed mid-stream", "host", freq.Host, "error", err)
	}
	return nil
}

func writeUpstreamRequest(conn net.Conn, freq *forwardRequest) error {
	bw := bufio.NewWriter(conn)

	if _, err := fmt.Fprintf(bw, "%s %s HTTP/1.1\r\n", freq.Method, freq.URL); err != nil {
		return err
	}
	if freq.Header.Get("Host") == "" {
		if _, err := fmt.Fprintf(bw, "Host: %s\r\n", freq.Host); err != nil {
			return err
		}
	}

	for k, vv := range freq.Header {
		if isHopByHop(k) {
			continue
		}
		for _, v := range vv {
			if _, err := fmt.Fprintf(bw, "%s: %s\r\n", k, v); err != nil {
				return err
			}
		}
	}

	chunked := freq.BodyLen < 0 && freq.Body != nil
	switch {
	case chunked:
		if _, err := bw.WriteString("Transfer-Encoding: chunked\r\n"); err != nil {
			return err
		}
	case freq.BodyLen >= 0:
		if _, err := fmt.Fprintf(bw, "Content-Length: %d\r\n", freq.BodyLen); err != nil {
			return err
		}
	}
	if _, err := bw.WriteString("Connection: close\r\n\r\n"); err != nil {
		return err
	}

	if freq.Body != nil {
		if chunked {
			cw := httputil.NewChunkedWriter(bw)
			if _, err := io.Copy(cw, freq.Body); err != nil {
				return err
			}
			if err := cw.Close(); err != nil {
				return err
			}
			if _, err := bw.WriteString("\r\n"); err != nil {
				return err
			}
		} else if _, err := io.Copy(bw, freq.Body); err != nil {
			return err
		}
	}

	return bw.Flush()
}

func isHopByHop(header string) bool {
	for _, h := range hopByHopHeaders {
		if strings.EqualFold(h, header) {
			return true
		}
	}
	return false
}

func isEventStream(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "text/event-stream")
}

// streamSSE forwards each chunk as soon as it's read, flushing after every
// write so token-by-token SSE delivery isn't buffered by the proxy.
func streamSSE(w http.ResponseWriter, body io.Reader, logger *slog.Logger) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 4*1024)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			if err != io.EOF {
				logger.Debug("sse stream ended", "error", err)
			}
			return
		}
	}
}
