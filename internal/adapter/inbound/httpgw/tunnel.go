package httpgw

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/complyze/ai-proxy/internal/domain/telemetry"
)

// Tunneler opens a transparent TCP relay for a CONNECT target. In
// metadata mode it accumulates byte counts and posts a single
// ActivityEvent on close, per spec §4.2.
type Tunneler struct {
	Logger  *slog.Logger
	Store   *telemetry.Store
	Metrics *telemetry.Metrics
	Report  func(ctx context.Context, ev telemetry.ActivityEvent)
}

// Serve dials host, replies 200 Connection Established, and relays bytes
// until either side closes or the idle timeout elapses. Byte counts are
// tracked and debug-logged in both modes; metadataMode controls whether
// the tunnel is counted in TunnelBypassesTotal and an ActivityEvent is
// written and reported.
func (tn *Tunneler) Serve(w http.ResponseWriter, r *http.Request, host string, metadataMode bool) {
	hijacker, ok := w.(http.Hijacker)
	if !ok {
		tn.Logger.Error("response writer does not support hijacking")
		http.Error(w, errHijackUnsupported.Error(), http.StatusInternalServerError)
		return
	}

	target := r.Host
	targetConn, err := net.DialTimeout("tcp", target, 10*time.Second)
	if err != nil {
		tn.Logger.Error("tunnel dial failed", "host", target, "error", err)
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}

	clientConn, _, err := hijacker.Hijack()
	if err != nil {
		tn.Logger.Error("tunnel hijack failed", "error", err)
		_ = targetConn.Close()
		return
	}

	if _, err := clientConn.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n")); err != nil {
		tn.Logger.Error("tunnel CONNECT reply failed", "error", err)
		_ = clientConn.Close()
		_ = targetConn.Close()
		return
	}

	if tn.Metrics != nil {
		tn.Metrics.ActiveConnections.Inc()
		defer tn.Metrics.ActiveConnections.Dec()
		if metadataMode {
			tn.Metrics.TunnelBypassesTotal.Inc()
		}
	}

	var upstreamBytes, downstreamBytes int64

	if tunnelIdleTimeout > 0 {
		deadline := time.Now().Add(tunnelIdleTimeout)
		_ = clientConn.SetDeadline(deadline)
		_ = targetConn.SetDeadline(deadline)
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		n := copyWithIdleReset(targetConn, clientConn, tunnelIdleTimeout)
		atomic.AddInt64(&upstreamBytes, n)
		if tc, ok := targetConn.(*net.TCPConn); ok {
			_ = tc.CloseWrite()
		}
	}()

	go func() {
		defer wg.Done()
		n := copyWithIdleReset(clientConn, targetConn, tunnelIdleTimeout)
		atomic.AddInt64(&downstreamBytes, n)
		if tc, ok := clientConn.(*net.TCPConn); ok {
			_ = tc.CloseWrite()
		}
	}()

	wg.Wait()
	_ = clientConn.Close()
	_ = targetConn.Close()

	tn.Logger.Debug("tunnel closed", "host", host, "metadata_mode", metadataMode,
		"upstream_bytes", upstreamBytes, "downstream_bytes", downstreamBytes)

	if metadataMode {
		ev := telemetry.ActivityEvent{
			Method: "CONNECT",
			Body:   fmt.Sprintf("[metadata-only: %s]", host),
		}
		if tn.Store != nil {
			entry := telemetry.Entry{Kind: telemetry.KindActivity, Timestamp: time.Now().UTC(), Activity: &ev}
			if err := tn.Store.Append(entry); err != nil {
				tn.Logger.Warn("failed to write tunnel activity entry", "error", err)
				if tn.Metrics != nil {
					tn.Metrics.TelemetryDropsTotal.Inc()
				}
			}
		}
		if tn.Report != nil {
			tn.Report(r.Context(), ev)
		}
	}
}

// copyWithIdleReset copies from src to dst, resetting the connection's
// idle deadline after every successful read so long-lived but active
// tunnels are not cut off. A zero timeout disables the deadline entirely.
func copyWithIdleReset(dst, src net.Conn, idleTimeout time.Duration) int64 {
	buf := make([]byte, 32*1024)
	var total int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if idleTimeout > 0 {
				_ = src.SetDeadline(time.Now().Add(idleTimeout))
				_ = dst.SetDeadline(time.Now().Add(idleTimeout))
			}
			written, werr := dst.Write(buf[:n])
			total += int64(written)
			if werr != nil {
				return total
			}
		}
		if err != nil {
			return total
		}
	}
}

// splitConnectHost extracts the bare hostname from a CONNECT authority,
// which may include an IPv6 literal in brackets and an optional port.
// An empty authority returns errMalformedConnect.
func splitConnectHost(authority string) (string, error) {
	host, _, err := net.SplitHostPort(authority)
	if err == nil {
		return host, nil
	}
	// No port present; treat the whole authority as the host, with the
	// brackets of an IPv6 literal stripped.
	if authority == "" {
		return "", errMalformedConnect
	}
	return strings.TrimSuffix(strings.TrimPrefix(authority, "["), "]"), nil
}

// portFromHost extracts the numeric port from a host:port string,
// defaulting when absent or unparsable.
func portFromHost(authority string, defaultPort int) int {
	_, portStr, err := net.SplitHostPort(authority)
	if err != nil {
		return defaultPort
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return defaultPort
	}
	return port
}
