package httpgw

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/complyze/ai-proxy/internal/domain/classify"
	"github.com/complyze/ai-proxy/internal/domain/destination"
	"github.com/complyze/ai-proxy/internal/domain/pinning"
	"github.com/complyze/ai-proxy/internal/domain/policy"
	"github.com/complyze/ai-proxy/internal/domain/settings"
	"github.com/complyze/ai-proxy/internal/domain/telemetry"
)

// defaultInspectionTimeout is used when Terminator.InspectionTimeout is
// unset (INSPECTION_TIMEOUT_MS default 3000, spec §6).
const defaultInspectionTimeout = 3 * time.Second

// slowInspectionThresholdMS is the per-inspection latency above which a
// warning counter is incremented and a warning line logged (spec §4.9).
const slowInspectionThresholdMS = 300

var errInspectionTimeout = errors.New("httpgw: classification exceeded inspection timeout")

// inspectionSizeCaps bounds the three body-handling modes from spec §4.3:
// BUFFERED up to InspectionMax, STREAMING above it for multipart bodies,
// DRAINING (413, discard) above HardMax regardless of content type.
type inspectionSizeCaps struct {
	InspectionMax int64 // default 15MB
	HardMax       int64 // default 50MB
}

// NewInspectionSizeCaps builds the size caps for a Terminator from the
// configured inspection and hard body-size ceilings, in bytes.
func NewInspectionSizeCaps(inspectionMax, hardMax int64) inspectionSizeCaps {
	return inspectionSizeCaps{InspectionMax: inspectionMax, HardMax: hardMax}
}

// Terminator performs the TLS handshake on a hijacked CONNECT socket using
// a CA-minted leaf certificate, classifies each inner request, applies the
// resolved enforcement action, and forwards upstream, per spec §4.3-§4.6.
type Terminator struct {
	Certs         *CertCache
	Pinning       *pinning.Registry
	Settings      *settings.Snapshot
	Classifier    *classify.Engine
	Overrides     *policy.OverrideSet
	Forwarder     upstreamForwarder
	Store         *telemetry.Store
	Metrics       *telemetry.Metrics
	Tracer        *telemetry.Tracer
	Report        func(ctx context.Context, ev telemetry.ActivityEvent)
	Logger        *slog.Logger
	Caps          inspectionSizeCaps
	StrictPinMode bool

	// BulkThresholdChars is the extracted-attachment-text length above
	// which an upload counts as "bulk" exposure for REU purposes
	// (config default 5000).
	BulkThresholdChars int

	// FailOpen controls what happens when classification errors or exceeds
	// InspectionTimeout: true forwards the request unchanged and logs an
	// inspection_error; false returns 503 (FAIL_OPEN config knob).
	FailOpen bool

	// InspectionTimeout bounds how long classification may run before it
	// is treated as timed out. Defaults to defaultInspectionTimeout.
	InspectionTimeout time.Duration

	// Latency accumulates per-body-class inspection durations consumed by
	// the metrics_snapshot telemetry entry.
	Latency *telemetry.LatencyTracker

	// WorkspaceID seeds ActivityEvent.UserHash: this proxy has no
	// per-request session/auth concept, so the workspace identity it was
	// bootstrapped with is the closest stable "user" correlate available.
	WorkspaceID string
}

// Serve hijacks the CONNECT socket, completes a TLS server handshake as
// host, and loops reading/inspecting/forwarding HTTP/1.1 requests until
// the client closes the connection or a handshake/parse error ends it.
func (t *Terminator) Serve(w http.ResponseWriter, r *http.Request, host string) {
	hijacker, ok := w.(http.Hijacker)
	if !ok {
		t.Logger.Error("response writer does not support hijacking")
		http.Error(w, errHijackUnsupported.Error(), http.StatusInternalServerError)
		return
	}

	clientConn, _, err := hijacker.Hijack()
	if err != nil {
		t.Logger.Error("mitm hijack failed", "host", host, "error", err)
		return
	}

	if _, err := clientConn.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n")); err != nil {
		t.Logger.Error("mitm CONNECT reply failed", "host", host, "error", err)
		_ = clientConn.Close()
		return
	}

	cert, err := t.Certs.GetCert(host)
	if err != nil {
		t.Logger.Error("leaf certificate generation failed", "host", host, "error", err)
		_ = clientConn.Close()
		return
	}

	// Inspect-mode TLS sockets carry no idle deadline: a long-lived
	// streaming completion must not be cut off mid-response.
	_ = clientConn.SetDeadline(time.Time{})

	tlsConn := tls.Server(clientConn, &tls.Config{
		Certificates: []tls.Certificate{*cert},
		MinVersion:   tls.VersionTLS12,
	})

	if err := tlsConn.Handshake(); err != nil {
		_ = tlsConn.Close()
		if pinning.LooksLikePinningFailure(err) && !t.StrictPinMode {
			st := t.Pinning.RecordFailure(host, err.Error())
			t.Logger.Info("certificate pinning detected, demoting to metadata-only tunneling",
				"host", host, "detections", st.Detections)
		} else {
			t.Logger.Debug("mitm handshake failed", "host", host, "error", err)
		}
		return
	}
	defer func() { _ = tlsConn.Close() }()

	br := bufio.NewReaderSize(tlsConn, 32*1024)
	port := portFromHost(r.Host, 443)

	for {
		req, err := http.ReadRequest(br)
		if err != nil {
			if err != io.EOF {
				t.Logger.Debug("mitm inner request parse ended", "host", host, "error", err)
			}
			return
		}

		req.URL.Scheme = "https"
		req.URL.Host = host
		if req.URL.Path == "" {
			req.URL.Path = "/"
		}

		keepAlive := t.handleInnerRequest(tlsConn, req, host, port)
		if !keepAlive {
			return
		}
	}
}

// handleInnerRequest classifies, enforces, and forwards one decrypted
// request. It returns whether the connection should stay open for another
// request.
func (t *Terminator) handleInnerRequest(conn net.Conn, req *http.Request, host string, port int) bool {
	ctx := req.Context()
	rw := &rawResponseWriter{conn: conn}

	declaredLen := req.ContentLength
	if declaredLen > t.Caps.HardMax {
		t.Logger.Warn("request body exceeds hard cap, draining and rejecting",
			"host", host, "declared_len", declaredLen)
		writeSizeLimit(rw, "declared content-length exceeds the maximum permitted body size")
		t.logSizeLimit(telemetry.ReasonBodyTooLarge, host, declaredLen)
		drainBody(req.Body, declaredLen)
		return shouldKeepAlive(req)
	}

	boundary, isMultipart := "", false
	if ct := req.Header.Get("Content-Type"); ct != "" {
		boundary, isMultipart = multipartBoundary(ct)
	}

	exceedsInspectionCap := declaredLen < 0 || declaredLen > t.Caps.InspectionMax

	if isMultipart && exceedsInspectionCap {
		t.Logger.Info("attachment exceeds inspection cap, streaming without DLP", "host", host, "declared_len", declaredLen)
		t.logSizeLimit(telemetry.ReasonAttachmentSizeLimited, host, declaredLen)
		t.reportAttachmentSkipped(ctx, host, req.Method, req.URL.Path, declaredLen)
		t.forwardStreaming(rw, req, host, port)
		return shouldKeepAlive(req)
	}

	// Anything reaching here already passed the DRAINING hard-cap check
	// above, so it's safe to buffer in full: non-multipart bodies are
	// always fully buffered regardless of size, per the BUFFERED mode
	// definition (spec §4.3).
	body, err := readBoundedBody(req.Body, t.Caps.HardMax)
	if err != nil {
		t.Logger.Warn("reading request body failed, forwarding unchanged (fail open)", "host", host, "error", err)
		t.forwardBuffered(rw, req, host, port, nil, -1)
		return shouldKeepAlive(req)
	}

	t.inspectAndForward(ctx, rw, req, host, port, body, boundary, isMultipart)
	return shouldKeepAlive(req)
}

// inspectAndForward runs the BUFFERED path: classify, resolve the
// enforcement action (honoring any admin override), apply it, then
// forward the possibly-redacted body upstream.
func (t *Terminator) inspectAndForward(ctx context.Context, rw http.ResponseWriter, req *http.Request, host string, port int, body []byte, boundary string, isMultipart bool) {
	text := string(body)
	exposure := policy.ExposureTextOnly
	var attachments []attachmentPart

	if isMultipart {
		var err error
		attachments, err = extractMultipart(body, boundary)
		if err != nil {
			t.Logger.Warn("multipart extraction failed", "host", host, "error", err)
		}
		exposure = policy.ExposureAttachment
		threshold := t.BulkThresholdChars
		if threshold <= 0 {
			threshold = bulkThresholdChars
		}
		for _, a := range attachments {
			text += "\n" + a.ExtractedText
			if len(a.ExtractedText) > threshold {
				exposure = policy.ExposureBulk
			}
		}
	}

	bodyClass := "text"
	if isMultipart {
		bodyClass = "attachment"
	}

	_, classifySpan := t.Tracer.StartClassify(ctx, host)
	result, dur, cerr := t.classifyWithDeadline(text)
	classifySpan.End()

	t.Metrics.InspectionDuration.WithLabelValues(bodyClass).Observe(dur.Seconds())
	if t.Latency != nil {
		t.Latency.Observe(bodyClass, float64(dur.Milliseconds()))
	}
	if ms := dur.Milliseconds(); ms > slowInspectionThresholdMS {
		t.Metrics.InspectionSlowTotal.Inc()
		t.Logger.Warn("inspection exceeded latency threshold", "host", host, "duration_ms", ms, "body_class", bodyClass)
	}

	s := t.Settings.Load()

	if cerr != nil {
		t.Tracer.SetError(ctx, cerr)
		failOpen := t.FailOpen
		action := "forward"
		if !failOpen {
			action = "fail_closed"
		}
		t.logInspectionError(host, int64(len(body)), cerr.Error(), dur.Milliseconds(), failOpen, action)

		if !failOpen {
			writeFailClosed(rw, "classification exceeded the inspection timeout")
			return
		}

		// Fail-open: forward the request exactly as received and skip
		// policy evaluation entirely, so a timed-out inspection never
		// also returns a fail-closed response.
		_, forwardSpan := t.Tracer.StartForward(ctx, host)
		t.forwardBuffered(rw, req, host, port, body, int64(len(body)))
		forwardSpan.End()
		return
	}

	destClass := destination.Classify(host)
	_, policySpan := t.Tracer.StartPolicy(ctx, host, string(result.RiskCategory))
	decision := policy.Evaluate(result, exposure, destClass.DestinationMultiplier(), s)
	if action, matched := t.Overrides.Resolve(result, host, destClass == destination.ClassAPI); matched {
		decision = applyOverrideAction(decision, action)
	}
	policySpan.End()

	t.recordDecision(ctx, host, req.URL.Path, text, result, decision, s)

	if decision.HasAction() {
		t.Metrics.EnforcementActions.WithLabelValues(string(decision.Action)).Inc()
	}
	for _, c := range result.CategoriesDetected {
		if c != classify.CategoryNone {
			t.Metrics.CategoriesDetected.WithLabelValues(string(c)).Inc()
		}
	}

	if decision.Blocked {
		writeBlocked(rw, string(result.RiskCategory), string(s.ResolveEnforcementMode()))
		return
	}

	// Warn mode withholds the request too; the client must resend with an
	// explicit override to proceed (spec §4.6).
	if decision.Action == policy.ActionWarn {
		writeWarn(rw, string(result.RiskCategory))
		return
	}

	outBody := body
	if decision.Action == policy.ActionRedact {
		outBody = policy.Redact(body)
	}

	_, forwardSpan := t.Tracer.StartForward(ctx, host)
	t.forwardBuffered(rw, req, host, port, outBody, int64(len(outBody)))
	forwardSpan.End()
}

// classifyWithDeadline runs the classifier on a background goroutine and
// waits up to t.InspectionTimeout for it to finish. RE2 matching can't be
// interrupted mid-scan: a timed-out goroutine keeps running to completion
// in the background and its result is simply discarded when it arrives.
func (t *Terminator) classifyWithDeadline(text string) (classify.Result, time.Duration, error) {
	start := time.Now()
	resultCh := make(chan classify.Result, 1)
	go func() {
		resultCh <- t.Classifier.Classify(text)
	}()

	timeout := t.InspectionTimeout
	if timeout <= 0 {
		timeout = defaultInspectionTimeout
	}

	select {
	case result := <-resultCh:
		return result, time.Since(start), nil
	case <-time.After(timeout):
		return classify.Result{}, time.Since(start), errInspectionTimeout
	}
}

func applyOverrideAction(d policy.Decision, action policy.Action) policy.Decision {
	d.Action = action
	d.Blocked = action == policy.ActionBlock
	d.WarnOverride = action == policy.ActionWarn
	return d
}

func (t *Terminator) recordDecision(ctx context.Context, host, path, text string, result classify.Result, decision policy.Decision, s settings.Settings) {
	if !policy.Sensitive(result) {
		return
	}

	categories := make([]string, 0, len(result.CategoriesDetected))
	for _, c := range result.CategoriesDetected {
		categories = append(categories, string(c))
	}

	now := time.Now().UTC()

	entry := telemetry.Entry{
		Kind:      telemetry.KindEnforcementDecision,
		Timestamp: now,
		EnforcementDecision: &telemetry.EnforcementDecision{
			Hostname:          host,
			Path:              path,
			Categories:        categories,
			SensitivityScore:  result.SensitivityScore,
			RiskCategory:      string(result.RiskCategory),
			REUScore:          decision.REU,
			EnforcementMode:   string(s.ResolveEnforcementMode()),
			EnforcementAction: string(decision.Action),
		},
	}
	if t.Store != nil {
		if err := t.Store.Append(entry); err != nil {
			t.Metrics.TelemetryDropsTotal.Inc()
			t.Logger.Warn("telemetry append failed", "error", err)
		}
	}

	if t.Report == nil {
		return
	}

	ev := telemetry.ActivityEvent{
		ID:                          uuid.New().String(),
		Tool:                        destination.Tool(host),
		ToolDomain:                  host,
		UserHash:                    classify.Hash(t.WorkspaceID),
		PromptHash:                  classify.Hash(text),
		PromptLength:                len(text),
		TokenCountEstimate:          classify.TokenEstimate(text),
		APIEndpoint:                 host + path,
		SensitivityScore:            result.SensitivityScore,
		SensitivityCategories:       categories,
		PolicyViolationFlag:         result.PolicyViolationFlag,
		RiskCategory:                string(result.RiskCategory),
		Timestamp:                   now.Format(time.RFC3339),
		EnforcementAction:           string(decision.Action),
		AttachmentInspectionEnabled: s.InspectAttachments,
	}
	// Decision.Blocked is already true only for enforcement=block with a
	// critical-risk result (policy.Evaluate); Blocked is omitted entirely
	// otherwise rather than reported as false.
	if decision.Blocked {
		blocked := true
		ev.Blocked = &blocked
	}
	if s.FullAuditMode {
		ev.FullPrompt = text
	}
	t.Report(ctx, ev)
}

func (t *Terminator) logSizeLimit(reason telemetry.SizeLimitReason, host string, declaredLen int64) {
	if t.Store == nil {
		return
	}
	entry := telemetry.Entry{
		Kind:      telemetry.KindSizeLimit,
		Timestamp: time.Now().UTC(),
		SizeLimit: &telemetry.SizeLimit{
			Reason:      reason,
			Hostname:    host,
			DeclaredLen: declaredLen,
		},
	}
	if err := t.Store.Append(entry); err != nil {
		t.Metrics.TelemetryDropsTotal.Inc()
		t.Logger.Warn("telemetry append failed", "error", err)
	}
}

// reportAttachmentSkipped posts the scenario-5 ActivityEvent for an
// attachment too large to buffer for DLP: it was streamed straight through
// with no inspection at all, a distinct case from logSizeLimit's JSONL
// size_limit entry (which records the rejection reason, not the activity).
func (t *Terminator) reportAttachmentSkipped(ctx context.Context, host, method, path string, declaredLen int64) {
	ev := telemetry.ActivityEvent{
		ID:          uuid.New().String(),
		Tool:        destination.Tool(host),
		ToolDomain:  host,
		UserHash:    classify.Hash(t.WorkspaceID),
		APIEndpoint: host + path,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Method:      method,
		Body:        fmt.Sprintf("[attachment: %d bytes — skipped]", declaredLen),
	}
	if t.Store != nil {
		entry := telemetry.Entry{Kind: telemetry.KindActivity, Timestamp: time.Now().UTC(), Activity: &ev}
		if err := t.Store.Append(entry); err != nil {
			t.Metrics.TelemetryDropsTotal.Inc()
			t.Logger.Warn("telemetry append failed", "error", err)
		}
	}
	if t.Report != nil {
		t.Report(ctx, ev)
	}
}

// logInspectionError appends an inspection_error entry for a classifier
// timeout, recording whether the request was forwarded unchanged
// (fail-open) or rejected with 503 (fail-closed).
func (t *Terminator) logInspectionError(host string, fileSize int64, message string, inspectionMS int64, failOpen bool, action string) {
	if t.Store == nil {
		return
	}
	entry := telemetry.Entry{
		Kind:      telemetry.KindInspectionError,
		Timestamp: time.Now().UTC(),
		InspectionError: &telemetry.InspectionError{
			RequestID:    uuid.New().String(),
			Hostname:     host,
			FileSize:     fileSize,
			ErrorMessage: message,
			InspectionMS: inspectionMS,
			FailOpen:     failOpen,
			Action:       action,
		},
	}
	if err := t.Store.Append(entry); err != nil {
		t.Metrics.TelemetryDropsTotal.Inc()
		t.Logger.Warn("telemetry append failed", "error", err)
	}
}

func (t *Terminator) forwardBuffered(w http.ResponseWriter, req *http.Request, host string, port int, body []byte, bodyLen int64) {
	freq := &forwardRequest{
		Method:  req.Method,
		URL:     req.URL.RequestURI(),
		Proto:   req.Proto,
		Host:    host,
		Port:    port,
		Header:  req.Header,
		BodyLen: bodyLen,
	}
	if body != nil {
		freq.Body = bytesReader(body)
	}
	if err := t.Forwarder.Forward(w, freq); err != nil {
		t.Logger.Error("upstream forward failed", "host", host, "error", err)
		writeUpstreamError(w, "failed to reach upstream host")
	}
}

// forwardStreaming pipes an oversized multipart body straight through to
// the forwarder without buffering or DLP, per spec §4.3's STREAMING mode.
func (t *Terminator) forwardStreaming(w http.ResponseWriter, req *http.Request, host string, port int) {
	freq := &forwardRequest{
		Method:  req.Method,
		URL:     req.URL.RequestURI(),
		Proto:   req.Proto,
		Host:    host,
		Port:    port,
		Header:  req.Header,
		Body:    req.Body,
		BodyLen: req.ContentLength,
	}
	if err := t.Forwarder.Forward(w, freq); err != nil {
		t.Logger.Error("upstream streaming forward failed", "host", host, "error", err)
		writeUpstreamError(w, "failed to reach upstream host")
	}
}

func readBoundedBody(body io.ReadCloser, limit int64) ([]byte, error) {
	defer func() { _ = body.Close() }()
	return io.ReadAll(io.LimitReader(body, limit+1))
}

// drainBody discards up to n bytes (or a safety cap if n is unknown) so
// the next request on the same TLS stream can still be parsed.
func drainBody(body io.ReadCloser, n int64) {
	defer func() { _ = body.Close() }()
	if n < 0 {
		n = 50 * 1024 * 1024
	}
	_, _ = io.CopyN(io.Discard, body, n)
}

func shouldKeepAlive(req *http.Request) bool {
	return !req.Close && req.Header.Get("Connection") != "close"
}

func bytesReader(b []byte) io.Reader {
	return &byteSliceReader{data: b}
}

type byteSliceReader struct {
	data []byte
	pos  int
}

func (r *byteSliceReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

// rawResponseWriter implements http.ResponseWriter directly over a
// net.Conn for writing error/blocked/warn responses on the decrypted
// TLS stream, mirroring the teacher's manual HTTP/1.1 writer pattern.
type rawResponseWriter struct {
	conn        net.Conn
	header      http.Header
	wroteHeader bool
	statusCode  int
}

func (rw *rawResponseWriter) Header() http.Header {
	if rw.header == nil {
		rw.header = make(http.Header)
	}
	return rw.header
}

func (rw *rawResponseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.conn.Write(b)
}

func (rw *rawResponseWriter) WriteHeader(statusCode int) {
	if rw.wroteHeader {
		return
	}
	rw.wroteHeader = true
	rw.statusCode = statusCode

	var buf []byte
	buf = append(buf, fmt.Sprintf("HTTP/1.1 %d %s\r\n", statusCode, http.StatusText(statusCode))...)
	for k, vv := range rw.header {
		for _, v := range vv {
			buf = append(buf, fmt.Sprintf("%s: %s\r\n", k, v)...)
		}
	}
	buf = append(buf, "\r\n"...)
	_, _ = rw.conn.Write(buf)
}

const bulkThresholdChars = 5000
