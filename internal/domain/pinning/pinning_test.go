package pinning

import (
	"errors"
	"testing"
)

func TestLooksLikePinningFailure(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("tls: unknown ca"), true},
		{errors.New("remote error: tls: bad certificate"), true},
		{errors.New("remote error: tls: handshake failure"), true},
		{errors.New("read: connection reset by peer"), true},
		{errors.New("dial tcp: i/o timeout"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := LooksLikePinningFailure(tt.err); got != tt.want {
			t.Errorf("LooksLikePinningFailure(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	if r.IsMetadataOnly("api.openai.com") {
		t.Error("fresh registry should not report metadata-only")
	}
	r.RecordFailure("api.openai.com", "bad certificate")
	if !r.IsMetadataOnly("api.openai.com") {
		t.Error("expected metadata-only after RecordFailure")
	}
	st := r.Get("api.openai.com")
	if st.Detections != 1 || st.Reason != "bad certificate" {
		t.Errorf("got %+v", st)
	}
}
