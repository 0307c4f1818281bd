package auth

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

const (
	testID     = "0123456789abcdef0123456789abcdef"
	testMethod = "/linewarden.v1.Validator/Validate"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef-secret")

func signedMD(id string, secret []byte, method string, at time.Time) metadata.MD {
	ts := strconv.FormatInt(at.Unix(), 10)
	return metadata.Pairs(
		HeaderSecretID, id,
		HeaderTimestamp, ts,
		HeaderSignature, ComputeHMAC(secret, SigningPayload(method, ts)),
	)
}

func TestAuthenticate(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	a := NewAuthenticator(map[string][]byte{testID: testSecret})
	a.now = func() time.Time { return now }

	tests := []struct {
		name    string
		md      metadata.MD
		wantErr error
	}{
		{name: "valid", md: signedMD(testID, testSecret, testMethod, now)},
		{name: "within skew", md: signedMD(testID, testSecret, testMethod, now.Add(-4*time.Minute))},
		{name: "missing headers", md: metadata.MD{}, wantErr: ErrMissingSignature},
		{name: "unknown secret", md: signedMD("fedcba9876543210fedcba9876543210", testSecret, testMethod, now), wantErr: ErrUnknownSecret},
		{name: "wrong secret", md: signedMD(testID, []byte("other"), testMethod, now), wantErr: ErrInvalidSignature},
		{name: "other method", md: signedMD(testID, testSecret, "/x/Y", now), wantErr: ErrInvalidSignature},
		{name: "stale", md: signedMD(testID, testSecret, testMethod, now.Add(-10*time.Minute)), wantErr: ErrStaleSignature},
		{name: "future", md: signedMD(testID, testSecret, testMethod, now.Add(10*time.Minute)), wantErr: ErrStaleSignature},
		{
			name:    "bad timestamp",
			md:      metadata.Pairs(HeaderSecretID, testID, HeaderTimestamp, "noon", HeaderSignature, "00"),
			wantErr: ErrInvalidSignature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := a.Authenticate(tt.md, testMethod)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Authenticate() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && id != testID {
				t.Errorf("Authenticate() = %q, want %q", id, testID)
			}
		})
	}
}

func TestSignerRoundTrip(t *testing.T) {
	s := NewSigner(testID, testSecret)
	a := NewAuthenticator(map[string][]byte{testID: testSecret})

	var sent metadata.MD
	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		sent, _ = metadata.FromOutgoingContext(ctx)
		return nil
	}
	if err := s.UnaryClientInterceptor()(context.Background(), testMethod, nil, nil, nil, invoker); err != nil {
		t.Fatalf("interceptor error = %v", err)
	}

	handled := false
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		handled = true
		if got := SecretIDFromContext(ctx); got != testID {
			t.Errorf("SecretIDFromContext() = %q, want %q", got, testID)
		}
		return nil, nil
	}
	ctx := metadata.NewIncomingContext(context.Background(), sent)
	if _, err := a.UnaryInterceptor()(ctx, nil, &grpc.UnaryServerInfo{FullMethod: testMethod}, handler); err != nil {
		t.Fatalf("UnaryInterceptor() error = %v, want nil", err)
	}
	if !handled {
		t.Error("handler not called")
	}
}

func TestVerifyHMAC(t *testing.T) {
	sig := ComputeHMAC(testSecret, "payload")
	if !VerifyHMAC(sig, ComputeHMAC(testSecret, "payload")) {
		t.Error("VerifyHMAC() = false for identical signatures")
	}
	if VerifyHMAC(sig, ComputeHMAC(testSecret, "other")) {
		t.Error("VerifyHMAC() = true for different payloads")
	}
	if SecretIDFromContext(context.Background()) != "" {
		t.Error("SecretIDFromContext() on empty context should be empty")
	}
}
