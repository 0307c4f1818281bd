// Package auth signs and verifies validation requests with HMAC-SHA256.
package auth

import (
	"context"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Metadata keys carried by signed requests.
const (
	HeaderSecretID  = "x-secret-id"
	HeaderTimestamp = "x-timestamp"
	HeaderSignature = "x-signature"
)

// DefaultMaxSkew bounds the difference between the signer's clock and ours.
const DefaultMaxSkew = 5 * time.Minute

type contextKey string

const secretIDKey = contextKey("secret_id")

// Authenticator verifies signed requests against the configured secrets.
// Several secrets may be active at once to allow rotation.
type Authenticator struct {
	secrets map[string][]byte
	maxSkew time.Duration
	now     func() time.Time
}

// NewAuthenticator creates an authenticator with HMAC secrets keyed by
// secret ID.
func NewAuthenticator(secrets map[string][]byte) *Authenticator {
	return &Authenticator{
		secrets: secrets,
		maxSkew: DefaultMaxSkew,
		now:     time.Now,
	}
}

// Authenticate checks the signature of a call to fullMethod and returns the
// secret ID that signed it.
func (a *Authenticator) Authenticate(md metadata.MD, fullMethod string) (string, error) {
	secretID := first(md, HeaderSecretID)
	ts := first(md, HeaderTimestamp)
	sig := first(md, HeaderSignature)
	if secretID == "" || ts == "" || sig == "" {
		return "", ErrMissingSignature
	}

	secret, ok := a.secrets[secretID]
	if !ok {
		return "", ErrUnknownSecret
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", ErrInvalidSignature
	}
	skew := a.now().Sub(time.Unix(unix, 0))
	if skew < -a.maxSkew || skew > a.maxSkew {
		return "", ErrStaleSignature
	}

	if !VerifyHMAC(sig, ComputeHMAC(secret, SigningPayload(fullMethod, ts))) {
		return "", ErrInvalidSignature
	}
	return secretID, nil
}

// UnaryInterceptor returns gRPC interceptor that authenticates requests.
// Health checks pass unauthenticated.
func (a *Authenticator) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if info.FullMethod == "/grpc.health.v1.Health/Check" {
			return handler(ctx, req)
		}
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		secretID, err := a.Authenticate(md, info.FullMethod)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}

		ctx = context.WithValue(ctx, secretIDKey, secretID)
		return handler(ctx, req)
	}
}

// SecretIDFromContext returns the secret ID that signed the request, or ""
// when the request was not authenticated.
func SecretIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(secretIDKey).(string); ok {
		return id
	}
	return ""
}

// Signer adds signature metadata to outgoing calls.
type Signer struct {
	secretID string
	secret   []byte
	now      func() time.Time
}

// NewSigner creates a Signer for one secret.
func NewSigner(secretID string, secret []byte) *Signer {
	return &Signer{secretID: secretID, secret: secret, now: time.Now}
}

// UnaryClientInterceptor signs every unary call.
func (s *Signer) UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ts := strconv.FormatInt(s.now().Unix(), 10)
		ctx = metadata.AppendToOutgoingContext(ctx,
			HeaderSecretID, s.secretID,
			HeaderTimestamp, ts,
			HeaderSignature, ComputeHMAC(s.secret, SigningPayload(method, ts)),
		)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

func first(md metadata.MD, key string) string {
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}
