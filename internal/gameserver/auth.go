package gameserver

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// AuthorizationKey is the metadata key carrying the admin bearer token.
const AuthorizationKey = "authorization"

const bearerPrefix = "Bearer "

// HashToken creates a bcrypt hash of an admin token for admin.token_hash.
//
// Precondition: token must be non-empty.
// Postcondition: Returns a bcrypt hash string.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckToken compares a plaintext token against a bcrypt hash.
//
// Postcondition: Returns true if token matches the hash.
func CheckToken(token, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
}

// WithToken attaches token to an outgoing client context.
func WithToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, AuthorizationKey, bearerPrefix+token)
}

// authorize admits the call when it carries the admin token.
//
// Postcondition: Returns nil, or a PermissionDenied / Unauthenticated status.
func (s *PowerServer) authorize(ctx context.Context) error {
	if s.tokenHash == "" {
		return status.Error(codes.PermissionDenied, "privileged operations are disabled")
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing authorization metadata")
	}
	vals := md.Get(AuthorizationKey)
	if len(vals) == 0 {
		return status.Error(codes.Unauthenticated, "missing authorization metadata")
	}
	token, ok := strings.CutPrefix(vals[0], bearerPrefix)
	if !ok || token == "" {
		return status.Error(codes.Unauthenticated, "authorization must be a bearer token")
	}
	if !CheckToken(token, s.tokenHash) {
		return status.Error(codes.PermissionDenied, "invalid admin token")
	}
	return nil
}
