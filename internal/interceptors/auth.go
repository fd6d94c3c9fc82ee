package interceptors

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmehra2102/grpcadvice/internal/call"
	"github.com/dmehra2102/grpcadvice/pkg/auth"
)

var publicMethods = map[string]bool{
	"/grpc.health.v1.Health/Check": true,
	"/grpc.health.v1.Health/Watch": true,
}

// AuthInterceptor validates the bearer JWT of every non public call. A
// rejected call is closed with Unauthenticated and gets an inert listener.
func AuthInterceptor(jwtSecret string) call.ServerInterceptor {
	return call.InterceptorFunc(func(c call.ServerCall, md metadata.MD, next call.CallHandler) call.StartResult {
		if publicMethods[c.Method()] {
			return startNext(c, md, next)
		}

		userCtx, err := authenticate(md, jwtSecret)
		if err != nil {
			_ = c.Close(status.Convert(err), nil)
			return call.Started(call.Inert{})
		}

		ctx := auth.ContextWithUserContext(c.Context(), userCtx)
		return startNext(&observedCall{ServerCall: c, ctx: ctx}, md, next)
	})
}

func startNext(c call.ServerCall, md metadata.MD, next call.CallHandler) call.StartResult {
	l, err := next.StartCall(c, md)
	if err != nil {
		return call.Failed(err)
	}
	return call.Started(l)
}

func authenticate(md metadata.MD, jwtSecret string) (*auth.UserContext, error) {
	// Get authorization header
	authHeader := md.Get("authorization")
	if len(authHeader) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing authorization header")
	}

	// Parse token
	tokenString := strings.TrimPrefix(authHeader[0], "Bearer ")
	if tokenString == authHeader[0] {
		return nil, status.Error(codes.Unauthenticated, "invalid authorization header format")
	}

	// Validate JWT
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, status.Error(codes.Unauthenticated, "invalid token signing method")
		}
		return []byte(jwtSecret), nil
	})

	if err != nil || !token.Valid {
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "invalid token claims")
	}

	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return nil, status.Error(codes.Unauthenticated, "token has no user_id claim")
	}
	tenantID, _ := claims["tenant_id"].(string)

	return &auth.UserContext{
		UserID:   userID,
		TenantID: tenantID,
		Roles:    extractRoles(claims["roles"]),
	}, nil
}

func extractRoles(rolesInterface any) []string {
	if rolesInterface == nil {
		return []string{}
	}

	rolesSlice, ok := rolesInterface.([]any)
	if !ok {
		return []string{}
	}

	roles := make([]string, 0, len(rolesSlice))
	for _, role := range rolesSlice {
		if roleStr, ok := role.(string); ok {
			roles = append(roles, roleStr)
		}
	}

	return roles
}
