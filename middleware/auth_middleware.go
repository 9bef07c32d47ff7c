// backend/middleware/auth_middleware.go
package middleware

import (
	"log"
	"net/http"
	"strings"

	"roomchat/backend/apperr"
	"roomchat/backend/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TokenVerifier 把 session token 解析成使用者 ID
type TokenVerifier interface {
	Identify(token string) (primitive.ObjectID, error)
}

// JWTMiddleware 驗證 JWT Token 並將使用者 ID 放入 context
func JWTMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.WriteError(w, r, apperr.Unauthorized("Unauthorized"))
				return
			}

			// Authorization: Bearer <token>
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				utils.WriteError(w, r, apperr.Unauthorized("Invalid Authorization header format"))
				return
			}

			userID, err := verifier.Identify(parts[1])
			if err != nil {
				log.Printf("Invalid JWT token: %v", err)
				utils.WriteError(w, r, err)
				return
			}

			// 將使用者 ID 存儲到請求的 context 中
			next.ServeHTTP(w, r.WithContext(utils.WithUserID(r.Context(), userID)))
		})
	}
}
