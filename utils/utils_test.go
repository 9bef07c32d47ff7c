// backend/utils/utils_test.go
package utils

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestGenerateJWT(t *testing.T) {
	userID := primitive.NewObjectID()
	name := "testuser"
	secret := "test-secret"

	tokenString, err := GenerateJWT(userID, name, secret, time.Hour)

	assert.NoError(t, err, "生成 JWT 不應該返回錯誤")
	assert.NotEmpty(t, tokenString, "生成的 JWT token 不應該是空的")

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		_, ok := token.Method.(*jwt.SigningMethodHMAC)
		assert.True(t, ok, "非預期的簽名演算法")
		return []byte(secret), nil
	})

	assert.NoError(t, err, "解析 JWT token 不應該返回錯誤")
	assert.True(t, token.Valid, "JWT token 應該是有效的")

	claims, ok := token.Claims.(jwt.MapClaims)
	assert.True(t, ok, "無法讀取 JWT claims")

	assert.Equal(t, userID.Hex(), claims["userId"], "userId claim 應該與原始 userID 相同")
	assert.Equal(t, name, claims["name"], "name claim 應該與原始名稱相同")

	exp, ok := claims["exp"].(float64)
	assert.True(t, ok, "exp claim 格式錯誤")
	assert.Greater(t, int64(exp), time.Now().Unix(), "過期時間應該在未來")
}

func TestGetUserIDFromToken(t *testing.T) {
	userID := primitive.NewObjectID()
	token, err := GenerateJWT(userID, "alice", "secret", time.Hour)
	require.NoError(t, err)

	got, err := GetUserIDFromToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	_, err = GetUserIDFromToken(token, "other-secret")
	assert.Error(t, err, "錯誤的密鑰應該驗證失敗")

	expired, err := GenerateJWT(userID, "alice", "secret", -time.Minute)
	require.NoError(t, err)
	_, err = GetUserIDFromToken(expired, "secret")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	_, err = GetUserIDFromToken("not-a-token", "secret")
	assert.Error(t, err)
}

func TestGetUserIDFromTokenRejectsBadClaims(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"userId": "xyz"})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = GetUserIDFromToken(signed, "secret")
	assert.EqualError(t, err, "invalid user ID format in token")
}

func TestUserIDContextRoundTrip(t *testing.T) {
	_, err := GetUserIDFromContext(context.Background())
	assert.Error(t, err)

	userID := primitive.NewObjectID()
	got, err := GetUserIDFromContext(WithUserID(context.Background(), userID))
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}
