package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv" // 引入這個庫來讀取 .env 檔案
)

// Config 結構體用於儲存應用程式的配置
type Config struct {
	MongoDBURI        string
	DBName            string
	MongoTransactions bool // 刪除聊天室時使用多文件交易（需要 replica set）
	Port              string

	JWTSecret string
	TokenTTL  time.Duration

	RedisURL       string // 空字串代表使用行程內的廣播
	AllowedOrigins []string

	OAuthRedirectBase  string
	GoogleClientID     string
	GoogleClientSecret string
	GitHubClientID     string
	GitHubClientSecret string
}

// LoadConfig 載入配置，優先從環境變數讀取，其次從 .env 檔案讀取
func LoadConfig() *Config {
	// 嘗試載入 .env 檔案，如果不存在也不會報錯
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found, relying on environment variables.")
	}

	cfg := &Config{
		MongoDBURI:        getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		DBName:            getEnv("DB_NAME", "roomchat"),
		MongoTransactions: getEnvBool("MONGODB_TRANSACTIONS", false),
		Port:              getEnv("PORT", "8080"),

		JWTSecret: getEnv("JWT_SECRET", "change-me-in-production"),
		TokenTTL:  getEnvDuration("TOKEN_TTL", 7*24*time.Hour),

		RedisURL:       getEnv("REDIS_URL", ""),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),

		OAuthRedirectBase:  strings.TrimRight(getEnv("OAUTH_REDIRECT_BASE", "http://localhost:8080"), "/"),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GitHubClientID:     getEnv("GITHUB_CLIENT_ID", ""),
		GitHubClientSecret: getEnv("GITHUB_CLIENT_SECRET", ""),
	}
	return cfg
}

// getEnv 輔助函數，用於從環境變數獲取值，如果不存在則使用預設值
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Invalid boolean for %s=%q, using default %v", key, value, defaultValue)
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Printf("Invalid duration for %s=%q, using default %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
