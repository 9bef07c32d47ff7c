package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"roomchat/backend/config"
	"roomchat/backend/database"
	"roomchat/backend/handlers"
	"roomchat/backend/notifier"
	"roomchat/backend/services"
	"roomchat/backend/websocket"

	"github.com/rs/cors" // 引入 CORS 庫
)

func main() {
	cfg := config.LoadConfig()

	db, err := database.ConnectMongoDB(cfg.MongoDBURI, cfg.DBName)
	if err != nil {
		log.Fatalf("Could not connect to MongoDB: %v", err)
	}
	defer database.DisconnectMongoDB()

	users := database.NewUserStore(db)
	rooms := database.NewRoomStore(db, cfg.MongoTransactions)
	messages := database.NewMessageStore(db)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	hub := websocket.NewHub()
	go hub.Run(ctx)

	// 有設定 Redis 時經由 Redis 廣播到所有節點，否則直接交給本機的 Hub
	var broker services.Notifier = hub
	if cfg.RedisURL != "" {
		client, err := notifier.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Could not connect to Redis: %v", err)
		}
		defer notifier.DisconnectRedis()
		broker = notifier.NewRedisNotifier(client)
		go func() {
			if err := notifier.Listen(ctx, client, hub.Deliver); err != nil {
				log.Printf("[NOTIFY_ERROR] room channel subscription ended: %v", err)
			}
		}()
	}

	gate := services.NewAccessGate(rooms, messages, cfg.JWTSecret)
	userService := services.NewUserService(gate, users, cfg.JWTSecret, cfg.TokenTTL)
	roomService := services.NewRoomService(gate, rooms, users, broker)
	messageService := services.NewMessageService(gate, messages, users, broker)

	router := handlers.NewRouter(handlers.Dependencies{
		Gate:      gate,
		Users:     userService,
		Rooms:     roomService,
		Messages:  messageService,
		OAuth:     handlers.OAuthProviders(cfg),
		WebSocket: websocket.NewHandler(hub, gate, messageService, userService, cfg.AllowedOrigins),
	})

	// 設置 CORS 中介軟體，只允許設定中的前端網域
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
	})

	serverAddr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      c.Handler(router),
		IdleTimeout:  120 * time.Second,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// 如果錯誤不是因為主動關閉伺服器，就記錄錯誤並結束程式
			log.Fatalf("Could not listen on %s: %v", serverAddr, err)
		}
	}()

	//當按下 Ctrl+C，程式會收到 SIGINT
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Printf("Received signal %s, shutting down server...", sig)

	//最多等30秒關閉，避免資料損壞，請求中斷
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	stop()

	log.Println("Server exited gracefully.")
}
