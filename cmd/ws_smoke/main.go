package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"sodmax/internal/logger"
	"sodmax/internal/service"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
)

// ws_smoke mines once against a running server and waits for the pushed notification
func main() {
	userID := flag.Int64("user", 3001, "user id to mine as")
	flag.Parse()

	_ = godotenv.Load()
	logger.Init("info", false)

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		logger.Fatal("JWT_SECRET not set")
	}
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	token, err := service.NewTokens(secret).Generate(*userID)
	if err != nil {
		logger.Fatal("gen token", "error", err)
	}

	// use 127.0.0.1 to prefer IPv4 (avoid resolving to [::1])
	base := "127.0.0.1:" + port
	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://%s/ws?token=%s", base, token), nil)
	if err != nil {
		logger.Fatal("dial", "error", err)
	}
	defer conn.Close()

	req, err := http.NewRequest(http.MethodPost, "http://"+base+"/api/v1/mining/mine", nil)
	if err != nil {
		logger.Fatal("build request", "error", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		logger.Fatal("mine", "error", err)
	}
	resp.Body.Close()
	logger.Info("mine request done", "status", resp.StatusCode)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Fatal("read", "error", err)
		}
		var obj struct {
			Type string `json:"type"`
			Data struct {
				Kind   string `json:"kind"`
				Amount int64  `json:"amount"`
			} `json:"data"`
		}
		_ = json.Unmarshal(msg, &obj)
		logger.Info("got message", "type", obj.Type, "kind", obj.Data.Kind, "amount", obj.Data.Amount)
		if obj.Data.Kind == "mined" {
			logger.Info("smoke test finished")
			return
		}
	}
	logger.Fatal("no mined notification received")
}
