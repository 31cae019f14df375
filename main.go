package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/qaaqit/QaaqConnect30-sub003/internal/auth"
	"github.com/qaaqit/QaaqConnect30-sub003/internal/db"
	"github.com/qaaqit/QaaqConnect30-sub003/internal/handlers"
	"github.com/qaaqit/QaaqConnect30-sub003/internal/middleware"
	"github.com/qaaqit/QaaqConnect30-sub003/internal/observability"
	"github.com/qaaqit/QaaqConnect30-sub003/internal/rabbitmq"
	"github.com/qaaqit/QaaqConnect30-sub003/internal/repositories"
	"github.com/qaaqit/QaaqConnect30-sub003/internal/telemetry"
	"github.com/qaaqit/QaaqConnect30-sub003/internal/ws"
)

func main() {
	database, err := db.Connect()
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	shutdownTracing := observability.InitTracing("qaaq-chat", getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	publisher := rabbitmq.NewPublisher(getEnv("AMQP_URL", ""), getEnv("AMQP_EXCHANGE", "qaaq.events"))
	defer publisher.Close()
	observability.SetPublisher(publisher)
	log.Printf("event publisher mode=%s", rabbitmq.PublisherMode(publisher))

	auditEmitter := telemetry.NewAuditEmitter(publisher, "audit.chat", "qaaq-chat", getEnv("ENVIRONMENT", "development"))

	authService := auth.NewService(getEnv("JWT_SECRET", "dev-secret"), 24*time.Hour)

	connRepo := repositories.NewConnectionRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	hub := ws.NewHub()

	chatHandler := handlers.NewChatHandler(connRepo, messageRepo, hub, auditEmitter)
	chatWS := ws.NewChatWebSocketHandler(hub, connRepo, messageRepo, authService)

	router := gin.Default()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("qaaq-chat"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(authService)

	router.GET("/connections", authMiddleware, chatHandler.ListConnections)
	router.POST("/connections", authMiddleware, chatHandler.CreateConnection)
	router.POST("/connections/:connection_id/accept", authMiddleware, chatHandler.AcceptConnection)
	router.POST("/connections/:connection_id/reject", authMiddleware, chatHandler.RejectConnection)
	router.GET("/connections/:connection_id/messages", authMiddleware, chatHandler.GetMessages)
	router.POST("/connections/:connection_id/messages", authMiddleware, chatHandler.PostMessage)
	router.POST("/connections/:connection_id/read", authMiddleware, chatHandler.MarkRead)

	router.GET("/ws/chat", chatWS.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, auditEmitter, getEnv("DEBUG_ROUTES", "") == "true")

	port := getEnv("PORT", "8083")
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
