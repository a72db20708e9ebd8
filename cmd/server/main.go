package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/ndquoc/pharmacart/internal/adapter/handler"
	"github.com/ndquoc/pharmacart/internal/adapter/storage"
	"github.com/ndquoc/pharmacart/internal/core/domain"
	"github.com/ndquoc/pharmacart/internal/core/service"
)

const (
	workerCount = 4
	queueSize   = 1024
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	httpAddr := getenv("HTTP_ADDR", ":8080")
	mysqlDSN := getenv("MYSQL_DSN", "root:root@tcp(localhost:3306)/pharmacart?parseTime=true")
	redisAddr := getenv("REDIS_ADDR", "localhost:6379")

	// Initialize MySQL
	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}
	log.Println("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	log.Println("connected to redis")

	// Initialize adapters
	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)

	// Initialize services
	cartService := service.NewCartService(mysqlAdapter, mysqlAdapter, redisAdapter)
	discountService := service.NewDiscountService(mysqlAdapter, redisAdapter)
	cartService.Subscribe(discountService)
	orderService := service.NewOrderService(mysqlAdapter, mysqlAdapter, mysqlAdapter, redisAdapter, discountService, queueSize)

	// Start workers refreshing the display stock snapshot after each commit
	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			workerLoop(id, orderService.Events(), mysqlAdapter, redisAdapter)
		}(i)
	}
	log.Printf("started %d workers", workerCount)

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(mysqlAdapter, cartService, discountService, orderService)
	httpServer := &http.Server{
		Addr:    httpAddr,
		Handler: httpHandler.Routes(),
	}

	go func() {
		log.Printf("HTTP server listening on %s", httpAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Println("HTTP server stopped")

	orderService.Close()
	wg.Wait()
	log.Println("workers stopped")

	rdb.Close()
	db.Close()
	log.Println("connections closed")
}

// workerLoop refreshes the cached display stock for every product touched by
// a committed order. Failures are logged and swallowed; the order is already
// durable.
func workerLoop(id int, events <-chan domain.Order, catalog *storage.MySQLAdapter, cache *storage.RedisAdapter) {
	for order := range events {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

		for _, item := range order.Items {
			p, err := catalog.GetProduct(ctx, item.ProductID)
			if err != nil || p == nil {
				log.Printf("worker %d: failed to reload product %s: %v", id, item.ProductID, err)
				continue
			}
			if err := cache.SetStockSnapshot(ctx, p.ID, p.StockQuantity); err != nil {
				log.Printf("worker %d: failed to refresh stock snapshot for %s: %v", id, p.ID, err)
			}
		}
		log.Printf("worker %d: refreshed stock for order %s", id, order.ID)

		cancel()
	}
}
