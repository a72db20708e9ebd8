package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ndquoc/pharmacart/internal/adapter/storage"
	"github.com/ndquoc/pharmacart/internal/core/domain"
	"github.com/ndquoc/pharmacart/internal/core/service"
)

const (
	mysqlDSN      = "root:root@tcp(localhost:3306)/pharmacart?parseTime=true"
	redisAddr     = "localhost:6379"
	productID     = "stress-paracetamol"
	initialStock  = 20
	totalRequests = 50
	queueSize     = 100
)

func main() {
	ctx := context.Background()

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	// Seed the contested product and clear leftovers from previous runs
	db.ExecContext(ctx, `DELETE FROM cart_items WHERE product_id = ?`, productID)
	_, err = db.ExecContext(ctx, `
		INSERT INTO products (id, name, price, in_stock, stock_quantity, created_at, updated_at)
		VALUES (?, 'Paracetamol 500mg', 15000, TRUE, ?, NOW(), NOW())
		ON DUPLICATE KEY UPDATE stock_quantity = ?, in_stock = TRUE`,
		productID, initialStock, initialStock)
	if err != nil {
		log.Fatalf("failed to seed product: %v", err)
	}

	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)

	cartService := service.NewCartService(mysqlAdapter, mysqlAdapter, redisAdapter)
	discountService := service.NewDiscountService(mysqlAdapter, redisAdapter)
	cartService.Subscribe(discountService)
	orderService := service.NewOrderService(mysqlAdapter, mysqlAdapter, mysqlAdapter, redisAdapter, discountService, queueSize)
	defer orderService.Close()

	var successCount atomic.Int32
	var failCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			customerID := fmt.Sprintf("stress-customer-%d", n)
			if err := cartService.AddItem(ctx, customerID, productID, 1); err != nil {
				failCount.Add(1)
				return
			}

			_, err := orderService.CreateOrder(ctx, service.CreateOrderInput{
				RequestID:  uuid.NewString(),
				CustomerID: customerID,
				Shipping: domain.ShippingInfo{
					FullName: "Stress Tester",
					Phone:    "0900000000",
					Address:  "1 Test St",
				},
				PaymentMethod: domain.PaymentCOD,
			})
			if err == nil {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	fail := failCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == int32(initialStock) && fail == int32(totalRequests-initialStock) {
		fmt.Printf("PASS: Exactly %d orders succeeded, %d failed\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d fail, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, fail)
	}

	var finalStock int
	db.QueryRowContext(ctx, `SELECT stock_quantity FROM products WHERE id = ?`, productID).Scan(&finalStock)
	fmt.Printf("Final Stock: %d\n", finalStock)

	if finalStock == 0 {
		fmt.Println("PASS: Stock depleted to 0")
	} else {
		fmt.Printf("FAIL: Expected stock 0, got %d\n", finalStock)
	}
}
