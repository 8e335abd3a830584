package main

import (
	"log"

	"github.com/frn-reports/voicereport/internal/config"
	"github.com/frn-reports/voicereport/internal/db"
	"github.com/frn-reports/voicereport/internal/httpapi"
	"github.com/frn-reports/voicereport/internal/store/rabbitmq"
	"github.com/frn-reports/voicereport/internal/store/redisstore"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rds.Close()

	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Fatalf("rabbit publisher: %v", err)
	}
	defer pub.Close()

	r := httpapi.NewRouter(gdb, cfg, rds, pub)

	log.Printf("server listening on %s", cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
