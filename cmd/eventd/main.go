// Command eventd wires the event core's stores, engines and adapters
// against a live Postgres/Redis/S3 environment and serves the illustrative
// websocket transport in wsdemo.go.
package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	"github.com/classbridge/event/internal/authz"
	"github.com/classbridge/event/internal/config"
	"github.com/classbridge/event/internal/core"
	"github.com/classbridge/event/internal/logging"
	"github.com/classbridge/event/internal/notify"
	"github.com/classbridge/event/internal/projection"
	"github.com/classbridge/event/internal/s3dump"
	"github.com/classbridge/event/internal/store"
	"github.com/classbridge/event/internal/vacuum"
)

func main() {
	configPath := flag.String("config", "eventd.yaml", "path to the YAML configuration file")
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	log := logging.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("eventd: failed to load configuration")
	}

	db, err := sql.Open("postgres", cfg.Postgres.DSN)
	if err != nil {
		log.WithError(err).Fatal("eventd: failed to open postgres")
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConn)

	if err := db.Ping(); err != nil {
		log.WithError(err).Fatal("eventd: failed to ping postgres")
	}
	if _, err := db.Exec(store.Schema); err != nil {
		log.WithError(err).Fatal("eventd: failed to apply schema")
	}
	log.Info("eventd: connected to postgres")

	redisClient, err := notify.Connect()
	if err != nil {
		log.WithError(err).Fatal("eventd: failed to build redis client")
	}
	log.Info("eventd: connected to redis")

	var dumper s3dump.Dumper
	if cfg.S3.Bucket != "" {
		s3, err := s3dump.New(cfg.S3.Region, cfg.S3.Bucket)
		if err != nil {
			log.WithError(err).Fatal("eventd: failed to build s3 dumper")
		}
		dumper = s3
	} else {
		dumper = s3dump.NewMemory()
	}

	rooms := store.NewRoomStore(db)
	events := store.NewEventStore(db, cfg.Event.MaxPayloadBytes, cfg.Event.MaxListLimit)
	editions := store.NewEditionStore(db)
	changes := store.NewChangeStore(db)
	agents := store.NewAgentStore(db)
	bans := store.NewBanStore(db)
	proj := projection.NewStore(db)

	cctx := core.New(rooms, events, editions, changes, agents, bans, proj,
		notify.NewRedisPublisher(redisClient), dumper, authz.NewAllowAll(), log)

	sweeper := vacuum.NewSweeper(events, log, 10*time.Minute,
		cfg.Retention.MaxHistorySize,
		time.Duration(cfg.Retention.MaxHistoryLifetime)*time.Second,
		time.Duration(cfg.Retention.MaxDeletedLifetime)*time.Second)
	sweeper.Start(context.Background())

	demo := newWSDemo(cctx, log)
	http.HandleFunc("/ws", demo.handleWebSocket)
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	log.WithField("addr", *addr).Info("eventd: listening")
	log.Fatal(http.ListenAndServe(*addr, nil))
}
