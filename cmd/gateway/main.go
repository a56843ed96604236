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

	"github.com/redis/go-redis/v9"

	"github.com/whisper/ws-relay/internal/abuse"
	"github.com/whisper/ws-relay/internal/events"
	"github.com/whisper/ws-relay/internal/httpapi"
	"github.com/whisper/ws-relay/internal/metrics"
	"github.com/whisper/ws-relay/internal/relay"
)

func main() {
	ip := "0.0.0.0"
	if v := os.Getenv("IP"); v != "" {
		ip = v
	}
	port := "3000"
	if v := os.Getenv("PORT"); v != "" {
		port = v
	}
	authToken := os.Getenv("AUTH")

	cfg := relay.DefaultConfig()
	registry := relay.NewRegistry()

	var limiter *abuse.Limiter
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: redisAddr})
		if err := client.Ping(context.Background()).Err(); err != nil {
			log.Printf("redis unreachable at %s, connect-rate guard disabled: %v", redisAddr, err)
		} else {
			limiter = abuse.NewLimiter(client)
			log.Printf("  redis_addr:      %s", redisAddr)
		}
	}

	var publisher *events.Publisher
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		p, err := events.Connect(natsURL)
		if err != nil {
			log.Printf("nats unreachable at %s, lifecycle events disabled: %v", natsURL, err)
		} else {
			publisher = p
			log.Printf("  nats_url:        %s", natsURL)
		}
	}

	server := httpapi.NewServer(registry, cfg, authToken,
		httpapi.WithLimiter(limiter),
		httpapi.WithEvents(publisher),
		httpapi.WithMetricsHooks(
			func() { metrics.SessionsActive.Set(float64(registry.Count())) },
			func(reason string) {
				metrics.SessionsClosedTotal.WithLabelValues(reason).Inc()
				metrics.SessionsActive.Set(float64(registry.Count()))
			},
			func() { metrics.FramesForwarded.Inc() },
			func(d time.Duration) { metrics.LongPollWaitSeconds.Observe(d.Seconds()) },
		),
	)

	addr := fmt.Sprintf("%s:%s", ip, port)
	log.Printf("ws-relay gateway starting")
	log.Printf("  listen_addr:     %s", addr)
	log.Printf("  auth:            %v", authToken != "")

	httpServer := &http.Server{Addr: addr, Handler: server.Engine()}

	if metricsAddr := os.Getenv("METRICS_ADDR"); metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			log.Printf("  metrics_addr:    %s", metricsAddr)
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				log.Printf("metrics server error: %v", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, initiating graceful shutdown...", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
		if publisher != nil {
			publisher.Close()
		}
		os.Exit(0)
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
