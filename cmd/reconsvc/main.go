// Command reconsvc runs the payment reconciliation service: the
// scheduler driving periodic sync cycles against the four source
// adapters, and the read-only JSON API plus its two manual mutations,
// sharing one embedded store (§1, §5).
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/reconsvc/config"
	"bitbucket.org/mmdatafocus/reconsvc/reconapi"
	"bitbucket.org/mmdatafocus/reconsvc/reconengine"
	"bitbucket.org/mmdatafocus/reconsvc/reconmatch"
	"bitbucket.org/mmdatafocus/reconsvc/reconscheduler"
	"bitbucket.org/mmdatafocus/reconsvc/reconstore"
	"bitbucket.org/mmdatafocus/reconsvc/reconsync"
)

func main() {
	cfg := config.Load()
	logger := config.GetLogger()

	config.ConnectRedisBestEffort(cfg.RedisAddr)

	store, err := reconstore.Open(cfg.DBPath, cfg.DBMaxRetries)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "database"}).Panic(err.Error())
	}
	defer store.Close()

	tol := reconmatch.Tolerances{
		AmountTolerance: decimal.NewFromFloat(cfg.AmountTolerance),
		DateWindowDays:  cfg.DateWindowDays,
		AutoMatchConf:   cfg.AutoMatchConf,
		SuggestConf:     cfg.SuggestConf,
	}
	aliases := reconmatch.AliasTable(cfg.AgencyAliases)

	engine := reconengine.New(store, tol, aliases, logger)
	adapters := buildAdapters(cfg)

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	schedulerCtx, cancelScheduler := context.WithCancel(context.Background())
	defer cancelScheduler()
	sched := reconscheduler.New(engine, adapters, store, time.Duration(cfg.SyncIntervalSecs)*time.Second, logger)
	go sched.Run(schedulerCtx)

	router := reconapi.NewRouter(reconapi.Deps{
		DB:      store.DB(),
		Engine:  engine,
		Tol:     tol,
		Aliases: aliases,
	}, corsMiddleware())

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	logger.WithFields(logrus.Fields{"info": "listening"}).Info("reconsvc started on :" + cfg.HTTPPort)

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop the scheduler first so it doesn't start a new cycle while
	// the HTTP server is draining.
	cancelScheduler()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// buildAdapters wires the four source adapters against the default HTTP
// transport (reconsync.http_transport.go). The transports themselves —
// the agency email system, the invoice/payrun database, the payment
// processor API — are external collaborators out of scope for this
// service (§1); a deployment with a different email system or database
// tunnel supplies its own EmailTransport/InvoiceTransport/etc.
// implementation and builds reconengine.Adapters directly instead of
// calling this function.
func buildAdapters(cfg *config.Config) reconengine.Adapters {
	rateLimit := intFromEnv("SOURCE_RATE_LIMIT_PER_MIN", 60)
	timeout := time.Duration(cfg.APITimeoutSecs) * time.Second

	emailCfg := reconsync.HTTPSourceConfig{
		BaseURL: os.Getenv("EMAIL_SOURCE_URL"), APIKey: os.Getenv("EMAIL_SOURCE_API_KEY"),
		Timeout: timeout, RateLimitMin: rateLimit,
	}
	invoiceCfg := reconsync.HTTPSourceConfig{
		BaseURL: os.Getenv("INVOICE_SOURCE_URL"), APIKey: os.Getenv("INVOICE_SOURCE_API_KEY"),
		Timeout: timeout, RateLimitMin: rateLimit,
	}
	inboundCfg := reconsync.HTTPSourceConfig{
		BaseURL: os.Getenv("INBOUND_FUNDING_SOURCE_URL"), APIKey: os.Getenv("INBOUND_FUNDING_SOURCE_API_KEY"),
		Timeout: timeout, RateLimitMin: rateLimit,
	}
	outboundCfg := reconsync.HTTPSourceConfig{
		BaseURL: os.Getenv("OUTBOUND_PAYMENT_SOURCE_URL"), APIKey: os.Getenv("OUTBOUND_PAYMENT_SOURCE_API_KEY"),
		Timeout: timeout, RateLimitMin: rateLimit,
	}

	return reconengine.Adapters{
		Email:    reconsync.NewEmailAdapter(reconsync.NewHTTPEmailTransport(emailCfg)),
		Invoice:  reconsync.NewInvoiceAdapter(reconsync.NewHTTPInvoiceTransport(invoiceCfg)),
		Inbound:  reconsync.NewInboundFundingAdapter(reconsync.NewHTTPInboundFundingTransport(inboundCfg)),
		Outbound: reconsync.NewOutboundPaymentAdapter(reconsync.NewHTTPOutboundPaymentTransport(outboundCfg)),
	}
}

// corsMiddleware mirrors this codebase's production-safe CORS posture:
// an explicit allowlist via CORS_ALLOWED_ORIGINS in production, wide open
// for local development.
func corsMiddleware() gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("x-correlation-id", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true
	return cors.New(corsConfig)
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
