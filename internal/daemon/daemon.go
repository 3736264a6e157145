// daemon.go — Daemon lifecycle: wires the api dispatcher to the IPC server
// endpoint, brings up the observability endpoint, and blocks until the peer
// dies.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openharmony/perftest/internal/api"
	"github.com/openharmony/perftest/internal/connection"
	"github.com/openharmony/perftest/internal/logging"
	_ "github.com/openharmony/perftest/internal/perftest" // PerfTest.* handler registration
)

var (
	log      = logging.Named("daemon")
	validate = validator.New()
)

// Options configures one daemon run.
type Options struct {
	// Token pairs the daemon with its client; both sides derive the
	// discovery event name from it.
	Token string `validate:"required"`
	// Port serves /health and /metrics on localhost; 0 disables the
	// endpoint.
	Port int `validate:"gte=0,lte=65535"`
	// Hub is the common-event channel used for discovery.
	Hub *connection.EventHub `validate:"required"`
}

// TranslateToken collapses tokens without a session qualifier to the
// default token.
func TranslateToken(raw string) string {
	if strings.ContainsRune(raw, '@') {
		return raw
	}
	return "default"
}

// Run brings up the daemon and blocks until the client connection dies.
func Run(opts Options) error {
	if err := validate.Struct(opts); err != nil {
		return fmt.Errorf("invalid daemon options: %w", err)
	}
	token := TranslateToken(opts.Token)
	log.Infow("server starting up", "token", token)

	apiServer := api.Get()
	callerServer := connection.NewApiCallerServer(opts.Hub)
	// callbacks from handlers travel back through the IPC endpoint
	apiServer.SetCallbackHandler(func(in *api.CallInfo, out *api.ReplyInfo) {
		callerServer.Transact(in, out)
	})

	observability := startObservability(opts.Port)
	defer stopObservability(observability)

	if !callerServer.InitAndConnectPeer(token, api.Transact) {
		return errors.New("failed to initialize server")
	}

	death := make(chan struct{}, 1)
	callerServer.SetDeathCallback(func() {
		select {
		case death <- struct{}{}:
		default:
		}
	})
	log.Infow("perftest-daemon running")
	<-death
	log.Infow("server exit")
	callerServer.Finalize()
	logging.Sync()
	return nil
}

// startObservability serves /health and /metrics on localhost.
func startObservability(port int) *http.Server {
	if port <= 0 {
		return nil
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("observability endpoint failed", "err", err)
		}
	}()
	return server
}

func stopObservability(server *http.Server) {
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = server.Shutdown(ctx)
}
