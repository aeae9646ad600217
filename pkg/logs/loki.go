package logs

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/grafana/loki-client-go/loki"
	promconfig "github.com/prometheus/common/config"
	slogloki "github.com/samber/slog-loki/v3"

	"github.com/Alijeyrad/careflow_backend/config"
)

var (
	lokiMu      sync.Mutex
	lokiClients []*loki.Client
)

// newLokiHandler pushes records to Loki through the batching loki client.
// Returns nil when the client cannot be built; file/stdout logging continues.
func newLokiHandler(cfg *config.Config, level slog.Level) slog.Handler {
	lc := cfg.Logging.Output.Loki

	clientCfg, err := loki.NewDefaultConfig(strings.TrimRight(lc.Endpoint, "/") + "/loki/api/v1/push")
	if err != nil {
		slog.Error("loki: invalid endpoint", "endpoint", lc.Endpoint, "error", err)
		return nil
	}
	clientCfg.TenantID = lc.TenantID
	if lc.Username != "" {
		clientCfg.Client.BasicAuth = &promconfig.BasicAuth{
			Username: lc.Username,
			Password: promconfig.Secret(lc.Password),
		}
	}

	client, err := loki.New(clientCfg)
	if err != nil {
		slog.Error("loki: create client failed", "error", err)
		return nil
	}

	lokiMu.Lock()
	lokiClients = append(lokiClients, client)
	lokiMu.Unlock()

	return slogloki.Option{Level: level, Client: client}.NewLokiHandler()
}

// Flush stops the Loki clients, sending any buffered batches.
func Flush() {
	lokiMu.Lock()
	defer lokiMu.Unlock()
	for _, c := range lokiClients {
		c.Stop()
	}
	lokiClients = nil
}
