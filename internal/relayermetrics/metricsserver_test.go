package relayermetrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cosmos/ibc-relayer/relayer/processor"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMetricsMuxServesRelayerRegistry(t *testing.T) {
	metrics := processor.NewPrometheusMetrics()
	metrics.IncMisbehaviourDetected("chain-a-1", "07-tendermint-0")
	metrics.SetLatestHeight("chain-a-1", 42)

	mux := newMetricsMux(zaptest.NewLogger(t), metrics.Registry)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/relayer/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	require.Contains(t, body, `ibc_relayer_misbehaviour_detected_total{chain="chain-a-1",client_id="07-tendermint-0"} 1`)
	require.Contains(t, body, `ibc_relayer_chain_latest_height{chain="chain-a-1"} 42`)
}
