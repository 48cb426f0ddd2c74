package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferCounters(t *testing.T) {
	started := testutil.ToFloat64(transfersStarted)
	active := testutil.ToFloat64(transfersActive)
	finished := testutil.ToFloat64(transfersFinished.WithLabelValues("finished"))

	TransferStarted()
	assert.Equal(t, started+1, testutil.ToFloat64(transfersStarted))
	assert.Equal(t, active+1, testutil.ToFloat64(transfersActive))

	TransferFinished("finished", true)
	assert.Equal(t, active, testutil.ToFloat64(transfersActive))
	assert.Equal(t, finished+1, testutil.ToFloat64(transfersFinished.WithLabelValues("finished")))
}

func TestAddTransferBytesIgnoresNonPositive(t *testing.T) {
	before := testutil.ToFloat64(transferBytes)
	AddTransferBytes(0)
	AddTransferBytes(-5)
	AddTransferBytes(100)
	assert.Equal(t, before+100, testutil.ToFloat64(transferBytes))
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordRequest("login", "ok")
	RecordTemporaryError("Over quota")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `linkfetch_requests_total{op="login",result="ok"}`)
	assert.Contains(t, string(body), "linkfetch_temporary_errors_total")
}
