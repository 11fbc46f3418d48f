package metrics

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/staquery/internal/qerr"
)

func TestRecordValidation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordValidation("Thing", 2, nil)
	m.RecordValidation("Thing", 0, nil)
	m.RecordValidation("Thing", 0, qerr.NewUnknownPath("Nope", "Thing"))
	m.RecordValidation("Datastream", 0, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ValidationsTotal.WithLabelValues("Thing", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationsTotal.WithLabelValues("Thing", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationErrorsTotal.WithLabelValues("UNKNOWN_PATH")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationErrorsTotal.WithLabelValues("internal")))

	err := testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP staquery_expand_depth Nesting depth of the $expand tree of validated queries
# TYPE staquery_expand_depth histogram
staquery_expand_depth_bucket{le="0"} 1
staquery_expand_depth_bucket{le="1"} 1
staquery_expand_depth_bucket{le="2"} 2
staquery_expand_depth_bucket{le="3"} 2
staquery_expand_depth_bucket{le="4"} 2
staquery_expand_depth_bucket{le="6"} 2
staquery_expand_depth_bucket{le="8"} 2
staquery_expand_depth_bucket{le="+Inf"} 2
staquery_expand_depth_sum 2
staquery_expand_depth_count 2
`), "staquery_expand_depth")
	require.NoError(t, err)
}

func TestRecordRows(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordRows("Observation", 3)
	m.RecordRows("Observation", 4)
	assert.Equal(t, 7.0, testutil.ToFloat64(m.RowsFetchedTotal.WithLabelValues("Observation")))
}

func TestNew_NilRegisterer(t *testing.T) {
	m := New(nil)
	m.RecordValidation("Thing", 1, nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationsTotal.WithLabelValues("Thing", "ok")))
}

func TestNew_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
