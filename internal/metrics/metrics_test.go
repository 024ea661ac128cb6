package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordOp(t *testing.T) {
	before := testutil.ToFloat64(engineOps.WithLabelValues("apply", "error"))
	RecordOp("apply", errors.New("dup"))
	RecordOp("apply", nil)
	assert.Equal(t, before+1, testutil.ToFloat64(engineOps.WithLabelValues("apply", "error")))
}

func TestRecordCreditIgnoresNonPositive(t *testing.T) {
	before := testutil.ToFloat64(creditMinutes)
	RecordCredit(72)
	RecordCredit(0)
	assert.Equal(t, before+72, testutil.ToFloat64(creditMinutes))
}

func TestMiddlewareLabelsByRoute(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware())
	app.Get("/listings/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusTeapot) })

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/listings/:id", "418"))
	resp, err := app.Test(httptest.NewRequest("GET", "/listings/5", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTeapot, resp.StatusCode)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/listings/:id", "418")))
}
