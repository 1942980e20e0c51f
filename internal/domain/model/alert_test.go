package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAlertRequest_NormalizeDefaults(t *testing.T) {
	t.Parallel()

	req := &CreateAlertRequest{
		TenantID: "  tenant-a ",
		Title:    "  disk almost full ",
		Severity: " HIGH ",
	}
	req.Normalize()

	assert.Equal(t, "tenant-a", req.TenantID)
	assert.Equal(t, "disk almost full", req.Title)
	assert.Equal(t, AlertSeverityHigh, req.Severity)
	assert.Equal(t, AlertStatusOpen, req.Status, "status defaults to open")

	empty := &CreateAlertRequest{}
	empty.Normalize()
	assert.Equal(t, AlertSeverityInfo, empty.Severity, "severity defaults to info")
}

func TestCreateAlertRequest_Validate(t *testing.T) {
	t.Parallel()

	valid := func() *CreateAlertRequest {
		r := &CreateAlertRequest{TenantID: "tenant-a", Title: "t"}
		r.Normalize()
		return r
	}

	require.NoError(t, valid().Validate())

	r := valid()
	r.TenantID = ""
	assert.Error(t, r.Validate())

	r = valid()
	r.Title = ""
	assert.Error(t, r.Validate())

	r = valid()
	r.Title = strings.Repeat("x", maxAlertTitleLength+1)
	assert.Error(t, r.Validate())

	r = valid()
	r.Severity = "urgent"
	assert.Error(t, r.Validate())

	r = valid()
	r.Payload = []byte(`{"k":`)
	assert.Error(t, r.Validate())

	r = valid()
	r.Payload = []byte(`{"service":"billing"}`)
	assert.NoError(t, r.Validate())
}

func TestAlertStatus_Terminal(t *testing.T) {
	t.Parallel()

	assert.True(t, AlertStatusDismissed.Terminal())
	assert.True(t, AlertStatusResolved.Terminal())
	assert.False(t, AlertStatusOpen.Terminal())
	assert.False(t, AlertStatusAcknowledged.Terminal())
	assert.False(t, AlertStatusError.Terminal())
}

func TestAlertStatus_Valid(t *testing.T) {
	t.Parallel()

	assert.True(t, AlertStatusOpen.Valid())
	assert.False(t, AlertStatus("snoozed").Valid())
	assert.False(t, AlertStatus("").Valid())
}
