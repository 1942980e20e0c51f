package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncallops/alertsync/internal/domain/model"
	apperrors "github.com/oncallops/alertsync/internal/errors"
)

func criticalEvent() model.DomainEvent {
	return model.NewAlertUpdateEvent(&model.Alert{
		ID:       "alert-1",
		TenantID: "tenant-a",
		Title:    "db primary down",
		Severity: model.AlertSeverityCritical,
		Status:   model.AlertStatusOpen,
		Version:  1,
	})
}

func TestFeedFilterService_Validate(t *testing.T) {
	t.Parallel()
	svc := NewFeedFilterService(nil)

	assert.NoError(t, svc.Validate(""))
	assert.NoError(t, svc.Validate("alert.severity == 'critical'"))

	err := svc.Validate("alert.severity ==")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestFeedFilterService_Matches(t *testing.T) {
	t.Parallel()
	svc := NewFeedFilterService(nil)
	event := criticalEvent()

	assert.True(t, svc.Matches("", event), "empty filter matches everything")
	assert.True(t, svc.Matches("alert.severity == 'critical'", event))
	assert.False(t, svc.Matches("alert.severity == 'low'", event))
	assert.True(t, svc.Matches("status == 'open'", event), "filters see wire field names")
	assert.True(t, svc.Matches("version >= `1`", event))
}

func TestFeedFilterService_Matches_EvaluationErrorDropsEvent(t *testing.T) {
	t.Parallel()
	svc := NewFeedFilterService(nil)

	// A filter that was never validated can still reach Matches; it must
	// drop the event rather than panic or pass it through.
	assert.False(t, svc.Matches("alert.severity ==", criticalEvent()))
}
