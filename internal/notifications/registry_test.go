// internal/notifications/registry_test.go
package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	commonerrors "booking-notifications/internal/common/errors"
	"booking-notifications/internal/common/logger"
	"booking-notifications/internal/retry"
)

// fakeDirectory answers recipient existence checks from a fixed set.
type fakeDirectory struct {
	known map[string]bool
	err   error
}

func (d *fakeDirectory) Exists(ctx context.Context, ref RecipientRef) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	return d.known[ref.String()], nil
}

func noRetry() retry.Config {
	return retry.Config{MaxRetries: 0, InitialDelay: time.Millisecond}
}

func validSaveInput() SaveInput {
	return SaveInput{
		Recipient:  RecipientRef{Type: RecipientCustomer, ID: "cust-1"},
		Endpoint:   "https://push.example/ep-1",
		KeysP256dh: "p256dh-key",
		KeysAuth:   "auth-secret",
		DeviceType: DeviceAndroid,
		DeviceName: "Pixel 8",
		UserAgent:  "Mozilla/5.0",
	}
}

func TestRegistry_Save_ValidationErrors(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	reg := NewSubscriptionRegistry(db, nil, noRetry(), logger.NewNoOpLogger())

	tests := []struct {
		name   string
		mutate func(*SaveInput)
	}{
		{"missing recipient id", func(in *SaveInput) { in.Recipient.ID = "" }},
		{"unknown recipient type", func(in *SaveInput) { in.Recipient.Type = "admin" }},
		{"missing endpoint", func(in *SaveInput) { in.Endpoint = "" }},
		{"missing p256dh key", func(in *SaveInput) { in.KeysP256dh = "" }},
		{"missing auth key", func(in *SaveInput) { in.KeysAuth = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validSaveInput()
			tt.mutate(&in)

			_, err := reg.Save(context.Background(), in)
			assert.True(t, commonerrors.IsValidation(err), "expected validation error, got %v", err)
		})
	}
}

func TestRegistry_Save_UpsertsByEndpoint(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO push_subscriptions").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("sub-123"))

	reg := NewSubscriptionRegistry(db, nil, noRetry(), logger.NewNoOpLogger())

	id, err := reg.Save(context.Background(), validSaveInput())
	assert.NoError(t, err)
	assert.Equal(t, "sub-123", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistry_Save_RejectsUnknownRecipient(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	dir := &fakeDirectory{known: map[string]bool{"customer:cust-1": false}}
	reg := NewSubscriptionRegistry(db, dir, noRetry(), logger.NewNoOpLogger())

	_, err = reg.Save(context.Background(), validSaveInput())
	assert.True(t, commonerrors.IsValidation(err))
}

func TestRegistry_Save_RetriesTransientFailures(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO push_subscriptions").
		WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectQuery("INSERT INTO push_subscriptions").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("sub-123"))

	reg := NewSubscriptionRegistry(db, nil, retry.Storage(2, time.Millisecond), logger.NewNoOpLogger())

	id, err := reg.Save(context.Background(), validSaveInput())
	assert.NoError(t, err)
	assert.Equal(t, "sub-123", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistry_Remove(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM push_subscriptions").
		WithArgs("sub-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM push_subscriptions").
		WithArgs("sub-missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	reg := NewSubscriptionRegistry(db, nil, noRetry(), logger.NewNoOpLogger())

	assert.NoError(t, reg.Remove(context.Background(), "sub-1"))

	err = reg.Remove(context.Background(), "sub-missing")
	assert.True(t, commonerrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistry_DeactivateByEndpoint(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE push_subscriptions SET is_active = FALSE").
		WithArgs("https://push.example/ep-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	reg := NewSubscriptionRegistry(db, nil, noRetry(), logger.NewNoOpLogger())

	assert.NoError(t, reg.DeactivateByEndpoint(context.Background(), "https://push.example/ep-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func activeSubscriptionRows(ids ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "recipient_type", "recipient_id", "endpoint", "keys_p256dh", "keys_auth",
		"device_type", "device_name", "user_agent", "is_active", "last_used",
		"last_delivery_status", "consecutive_failures", "created_at",
	})
	for _, id := range ids {
		rows.AddRow(id, "customer", "cust-1", "https://push.example/"+id, "p256dh", "auth",
			"android", "Pixel 8", "Mozilla/5.0", true, time.Now(), "success", 0, time.Now())
	}
	return rows
}

func TestRegistry_ListActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM push_subscriptions").
		WithArgs("customer", "cust-1").
		WillReturnRows(activeSubscriptionRows("sub-1", "sub-2"))

	reg := NewSubscriptionRegistry(db, nil, noRetry(), logger.NewNoOpLogger())

	subs, err := reg.ListActive(context.Background(), RecipientRef{Type: RecipientCustomer, ID: "cust-1"})
	assert.NoError(t, err)
	assert.Len(t, subs, 2)
	assert.Equal(t, "sub-1", subs[0].ID)
	assert.Equal(t, "https://push.example/sub-2", subs[1].Endpoint)
	assert.True(t, subs[0].IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistry_MarkDeliveryFailure_DeactivatesPastThreshold(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("UPDATE push_subscriptions").
		WithArgs("sub-1", 5).
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}).AddRow(true))
	mock.ExpectQuery("UPDATE push_subscriptions").
		WithArgs("sub-1", 5).
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}).AddRow(false))

	reg := NewSubscriptionRegistry(db, nil, noRetry(), logger.NewNoOpLogger())

	active, err := reg.MarkDeliveryFailure(context.Background(), "sub-1", 5)
	assert.NoError(t, err)
	assert.True(t, active)

	active, err = reg.MarkDeliveryFailure(context.Background(), "sub-1", 5)
	assert.NoError(t, err)
	assert.False(t, active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistry_Stats(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM push_subscriptions").
		WillReturnRows(sqlmock.NewRows([]string{"active", "inactive", "recipients"}).AddRow(7, 3, 5))

	reg := NewSubscriptionRegistry(db, nil, noRetry(), logger.NewNoOpLogger())

	stats, err := reg.Stats(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, RegistryStats{ActiveCount: 7, InactiveCount: 3, Recipients: 5}, stats)
}
