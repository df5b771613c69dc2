// internal/notifications/log_test.go
package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"

	commonerrors "booking-notifications/internal/common/errors"
	"booking-notifications/internal/common/logger"
)

func customerRef() RecipientRef {
	return RecipientRef{Type: RecipientCustomer, ID: "cust-1"}
}

func TestLog_Insert_DerivesStatusFromCounts(t *testing.T) {
	tests := []struct {
		name      string
		targeted  int
		succeeded int
		failed    int
		want      EventStatus
	}{
		{"all delivered", 3, 3, 0, StatusSent},
		{"some delivered", 3, 1, 2, StatusPartial},
		{"none delivered", 2, 0, 2, StatusFailed},
		{"no devices", 0, 0, 0, StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			assert.NoError(t, err)
			defer db.Close()

			mock.ExpectExec("INSERT INTO notification_log").
				WillReturnResult(sqlmock.NewResult(0, 1))

			journal := NewNotificationLog(db, nil, time.Second, noRetry(), logger.NewNoOpLogger())

			entry := &LogEntry{
				Type:             TypeReminder,
				Recipient:        customerRef(),
				Title:            "Upcoming appointment",
				Body:             "Haircut at 10:00",
				DevicesTargeted:  tt.targeted,
				DevicesSucceeded: tt.succeeded,
				DevicesFailed:    tt.failed,
			}
			assert.NoError(t, journal.Insert(context.Background(), entry))
			assert.Equal(t, tt.want, entry.Status)
			assert.NotEmpty(t, entry.ID)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func historyRows(ids ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "notification_type", "recipient_type", "recipient_id", "title", "body",
		"payload", "devices_targeted", "devices_succeeded", "devices_failed",
		"status", "is_read", "created_at", "sent_at",
	})
	for _, id := range ids {
		rows.AddRow(id, "reminder", "customer", "cust-1", "Upcoming appointment",
			"Haircut at 10:00", []byte(`{"bookingId":"bk-1"}`), 2, 2, 0,
			"sent", false, time.Now(), time.Now())
	}
	return rows
}

func TestLog_History_PagesNewestFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("customer", "cust-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectQuery("FROM notification_log").
		WithArgs("customer", "cust-1", 2, 0).
		WillReturnRows(historyRows("n-1", "n-2"))

	journal := NewNotificationLog(db, nil, time.Second, noRetry(), logger.NewNoOpLogger())

	page, err := journal.History(context.Background(), customerRef(), HistoryQuery{Limit: 2})
	assert.NoError(t, err)
	assert.Len(t, page.Entries, 2)
	assert.Equal(t, 5, page.TotalCount)
	assert.True(t, page.HasMore)
	assert.Equal(t, "bk-1", page.Entries[0].Payload["bookingId"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLog_History_TypeAndUnreadFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("customer", "cust-1", "reminder").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("FROM notification_log").
		WithArgs("customer", "cust-1", "reminder", 20, 0).
		WillReturnRows(historyRows("n-1"))

	journal := NewNotificationLog(db, nil, time.Second, noRetry(), logger.NewNoOpLogger())

	page, err := journal.History(context.Background(), customerRef(), HistoryQuery{
		TypeFilter: TypeReminder,
		UnreadOnly: true,
	})
	assert.NoError(t, err)
	assert.Len(t, page.Entries, 1)
	assert.False(t, page.HasMore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLog_UnreadCount_CacheHitSkipsDatabase(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	cache, cacheMock := redismock.NewClientMock()
	cacheMock.ExpectGet("badge:customer:cust-1").SetVal("4")

	journal := NewNotificationLog(db, cache, time.Second, noRetry(), logger.NewNoOpLogger())

	n, err := journal.UnreadCount(context.Background(), customerRef())
	assert.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.NoError(t, dbMock.ExpectationsWereMet())
	assert.NoError(t, cacheMock.ExpectationsWereMet())
}

func TestLog_UnreadCount_CacheMissCountsAndBackfills(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	dbMock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	cache, cacheMock := redismock.NewClientMock()
	cacheMock.ExpectGet("badge:customer:cust-1").RedisNil()
	cacheMock.ExpectSet("badge:customer:cust-1", 2, 30*time.Second).SetVal("OK")

	journal := NewNotificationLog(db, cache, 30*time.Second, noRetry(), logger.NewNoOpLogger())

	n, err := journal.UnreadCount(context.Background(), customerRef())
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, dbMock.ExpectationsWereMet())
	assert.NoError(t, cacheMock.ExpectationsWereMet())
}

func TestLog_UnreadCount_WorksWithoutCache(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	journal := NewNotificationLog(db, nil, time.Second, noRetry(), logger.NewNoOpLogger())

	n, err := journal.UnreadCount(context.Background(), customerRef())
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLog_MarkOneRead_OwnershipEnforced(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT recipient_type, recipient_id FROM notification_log").
		WithArgs("n-1").
		WillReturnRows(sqlmock.NewRows([]string{"recipient_type", "recipient_id"}).
			AddRow("customer", "someone-else"))

	journal := NewNotificationLog(db, nil, time.Second, noRetry(), logger.NewNoOpLogger())

	err = journal.MarkOneRead(context.Background(), customerRef(), "n-1")
	assert.True(t, commonerrors.IsUnauthorized(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLog_MarkOneRead_UnknownNotification(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT recipient_type, recipient_id FROM notification_log").
		WithArgs("n-missing").
		WillReturnRows(sqlmock.NewRows([]string{"recipient_type", "recipient_id"}))

	journal := NewNotificationLog(db, nil, time.Second, noRetry(), logger.NewNoOpLogger())

	err = journal.MarkOneRead(context.Background(), customerRef(), "n-missing")
	assert.True(t, commonerrors.IsNotFound(err))
}

func TestLog_MarkOneRead_FlipsRowAndDropsBadge(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT recipient_type, recipient_id FROM notification_log").
		WithArgs("n-1").
		WillReturnRows(sqlmock.NewRows([]string{"recipient_type", "recipient_id"}).
			AddRow("customer", "cust-1"))
	mock.ExpectExec("UPDATE notification_log SET is_read = TRUE").
		WithArgs("n-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	cache, cacheMock := redismock.NewClientMock()
	cacheMock.ExpectDel("badge:customer:cust-1").SetVal(1)

	journal := NewNotificationLog(db, cache, time.Second, noRetry(), logger.NewNoOpLogger())

	assert.NoError(t, journal.MarkOneRead(context.Background(), customerRef(), "n-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, cacheMock.ExpectationsWereMet())
}

func TestLog_MarkAllRead_IdempotentAndInvalidatesBadge(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE notification_log SET is_read = TRUE").
		WithArgs("customer", "cust-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("UPDATE notification_log SET is_read = TRUE").
		WithArgs("customer", "cust-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	cache, cacheMock := redismock.NewClientMock()
	cacheMock.ExpectDel("badge:customer:cust-1").SetVal(1)
	cacheMock.ExpectDel("badge:customer:cust-1").SetVal(0)

	journal := NewNotificationLog(db, cache, time.Second, noRetry(), logger.NewNoOpLogger())

	assert.NoError(t, journal.MarkAllRead(context.Background(), customerRef()))
	assert.NoError(t, journal.MarkAllRead(context.Background(), customerRef()))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, cacheMock.ExpectationsWereMet())
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, StatusSent, statusFor(2, 2, 0))
	assert.Equal(t, StatusPartial, statusFor(3, 2, 1))
	assert.Equal(t, StatusFailed, statusFor(2, 0, 2))
	assert.Equal(t, StatusFailed, statusFor(0, 0, 0))
}
