package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"finsync/internal/common"
	"finsync/internal/models"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var paymentColumnNames = []string{"id", "user_id", "external_payment_id", "external_customer_id", "external_subscription_id",
	"amount", "status", "billing_type", "due_date", "payment_date", "confirmed_date", "external_reference", "invoice_url",
	"description", "applied_at", "created_at", "updated_at"}

type PaymentRepoTestSuite struct {
	suite.Suite
	mock    pgxmock.PgxPoolIface
	repo    PaymentRepository
	userID  uuid.UUID
	context context.Context
}

func (suite *PaymentRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	require.NoError(suite.T(), err)
	suite.mock = mock
	suite.repo = NewPaymentRepository(mock)
	suite.userID = uuid.New()
	suite.context = context.Background()
}

func (suite *PaymentRepoTestSuite) TearDownTest() {
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
	suite.mock.Close()
}

func TestPaymentRepoTestSuite(t *testing.T) {
	suite.Run(t, new(PaymentRepoTestSuite))
}

func (suite *PaymentRepoTestSuite) paymentRow(externalID, status string) *pgxmock.Rows {
	now := time.Date(2024, 2, 15, 10, 0, 0, 0, time.UTC)
	userID := suite.userID
	return pgxmock.NewRows(paymentColumnNames).AddRow(
		uuid.New(), &userID, externalID, strPtr("cus_1"), strPtr("sub_1"),
		decimal.RequireFromString("19.90"), status, strPtr("PIX"), &now, (*time.Time)(nil), (*time.Time)(nil),
		strPtr("user="+suite.userID.String()+";plan=monthly"), strPtr("https://pay.example/i/1"), (*string)(nil),
		(*time.Time)(nil), now, now)
}

func (suite *PaymentRepoTestSuite) TestUpsert_InsertsAndReturnsStoredFields() {
	payment := &models.Payment{
		UserID:            &suite.userID,
		ExternalPaymentID: "pay_123",
		Amount:            decimal.RequireFromString("19.90"),
		Status:            models.PaymentPending,
	}
	storedID := uuid.New()
	now := time.Now()

	suite.mock.ExpectQuery(`INSERT INTO payments .* ON CONFLICT \(external_payment_id\) DO UPDATE SET`).
		WithArgs(payment.UserID, "pay_123", payment.ExternalCustomerID, payment.ExternalSubscriptionID,
			payment.Amount, models.PaymentPending, payment.BillingType, payment.DueDate, payment.PaymentDate,
			payment.ConfirmedDate, payment.ExternalReference, payment.InvoiceURL, payment.Description).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "applied_at", "created_at", "updated_at"}).
			AddRow(storedID, &suite.userID, (*time.Time)(nil), now, now))

	err := suite.repo.Upsert(suite.context, payment)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), storedID, payment.ID)
	assert.Nil(suite.T(), payment.AppliedAt)
}

func (suite *PaymentRepoTestSuite) TestUpsert_DatabaseError() {
	payment := &models.Payment{ExternalPaymentID: "pay_err", Status: models.PaymentConfirmed}

	suite.mock.ExpectQuery(`INSERT INTO payments`).
		WithArgs(anyArgs(13)...).
		WillReturnError(errors.New("database connection failed"))

	err := suite.repo.Upsert(suite.context, payment)
	assert.ErrorContains(suite.T(), err, "database connection failed")
}

func (suite *PaymentRepoTestSuite) TestGetByExternalID_Success() {
	suite.mock.ExpectQuery(`SELECT .* FROM payments WHERE external_payment_id = \$1`).
		WithArgs("pay_123").
		WillReturnRows(suite.paymentRow("pay_123", models.PaymentConfirmed))

	payment, err := suite.repo.GetByExternalID(suite.context, "pay_123")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "pay_123", payment.ExternalPaymentID)
	assert.Equal(suite.T(), models.PaymentConfirmed, payment.Status)
	assert.Equal(suite.T(), suite.userID, *payment.UserID)
	assert.True(suite.T(), payment.Amount.Equal(decimal.RequireFromString("19.90")))
}

func (suite *PaymentRepoTestSuite) TestGetByExternalID_NotFound() {
	suite.mock.ExpectQuery(`SELECT .* FROM payments WHERE external_payment_id = \$1`).
		WithArgs("pay_missing").
		WillReturnError(pgx.ErrNoRows)

	payment, err := suite.repo.GetByExternalID(suite.context, "pay_missing")
	assert.Nil(suite.T(), payment)
	assert.ErrorIs(suite.T(), err, common.ErrNotFound)
}

func (suite *PaymentRepoTestSuite) TestMarkApplied_FirstClaimWins() {
	suite.mock.ExpectExec(`UPDATE payments SET applied_at = NOW\(\)`).
		WithArgs("pay_123").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	suite.mock.ExpectExec(`UPDATE payments SET applied_at = NOW\(\)`).
		WithArgs("pay_123").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	first, err := suite.repo.MarkApplied(suite.context, "pay_123")
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), first)

	second, err := suite.repo.MarkApplied(suite.context, "pay_123")
	assert.NoError(suite.T(), err)
	assert.False(suite.T(), second)
}

func (suite *PaymentRepoTestSuite) TestListOpenByUser() {
	before := time.Now().Add(-10 * time.Minute)
	rows := suite.paymentRow("pay_1", models.PaymentPending)

	suite.mock.ExpectQuery(`FROM payments WHERE user_id = \$1 AND status IN`).
		WithArgs(suite.userID, before, 50).
		WillReturnRows(rows)

	payments, err := suite.repo.ListOpenByUser(suite.context, suite.userID, before, 50)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), payments, 1)
	assert.Equal(suite.T(), "pay_1", payments[0].ExternalPaymentID)
}

func (suite *PaymentRepoTestSuite) TestListOpen_QueryError() {
	suite.mock.ExpectQuery(`FROM payments WHERE status IN`).
		WithArgs(anyArgs(2)...).
		WillReturnError(errors.New("timeout"))

	payments, err := suite.repo.ListOpen(suite.context, time.Now(), 100)
	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), payments)
}

func (suite *PaymentRepoTestSuite) TestListBySubscription_SettledFirst() {
	suite.mock.ExpectQuery(`WHERE external_subscription_id = \$1\s+ORDER BY \(status IN \('CONFIRMED'`).
		WithArgs("sub_1", 1).
		WillReturnRows(suite.paymentRow("pay_2", models.PaymentReceived))

	payments, err := suite.repo.ListBySubscription(suite.context, "sub_1", 1)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), payments, 1)
	assert.Equal(suite.T(), models.PaymentReceived, payments[0].Status)
}

func strPtr(s string) *string {
	return &s
}

func anyArgs(n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}
