package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/mzansigig/gigwork-backend/internal/gateway/paystack"
	"github.com/mzansigig/gigwork-backend/internal/gateway/truzo"
	"github.com/mzansigig/gigwork-backend/internal/models"
	"github.com/mzansigig/gigwork-backend/internal/pkg/apperror"
	"github.com/mzansigig/gigwork-backend/internal/repository"
)

type mockEscrowRepo struct {
	mock.Mock
}

func (m *mockEscrowRepo) GetByGigID(ctx context.Context, gigID uuid.UUID) (*models.EscrowAccount, error) {
	args := m.Called(ctx, gigID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EscrowAccount), args.Error(1)
}

func (m *mockEscrowRepo) GetPaymentByReference(ctx context.Context, reference string) (*models.Payment, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *mockEscrowRepo) GetPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *mockEscrowRepo) GetSettledPaymentByGig(ctx context.Context, gigID uuid.UUID) (*models.Payment, error) {
	args := m.Called(ctx, gigID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *mockEscrowRepo) CreateIntent(ctx context.Context, gigID, employerID uuid.UUID, amount decimal.Decimal, reference string, allocationID *string, window time.Duration) (*models.Payment, error) {
	args := m.Called(ctx, gigID, employerID, amount, reference, allocationID, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *mockEscrowRepo) Fund(ctx context.Context, gigID, employerID uuid.UUID, grossAmount decimal.Decimal, reference string, window time.Duration) (*repository.FundResult, error) {
	args := m.Called(ctx, gigID, employerID, grossAmount, reference, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.FundResult), args.Error(1)
}

func (m *mockEscrowRepo) Release(ctx context.Context, gigID uuid.UUID, amount decimal.Decimal) (*models.EscrowAccount, error) {
	args := m.Called(ctx, gigID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EscrowAccount), args.Error(1)
}

func (m *mockEscrowRepo) Dispute(ctx context.Context, paymentID, raisedBy uuid.UUID, reason string) (*models.EscrowAccount, error) {
	args := m.Called(ctx, paymentID, raisedBy, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EscrowAccount), args.Error(1)
}

func (m *mockEscrowRepo) DueForRelease(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *mockEscrowRepo) ExpireDueIntents(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockEscrowRepo) MarkPaymentFailed(ctx context.Context, reference string) error {
	args := m.Called(ctx, reference)
	return args.Error(0)
}

type mockAcceptedFinder struct {
	mock.Mock
}

func (m *mockAcceptedFinder) GetAcceptedByGig(ctx context.Context, gigID uuid.UUID) (*models.GigApplication, error) {
	args := m.Called(ctx, gigID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GigApplication), args.Error(1)
}

type mockCardGateway struct {
	mock.Mock
}

func (m *mockCardGateway) InitializeTransaction(ctx context.Context, email string, amount decimal.Decimal, reference string, metadata map[string]interface{}) (*paystack.InitializeData, error) {
	args := m.Called(ctx, email, amount, reference, metadata)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paystack.InitializeData), args.Error(1)
}

func (m *mockCardGateway) VerifyTransaction(ctx context.Context, reference string) (*paystack.VerifyData, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paystack.VerifyData), args.Error(1)
}

type mockEscrowGateway struct {
	mock.Mock
}

func (m *mockEscrowGateway) CreateToken(ctx context.Context, party truzo.Party) (string, error) {
	args := m.Called(ctx, party)
	return args.String(0), args.Error(1)
}

func (m *mockEscrowGateway) CreateTransaction(ctx context.Context, buyerToken, sellerToken string, feePercent, value decimal.Decimal, reference string) (*truzo.Transaction, error) {
	args := m.Called(ctx, buyerToken, sellerToken, feePercent, value, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*truzo.Transaction), args.Error(1)
}

func (m *mockEscrowGateway) GetCheckoutLink(ctx context.Context, transactionID string) (string, error) {
	args := m.Called(ctx, transactionID)
	return args.String(0), args.Error(1)
}

func (m *mockEscrowGateway) StartDelivery(ctx context.Context, allocationID string) error {
	args := m.Called(ctx, allocationID)
	return args.Error(0)
}

func (m *mockEscrowGateway) CompleteDelivery(ctx context.Context, allocationID string) error {
	args := m.Called(ctx, allocationID)
	return args.Error(0)
}

func (m *mockEscrowGateway) AcceptDelivery(ctx context.Context, allocationID string) error {
	args := m.Called(ctx, allocationID)
	return args.Error(0)
}

func (m *mockEscrowGateway) CancelTransaction(ctx context.Context, transactionID, reason string) error {
	args := m.Called(ctx, transactionID, reason)
	return args.Error(0)
}

type escrowFixture struct {
	repo    *mockEscrowRepo
	apps    *mockAcceptedFinder
	gigs    *mockGigReader
	feeRepo *mockFeeConfigRepo
	card    *mockCardGateway
	gateway *mockEscrowGateway
	svc     *EscrowService
}

func newEscrowFixture() *escrowFixture {
	f := &escrowFixture{
		repo:    new(mockEscrowRepo),
		apps:    new(mockAcceptedFinder),
		gigs:    new(mockGigReader),
		feeRepo: new(mockFeeConfigRepo),
		card:    new(mockCardGateway),
		gateway: new(mockEscrowGateway),
	}
	f.svc = NewEscrowService(f.repo, f.apps, f.gigs, newFeeService(f.feeRepo), f.card, f.gateway)
	return f
}

func TestEscrowService_InitiateCardCheckout_Success(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()

	gigID := uuid.New()
	employerID := uuid.New()
	rate := decimal.NewFromInt(5000)

	f.gigs.On("GetByID", ctx, gigID).Return(&models.Gig{ID: gigID, EmployerID: employerID, Status: models.GigStatusInProgress}, nil)
	f.apps.On("GetAcceptedByGig", ctx, gigID).Return(&models.GigApplication{GigID: gigID, ProposedRate: rate, Status: models.ApplicationStatusAccepted}, nil)
	f.feeRepo.On("GetActive", ctx).Return(testFeeConfig(), nil)

	payment := &models.Payment{ID: uuid.New(), GigID: gigID, Amount: rate, Status: models.PaymentStatusCreated}
	f.repo.On("CreateIntent", ctx, gigID, employerID, rate, mock.Anything, (*string)(nil), PaymentIntentWindow).Return(payment, nil)
	f.card.On("InitializeTransaction", ctx, "boss@example.co.za", rate, mock.Anything, mock.Anything).
		Return(&paystack.InitializeData{AuthorizationURL: "https://checkout.example/abc"}, nil)

	checkout, err := f.svc.InitiateCardCheckout(ctx, gigID, employerID, "boss@example.co.za")
	assert.NoError(t, err)
	assert.Equal(t, "https://checkout.example/abc", checkout.CheckoutURL)
	assert.Equal(t, "500", checkout.Breakdown.PlatformCommission.String())
	assert.Equal(t, "4500", checkout.Breakdown.WorkerEarnings.String())
	f.repo.AssertExpectations(t)
}

func TestEscrowService_InitiateCardCheckout_NegotiatedRateWinsOverBudget(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()

	gigID := uuid.New()
	employerID := uuid.New()
	agreed := decimal.NewFromInt(7000)

	f.gigs.On("GetByID", ctx, gigID).Return(&models.Gig{ID: gigID, EmployerID: employerID, Budget: decimal.NewFromInt(5000)}, nil)
	f.apps.On("GetAcceptedByGig", ctx, gigID).Return(&models.GigApplication{
		GigID:        gigID,
		ProposedRate: decimal.NewFromInt(6000),
		AgreedRate:   decimal.NullDecimal{Decimal: agreed, Valid: true},
	}, nil)
	f.feeRepo.On("GetActive", ctx).Return(testFeeConfig(), nil)

	f.repo.On("CreateIntent", ctx, gigID, employerID, agreed, mock.Anything, (*string)(nil), PaymentIntentWindow).
		Return(&models.Payment{Amount: agreed}, nil)
	f.card.On("InitializeTransaction", ctx, mock.Anything, agreed, mock.Anything, mock.Anything).
		Return(&paystack.InitializeData{AuthorizationURL: "https://checkout.example/x"}, nil)

	checkout, err := f.svc.InitiateCardCheckout(ctx, gigID, employerID, "boss@example.co.za")
	assert.NoError(t, err)
	assert.True(t, checkout.Breakdown.GigAmount.Equal(agreed))
}

func TestEscrowService_InitiateCardCheckout_OutOfBounds(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()

	gigID := uuid.New()
	employerID := uuid.New()
	f.gigs.On("GetByID", ctx, gigID).Return(&models.Gig{ID: gigID, EmployerID: employerID}, nil)
	f.apps.On("GetAcceptedByGig", ctx, gigID).Return(&models.GigApplication{GigID: gigID, ProposedRate: decimal.NewFromInt(50)}, nil)
	f.feeRepo.On("GetActive", ctx).Return(testFeeConfig(), nil)

	_, err := f.svc.InitiateCardCheckout(ctx, gigID, employerID, "boss@example.co.za")
	assert.True(t, apperror.Is(err, apperror.ErrCodeOutOfBounds))
	f.repo.AssertNotCalled(t, "CreateIntent")
}

func TestEscrowService_InitiateCardCheckout_ForbiddenForNonOwner(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()

	gigID := uuid.New()
	f.gigs.On("GetByID", ctx, gigID).Return(&models.Gig{ID: gigID, EmployerID: uuid.New()}, nil)

	_, err := f.svc.InitiateCardCheckout(ctx, gigID, uuid.New(), "someone@example.co.za")
	assert.True(t, apperror.Is(err, apperror.ErrCodeForbidden))
}

func TestEscrowService_InitiateEscrowCheckout_Success(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()

	gigID := uuid.New()
	employerID := uuid.New()
	rate := decimal.NewFromInt(5000)
	buyer := truzo.Party{Email: "buyer@example.co.za", Name: "Buyer"}
	seller := truzo.Party{Email: "seller@example.co.za", Name: "Seller"}

	f.gigs.On("GetByID", ctx, gigID).Return(&models.Gig{ID: gigID, EmployerID: employerID}, nil)
	f.apps.On("GetAcceptedByGig", ctx, gigID).Return(&models.GigApplication{GigID: gigID, ProposedRate: rate}, nil)
	f.feeRepo.On("GetActive", ctx).Return(testFeeConfig(), nil)

	f.gateway.On("CreateToken", ctx, buyer).Return("tok-buyer", nil)
	f.gateway.On("CreateToken", ctx, seller).Return("tok-seller", nil)
	txn := &truzo.Transaction{ID: "txn-1", AllocationID: "alloc-1", Value: rate}
	f.gateway.On("CreateTransaction", ctx, "tok-buyer", "tok-seller", mock.Anything, rate, gigID.String()).Return(txn, nil)
	f.gateway.On("GetCheckoutLink", ctx, "txn-1").Return("https://escrow.example/txn-1", nil)

	f.repo.On("CreateIntent", ctx, gigID, employerID, rate, "txn-1", mock.MatchedBy(func(a *string) bool {
		return a != nil && *a == "alloc-1"
	}), PaymentIntentWindow).Return(&models.Payment{Amount: rate, Reference: "txn-1"}, nil)

	checkout, err := f.svc.InitiateEscrowCheckout(ctx, gigID, employerID, buyer, seller)
	assert.NoError(t, err)
	assert.Equal(t, "https://escrow.example/txn-1", checkout.CheckoutURL)
	f.gateway.AssertExpectations(t)
}

func TestEscrowService_InitiateEscrowCheckout_GatewayFailure(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()

	gigID := uuid.New()
	employerID := uuid.New()
	f.gigs.On("GetByID", ctx, gigID).Return(&models.Gig{ID: gigID, EmployerID: employerID}, nil)
	f.apps.On("GetAcceptedByGig", ctx, gigID).Return(&models.GigApplication{GigID: gigID, ProposedRate: decimal.NewFromInt(5000)}, nil)
	f.feeRepo.On("GetActive", ctx).Return(testFeeConfig(), nil)
	f.gateway.On("CreateToken", ctx, mock.Anything).Return("", errors.New("gateway down"))

	_, err := f.svc.InitiateEscrowCheckout(ctx, gigID, employerID, truzo.Party{Email: "a@b.c"}, truzo.Party{Email: "d@e.f"})
	assert.True(t, apperror.Is(err, apperror.ErrCodeGatewayError))
	f.repo.AssertNotCalled(t, "CreateIntent")
}

func TestEscrowService_Fund_DuplicateDeliveryIsNoOp(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()

	reference := "GIG-ref"
	payment := &models.Payment{GigID: uuid.New(), EmployerID: uuid.New(), Reference: reference, Status: models.PaymentStatusSucceeded}
	f.repo.On("GetPaymentByReference", ctx, reference).Return(payment, nil)
	f.repo.On("Fund", ctx, payment.GigID, payment.EmployerID, mock.Anything, reference, PaymentIntentWindow).
		Return(&repository.FundResult{Payment: payment, AlreadyFunded: true}, nil)

	result, err := f.svc.Fund(ctx, reference, decimal.NewFromInt(5000))
	assert.NoError(t, err)
	assert.True(t, result.AlreadyFunded)
	f.gateway.AssertNotCalled(t, "StartDelivery")
}

func TestEscrowService_Fund_StartsDeliveryOnEscrowRail(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()

	reference := "txn-1"
	alloc := "alloc-1"
	payment := &models.Payment{GigID: uuid.New(), EmployerID: uuid.New(), Reference: reference, AllocationID: &alloc, Status: models.PaymentStatusCreated}
	settled := *payment
	settled.Status = models.PaymentStatusSucceeded

	f.repo.On("GetPaymentByReference", ctx, reference).Return(payment, nil)
	f.repo.On("Fund", ctx, payment.GigID, payment.EmployerID, mock.Anything, reference, PaymentIntentWindow).
		Return(&repository.FundResult{Payment: &settled}, nil)
	f.gateway.On("StartDelivery", ctx, alloc).Return(nil)

	_, err := f.svc.Fund(ctx, reference, decimal.NewFromInt(5000))
	assert.NoError(t, err)
	f.gateway.AssertExpectations(t)
}

func TestEscrowService_Fund_ExpiredIntentRejected(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()

	reference := "GIG-old"
	payment := &models.Payment{GigID: uuid.New(), EmployerID: uuid.New(), Reference: reference}
	f.repo.On("GetPaymentByReference", ctx, reference).Return(payment, nil)
	f.repo.On("Fund", ctx, payment.GigID, payment.EmployerID, mock.Anything, reference, PaymentIntentWindow).
		Return(nil, repository.ErrPaymentExpired)

	_, err := f.svc.Fund(ctx, reference, decimal.NewFromInt(5000))
	assert.True(t, apperror.Is(err, apperror.ErrCodeInvalidState))
}

func TestEscrowService_VerifyAndFund_UnsettledAtGateway(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()

	f.card.On("VerifyTransaction", ctx, "GIG-x").Return(&paystack.VerifyData{Status: "abandoned"}, nil)

	_, err := f.svc.VerifyAndFund(ctx, "GIG-x")
	assert.True(t, apperror.Is(err, apperror.ErrCodeInvalidState))
	f.repo.AssertNotCalled(t, "Fund")
}

func TestEscrowService_ConfirmCompletion_ReleasesAndAcknowledges(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()

	gigID := uuid.New()
	employerID := uuid.New()
	alloc := "alloc-1"
	escrow := &models.EscrowAccount{GigID: gigID, EmployerID: employerID, WorkerID: uuid.New(), Status: models.EscrowStatusActive}

	f.repo.On("GetByGigID", ctx, gigID).Return(escrow, nil)
	released := *escrow
	released.Status = models.EscrowStatusReleased
	f.repo.On("Release", ctx, gigID, decimal.Zero).Return(&released, nil)
	f.repo.On("GetSettledPaymentByGig", ctx, gigID).Return(&models.Payment{AllocationID: &alloc}, nil)
	f.gateway.On("AcceptDelivery", ctx, alloc).Return(nil)

	out, err := f.svc.ConfirmCompletion(ctx, gigID, employerID)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusReleased, out.Status)
	f.gateway.AssertExpectations(t)
}

func TestEscrowService_ConfirmCompletion_ForbiddenForNonEmployer(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()

	gigID := uuid.New()
	f.repo.On("GetByGigID", ctx, gigID).Return(&models.EscrowAccount{GigID: gigID, EmployerID: uuid.New()}, nil)

	_, err := f.svc.ConfirmCompletion(ctx, gigID, uuid.New())
	assert.True(t, apperror.Is(err, apperror.ErrCodeForbidden))
	f.repo.AssertNotCalled(t, "Release")
}

func TestEscrowService_Release_DoubleReleaseRejected(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()

	gigID := uuid.New()
	f.repo.On("Release", ctx, gigID, decimal.Zero).Return(nil, repository.ErrEscrowNotActive)

	_, err := f.svc.Release(ctx, gigID, decimal.Zero)
	assert.True(t, apperror.Is(err, apperror.ErrCodeInvalidState))
}

func TestEscrowService_Release_ExceedsRemaining(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()

	gigID := uuid.New()
	amount := decimal.NewFromInt(9999)
	f.repo.On("Release", ctx, gigID, amount).Return(nil, repository.ErrReleaseExceedsEscrow)

	_, err := f.svc.Release(ctx, gigID, amount)
	assert.True(t, apperror.Is(err, apperror.ErrCodeInvalidState))
}

func TestEscrowService_Dispute_RequiresReason(t *testing.T) {
	f := newEscrowFixture()

	_, err := f.svc.Dispute(context.Background(), uuid.New(), uuid.New(), "")
	assert.True(t, apperror.Is(err, apperror.ErrCodeValidation))
	f.repo.AssertNotCalled(t, "Dispute")
}

func TestEscrowService_ReleaseDueEscrows_ContinuesPastFailures(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()

	broken := uuid.New()
	healthy := uuid.New()
	f.repo.On("DueForRelease", ctx, mock.Anything).Return([]uuid.UUID{broken, healthy}, nil)
	f.repo.On("Release", ctx, broken, decimal.Zero).Return(nil, errors.New("pending balance mismatch"))
	f.repo.On("Release", ctx, healthy, decimal.Zero).Return(&models.EscrowAccount{GigID: healthy, Status: models.EscrowStatusReleased}, nil)
	f.repo.On("GetSettledPaymentByGig", ctx, healthy).Return(&models.Payment{}, nil)

	released, err := f.svc.ReleaseDueEscrows(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, released)
	f.repo.AssertExpectations(t)
}

func TestEscrowService_ExpireDuePayments(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()

	f.repo.On("ExpireDueIntents", ctx, mock.Anything).Return(int64(3), nil)

	expired, err := f.svc.ExpireDuePayments(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), expired)
}
