package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-payment-notify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

// recordingStore applies changes to the order in memory and records each call in order.
type recordingStore struct {
	calls   []string
	failOn  string
	failErr error
}

func newRecordingStore() *recordingStore { return &recordingStore{} }

func (s *recordingStore) record(call string) error {
	s.calls = append(s.calls, call)
	if s.failOn != "" && s.failOn == call {
		return s.failErr
	}
	return nil
}

func (s *recordingStore) UpdateStatus(_ context.Context, o *domain.Order, status domain.OrderStatus, note string) error {
	if err := s.record("status " + string(status)); err != nil {
		return err
	}
	o.Status = status
	o.Notes = append(o.Notes, domain.OrderNote{Text: note, CreatedAt: time.Now()})
	return nil
}

func (s *recordingStore) AddNote(_ context.Context, o *domain.Order, note string) error {
	if err := s.record("note"); err != nil {
		return err
	}
	o.Notes = append(o.Notes, domain.OrderNote{Text: note, CreatedAt: time.Now()})
	return nil
}

func (s *recordingStore) AddMeta(_ context.Context, o *domain.Order, key, value string) error {
	if err := s.record("meta " + key); err != nil {
		return err
	}
	if o.Metadata == nil {
		o.Metadata = map[string]string{}
	}
	o.Metadata[key] = value
	return nil
}

func (s *recordingStore) MarkPaid(_ context.Context, o *domain.Order, reference string) error {
	if err := s.record("paid " + reference); err != nil {
		return err
	}
	o.Status = domain.OrderProcessing
	o.PaymentReference = reference
	return nil
}

type mockSender struct {
	mock.Mock
	store *recordingStore
}

func (m *mockSender) Send(ctx context.Context, url string, payload map[string]string) (string, domain.Notification, error) {
	if m.store != nil {
		m.store.calls = append(m.store.calls, "send")
	}
	args := m.Called(ctx, url, payload)
	n, _ := args.Get(1).(domain.Notification)
	return args.String(0), n, args.Error(2)
}

// --- helpers ---

const processorURL = "https://processor.test/ngw/post"

func newReconciler(store *recordingStore, sender Sender, policy FollowUpPolicy) *Reconciler {
	return NewReconciler(ReconcilerDeps{
		Orders:       store,
		Methods:      NewRegistry(nil),
		Sender:       sender,
		ProcessorURL: processorURL,
		Policy:       policy,
	})
}

func pendingOrder() *domain.Order {
	return &domain.Order{OrderID: "1042", OrderKey: "wc_order_abc", Status: domain.OrderPending, Total: "19.99", Currency: "EUR"}
}

func ackResponse() domain.Notification {
	return notification("PAYMENT.CODE", "DD.DB", "PROCESSING.RESULT", "ACK", "PROCESSING.STATUS.CODE", "90", "IDENTIFICATION.UNIQUEID", "DEBIT-1")
}

// --- tests ---

func TestReconcile_DebitMarksPaid(t *testing.T) {
	store := newRecordingStore()
	o := pendingOrder()
	vn := verified("CC.DB", "IDENTIFICATION.UNIQUEID", "U1", "IDENTIFICATION.SHORTID", "S1")

	out, err := newReconciler(store, nil, FollowUpWarn).Reconcile(context.Background(), o, vn)
	require.NoError(t, err)
	assert.Equal(t, domain.RedirectToReceived, out.Kind)
	assert.Equal(t, domain.OrderProcessing, o.Status)
	assert.Equal(t, "S1", o.PaymentReference)
	assert.Equal(t, "U1", o.Meta(domain.MetaUniqueID))
}

func TestReconcile_InvoiceReservationIsCapturedWithPaymentInfo(t *testing.T) {
	store := newRecordingStore()
	o := pendingOrder()
	vn := verified("IV.PA", "IDENTIFICATION.SHORTID", "S1", "PRESENTATION.AMOUNT", "19.99", "PRESENTATION.CURRENCY", "EUR")

	out, err := newReconciler(store, nil, FollowUpWarn).Reconcile(context.Background(), o, vn)
	require.NoError(t, err)
	assert.Equal(t, domain.RedirectToReceived, out.Kind)
	assert.Equal(t, domain.OrderProcessing, o.Status)
	assert.Contains(t, o.Meta(domain.MetaPaymentInfo), "19.99 EUR")
	assert.Equal(t, "meta "+domain.MetaPaymentInfo, store.calls[0])
}

func TestReconcile_PrepaymentReservationOnHold(t *testing.T) {
	store := newRecordingStore()
	o := pendingOrder()

	out, err := newReconciler(store, nil, FollowUpWarn).Reconcile(context.Background(), o, verified("PP.PA", "PRESENTATION.AMOUNT", "19.99"))
	require.NoError(t, err)
	assert.Equal(t, domain.RedirectToReceived, out.Kind)
	assert.Equal(t, domain.OrderOnHold, o.Status)
	assert.NotEmpty(t, o.Meta(domain.MetaPaymentInfo))
	assert.Empty(t, o.PaymentReference)
	for _, n := range o.Notes {
		assert.NotEqual(t, NoteManualCapture, n.Text)
	}
}

func TestReconcile_CardReservationAwaitsManualCapture(t *testing.T) {
	store := newRecordingStore()
	o := pendingOrder()

	_, err := newReconciler(store, nil, FollowUpWarn).Reconcile(context.Background(), o, verified("CC.PA"))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderOnHold, o.Status)
	assert.Empty(t, o.Meta(domain.MetaPaymentInfo))
	require.Len(t, o.Notes, 2)
	assert.Equal(t, NoteManualCapture, o.Notes[0].Text)
}

func TestReconcile_RegistrationDispatchesDebit(t *testing.T) {
	store := newRecordingStore()
	sender := &mockSender{store: store}
	o := pendingOrder()
	vn := verified("DD.RG", "IDENTIFICATION.UNIQUEID", "REG-1", "IDENTIFICATION.SHORTID", "S1")

	var sent map[string]string
	sender.On("Send", mock.Anything, processorURL, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(2).(map[string]string) }).
		Return("PROCESSING.RESULT=ACK", ackResponse(), nil)

	out, err := newReconciler(store, sender, FollowUpWarn).Reconcile(context.Background(), o, vn)
	require.NoError(t, err)
	sender.AssertExpectations(t)

	assert.Equal(t, domain.RedirectToReceived, out.Kind)
	assert.Empty(t, out.Warning)
	assert.Equal(t, "REG-1", o.Meta(domain.MetaRegistrationID))
	assert.Equal(t, "DD.DB", sent["PAYMENT.CODE"])
	assert.Equal(t, "REG-1", sent["IDENTIFICATION.REFERENCEID"])
	assert.Equal(t, "FALSE", sent["FRONTEND.ENABLED"])
	assert.Equal(t, "1042", sent["IDENTIFICATION.TRANSACTIONID"])

	// payment info, registration id, sent marker, the debit, then settlement
	require.GreaterOrEqual(t, len(store.calls), 4)
	assert.Equal(t, "meta "+domain.MetaPaymentInfo, store.calls[0])
	assert.Equal(t, "meta "+domain.MetaRegistrationID, store.calls[1])
	assert.Equal(t, "meta "+domain.MetaFollowUpSent, store.calls[2])
	assert.Equal(t, "send", store.calls[3])
	assert.Equal(t, "REG-1", o.Meta(domain.MetaFollowUpSent))
	assert.Equal(t, domain.OrderProcessing, o.Status)
}

func TestReconcile_FollowUpNotResentForSameRegistration(t *testing.T) {
	store := newRecordingStore()
	store.failOn = "paid S1"
	store.failErr = errors.New("throttled")
	sender := &mockSender{}
	sender.On("Send", mock.Anything, processorURL, mock.Anything).Return("", ackResponse(), nil)
	r := newReconciler(store, sender, FollowUpWarn)
	o := pendingOrder()
	vn := verified("DD.RG", "IDENTIFICATION.UNIQUEID", "REG-1", "IDENTIFICATION.SHORTID", "S1")

	_, err := r.Reconcile(context.Background(), o, vn)
	require.ErrorContains(t, err, "throttled")
	assert.True(t, FollowUpSent(o, vn))

	store.failOn = ""
	out, err := r.Reconcile(context.Background(), o, vn)
	require.NoError(t, err)
	assert.Equal(t, domain.RedirectToReceived, out.Kind)
	assert.Equal(t, domain.OrderProcessing, o.Status)
	sender.AssertNumberOfCalls(t, "Send", 1)
}

func TestReconcile_FollowUpSentForNewRegistration(t *testing.T) {
	store := newRecordingStore()
	sender := &mockSender{}
	sender.On("Send", mock.Anything, processorURL, mock.Anything).Return("", ackResponse(), nil)
	o := pendingOrder()
	o.Metadata = map[string]string{domain.MetaFollowUpSent: "REG-OLD"}

	_, err := newReconciler(store, sender, FollowUpWarn).Reconcile(context.Background(), o, verified("DD.RG", "IDENTIFICATION.UNIQUEID", "REG-2"))
	require.NoError(t, err)
	sender.AssertNumberOfCalls(t, "Send", 1)
	assert.Equal(t, "REG-2", o.Meta(domain.MetaFollowUpSent))
}

func TestReconcile_SentMarkerFailureSendsNothing(t *testing.T) {
	store := newRecordingStore()
	store.failOn = "meta " + domain.MetaFollowUpSent
	store.failErr = errors.New("throttled")
	sender := &mockSender{}
	obs := countingObserver{}
	r := NewReconciler(ReconcilerDeps{Orders: store, Sender: sender, ProcessorURL: processorURL, Observer: obs})

	_, err := r.Reconcile(context.Background(), pendingOrder(), verified("DD.RG", "IDENTIFICATION.UNIQUEID", "REG-1"))
	assert.ErrorContains(t, err, "throttled")
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, obs)
}

func TestReconcile_ConfirmationAlsoDispatches(t *testing.T) {
	store := newRecordingStore()
	sender := &mockSender{}
	sender.On("Send", mock.Anything, processorURL, mock.Anything).Return("", ackResponse(), nil)

	_, err := newReconciler(store, sender, FollowUpWarn).Reconcile(context.Background(), pendingOrder(), verified("CC.CF", "IDENTIFICATION.UNIQUEID", "REG-2"))
	require.NoError(t, err)
	sender.AssertNumberOfCalls(t, "Send", 1)
}

func TestReconcile_FollowUpPendingIsAccepted(t *testing.T) {
	store := newRecordingStore()
	sender := &mockSender{}
	resp := notification("PAYMENT.CODE", "DD.DB", "PROCESSING.RESULT", "ACK", "PROCESSING.STATUS.CODE", "80")
	sender.On("Send", mock.Anything, processorURL, mock.Anything).Return("", resp, nil)

	out, err := newReconciler(store, sender, FollowUpFail).Reconcile(context.Background(), pendingOrder(), verified("DD.RG", "IDENTIFICATION.UNIQUEID", "REG-1"))
	require.NoError(t, err)
	assert.Equal(t, domain.RedirectToReceived, out.Kind)
}

func TestReconcile_FollowUpRejectedWarnPolicy(t *testing.T) {
	store := newRecordingStore()
	sender := &mockSender{}
	resp := notification("PAYMENT.CODE", "DD.DB", "PROCESSING.RESULT", "NOK", "PROCESSING.RETURN.CODE", "100.100.101", "PROCESSING.RETURN", "invalid account")
	sender.On("Send", mock.Anything, processorURL, mock.Anything).Return("", resp, nil)
	o := pendingOrder()

	out, err := newReconciler(store, sender, FollowUpWarn).Reconcile(context.Background(), o, verified("DD.RG", "IDENTIFICATION.UNIQUEID", "REG-1", "IDENTIFICATION.SHORTID", "S1"))
	require.NoError(t, err)
	assert.Equal(t, domain.RedirectToReceived, out.Kind)
	assert.Contains(t, out.Warning, "100.100.101")
	assert.Equal(t, "REG-1", o.Meta(domain.MetaRegistrationID))
	assert.Contains(t, o.Meta(domain.MetaFollowUpWarning), "invalid account")
	assert.Equal(t, domain.OrderProcessing, o.Status)
}

func TestReconcile_FollowUpRejectedFailPolicy(t *testing.T) {
	store := newRecordingStore()
	sender := &mockSender{}
	resp := notification("PAYMENT.CODE", "DD.DB", "PROCESSING.RESULT", "NOK", "PROCESSING.RETURN.CODE", "100.100.101")
	sender.On("Send", mock.Anything, processorURL, mock.Anything).Return("", resp, nil)
	o := pendingOrder()

	out, err := newReconciler(store, sender, FollowUpFail).Reconcile(context.Background(), o, verified("DD.RG", "IDENTIFICATION.UNIQUEID", "REG-1"))
	require.NoError(t, err)
	assert.Equal(t, domain.RedirectToCancel, out.Kind)
	assert.Equal(t, "100.100.101", out.ErrorCode)
	assert.Equal(t, domain.OrderFailed, o.Status)
	// the registration itself is not reverted
	assert.Equal(t, "REG-1", o.Meta(domain.MetaRegistrationID))
	assert.Empty(t, o.PaymentReference)
}

func TestReconcile_FollowUpTransportErrorFailPolicy(t *testing.T) {
	store := newRecordingStore()
	sender := &mockSender{}
	sender.On("Send", mock.Anything, processorURL, mock.Anything).Return("", domain.Notification{}, errors.New("dial tcp: timeout"))
	o := pendingOrder()

	out, err := newReconciler(store, sender, FollowUpFail).Reconcile(context.Background(), o, verified("CC.RG", "IDENTIFICATION.UNIQUEID", "REG-1"))
	require.NoError(t, err)
	assert.Equal(t, domain.RedirectToCancel, out.Kind)
	assert.Equal(t, "followup", out.ErrorCode)
	assert.Equal(t, domain.OrderFailed, o.Status)
}

func TestReconcile_RegistrationForNonRegisteringMethodWarns(t *testing.T) {
	store := newRecordingStore()
	sender := &mockSender{}
	o := pendingOrder()

	out, err := newReconciler(store, sender, FollowUpWarn).Reconcile(context.Background(), o, verified("PP.RG", "IDENTIFICATION.UNIQUEID", "REG-1"))
	require.NoError(t, err)
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	assert.Contains(t, out.Warning, "unsupported payment method")
}

func TestReconcile_ErrorFailsOrder(t *testing.T) {
	store := newRecordingStore()
	o := pendingOrder()
	vn := verified("CC.DB")
	vn.Result = domain.ResultError
	vn.ErrorCode = "001"
	vn.ErrorMessage = "declined"

	out, err := newReconciler(store, nil, FollowUpWarn).Reconcile(context.Background(), o, vn)
	require.NoError(t, err)
	assert.Equal(t, domain.RedirectToCancel, out.Kind)
	assert.Equal(t, "001", out.ErrorCode)
	assert.Equal(t, domain.OrderFailed, o.Status)
	assert.Equal(t, []string{"status failed"}, store.calls)
}

func TestReconcile_PendingLeavesOrderAlone(t *testing.T) {
	store := newRecordingStore()
	o := pendingOrder()
	vn := verified("PP.PA")
	vn.Result = domain.ResultPending

	out, err := newReconciler(store, nil, FollowUpWarn).Reconcile(context.Background(), o, vn)
	require.NoError(t, err)
	assert.Equal(t, domain.RedirectToReceivedAfterCartClear, out.Kind)
	assert.Equal(t, domain.OrderPending, o.Status)
	assert.Empty(t, store.calls)
}

func TestReconcile_UnclassifiedResult(t *testing.T) {
	store := newRecordingStore()
	vn := verified("CC.DB")
	vn.Result = ""

	_, err := newReconciler(store, nil, FollowUpWarn).Reconcile(context.Background(), pendingOrder(), vn)
	var ce *domain.ClassificationError
	assert.ErrorAs(t, err, &ce)
	assert.Empty(t, store.calls)
}

func TestReconcile_StoreErrorStopsProcessing(t *testing.T) {
	store := newRecordingStore()
	store.failOn = "meta " + domain.MetaRegistrationID
	store.failErr = errors.New("throttled")
	sender := &mockSender{}

	_, err := newReconciler(store, sender, FollowUpWarn).Reconcile(context.Background(), pendingOrder(), verified("CC.RG", "IDENTIFICATION.UNIQUEID", "REG-1"))
	assert.ErrorContains(t, err, "throttled")
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcile_UnknownCombinationUsesDefaultPath(t *testing.T) {
	store := newRecordingStore()
	o := pendingOrder()

	out, err := newReconciler(store, nil, FollowUpWarn).Reconcile(context.Background(), o, verified("ZZ.QQ", "IDENTIFICATION.SHORTID", "S9"))
	require.NoError(t, err)
	assert.Equal(t, domain.RedirectToReceived, out.Kind)
	assert.Equal(t, "S9", o.PaymentReference)
}

type countingObserver map[string]int

func (c countingObserver) IncFollowUp(result string) { c[result]++ }

func TestReconcile_FollowUpObserved(t *testing.T) {
	obs := countingObserver{}
	sender := &mockSender{}
	sender.On("Send", mock.Anything, processorURL, mock.Anything).Return("", ackResponse(), nil).Once()
	sender.On("Send", mock.Anything, processorURL, mock.Anything).Return("", domain.Notification{}, errors.New("reset")).Once()

	r := NewReconciler(ReconcilerDeps{
		Orders:       newRecordingStore(),
		Sender:       sender,
		ProcessorURL: processorURL,
		Observer:     obs,
	})
	_, err := r.Reconcile(context.Background(), pendingOrder(), verified("CC.RG", "IDENTIFICATION.UNIQUEID", "R1"))
	require.NoError(t, err)
	_, err = r.Reconcile(context.Background(), pendingOrder(), verified("CC.RG", "IDENTIFICATION.UNIQUEID", "R2"))
	require.NoError(t, err)

	assert.Equal(t, countingObserver{"accepted": 1, "failed": 1}, obs)
}
