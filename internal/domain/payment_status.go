package domain

// PaymentStatus mirrors the processor's payment intent lifecycle.
type PaymentStatus string

const (
	PaymentStatusRequiresPaymentMethod PaymentStatus = "requires_payment_method"
	PaymentStatusRequiresConfirmation  PaymentStatus = "requires_confirmation"
	PaymentStatusRequiresAction        PaymentStatus = "requires_action"
	PaymentStatusProcessing            PaymentStatus = "processing"
	PaymentStatusSucceeded             PaymentStatus = "succeeded"
	PaymentStatusCanceled              PaymentStatus = "canceled"
)

func (s PaymentStatus) Succeeded() bool {
	return s == PaymentStatusSucceeded
}

func (s PaymentStatus) String() string {
	return string(s)
}
