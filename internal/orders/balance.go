package orders

const (
	// DefaultInstallments is the installment count used when none is
	// configured.
	DefaultInstallments = 2
	// MaxInstallments bounds the configurable installment count.
	MaxInstallments = 10
)

// ComputeBalance returns the outstanding amount for an order:
// total minus advance minus the first installments payments. The result
// is not clamped; a negative balance means overpayment, and callers
// decide the <= 0 threshold for "fully paid".
func ComputeBalance(o *Order, installments int) float64 {
	if installments < 1 || installments > MaxInstallments {
		installments = DefaultInstallments
	}
	balance := o.TotalAmount - o.AdvanceAmount
	for i := 0; i < installments && i < len(o.Billing.Payments); i++ {
		balance -= o.Billing.Payments[i]
	}
	return balance
}
