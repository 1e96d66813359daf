package service

import "github.com/akylbek/payment-system/refund-reconciler/internal/models"

// BillTypeFor picks the document to issue for a payment given its non-failed refunds.
func BillTypeFor(paymentAmount *models.Money, refunded models.Money) models.BillType {
	switch {
	case refunded <= 0:
		return models.BillInvoice
	case paymentAmount != nil && refunded >= *paymentAmount:
		return models.BillRefundReceipt
	default:
		return models.BillPartialCreditNote
	}
}
