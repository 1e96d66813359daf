package models

type BillType string

const (
	BillInvoice           BillType = "INVOICE"
	BillPartialCreditNote BillType = "PARTIAL_CREDIT_NOTE"
	BillRefundReceipt     BillType = "REFUND_RECEIPT"
)
