package events

// Topic constants for domain events emitted by the platform.
const (
	TopicOrderCreated        = "order.created"
	TopicOrderPaid           = "order.paid"
	TopicOrderCanceled       = "order.canceled"
	TopicPaymentFailed       = "payment.failed"
	TopicTicketIssued        = "ticket.issued"
	TopicTourBooked          = "tour.booked"
	TopicVenueBookingCreated = "venue_booking.created"
	TopicCreditBatchDone     = "credit.batch_completed"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicOrderCreated,
		TopicOrderPaid,
		TopicOrderCanceled,
		TopicPaymentFailed,
		TopicTicketIssued,
		TopicTourBooked,
		TopicVenueBookingCreated,
		TopicCreditBatchDone,
	}
}
