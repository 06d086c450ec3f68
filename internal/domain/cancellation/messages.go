package cancellation

import "strings"

const DefaultLocale = "en"

// Messages is a catalog of user-facing texts per locale and reason.
type Messages map[string]map[ReasonCode]string

func DefaultMessages() Messages {
	return Messages{
		"en": {
			ReasonFullRefundEarly:      "Cancelled early enough for a full refund of the booking price. The service fee is not refundable.",
			ReasonPartialRefundMid:     "Cancelled inside the partial refund window: half of the booking price will be refunded.",
			ReasonNoRefundLate:         "Cancelled too close to the start time for a refund.",
			ReasonAlreadyStartedOrPast: "This booking has already started or is in the past and can no longer be cancelled.",
			ReasonAlreadyFullyRefunded: "This booking has already been fully refunded.",
			ReasonNoCapturedPayment:    "No captured payment was found for this booking.",
			ReasonInvalidBookingState:  "This booking cannot be cancelled in its current state.",
			ReasonRefundReconciled:     "A refund already issued by the payment provider has been recorded on this booking.",
		},
		"fr": {
			ReasonFullRefundEarly:      "Annulation suffisamment tôt pour un remboursement intégral du prix de la réservation. Les frais de service ne sont pas remboursables.",
			ReasonPartialRefundMid:     "Annulation dans la période de remboursement partiel : la moitié du prix de la réservation sera remboursée.",
			ReasonNoRefundLate:         "Annulation trop proche de l'heure de début pour un remboursement.",
			ReasonAlreadyStartedOrPast: "Cette réservation a déjà commencé ou est passée et ne peut plus être annulée.",
			ReasonAlreadyFullyRefunded: "Cette réservation a déjà été intégralement remboursée.",
			ReasonNoCapturedPayment:    "Aucun paiement capturé n'a été trouvé pour cette réservation.",
			ReasonInvalidBookingState:  "Cette réservation ne peut pas être annulée dans son état actuel.",
			ReasonRefundReconciled:     "Un remboursement déjà émis par le prestataire de paiement a été enregistré sur cette réservation.",
		},
	}
}

// Render returns the text for reason, falling back to English and then to the code itself.
func (m Messages) Render(locale string, reason ReasonCode) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(locale, "-_"); i > 0 {
		locale = locale[:i]
	}
	if text, ok := m[locale][reason]; ok {
		return text
	}
	if text, ok := m[DefaultLocale][reason]; ok {
		return text
	}
	return string(reason)
}
