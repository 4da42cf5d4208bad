package letter

import (
	"fmt"
	"strings"
	"time"

	"github.com/bnrm/libadmin/internal/model"
)

// KindForStatus picks the decision letter matching a request status.
func KindForStatus(s model.Status) (Kind, error) {
	switch s {
	case model.StatusValidated:
		return KindApproval, nil
	case model.StatusRejected:
		return KindRejection, nil
	case model.StatusInfoRequested:
		return KindInfoRequest, nil
	case model.StatusPending:
		return KindReceipt, nil
	}
	return "", fmt.Errorf("%w: no letter for status %q", ErrKind, s)
}

// FromRequest builds the decision letter of a reviewed request.
func FromRequest(r model.Request, now time.Time) (Letter, error) {
	kind, err := KindForStatus(r.Status)
	if err != nil {
		return Letter{}, err
	}
	l := Letter{
		Kind:           kind,
		Reference:      r.Reference,
		Date:           now,
		RecipientName:  r.ApplicantName,
		RecipientEmail: r.ApplicantEmail,
		Object:         r.Title,
		Rows: []Row{
			{Label: "Référence", Value: r.Reference},
			{Label: "Intitulé", Value: r.Title},
			{Label: "Date de dépôt", Value: shortDate(r.CreatedAt)},
		},
	}
	switch kind {
	case KindRejection:
		l.Reason = r.RejectionReason
	case KindInfoRequest:
		l.Reason = r.InfoRequest
	}
	return l, nil
}

// FromAllocation builds the attribution letter listing the identifiers
// issued from a reserved range.
func FromAllocation(r model.NumberRange, now time.Time) Letter {
	rows := make([]Row, 0, len(r.UsedNumbersList)+1)
	rows = append(rows, Row{Label: "Type", Value: strings.ToUpper(string(r.NumberType))})
	for i, v := range r.UsedNumbersList {
		rows = append(rows, Row{Label: fmt.Sprintf("N° %d", i+1), Value: v})
	}
	return Letter{
		Kind:           KindAttribution,
		Reference:      rangeReference(r),
		Date:           now,
		RecipientName:  r.RequesterName,
		RecipientEmail: r.RequesterEmail,
		Object:         fmt.Sprintf("%s - %s", r.RangeStart, r.RangeEnd),
		Rows:           rows,
	}
}

// FromBooking builds the receipt of a space rental.
func FromBooking(b model.Booking, space model.Space, now time.Time) Letter {
	return Letter{
		Kind:           KindReceipt,
		Reference:      "LOC-" + shortID(b.ID),
		Date:           now,
		RecipientName:  b.OrganizerName,
		RecipientEmail: b.OrganizerEmail,
		Object:         fmt.Sprintf("location de l'espace %s", space.Name),
		Rows: []Row{
			{Label: "Espace", Value: space.Name},
			{Label: "Événement", Value: b.EventTitle},
			{Label: "Date", Value: b.Date},
			{Label: "Horaire", Value: b.StartTime + " - " + b.EndTime},
			{Label: "Durée", Value: fmt.Sprintf("%.1f h", b.Hours)},
			{Label: "Montant", Value: fmt.Sprintf("%.2f MAD", b.TotalPrice)},
		},
	}
}

func rangeReference(r model.NumberRange) string {
	return fmt.Sprintf("DL-%s-%s", strings.ToUpper(string(r.NumberType)), shortID(r.ID))
}

func shortID(id string) string {
	if len(id) > 8 {
		return strings.ToUpper(id[:8])
	}
	return strings.ToUpper(id)
}

func shortDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006")
}
