// Package letter assembles the official correspondence of the institution
// as PDF documents: decision letters, receipts and identifier attributions.
//
// Rendering is a pure function of a Letter snapshot. Missing optional
// fields render as empty text; any rendering failure returns an error and
// no document.
package letter

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
)

// ErrKind is returned for a letter kind with no template.
var ErrKind = errors.New("unknown letter kind")

// Kind selects the boilerplate of a letter.
type Kind string

const (
	KindApproval    Kind = "approval"
	KindRejection   Kind = "rejection"
	KindReceipt     Kind = "receipt"
	KindAttribution Kind = "attribution"
	KindInfoRequest Kind = "info_request"
)

// Institution is printed in the header band of every letter.
const Institution = "Bibliothèque Nationale du Royaume du Maroc"

const defaultSignatory = "La Direction"

// Row is one line of the optional table.
type Row struct {
	Label string
	Value string
}

// Letter is the snapshot a document is rendered from.
type Letter struct {
	Kind           Kind
	Reference      string
	Date           time.Time
	RecipientName  string
	RecipientEmail string
	// Object names what the letter is about: a title, a space, a range.
	Object    string
	Rows      []Row
	Reason    string
	Signatory string
}

type template struct {
	subject string
	body    func(l Letter) []string
}

var templates = map[Kind]template{
	KindApproval: {
		subject: "Notification d'approbation",
		body: func(l Letter) []string {
			return []string{
				fmt.Sprintf("Nous avons le plaisir de vous informer que votre demande « %s » a été examinée et approuvée par nos services.", l.Object),
				"Vous trouverez ci-dessous le récapitulatif des informations enregistrées. Nous restons à votre disposition pour toute information complémentaire.",
			}
		},
	},
	KindRejection: {
		subject: "Notification de refus",
		body: func(l Letter) []string {
			return []string{
				fmt.Sprintf("Après examen attentif, nous sommes au regret de vous informer que votre demande « %s » n'a pas pu être retenue.", l.Object),
				fmt.Sprintf("Motif : %s", l.Reason),
				"Vous pouvez déposer une nouvelle demande une fois les éléments ci-dessus corrigés.",
			}
		},
	},
	KindInfoRequest: {
		subject: "Demande de complément d'information",
		body: func(l Letter) []string {
			return []string{
				fmt.Sprintf("Votre demande « %s » est en cours d'examen. Afin de poursuivre son traitement, nous vous prions de nous transmettre les éléments suivants :", l.Object),
				l.Reason,
			}
		},
	},
	KindReceipt: {
		subject: "Accusé de réception",
		body: func(l Letter) []string {
			return []string{
				fmt.Sprintf("Nous accusons réception de votre demande « %s ». Elle sera traitée dans les meilleurs délais.", l.Object),
				"Veuillez conserver ce document, il vous sera demandé pour toute correspondance ultérieure.",
			}
		},
	},
	KindAttribution: {
		subject: "Attribution de numéros",
		body: func(l Letter) []string {
			return []string{
				fmt.Sprintf("Dans le cadre du dépôt légal, la Bibliothèque Nationale vous attribue les numéros suivants au titre de la tranche %s.", l.Object),
				"Ces numéros doivent figurer sur chaque exemplaire des publications concernées.",
			}
		},
	},
}

// Subject returns the subject line of kind, or "" when unknown.
func Subject(k Kind) string {
	return templates[k].subject
}

// Render produces the PDF bytes of l.
func Render(l Letter) ([]byte, error) {
	return render(l, true)
}

var (
	navy  = [3]int{0, 51, 102}
	gold  = [3]int{184, 134, 11}
	grey  = [3]int{90, 90, 90}
	black = [3]int{0, 0, 0}
)

func render(l Letter, compress bool) ([]byte, error) {
	tpl, ok := templates[l.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrKind, l.Kind)
	}
	if l.Signatory == "" {
		l.Signatory = defaultSignatory
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(compress)
	pdf.SetTitle(tpl.subject, true)
	pdf.SetCreator(Institution, true)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 25)
	pdf.AliasNbPages("")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	width := pageW - left - right

	pdf.SetHeaderFunc(func() {
		pdf.SetFillColor(navy[0], navy[1], navy[2])
		pdf.Rect(0, 0, pageW, 14, "F")
		pdf.SetY(4)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.SetTextColor(255, 255, 255)
		pdf.CellFormat(width, 6, tr(Institution), "", 1, "C", false, 0, "")
		pdf.SetDrawColor(gold[0], gold[1], gold[2])
		pdf.SetLineWidth(0.8)
		pdf.Line(left, 16, pageW-right, 16)
		pdf.SetY(24)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-18)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(grey[0], grey[1], grey[2])
		pdf.CellFormat(width, 5, tr("Avenue Ibn Khaldoun, Agdal - Rabat"), "T", 1, "C", false, 0, "")
		pdf.CellFormat(width, 5, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()

	// Reference and date block.
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(black[0], black[1], black[2])
	pdf.CellFormat(width/2, 6, tr("Réf. : "+l.Reference), "", 0, "L", false, 0, "")
	pdf.CellFormat(width/2, 6, tr("Rabat, le "+frenchDate(l.Date)), "", 1, "R", false, 0, "")
	pdf.Ln(8)

	// Recipient block.
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(width, 6, tr(l.RecipientName), "", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(width, 6, tr(l.RecipientEmail), "", 1, "R", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetTextColor(navy[0], navy[1], navy[2])
	pdf.CellFormat(width, 7, tr("Objet : "+tpl.subject), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(black[0], black[1], black[2])
	pdf.MultiCell(width, 6, tr(salutation(l.RecipientName)), "", "L", false)
	pdf.Ln(2)
	for _, p := range tpl.body(l) {
		pdf.MultiCell(width, 6, tr(p), "", "J", false)
		pdf.Ln(2)
	}

	if len(l.Rows) > 0 {
		pdf.Ln(2)
		labelW := width * 0.4
		pdf.SetFillColor(230, 236, 245)
		pdf.SetDrawColor(grey[0], grey[1], grey[2])
		pdf.SetLineWidth(0.2)
		for i, row := range l.Rows {
			fill := i%2 == 0
			pdf.SetFont("Helvetica", "B", 10)
			pdf.CellFormat(labelW, 7, tr(row.Label), "1", 0, "L", fill, 0, "")
			pdf.SetFont("Helvetica", "", 10)
			pdf.CellFormat(width-labelW, 7, tr(row.Value), "1", 1, "L", fill, 0, "")
		}
		pdf.Ln(4)
	}

	pdf.MultiCell(width, 6, tr("Nous vous prions d'agréer l'expression de nos salutations distinguées."), "", "J", false)
	pdf.Ln(12)

	// Signature block.
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(width, 6, tr(l.Signatory), "", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "I", 9)
	pdf.CellFormat(width, 5, tr(Institution), "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render %s letter: %w", l.Kind, err)
	}
	return buf.Bytes(), nil
}

func salutation(name string) string {
	if name == "" {
		return "Madame, Monsieur,"
	}
	return fmt.Sprintf("Madame, Monsieur %s,", name)
}

var frenchMonths = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

func frenchDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d %s %d", t.Day(), frenchMonths[t.Month()-1], t.Year())
}
